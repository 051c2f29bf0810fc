package server

import (
	"errors"
	"net/http"

	"musicbox/core/auth"
	"musicbox/core/session"
	"musicbox/logger"
	"musicbox/repository"
)

// SignupPageHandler renders the signup form.
func (h *Handler) SignupPageHandler(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, currentSession(r), "signup.html", pageData{})
}

// SignupHandler creates an account and sends the user to the login page.
func (h *Handler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	form := parseCredentials(r)
	if err := h.forms.Validate(form); err != nil {
		sess.AddFlash(session.FlashError, "Username and password are required.")
		h.redirect(w, r, sess, "/signup")
		return
	}

	userID, err := h.users.CreateUser(r.Context(), form.Username, form.Password)
	switch {
	case errors.Is(err, repository.ErrDuplicateUsername):
		logger.Warn("[Signup] username already exists", logger.String("username", form.Username))
		sess.AddFlash(session.FlashError, "Username already exists. Try a different one.")
		h.redirect(w, r, sess, "/signup")
		return
	case errors.Is(err, auth.ErrPasswordTooLong):
		sess.AddFlash(session.FlashError, "Password must be at most 72 bytes long.")
		h.redirect(w, r, sess, "/signup")
		return
	case err != nil:
		h.serverError(w, r, err)
		return
	}

	logger.Info("[Signup] user created", logger.Int64("user_id", userID), logger.String("username", form.Username))
	sess.AddFlash(session.FlashSuccess, "Signup successful! Please log in.")
	h.redirect(w, r, sess, "/login")
}

// LoginPageHandler renders the login form.
func (h *Handler) LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, currentSession(r), "login.html", pageData{})
}

// LoginHandler verifies credentials and authenticates the session. Failures re-render
// the form with an error and leave the session anonymous.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	form := parseCredentials(r)

	err := h.authenticate(r, form)
	if errors.Is(err, session.ErrInvalidCredentials) {
		logger.Warn("[Login] invalid credentials", logger.String("username", form.Username))
		sess.AddFlash(session.FlashError, "Invalid username or password.")
		h.render(w, r, sess, "login.html", pageData{})
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	logger.Info("[Login] login succeeded", logger.String("username", sess.Username))
	sess.AddFlash(session.FlashSuccess, "Login successful!")
	h.redirect(w, r, sess, "/")
}

func (h *Handler) authenticate(r *http.Request, form credentialsForm) error {
	if err := h.forms.Validate(form); err != nil {
		return session.ErrInvalidCredentials
	}

	user, err := h.users.GetUserByUsername(r.Context(), form.Username)
	if errors.Is(err, repository.ErrNotFound) {
		auth.BurnCompare(form.Password)
		return session.ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(form.Password, user.PasswordHash) {
		return session.ErrInvalidCredentials
	}
	return h.sessions.Login(r.Context(), currentSession(r), user.ID, user.Username)
}

// LogoutHandler ends the session and sends the visitor to the login page.
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	next, err := h.sessions.Destroy(r.Context(), currentSession(r))
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	next.AddFlash(session.FlashSuccess, "Logged out successfully.")
	h.redirect(w, r, next, "/login")
}
