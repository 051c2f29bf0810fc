package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"musicbox/core/session"
	"musicbox/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"home.html", "upload.html", "favorites.html", "login.html", "signup.html"}

// pageData is the view model shared by every page.
type pageData struct {
	Username  string
	Flashes   []session.Flash
	Songs     []*model.Song
	Favorites []*model.FavoriteSong
}

// Filenames are client-supplied, so they are path-escaped before going into a URL.
var templateFuncs = template.FuncMap{
	"pathEscape": url.PathEscape,
}

type views struct {
	pages map[string]*template.Template
}

func loadViews() (*views, error) {
	v := &views{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		v.pages[name] = tmpl
	}
	return v, nil
}

// render consumes the session's flashes into the page, saves the session and writes
// the page. The page is executed into a buffer first so template errors become a 500.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, sess *session.Session, page string, data pageData) {
	tmpl, ok := h.views.pages[page]
	if !ok {
		h.serverError(w, r, fmt.Errorf("unknown page %q", page))
		return
	}

	data.Username = sess.Username
	data.Flashes = sess.PopFlashes()

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		h.serverError(w, r, fmt.Errorf("render %s: %w", page, err))
		return
	}
	if err := h.sessions.Save(r.Context(), w, sess); err != nil {
		h.serverError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// redirect saves the session (so queued flashes survive) and answers 302.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, sess *session.Session, target string) {
	if err := h.sessions.Save(r.Context(), w, sess); err != nil {
		h.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}
