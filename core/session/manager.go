package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Options configures a Manager.
type Options struct {
	CookieName string
	Lifetime   time.Duration
	Secure     bool
	Secret     []byte
}

// Manager loads, saves and rotates sessions for HTTP requests.
type Manager struct {
	store Store
	codec tokenCodec
	opts  Options
	now   func() time.Time
}

// NewManager creates a Manager. An empty secret is replaced with random bytes, which
// invalidates every cookie when the process restarts.
func NewManager(store Store, opts Options) (*Manager, error) {
	if opts.CookieName == "" {
		opts.CookieName = "session"
	}
	if opts.Lifetime <= 0 {
		opts.Lifetime = 24 * time.Hour
	}
	if len(opts.Secret) == 0 {
		opts.Secret = make([]byte, 32)
		if _, err := rand.Read(opts.Secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	return &Manager{
		store: store,
		codec: tokenCodec{secret: opts.Secret},
		opts:  opts,
		now:   time.Now,
	}, nil
}

func (m *Manager) anonymous() *Session {
	return &Session{ID: uuid.NewString()}
}

// Load returns the session named by the request cookie. Missing, forged, expired or
// revoked cookies yield a fresh anonymous session; only store failures are errors.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.opts.CookieName)
	if err != nil {
		return m.anonymous(), nil
	}

	stale := m.anonymous()
	stale.clearCookie = true

	claims, err := m.codec.parse(cookie.Value)
	if err != nil {
		return stale, nil
	}

	sess, err := m.store.Get(r.Context(), claims.ID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return stale, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.ID != claims.ID || sess.UserID != claims.UserID {
		return stale, nil
	}
	sess.stored = true
	return sess, nil
}

// Save persists sess and issues its cookie. An anonymous session with no pending
// flashes is dropped instead, and any cookie the client holds is cleared.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if !sess.Authenticated() && len(sess.Flashes) == 0 {
		if sess.stored {
			if err := m.store.Delete(ctx, sess.ID); err != nil {
				return err
			}
			sess.stored = false
			sess.clearCookie = true
		}
		if sess.clearCookie {
			m.clearCookie(w)
			sess.clearCookie = false
		}
		return nil
	}

	now := m.now()
	sess.ExpiresAt = now.Add(m.opts.Lifetime)
	if err := m.store.Set(ctx, sess, m.opts.Lifetime); err != nil {
		return err
	}
	sess.stored = true

	token, err := m.codec.sign(sess, now)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	sess.clearCookie = false
	return nil
}

// Login moves sess to the authenticated state under a new id, so an id observed
// before login is useless afterwards. Pending flashes are kept.
func (m *Manager) Login(ctx context.Context, sess *Session, userID int64, username string) error {
	if userID == 0 {
		return ErrInvalidCredentials
	}
	if sess.stored {
		if err := m.store.Delete(ctx, sess.ID); err != nil {
			return err
		}
		sess.stored = false
	}
	sess.ID = uuid.NewString()
	sess.UserID = userID
	sess.Username = username
	return nil
}

// Destroy deletes sess from the store and returns an anonymous replacement whose
// Save clears the cookie unless a flash is added to it.
func (m *Manager) Destroy(ctx context.Context, sess *Session) (*Session, error) {
	if sess.stored {
		if err := m.store.Delete(ctx, sess.ID); err != nil {
			return nil, err
		}
	}
	next := m.anonymous()
	next.clearCookie = true
	return next, nil
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
