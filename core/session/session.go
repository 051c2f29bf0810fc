// Package session implements server-side login sessions carried by a signed cookie.
//
// A Session is either anonymous or authenticated. Anonymous sessions exist only to
// carry flash messages between a redirect and the next page; they are not stored
// once their flashes have been shown.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrNotAuthenticated indicates the request has no authenticated session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSessionNotFound is returned by a Store for unknown or expired ids.
	ErrSessionNotFound = errors.New("session not found")
)

// Flash categories understood by the page templates.
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash is a one-shot notice displayed on the next rendered page.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Session is the server-held state for one browser.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId,omitempty"`
	Username  string    `json:"username,omitempty"`
	Flashes   []Flash   `json:"flashes,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`

	stored      bool // present in the Store under ID
	clearCookie bool // the client holds a cookie that no longer refers to anything
}

// Authenticated reports whether a user is logged in on this session.
func (s *Session) Authenticated() bool {
	return s.UserID != 0
}

// AddFlash queues a notice for the next rendered page.
func (s *Session) AddFlash(category, message string) {
	s.Flashes = append(s.Flashes, Flash{Category: category, Message: message})
}

// PopFlashes returns and clears the queued notices.
func (s *Session) PopFlashes() []Flash {
	flashes := s.Flashes
	s.Flashes = nil
	return flashes
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying sess.
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext extracts the session stored by NewContext.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok && sess != nil
}

// CurrentUser returns the logged-in user on ctx, or ErrNotAuthenticated.
func CurrentUser(ctx context.Context) (userID int64, username string, err error) {
	sess, ok := FromContext(ctx)
	if !ok || !sess.Authenticated() {
		return 0, "", ErrNotAuthenticated
	}
	return sess.UserID, sess.Username, nil
}
