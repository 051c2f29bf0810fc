package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type cookieClaims struct {
	UserID   int64  `json:"uid,omitempty"`
	Username string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// tokenCodec signs the cookie value so a client cannot forge or alter a session id.
type tokenCodec struct {
	secret []byte
}

func (c tokenCodec) sign(sess *Session, now time.Time) (string, error) {
	claims := cookieClaims{
		UserID:   sess.UserID,
		Username: sess.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

func (c tokenCodec) parse(value string) (*cookieClaims, error) {
	var claims cookieClaims
	_, err := jwt.ParseWithClaims(value, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, errors.New("session token has no id")
	}
	return &claims, nil
}
