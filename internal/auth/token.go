// Package auth implements authentication and authorization of the contact API: bearer token
// issuing and validation, password hashing, the per-request authentication gate, and the
// ownership guard for contacts.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gitlab.com/dirk.krummacker/contact-api/internal/apperr"
)

// TokenIssuer creates and validates HS256 signed bearer tokens. Tokens carry the login
// identifier of the user as subject and are not revocable before they expire.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer signing with secret. Issued tokens are valid for ttl.
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, ttl: ttl, now: time.Now}
}

// WithClock returns a copy of the issuer that reads the current time from now.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	c := *i
	c.now = now
	return &c
}

// Issue signs a token for subject that expires a fixed duration from now.
func (i *TokenIssuer) Issue(subject string) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature and expiry of token and returns its subject.
func (i *TokenIssuer) Validate(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return "", mapJWTError(err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("no subject: %w", apperr.ErrTokenInvalid)
	}
	return claims.Subject, nil
}

// mapJWTError translates jwt library errors to the error taxonomy.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%v: %w", err, apperr.ErrTokenMalformed)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%v: %w", err, apperr.ErrTokenExpired)
	default:
		return fmt.Errorf("%v: %w", err, apperr.ErrTokenInvalid)
	}
}
