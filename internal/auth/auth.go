// Package auth turns bearer tokens into principals. Tokens are HS256
// JWTs carrying the principal id and an admin flag; there is no session
// state on the server side.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrNoSecret     = errors.New("auth secret is not configured")
)

// Principal is the authenticated actor behind a request.
type Principal struct {
	ID    string
	Admin bool
}

type Claims struct {
	jwt.RegisteredClaims
	Admin bool `json:"admin,omitempty"`
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Principal verifies a bearer token and extracts its principal. Every
// failure mode collapses to ErrInvalidToken so callers can't distinguish
// expiry from forgery.
func (v *Verifier) Principal(tokenString string) (Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Principal{}, ErrInvalidToken
	}

	return Principal{ID: claims.Subject, Admin: claims.Admin}, nil
}

// Mint issues a token for principalID, valid for ttl.
func Mint(principalID, secret string, admin bool, ttl time.Duration) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", ErrNoSecret
	}
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return "", errors.New("principal id cannot be empty")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Admin: admin,
	})
	return token.SignedString([]byte(secret))
}
