// Package auth mints and checks the owner tokens used between the client
// core and the API server. A token is an HS256 JWT whose subject is the owner id.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/starford/postjournal/internal/apperr"
)

const issuer = "postjournal"

// Mint returns a signed token for owner. A zero ttl yields a token without expiry.
func Mint(secret []byte, owner string, ttl time.Duration, now time.Time) (string, error) {
	if owner == "" {
		return "", fmt.Errorf("auth: mint: empty owner: %w", apperr.ErrInvalid)
	}
	if len(secret) == 0 {
		return "", errors.New("auth: mint: empty secret")
	}
	claims := jwt.RegisteredClaims{
		Issuer:   issuer,
		Subject:  owner,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign: %w", err)
	}
	return signed, nil
}

// Verifier validates signed tokens.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier returns a verifier for tokens signed with secret.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
		),
	}
}

// Owner checks the signature and expiry of token and returns its subject.
func (v *Verifier) Owner(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("auth: %v: %w", err, apperr.ErrUnauthenticated)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject: %w", apperr.ErrUnauthenticated)
	}
	return claims.Subject, nil
}

// Subject reads the subject without checking the signature. The client uses it
// to learn which owner its credentials belong to.
func Subject(token string) (string, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return "", fmt.Errorf("auth: parse token: %w", apperr.ErrUnauthenticated)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject: %w", apperr.ErrUnauthenticated)
	}
	return claims.Subject, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

type ownerKey struct{}

// WithOwner returns a context carrying the authenticated owner id.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFrom returns the owner id stored by WithOwner, or "".
func OwnerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}
