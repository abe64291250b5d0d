// Package auth verifies the bearer tokens issued by the account service.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
)

// Tokens signs and verifies HS256 tokens whose subject is the user ID.
type Tokens struct {
	secret []byte
	issuer string
	clock  func() time.Time
}

// NewTokens builds a verifier. An empty issuer accepts tokens from any
// issuer.
func NewTokens(secret, issuer string) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("auth: empty jwt secret")
	}
	return &Tokens{secret: []byte(secret), issuer: issuer, clock: time.Now}, nil
}

// Issue signs a token for userID. A zero ttl produces a token without exp.
func (t *Tokens) Issue(userID string, ttl time.Duration) (string, error) {
	now := t.clock()
	claims := jwt.RegisteredClaims{
		Subject:  userID,
		Issuer:   t.issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify returns the subject of a valid token.
func (t *Tokens) Verify(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.clock),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeUnauthenticated, "invalid token", err)
	}
	if claims.Subject == "" {
		return "", apperr.New(apperr.CodeUnauthenticated, "token has no subject")
	}
	return claims.Subject, nil
}

// FromHeader verifies an "Authorization: Bearer ..." value.
func (t *Tokens) FromHeader(header string) (string, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", apperr.ErrUnauthenticated
	}
	return t.Verify(strings.TrimSpace(token))
}

type userKey struct{}

// WithUser stores the authenticated user ID on ctx.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFrom returns the user ID stored by WithUser.
func UserFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey{}).(string)
	return id, ok && id != ""
}
