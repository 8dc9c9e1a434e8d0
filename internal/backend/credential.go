package backend

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type credentialKey struct{}

// Credential identifies the portal user on whose behalf a request is made.
type Credential struct {
	Email string
	Role  string
	Token string // issued by the backend on login, may be empty
}

func WithCredential(ctx context.Context, c Credential) context.Context {
	return context.WithValue(ctx, credentialKey{}, c)
}

func CredentialFrom(ctx context.Context) (Credential, bool) {
	c, ok := ctx.Value(credentialKey{}).(Credential)
	if !ok || (c.Email == "" && c.Token == "") {
		return Credential{}, false
	}
	return c, true
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenSigner mints short lived HS256 tokens for users whose login response
// carried no backend token.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenSigner(secret string, ttl time.Duration) *TokenSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TokenSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *TokenSigner) Sign(email, role string) (string, error) {
	now := s.now()
	c := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    "consultancy-portal",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

func (s *TokenSigner) bearer(c Credential) (string, error) {
	if c.Token != "" {
		return c.Token, nil
	}
	return s.Sign(c.Email, c.Role)
}
