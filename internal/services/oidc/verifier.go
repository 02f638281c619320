package oidc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-planner/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrMissingSubject is returned for otherwise valid tokens without a sub claim.
var ErrMissingSubject = errors.New("token missing subject claim")

// DefaultClockSkew is tolerated on exp, nbf and iat checks.
const DefaultClockSkew = 30 * time.Second

// Verifier checks bearer tokens issued by one issuer.
type Verifier struct {
	jwks     *JWKSManager
	jwksURL  string
	issuer   string
	audience string
}

// NewVerifier creates a verifier. An empty audience skips the aud check.
func NewVerifier(jwks *JWKSManager, jwksURL, issuer, audience string) *Verifier {
	return &Verifier{
		jwks:     jwks,
		jwksURL:  jwksURL,
		issuer:   issuer,
		audience: audience,
	}
}

// Verify validates the token signature and registered claims.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*models.TokenClaims, error) {
	token, err := v.parse(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	if token.Subject() == "" {
		return nil, ErrMissingSubject
	}
	return &models.TokenClaims{
		Subject:   token.Subject(),
		Issuer:    token.Issuer(),
		Audience:  token.Audience(),
		IssuedAt:  token.IssuedAt(),
		ExpiresAt: token.Expiration(),
	}, nil
}

func (v *Verifier) parse(ctx context.Context, tokenString string) (jwt.Token, error) {
	keys, err := v.jwks.GetJWKS(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}
	opts := []jwt.ParseOption{
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithAcceptableSkew(DefaultClockSkew),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}
	return token, nil
}
