package models

import "time"

// TokenClaims are the verified claims of a bearer token.
// Subject identifies the caller and scopes its conversations.
type TokenClaims struct {
	Subject   string
	Issuer    string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
