package model

import (
	"time"

	"golang.org/x/oauth2"
)

// Credential is the decrypted per-user OAuth credential payload. It is
// what gets JSON-serialized, encrypted and stored in auth_tokens.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenURI     string    `json:"token_uri"`
	ClientID     string    `json:"client_id"`
	Scopes       []string  `json:"scopes"`
	Expiry       time.Time `json:"expiry"`
}

// Token converts the credential into an oauth2 token usable as a
// token-source seed.
func (c *Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       c.Expiry,
	}
}

// ExpiresWithin reports whether the access token is already expired or
// will expire within the given safety margin. A zero expiry means the
// provider did not report one and the token is treated as expired.
func (c *Credential) ExpiresWithin(margin time.Duration, now time.Time) bool {
	if c.Expiry.IsZero() {
		return true
	}
	return now.Add(margin).After(c.Expiry)
}
