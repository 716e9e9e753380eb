package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTokenLifetime is assumed when the token endpoint omits expires_in.
const DefaultTokenLifetime = time.Hour

// Credentials is the stored OAuth state of one task account.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// credentialsJSON is the stored encoding; expiresAt is Unix milliseconds.
type credentialsJSON struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// DecodeCredentials parses a stored credential blob.
func DecodeCredentials(blob string) (Credentials, error) {
	var raw credentialsJSON
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return Credentials{}, fmt.Errorf("malformed credentials: %w", err)
	}
	if raw.AccessToken == "" {
		return Credentials{}, errors.New("malformed credentials: missing access token")
	}

	c := Credentials{AccessToken: raw.AccessToken, RefreshToken: raw.RefreshToken}
	if raw.ExpiresAt > 0 {
		c.ExpiresAt = time.UnixMilli(raw.ExpiresAt).UTC()
	}
	return c, nil
}

// Encode returns the stored form of c.
func (c Credentials) Encode() (string, error) {
	raw := credentialsJSON{AccessToken: c.AccessToken, RefreshToken: c.RefreshToken}
	if !c.ExpiresAt.IsZero() {
		raw.ExpiresAt = c.ExpiresAt.UnixMilli()
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("failed to encode credentials: %w", err)
	}
	return string(b), nil
}

// Token converts c for use with oauth2 transports.
func (c Credentials) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
		Expiry:       c.ExpiresAt,
	}
}

// ExpiresWithin reports whether c expires before now+window. Credentials
// without a known expiry are treated as expired.
func (c Credentials) ExpiresWithin(now time.Time, window time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return true
	}
	return now.Add(window).After(c.ExpiresAt)
}

// credentialsFromToken converts a token response. Google usually omits
// the refresh token on refresh, so the previous one is kept.
func credentialsFromToken(tok *oauth2.Token, prev Credentials, now time.Time) Credentials {
	c := Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if c.RefreshToken == "" {
		c.RefreshToken = prev.RefreshToken
	}
	if c.ExpiresAt.IsZero() {
		c.ExpiresAt = now.Add(DefaultTokenLifetime)
	}
	return c
}
