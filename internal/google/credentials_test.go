package google

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestDecodeCredentials(t *testing.T) {
	c, err := DecodeCredentials(`{"accessToken":"at","refreshToken":"rt","expiresAt":1709294400000}`)
	require.NoError(t, err)
	assert.Equal(t, "at", c.AccessToken)
	assert.Equal(t, "rt", c.RefreshToken)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), c.ExpiresAt)
}

func TestDecodeCredentials_Malformed(t *testing.T) {
	for _, blob := range []string{"", "not json", `{"refreshToken":"rt"}`, `[]`} {
		_, err := DecodeCredentials(blob)
		assert.Error(t, err, blob)
	}
}

func TestCredentials_EncodeRoundTrip(t *testing.T) {
	in := Credentials{AccessToken: "at", RefreshToken: "rt", ExpiresAt: time.UnixMilli(1709294400123).UTC()}
	blob, err := in.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"accessToken":"at","refreshToken":"rt","expiresAt":1709294400123}`, blob)

	out, err := DecodeCredentials(blob)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCredentials_ExpiresWithin(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"unknown expiry", time.Time{}, true},
		{"already expired", now.Add(-time.Minute), true},
		{"inside window", now.Add(4 * time.Minute), true},
		{"outside window", now.Add(6 * time.Minute), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Credentials{AccessToken: "a", ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, c.ExpiresWithin(now, RefreshThreshold))
		})
	}
}

func TestCredentialsFromToken(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	prev := Credentials{AccessToken: "old", RefreshToken: "keep"}

	c := credentialsFromToken(&oauth2.Token{AccessToken: "new"}, prev, now)
	assert.Equal(t, "new", c.AccessToken)
	assert.Equal(t, "keep", c.RefreshToken)
	assert.Equal(t, now.Add(DefaultTokenLifetime), c.ExpiresAt)

	c = credentialsFromToken(&oauth2.Token{AccessToken: "new", RefreshToken: "rotated", Expiry: now.Add(time.Minute)}, prev, now)
	assert.Equal(t, "rotated", c.RefreshToken)
	assert.Equal(t, now.Add(time.Minute), c.ExpiresAt)
}
