package google

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// RefreshThreshold is how close to expiry credentials are refreshed.
const RefreshThreshold = 5 * time.Minute

// RefreshError means the refresh token was rejected or the token
// endpoint could not be reached.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string { return e.Err.Error() }

func (e *RefreshError) Unwrap() error { return e.Err }

// CredentialManager keeps one account's credentials fresh. It is safe
// for concurrent use.
type CredentialManager struct {
	oauth *OAuth

	mu      sync.Mutex
	current Credentials
	changed bool
}

// NewCredentialManager decodes blob and returns a manager for it.
func (o *OAuth) NewCredentialManager(blob string) (*CredentialManager, error) {
	c, err := DecodeCredentials(blob)
	if err != nil {
		return nil, err
	}
	return &CredentialManager{oauth: o, current: c}, nil
}

// Ensure returns credentials valid for at least RefreshThreshold,
// refreshing first if needed.
func (m *CredentialManager) Ensure(ctx context.Context) (Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current.ExpiresWithin(m.oauth.now(), RefreshThreshold) {
		return m.current, nil
	}
	return m.refreshLocked(ctx)
}

// Refresh unconditionally refreshes and returns the new credentials.
// On error the previous credentials are kept.
func (m *CredentialManager) Refresh(ctx context.Context) (Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshLocked(ctx)
}

func (m *CredentialManager) refreshLocked(ctx context.Context) (Credentials, error) {
	c, err := m.oauth.refresh(ctx, m.current)
	if err != nil {
		return Credentials{}, &RefreshError{Err: err}
	}
	m.current = c
	m.changed = true
	return c, nil
}

// Current returns the in-memory credentials.
func (m *CredentialManager) Current() Credentials {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Changed reports whether a refresh succeeded since construction.
func (m *CredentialManager) Changed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}

// Encoded returns the stored form of the current credentials and whether
// they changed since construction.
func (m *CredentialManager) Encoded() (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.current.Encode()
	if err != nil {
		return "", false, err
	}
	return s, m.changed, nil
}

// TokenSource returns an oauth2.TokenSource backed by the manager.
// Refreshes triggered through it use ctx.
func (m *CredentialManager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managedTokenSource{ctx: ctx, m: m}
}

type managedTokenSource struct {
	ctx context.Context
	m   *CredentialManager
}

func (s *managedTokenSource) Token() (*oauth2.Token, error) {
	c, err := s.m.Ensure(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("token source: %w", err)
	}
	return c.Token(), nil
}
