package google

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/duety/internal/instrumentation"
)

// TasksScope grants read and write access to Google Tasks.
const TasksScope = "https://www.googleapis.com/auth/tasks"

// OAuth holds the OAuth2 client configuration for Google.
type OAuth struct {
	config     oauth2.Config
	httpClient *http.Client
	metrics    *instrumentation.Metrics
	now        func() time.Time
}

// Option configures an OAuth.
type Option func(*OAuth)

// WithEndpoint overrides the Google endpoint. Used by tests.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(o *OAuth) { o.config.Endpoint = endpoint }
}

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *OAuth) { o.httpClient = c }
}

// WithMetrics records code exchanges and refreshes.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(o *OAuth) { o.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *OAuth) { o.now = now }
}

// NewOAuth creates the OAuth configuration for the given client.
func NewOAuth(clientID, clientSecret string, opts ...Option) *OAuth {
	o := &OAuth{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{TasksScope},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Configured reports whether a client id and secret are set.
func (o *OAuth) Configured() bool {
	return o.config.ClientID != "" && o.config.ClientSecret != ""
}

// AuthCodeURL returns the consent page URL. Offline access and a forced
// consent prompt make Google return a refresh token every time.
func (o *OAuth) AuthCodeURL(state, redirectURL string) string {
	conf := o.config
	conf.RedirectURL = redirectURL
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for credentials.
func (o *OAuth) Exchange(ctx context.Context, code, redirectURL string) (Credentials, error) {
	conf := o.config
	conf.RedirectURL = redirectURL

	tok, err := conf.Exchange(o.context(ctx), code)
	if err != nil {
		o.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		return Credentials{}, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	o.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	return credentialsFromToken(tok, Credentials{}, o.now()), nil
}

// refresh exchanges a refresh token for a new access token.
func (o *OAuth) refresh(ctx context.Context, c Credentials) (Credentials, error) {
	if c.RefreshToken == "" {
		return Credentials{}, fmt.Errorf("no refresh token available")
	}

	// A token without an access token is never valid, so the source
	// always hits the token endpoint.
	tok, err := o.config.TokenSource(o.context(ctx), &oauth2.Token{RefreshToken: c.RefreshToken}).Token()
	if err != nil {
		o.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		return Credentials{}, fmt.Errorf("failed to refresh token: %w", err)
	}
	o.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)
	return credentialsFromToken(tok, c, o.now()), nil
}

func (o *OAuth) context(ctx context.Context) context.Context {
	if o.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}
	return ctx
}
