package calendar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teemow/duety/internal/logging"
	"github.com/teemow/duety/internal/sync"
)

const (
	// DefaultTimeout bounds a single feed download.
	DefaultTimeout = 15 * time.Second

	// MaxFeedSize is the largest feed body that is read.
	MaxFeedSize = 10 << 20

	userAgent = "duety/1 (+ics-fetch)"
)

// FetchError reports a feed that could not be downloaded.
type FetchError struct {
	URL        string // redacted
	StatusCode int    // zero for transport failures
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a feed whose content is not valid iCalendar.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse calendar: %v", e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// Options configures a Fetcher. Zero values are usable.
type Options struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Fetcher implements sync.EventSource for ICS feeds.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

var _ sync.EventSource = (*Fetcher)(nil)

// NewFetcher creates a Fetcher.
func NewFetcher(opts Options) *Fetcher {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, logger: logger}
}

// FetchEvents downloads the feed at url and returns its events.
func (f *Fetcher) FetchEvents(ctx context.Context, url string) ([]sync.Event, error) {
	redacted := logging.RedactURL(url)
	start := time.Now()

	body, err := f.download(ctx, url, redacted)
	if err != nil {
		f.logger.Warn("ics fetch failed", slog.String("url", redacted), logging.Err(err))
		return nil, err
	}

	events, err := Parse(body)
	if err != nil {
		f.logger.Warn("ics parse failed", slog.String("url", redacted), logging.Err(err))
		return nil, err
	}

	f.logger.Debug("ics fetch completed",
		slog.String("url", redacted),
		slog.Int("bytes", len(body)),
		slog.Int("events", len(events)),
		slog.Duration(logging.KeyDuration, time.Since(start)))
	return events, nil
}

func (f *Fetcher) download(ctx context.Context, url, redacted string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, normalizeURL(url), nil)
	if err != nil {
		return nil, &FetchError{URL: redacted, Err: err}
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: redacted, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &FetchError{URL: redacted, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxFeedSize+1))
	if err != nil {
		return nil, &FetchError{URL: redacted, Err: err}
	}
	if len(body) > MaxFeedSize {
		return nil, &FetchError{URL: redacted, Err: fmt.Errorf("feed exceeds %d bytes", MaxFeedSize)}
	}
	return body, nil
}

// normalizeURL maps the webcal scheme used by calendar subscription links
// to https.
func normalizeURL(url string) string {
	if rest, ok := cutPrefixFold(url, "webcal://"); ok {
		return "https://" + rest
	}
	return url
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}
