package tor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Fetch defaults.
const (
	// DefaultUserAgent mimics a desktop browser; many hidden services refuse
	// obvious bots.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122 Safari/537.36"

	// DefaultMaxBodySize caps the bytes read from one response.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultRetries is the number of retries after the first attempt.
	DefaultRetries = 2

	// DefaultRetryInterval is the first backoff delay.
	DefaultRetryInterval = 1500 * time.Millisecond

	acceptHeader   = "text/html,application/xhtml+xml,*/*;q=0.8"
	acceptLanguage = "en-US,en;q=0.9"
)

// Page is a fetched document.
type Page struct {
	// FinalURL is the URL after redirects.
	FinalURL   string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// SiteOptions are per-site request settings.
type SiteOptions struct {
	Cookie  string
	Headers map[string]string
}

// Fetcher downloads single pages.
//
// Design decision: retries live here rather than in the pipeline because
// only the fetcher can tell a circuit failure, which is worth another
// attempt, from an answer the service gave on purpose. A 404 or 403 is
// final; a dropped circuit or a 502 from an overloaded service is not.
type Fetcher struct {
	// client is the HTTP client dialing through Tor.
	client *http.Client

	// userAgent is sent with every request unless a site overrides it.
	userAgent string

	// maxBodySize limits the bytes read from one response.
	maxBodySize int64

	// retries is the number of attempts after the first one.
	retries       uint64
	retryInterval time.Duration

	// site returns the cookie and extra headers configured for a host.
	site func(host string) SiteOptions

	logger *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize caps the body length. Non-positive values are ignored.
func WithMaxBodySize(n int64) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithRetries sets the number of retries and the first backoff delay.
func WithRetries(retries int, interval time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if retries >= 0 {
			f.retries = uint64(retries)
		}
		if interval > 0 {
			f.retryInterval = interval
		}
	}
}

// WithSiteOptions registers a lookup of per-host cookies and headers.
func WithSiteOptions(fn func(host string) SiteOptions) FetcherOption {
	return func(f *Fetcher) {
		f.site = fn
	}
}

// WithFetchLogger sets the logger.
func WithFetchLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a fetcher that sends requests with client, usually
// Client.HTTPClient().
func NewFetcher(client *http.Client, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:        client,
		userAgent:     DefaultUserAgent,
		maxBodySize:   DefaultMaxBodySize,
		retries:       DefaultRetries,
		retryInterval: DefaultRetryInterval,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// retryableStatus reports whether a status is worth another attempt.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Fetch downloads rawURL following redirects. Transport errors and 500,
// 502, 503 and 504 responses are retried with exponential backoff; any
// other non-2xx status fails at once. Every failure is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	var page *Page
	attempt := 0
	op := func() error {
		attempt++
		p, err := f.once(ctx, u)
		if err == nil {
			page = p
			return nil
		}
		var fe *FetchError
		if errors.As(err, &fe) && fe.StatusCode != 0 && !retryableStatus(fe.StatusCode) {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		f.logger.Debug("fetch attempt failed", "url", rawURL, "attempt", attempt, "error", err)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.retryInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, f.retries), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	return page, nil
}

func (f *Fetcher) once(ctx context.Context, u *url.URL) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{URL: u.String(), Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguage)
	if f.site != nil {
		f.applySite(req, f.site(u.Hostname()))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: u.String(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024)) //nolint:errcheck // drain for reuse
		return nil, &FetchError{
			URL:        u.String(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, &FetchError{URL: u.String(), Err: fmt.Errorf("failed to read body: %w", err)}
	}

	final := u.String()
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return &Page{
		FinalURL:   final,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (f *Fetcher) applySite(req *http.Request, site SiteOptions) {
	if site.Cookie != "" {
		if existing := req.Header.Get("Cookie"); existing != "" {
			req.Header.Set("Cookie", existing+"; "+site.Cookie)
		} else {
			req.Header.Set("Cookie", site.Cookie)
		}
	}
	for k, v := range site.Headers {
		if strings.TrimSpace(k) != "" {
			req.Header.Set(k, v)
		}
	}
}
