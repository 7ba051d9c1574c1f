package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Source names reported in ExternalIntel.Sources and in metrics.
const (
	SourceURLhausURL  = "urlhaus_url"
	SourceURLhausHost = "urlhaus_host"
	SourceVirusTotal  = "virustotal"
)

const (
	// DefaultURLhausBaseURL is the URLhaus API root.
	DefaultURLhausBaseURL = "https://urlhaus-api.abuse.ch/v1"

	// DefaultURLhausTimeout bounds one URLhaus request.
	DefaultURLhausTimeout = 15 * time.Second

	queryNoResults = "no_results"

	// maxResponseSize caps how much of a reputation response is read.
	maxResponseSize = 4 << 20
)

// URLReport is the URLhaus answer for one URL.
type URLReport struct {
	Found  bool
	Status string // online or offline
	Threat string
	Tags   []string
}

// HostReport is the URLhaus answer for one host.
type HostReport struct {
	Found    bool
	URLCount int
}

// URLhausClient queries the abuse.ch URLhaus API.
type URLhausClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// URLhausOption configures a URLhausClient.
type URLhausOption func(*URLhausClient)

// WithURLhausBaseURL overrides the API root.
func WithURLhausBaseURL(u string) URLhausOption {
	return func(c *URLhausClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithURLhausHTTPClient sets the HTTP client.
func WithURLhausHTTPClient(hc *http.Client) URLhausOption {
	return func(c *URLhausClient) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithURLhausTimeout sets the per-request timeout.
func WithURLhausTimeout(d time.Duration) URLhausOption {
	return func(c *URLhausClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewURLhausClient creates a URLhaus client.
func NewURLhausClient(opts ...URLhausOption) *URLhausClient {
	c := &URLhausClient{
		baseURL: DefaultURLhausBaseURL,
		client:  &http.Client{},
		timeout: DefaultURLhausTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type urlhausURLResponse struct {
	QueryStatus string   `json:"query_status"`
	URLStatus   string   `json:"url_status"`
	Threat      string   `json:"threat"`
	Tags        []string `json:"tags"`
}

type urlhausHostResponse struct {
	QueryStatus string            `json:"query_status"`
	URLs        []json.RawMessage `json:"urls"`
}

// LookupURL checks whether u is a known malicious URL.
func (c *URLhausClient) LookupURL(ctx context.Context, u string) (*URLReport, error) {
	var resp urlhausURLResponse
	if err := c.post(ctx, "url/", url.Values{"url": {u}}, SourceURLhausURL, u, &resp); err != nil {
		return nil, err
	}
	if resp.QueryStatus == queryNoResults {
		return &URLReport{Found: false}, nil
	}
	return &URLReport{
		Found:  true,
		Status: resp.URLStatus,
		Threat: resp.Threat,
		Tags:   resp.Tags,
	}, nil
}

// LookupHost checks how many known malicious URLs live on host.
func (c *URLhausClient) LookupHost(ctx context.Context, host string) (*HostReport, error) {
	var resp urlhausHostResponse
	if err := c.post(ctx, "host/", url.Values{"host": {host}}, SourceURLhausHost, host, &resp); err != nil {
		return nil, err
	}
	if resp.QueryStatus == queryNoResults {
		return &HostReport{Found: false}, nil
	}
	return &HostReport{Found: true, URLCount: len(resp.URLs)}, nil
}

func (c *URLhausClient) post(ctx context.Context, path string, form url.Values, source, subject string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+path, strings.NewReader(form.Encode()))
	if err != nil {
		return &LookupError{Source: source, Subject: subject, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &LookupError{Source: source, Subject: subject, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &LookupError{
			Source:     source,
			Subject:    subject,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return &LookupError{Source: source, Subject: subject, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
