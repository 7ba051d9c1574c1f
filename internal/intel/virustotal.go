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

	"golang.org/x/time/rate"
)

const (
	// DefaultVirusTotalBaseURL is the VirusTotal v3 API root.
	DefaultVirusTotalBaseURL = "https://www.virustotal.com/api/v3"

	// DefaultVirusTotalTimeout bounds one VirusTotal request.
	DefaultVirusTotalTimeout = 20 * time.Second

	// VirusTotalInterval is the minimum spacing between calls on the free
	// tier (4 requests per minute).
	VirusTotalInterval = 16 * time.Second
)

// EngineReport is the multi-engine verdict for a domain.
type EngineReport struct {
	Found      bool
	Malicious  int
	Suspicious int
	Harmless   int
}

// VirusTotalClient queries the VirusTotal v3 domain report.
// All calls share one limiter, so concurrent callers are serialized.
type VirusTotalClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// VirusTotalOption configures a VirusTotalClient.
type VirusTotalOption func(*VirusTotalClient)

// WithVirusTotalBaseURL overrides the API root.
func WithVirusTotalBaseURL(u string) VirusTotalOption {
	return func(c *VirusTotalClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithVirusTotalHTTPClient sets the HTTP client.
func WithVirusTotalHTTPClient(hc *http.Client) VirusTotalOption {
	return func(c *VirusTotalClient) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithVirusTotalLimiter replaces the free-tier limiter.
func WithVirusTotalLimiter(l *rate.Limiter) VirusTotalOption {
	return func(c *VirusTotalClient) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithVirusTotalTimeout sets the per-request timeout. Time spent waiting
// for the limiter is not included.
func WithVirusTotalTimeout(d time.Duration) VirusTotalOption {
	return func(c *VirusTotalClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewVirusTotalClient creates a client. It returns ErrNoAPIKey when apiKey
// is empty.
func NewVirusTotalClient(apiKey string, opts ...VirusTotalOption) (*VirusTotalClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNoAPIKey
	}
	c := &VirusTotalClient{
		apiKey:  apiKey,
		baseURL: DefaultVirusTotalBaseURL,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Every(VirusTotalInterval), 1),
		timeout: DefaultVirusTotalTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type vtDomainResponse struct {
	Data struct {
		Attributes struct {
			LastAnalysisStats struct {
				Malicious  int `json:"malicious"`
				Suspicious int `json:"suspicious"`
				Harmless   int `json:"harmless"`
			} `json:"last_analysis_stats"`
		} `json:"attributes"`
	} `json:"data"`
}

// LookupDomain returns the last analysis stats for domain. A 404 is a
// valid answer (not found); a 401 yields ErrUnauthorized.
func (c *VirusTotalClient) LookupDomain(ctx context.Context, domain string) (*EngineReport, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &LookupError{Source: SourceVirusTotal, Subject: domain, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/domains/"+url.PathEscape(domain), nil)
	if err != nil {
		return nil, &LookupError{Source: SourceVirusTotal, Subject: domain, Err: err}
	}
	req.Header.Set("x-apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &LookupError{Source: SourceVirusTotal, Subject: domain, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return &EngineReport{Found: false}, nil
	case http.StatusUnauthorized:
		return nil, &LookupError{Source: SourceVirusTotal, Subject: domain, StatusCode: resp.StatusCode, Err: ErrUnauthorized}
	default:
		return nil, &LookupError{
			Source:     SourceVirusTotal,
			Subject:    domain,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var body vtDomainResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&body); err != nil {
		return nil, &LookupError{Source: SourceVirusTotal, Subject: domain, Err: fmt.Errorf("decode response: %w", err)}
	}
	stats := body.Data.Attributes.LastAnalysisStats
	return &EngineReport{
		Found:      true,
		Malicious:  stats.Malicious,
		Suspicious: stats.Suspicious,
		Harmless:   stats.Harmless,
	}, nil
}
