package tor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFetcher(opts ...FetcherOption) *Fetcher {
	base := []FetcherOption{WithRetries(DefaultRetries, time.Millisecond), WithFetchLogger(quietLogger())}
	return NewFetcher(&http.Client{Timeout: 5 * time.Second}, append(base, opts...)...)
}

func TestFetchSendsBrowserHeaders(t *testing.T) {
	t.Parallel()

	seen := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Clone()
		w.Header().Set("Server", "nginx/1.25.3")
		_, _ = io.WriteString(w, "<html><title>shop</title></html>")
	}))
	defer srv.Close()

	page, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	got := <-seen
	if got.Get("User-Agent") != DefaultUserAgent {
		t.Errorf("user agent = %q", got.Get("User-Agent"))
	}
	if got.Get("Accept-Language") != "en-US,en;q=0.9" || !strings.HasPrefix(got.Get("Accept"), "text/html") {
		t.Errorf("accept headers = %v", got)
	}
	if page.Header.Get("Server") != "nginx/1.25.3" || !strings.Contains(string(page.Body), "shop") {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestFetchFollowsRedirect(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "moved")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	page, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/old")
	if err != nil {
		t.Fatal(err)
	}
	if page.FinalURL != srv.URL+"/new" {
		t.Errorf("final url = %q", page.FinalURL)
	}
}

func TestFetchRetries(t *testing.T) {
	t.Parallel()

	t.Run("transient status then success", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = io.WriteString(w, "ok")
		}))
		defer srv.Close()

		if _, err := newTestFetcher().Fetch(context.Background(), srv.URL); err != nil {
			t.Fatal(err)
		}
		if calls.Load() != 3 {
			t.Errorf("calls = %d, want 3", calls.Load())
		}
	})

	t.Run("gives up after two retries", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
		var fe *FetchError
		if !errors.As(err, &fe) || fe.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("expected FetchError 503, got %v", err)
		}
		if calls.Load() != 3 {
			t.Errorf("calls = %d, want 3", calls.Load())
		}
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
		var fe *FetchError
		if !errors.As(err, &fe) || fe.StatusCode != http.StatusNotFound {
			t.Fatalf("expected FetchError 404, got %v", err)
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
		if !strings.Contains(fe.Error(), "HTTP 404") {
			t.Errorf("message = %q", fe.Error())
		}
	})
}

func TestFetchTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestFetcher(WithRetries(0, time.Millisecond)).Fetch(context.Background(), url)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.StatusCode != 0 || fe.Unwrap() == nil {
		t.Errorf("transport failure must carry the cause: %+v", fe)
	}
}

func TestFetchBodyCapAndSiteOptions(t *testing.T) {
	t.Parallel()

	seen := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Clone()
		_, _ = io.WriteString(w, strings.Repeat("x", 1000))
	}))
	defer srv.Close()

	f := newTestFetcher(
		WithMaxBodySize(100),
		WithSiteOptions(func(host string) SiteOptions {
			if host != "127.0.0.1" {
				return SiteOptions{}
			}
			return SiteOptions{Cookie: "session=abc", Headers: map[string]string{"X-Token": "t1"}}
		}),
	)
	page, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Body) != 100 {
		t.Errorf("body length = %d, want 100", len(page.Body))
	}
	h := <-seen
	if h.Get("Cookie") != "session=abc" || h.Get("X-Token") != "t1" {
		t.Errorf("site options not applied: %v", h)
	}
}
