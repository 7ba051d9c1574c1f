package capture

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Screenshot defaults.
const (
	DefaultWidth   = 1365
	DefaultHeight  = 768
	DefaultSettle  = 2500 * time.Millisecond
	DefaultTimeout = 90 * time.Second

	// ScreenshotDir is the directory under the data dir holding screenshots.
	ScreenshotDir = "screenshots"
)

// Shot is a saved screenshot.
type Shot struct {
	// Path is relative to the data dir, e.g. "screenshots/x.onion_20260101_120000.png".
	Path string
	// AbsPath is the file on disk.
	AbsPath string
	Width   int
	Height  int
}

// Screenshotter captures full-page PNGs with headless Chrome.
type Screenshotter struct {
	dataDir   string
	proxyURL  string
	userAgent string
	width     int
	height    int
	settle    time.Duration
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// ScreenshotOption configures a Screenshotter.
type ScreenshotOption func(*Screenshotter)

// WithProxy routes the browser through a proxy URL such as
// "socks5://127.0.0.1:9050".
func WithProxy(proxyURL string) ScreenshotOption {
	return func(s *Screenshotter) {
		s.proxyURL = proxyURL
	}
}

// WithViewport sets the browser window size.
func WithViewport(width, height int) ScreenshotOption {
	return func(s *Screenshotter) {
		if width > 0 && height > 0 {
			s.width, s.height = width, height
		}
	}
}

// WithSettle sets how long to wait after the DOM is ready.
func WithSettle(d time.Duration) ScreenshotOption {
	return func(s *Screenshotter) {
		s.settle = d
	}
}

// WithCaptureTimeout bounds one capture.
func WithCaptureTimeout(d time.Duration) ScreenshotOption {
	return func(s *Screenshotter) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBrowserUserAgent sets the browser User-Agent.
func WithBrowserUserAgent(ua string) ScreenshotOption {
	return func(s *Screenshotter) {
		s.userAgent = ua
	}
}

// WithScreenshotClock replaces time.Now for file names.
func WithScreenshotClock(now func() time.Time) ScreenshotOption {
	return func(s *Screenshotter) {
		s.now = now
	}
}

// WithScreenshotLogger sets the logger.
func WithScreenshotLogger(logger *slog.Logger) ScreenshotOption {
	return func(s *Screenshotter) {
		s.logger = logger
	}
}

// NewScreenshotter creates a screenshotter that writes under dataDir.
func NewScreenshotter(dataDir string, opts ...ScreenshotOption) *Screenshotter {
	s := &Screenshotter{
		dataDir: dataDir,
		width:   DefaultWidth,
		height:  DefaultHeight,
		settle:  DefaultSettle,
		timeout: DefaultTimeout,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capture loads target and saves a full-page PNG of it.
func (s *Screenshotter) Capture(ctx context.Context, target string) (*Shot, error) {
	name := FileName(target, s.now())
	rel := filepath.ToSlash(filepath.Join(ScreenshotDir, name))
	abs := filepath.Join(s.dataDir, ScreenshotDir, name)
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return nil, &CaptureError{URL: target, Err: fmt.Errorf("failed to create screenshot dir: %w", err)}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.WindowSize(s.width, s.height),
	)
	if s.proxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(s.proxyURL))
	}
	if s.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.userAgent))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var buf []byte
	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(int64(s.width), int64(s.height)),
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.settle),
		chromedp.FullScreenshot(&buf, 100),
	)
	if err != nil {
		return nil, &CaptureError{URL: target, Err: err}
	}
	if err := os.WriteFile(abs, buf, 0o600); err != nil {
		return nil, &CaptureError{URL: target, Err: fmt.Errorf("failed to write screenshot: %w", err)}
	}

	s.logger.Debug("screenshot saved", "url", target, "path", rel, "bytes", len(buf))
	return &Shot{Path: rel, AbsPath: abs, Width: s.width, Height: s.height}, nil
}

// FileName returns "<domain>_<UTC stamp>.png" with unsafe characters of the
// domain replaced by underscores.
func FileName(target string, at time.Time) string {
	domain := "site"
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		domain = u.Host
	}
	return safeName(domain) + "_" + at.UTC().Format("20060102_150405") + ".png"
}

func safeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
