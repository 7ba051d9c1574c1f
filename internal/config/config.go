package config

import (
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/onionwatch/internal/model"
	"github.com/nao1215/onionwatch/internal/scheduler"
	"github.com/nao1215/onionwatch/internal/tor"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "onionwatch"

	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	// 127.0.0.1 avoids resolving localhost to an IPv6 address.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTimeout bounds one page fetch. Tor circuits add several seconds
	// of latency per hop.
	DefaultTimeout = 60 * time.Second

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultScreenshotTimeout bounds one headless browser capture.
	DefaultScreenshotTimeout = 90 * time.Second

	// DefaultOCRTimeout bounds one tesseract run.
	DefaultOCRTimeout = 60 * time.Second

	// DefaultOCRLanguages are the tesseract language packs tried first.
	DefaultOCRLanguages = "eng+spa+rus"

	// DefaultVirusTotalDelay keeps VirusTotal under the free tier quota of
	// four lookups per minute.
	DefaultVirusTotalDelay = 16 * time.Second

	// DefaultIntelTimeout bounds one reputation lookup.
	DefaultIntelTimeout = 20 * time.Second

	// DefaultAlertMinLevel is the lowest level that is alerted.
	DefaultAlertMinLevel = model.RiskHigh

	// DefaultAlertTimeout bounds one notification delivery.
	DefaultAlertTimeout = 15 * time.Second

	// DefaultSMTPPort is the submission port with STARTTLS.
	DefaultSMTPPort = 587

	// DefaultSMTPFrom is the sender used when none is configured.
	DefaultSMTPFrom = "onionwatch@localhost"

	// DefaultListenAddress is where serve binds.
	DefaultListenAddress = "127.0.0.1:8000"

	// DefaultSchedulerWorkers bounds concurrent rescans.
	DefaultSchedulerWorkers = 2

	// DefaultCrawlLimit is the number of frontier links one crawl visits.
	DefaultCrawlLimit = 50
)

// Config holds all configuration options of onionwatch.
// It is built by NewConfig, then overridden by the config file, the
// environment and finally the CLI flags, and passed down explicitly.
//
// Design decision: the struct stays flat even though the file groups its
// keys into sections (tor, scan, alerts, ...). Components take the handful
// of values they need through their own options, so the file layout can
// change without touching them.
type Config struct {
	// TorProxyAddress is the SOCKS5 proxy in "host:port" format.
	TorProxyAddress string

	// UseExternalTor disables the embedded Tor daemon and uses TorProxyAddress.
	UseExternalTor bool

	// TorStartupTimeout bounds the bootstrap of the embedded daemon.
	TorStartupTimeout time.Duration

	// Timeout bounds one page fetch.
	Timeout time.Duration

	// UserAgent is sent with every fetch and by the headless browser.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// Retries is the number of retries after a failed fetch.
	Retries int

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the config file in use; empty when none was found.
	ConfigFilePath string

	// DataDir holds the databases, screenshots and exports.
	DataDir string

	ScreenshotsEnabled bool
	ScreenshotTimeout  time.Duration

	OCREnabled   bool
	OCRLanguages string
	OCRTimeout   time.Duration

	// ThreatIntelEnabled turns on external reputation lookups for visits
	// that ask for them. URLhaus needs no key; VirusTotal needs VTAPIKey.
	ThreatIntelEnabled bool
	VTAPIKey           string
	VTDelay            time.Duration
	IntelTimeout       time.Duration

	// AlertMinLevel gates alert dispatch.
	AlertMinLevel   model.RiskLevel
	AlertTimeout    time.Duration
	SlackWebhookURL string
	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPass        string
	SMTPFrom        string
	// SMTPTo is a comma-separated recipient list.
	SMTPTo string
	// DashboardURL prefixes the deep links in alerts.
	DashboardURL string

	RescanCritical   time.Duration
	RescanHigh       time.Duration
	RescanMedium     time.Duration
	RescanLow        time.Duration
	SchedulerWorkers int

	// ListenAddress is the serve bind address.
	ListenAddress string

	// Sites holds per-site request settings from the config file.
	Sites *File
}

// NewConfig creates a Config with default values.
// Every optional integration (threat intel credentials, Slack, SMTP) starts
// unset, which leaves it disabled until the file or the environment fills
// it in.
//
// Design decision: a constructor instead of zero values, because most
// defaults are non-zero (timeouts, intervals, ports) and this is the one
// place that lists them.
func NewConfig() *Config {
	iv := scheduler.DefaultIntervals()
	return &Config{
		TorProxyAddress:    DefaultTorProxyAddress,
		TorStartupTimeout:  DefaultTorStartupTimeout,
		Timeout:            DefaultTimeout,
		UserAgent:          tor.DefaultUserAgent,
		MaxBodySize:        tor.DefaultMaxBodySize,
		Retries:            tor.DefaultRetries,
		DataDir:            XDGDataDir(),
		ScreenshotsEnabled: true,
		ScreenshotTimeout:  DefaultScreenshotTimeout,
		OCREnabled:         true,
		OCRLanguages:       DefaultOCRLanguages,
		OCRTimeout:         DefaultOCRTimeout,
		ThreatIntelEnabled: true,
		VTDelay:            DefaultVirusTotalDelay,
		IntelTimeout:       DefaultIntelTimeout,
		AlertMinLevel:      DefaultAlertMinLevel,
		AlertTimeout:       DefaultAlertTimeout,
		SMTPPort:           DefaultSMTPPort,
		SMTPFrom:           DefaultSMTPFrom,
		DashboardURL:       "http://" + DefaultListenAddress,
		RescanCritical:     iv.Critical,
		RescanHigh:         iv.High,
		RescanMedium:       iv.Medium,
		RescanLow:          iv.Low,
		SchedulerWorkers:   DefaultSchedulerWorkers,
		ListenAddress:      DefaultListenAddress,
		Sites:              &File{Sites: map[string]SiteConfig{}},
	}
}

// XDGDataDir returns the XDG data directory for onionwatch.
// On Linux: ~/.local/share/onionwatch
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for onionwatch.
// On Linux: ~/.config/onionwatch
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for onionwatch.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Intervals returns the rescan intervals.
func (c *Config) Intervals() scheduler.Intervals {
	return scheduler.Intervals{
		Critical: c.RescanCritical,
		High:     c.RescanHigh,
		Medium:   c.RescanMedium,
		Low:      c.RescanLow,
	}
}

// SlackEnabled reports whether Slack alerts are configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackWebhookURL != ""
}

// EmailEnabled reports whether e-mail alerts are configured.
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPTo != ""
}

// VirusTotalEnabled reports whether the credentialed lookup is configured.
func (c *Config) VirusTotalEnabled() bool {
	return c.ThreatIntelEnabled && c.VTAPIKey != ""
}

// SiteOptions returns the merged request settings for a host.
// It is passed to tor.WithSiteOptions.
func (c *Config) SiteOptions(host string) tor.SiteOptions {
	if c.Sites == nil {
		return tor.SiteOptions{}
	}
	sc := c.Sites.GetSiteConfig(host)
	return tor.SiteOptions{Cookie: sc.Cookie, Headers: sc.Headers}
}

// Validate checks the configuration and returns the first problem found.
//
// Design decision: validation happens once, after flags are applied and
// before Tor is started, so a typo in the config fails within milliseconds
// instead of after a minute of bootstrapping. Missing credentials are not
// errors: they only disable the integration that needs them.
func (c *Config) Validate() error {
	if !tor.IsValidProxyAddress(c.TorProxyAddress) {
		return ErrInvalidProxyAddress
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.Retries < 0 {
		return ErrInvalidRetries
	}
	if !c.AlertMinLevel.Valid() || c.AlertMinLevel == model.RiskUnknown {
		return ErrInvalidMinLevel
	}
	if err := c.Intervals().Validate(); err != nil {
		return ErrInvalidInterval
	}
	if c.SchedulerWorkers <= 0 {
		return ErrInvalidWorkers
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		return ErrInvalidSMTPPort
	}
	if !validListenAddress(c.ListenAddress) {
		return ErrInvalidListenAddress
	}
	return nil
}

// validListenAddress accepts "host:port" and ":port".
func validListenAddress(addr string) bool {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 0 && n <= 65535
}
