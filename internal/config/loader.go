package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/onionwatch/internal/model"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file looked up in the working directory.
const DefaultConfigFile = ".onionwatch.yaml"

// XDGConfigFile is the config file name inside XDGConfigDir.
const XDGConfigFile = "config.yaml"

// File is the YAML configuration file. Unset keys keep the current values.
type File struct {
	Tor       TorSection       `yaml:"tor,omitempty"`
	Scan      ScanSection      `yaml:"scan,omitempty"`
	Capture   CaptureSection   `yaml:"capture,omitempty"`
	Intel     IntelSection     `yaml:"threat_intel,omitempty"`
	Alerts    AlertSection     `yaml:"alerts,omitempty"`
	Scheduler SchedulerSection `yaml:"scheduler,omitempty"`
	Server    ServerSection    `yaml:"server,omitempty"`

	// Sites maps onion hosts to their request settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

type TorSection struct {
	Proxy          string        `yaml:"proxy,omitempty"`
	External       *bool         `yaml:"external,omitempty"`
	StartupTimeout time.Duration `yaml:"startup_timeout,omitempty"`
}

type ScanSection struct {
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	UserAgent   string        `yaml:"user_agent,omitempty"`
	MaxBodySize int64         `yaml:"max_body_size,omitempty"`
	Retries     *int          `yaml:"retries,omitempty"`
	DataDir     string        `yaml:"data_dir,omitempty"`
}

type CaptureSection struct {
	Screenshots       *bool         `yaml:"screenshots,omitempty"`
	ScreenshotTimeout time.Duration `yaml:"screenshot_timeout,omitempty"`
	OCR               *bool         `yaml:"ocr,omitempty"`
	OCRLanguages      string        `yaml:"ocr_languages,omitempty"`
	OCRTimeout        time.Duration `yaml:"ocr_timeout,omitempty"`
}

type IntelSection struct {
	Enabled  *bool         `yaml:"enabled,omitempty"`
	VTAPIKey string        `yaml:"vt_api_key,omitempty"`
	VTDelay  time.Duration `yaml:"vt_delay,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

type AlertSection struct {
	MinLevel        string        `yaml:"min_level,omitempty"`
	Timeout         time.Duration `yaml:"timeout,omitempty"`
	SlackWebhookURL string        `yaml:"slack_webhook_url,omitempty"`
	DashboardURL    string        `yaml:"dashboard_url,omitempty"`
	SMTP            SMTPSection   `yaml:"smtp,omitempty"`
}

type SMTPSection struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
	User string `yaml:"user,omitempty"`
	Pass string `yaml:"pass,omitempty"`
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`
}

type SchedulerSection struct {
	CriticalHours int `yaml:"critical_hours,omitempty"`
	HighHours     int `yaml:"high_hours,omitempty"`
	MediumHours   int `yaml:"medium_hours,omitempty"`
	LowHours      int `yaml:"low_hours,omitempty"`
	Workers       int `yaml:"workers,omitempty"`
}

type ServerSection struct {
	Listen string `yaml:"listen,omitempty"`
}

// LoadConfigFile parses a YAML config file.
// A missing file returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	sites := make(map[string]SiteConfig, len(f.Sites))
	for host, sc := range f.Sites {
		sites[siteKey(host)] = sc
	}
	f.Sites = sites
	return &f, nil
}

// FindConfigFile returns the config file to use, or "" if none exists:
// the explicit path, then ./.onionwatch.yaml, then
// $XDG_CONFIG_HOME/onionwatch/config.yaml.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	p := filepath.Join(XDGConfigDir(), XDGConfigFile)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// Load builds the configuration from defaults, the config file and the
// process environment. An explicit path that does not exist is an error;
// a missing default file is not.
func Load(configPath string) (*Config, error) {
	cfg := NewConfig()

	path := FindConfigFile(configPath)
	if path == "" && configPath != "" {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
	}
	if path != "" {
		f, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		f.Apply(cfg)
		cfg.ConfigFilePath = path
	}

	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Apply overrides cfg with every key set in the file.
func (f *File) Apply(cfg *Config) {
	setString(&cfg.TorProxyAddress, f.Tor.Proxy)
	setBool(&cfg.UseExternalTor, f.Tor.External)
	setDuration(&cfg.TorStartupTimeout, f.Tor.StartupTimeout)

	setDuration(&cfg.Timeout, f.Scan.Timeout)
	setString(&cfg.UserAgent, f.Scan.UserAgent)
	if f.Scan.MaxBodySize != 0 {
		cfg.MaxBodySize = f.Scan.MaxBodySize
	}
	if f.Scan.Retries != nil {
		cfg.Retries = *f.Scan.Retries
	}
	setString(&cfg.DataDir, f.Scan.DataDir)

	setBool(&cfg.ScreenshotsEnabled, f.Capture.Screenshots)
	setDuration(&cfg.ScreenshotTimeout, f.Capture.ScreenshotTimeout)
	setBool(&cfg.OCREnabled, f.Capture.OCR)
	setString(&cfg.OCRLanguages, f.Capture.OCRLanguages)
	setDuration(&cfg.OCRTimeout, f.Capture.OCRTimeout)

	setBool(&cfg.ThreatIntelEnabled, f.Intel.Enabled)
	setString(&cfg.VTAPIKey, f.Intel.VTAPIKey)
	setDuration(&cfg.VTDelay, f.Intel.VTDelay)
	setDuration(&cfg.IntelTimeout, f.Intel.Timeout)

	if f.Alerts.MinLevel != "" {
		cfg.AlertMinLevel = model.RiskLevel(strings.ToLower(f.Alerts.MinLevel))
	}
	setDuration(&cfg.AlertTimeout, f.Alerts.Timeout)
	setString(&cfg.SlackWebhookURL, f.Alerts.SlackWebhookURL)
	setString(&cfg.DashboardURL, f.Alerts.DashboardURL)
	setString(&cfg.SMTPHost, f.Alerts.SMTP.Host)
	setInt(&cfg.SMTPPort, f.Alerts.SMTP.Port)
	setString(&cfg.SMTPUser, f.Alerts.SMTP.User)
	setString(&cfg.SMTPPass, f.Alerts.SMTP.Pass)
	setString(&cfg.SMTPFrom, f.Alerts.SMTP.From)
	setString(&cfg.SMTPTo, f.Alerts.SMTP.To)

	setHours(&cfg.RescanCritical, f.Scheduler.CriticalHours)
	setHours(&cfg.RescanHigh, f.Scheduler.HighHours)
	setHours(&cfg.RescanMedium, f.Scheduler.MediumHours)
	setHours(&cfg.RescanLow, f.Scheduler.LowHours)
	setInt(&cfg.SchedulerWorkers, f.Scheduler.Workers)

	setString(&cfg.ListenAddress, f.Server.Listen)

	if len(f.Sites) > 0 || f.Defaults.Cookie != "" || len(f.Defaults.Headers) > 0 {
		cfg.Sites = f
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

func setHours(dst *time.Duration, h int) {
	if h != 0 {
		*dst = time.Duration(h) * time.Hour
	}
}
