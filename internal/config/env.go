package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/onionwatch/internal/model"
)

// Environment variables that override the config file.
const (
	EnvTorSocks          = "TOR_SOCKS"
	EnvVTAPIKey          = "VT_API_KEY"
	EnvEnableOCR         = "ENABLE_OCR"
	EnvOCRLangs          = "OCR_LANGS"
	EnvEnableThreatIntel = "ENABLE_THREAT_INTEL"
	EnvAlertMinLevel     = "ALERT_MIN_LEVEL"
	EnvSlackWebhookURL   = "SLACK_WEBHOOK_URL"
	EnvSMTPHost          = "SMTP_HOST"
	EnvSMTPPort          = "SMTP_PORT"
	EnvSMTPUser          = "SMTP_USER"
	EnvSMTPPass          = "SMTP_PASS"
	EnvSMTPFrom          = "SMTP_FROM"
	EnvSMTPTo            = "SMTP_TO"
	EnvRescanCriticalH   = "RESCAN_CRITICAL_H"
	EnvRescanHighH       = "RESCAN_HIGH_H"
	EnvRescanMediumH     = "RESCAN_MEDIUM_H"
	EnvRescanLowH        = "RESCAN_LOW_H"
	EnvDashboardURL      = "DASHBOARD_URL"
)

// LookupFunc reads one variable; os.LookupEnv in production.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with the set environment variables. Empty values
// are ignored.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvTorSocks); ok {
		cfg.TorProxyAddress = proxyHostPort(v)
	}
	if v, ok := get(EnvVTAPIKey); ok {
		cfg.VTAPIKey = v
	}
	if v, ok := get(EnvEnableOCR); ok {
		cfg.OCREnabled = strings.EqualFold(v, "true")
	}
	if v, ok := get(EnvOCRLangs); ok {
		cfg.OCRLanguages = v
	}
	if v, ok := get(EnvEnableThreatIntel); ok {
		cfg.ThreatIntelEnabled = strings.EqualFold(v, "true")
	}
	if v, ok := get(EnvAlertMinLevel); ok {
		cfg.AlertMinLevel = model.RiskLevel(strings.ToLower(v))
	}
	if v, ok := get(EnvSlackWebhookURL); ok {
		cfg.SlackWebhookURL = v
	}
	if v, ok := get(EnvSMTPHost); ok {
		cfg.SMTPHost = v
	}
	if v, ok := get(EnvSMTPPort); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidEnv, EnvSMTPPort, v)
		}
		cfg.SMTPPort = n
	}
	if v, ok := get(EnvSMTPUser); ok {
		cfg.SMTPUser = v
	}
	if v, ok := get(EnvSMTPPass); ok {
		cfg.SMTPPass = v
	}
	if v, ok := get(EnvSMTPFrom); ok {
		cfg.SMTPFrom = v
	}
	if v, ok := get(EnvSMTPTo); ok {
		cfg.SMTPTo = v
	}
	if v, ok := get(EnvDashboardURL); ok {
		cfg.DashboardURL = v
	}

	hours := []struct {
		key string
		dst *time.Duration
	}{
		{EnvRescanCriticalH, &cfg.RescanCritical},
		{EnvRescanHighH, &cfg.RescanHigh},
		{EnvRescanMediumH, &cfg.RescanMedium},
		{EnvRescanLowH, &cfg.RescanLow},
	}
	for _, h := range hours {
		v, ok := get(h.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidEnv, h.key, v)
		}
		*h.dst = time.Duration(n) * time.Hour
	}
	return nil
}

// proxyHostPort accepts both "host:port" and proxy URLs such as
// "socks5h://127.0.0.1:9050".
func proxyHostPort(v string) string {
	if !strings.Contains(v, "://") {
		return v
	}
	u, err := url.Parse(v)
	if err != nil || u.Host == "" {
		return v
	}
	return u.Host
}
