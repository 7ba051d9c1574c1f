package config

import (
	"maps"
	"strings"
)

// SiteConfig holds request settings for one hidden service.
type SiteConfig struct {
	// Cookie is sent as the Cookie header, e.g. "session=abc; lang=en".
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers for this site.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// GetSiteConfig returns the configuration for a host, merged over the
// defaults. Keys are matched case-insensitively without a port.
func (f *File) GetSiteConfig(host string) SiteConfig {
	result := SiteConfig{Cookie: f.Defaults.Cookie}
	if len(f.Defaults.Headers) > 0 {
		result.Headers = maps.Clone(f.Defaults.Headers)
	}

	site, ok := f.Sites[siteKey(host)]
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	return result
}

func siteKey(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	return host
}
