package techdetect

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/nao1215/onionwatch/internal/model"
)

// headerSet is a response header view with lower-cased names. Repeated
// headers are joined with ", ".
type headerSet map[string]string

func newHeaderSet(h http.Header) headerSet {
	hs := make(headerSet, len(h))
	for k, v := range h {
		hs[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return hs
}

func (h headerSet) get(name string) string { return h[name] }

func (h headerSet) has(names ...string) bool {
	for _, n := range names {
		if _, ok := h[n]; ok {
			return true
		}
	}
	return false
}

func (h headerSet) server() string  { return h["server"] }
func (h headerSet) powered() string { return h["x-powered-by"] }

// matches reports whether header name matches p.
func matches(name string, p *regexp.Regexp) func(headerSet) bool {
	return func(h headerSet) bool { return p.MatchString(h.get(name)) }
}

// versionFrom extracts a version from header name.
func versionFrom(name string, p *regexp.Regexp) func(headerSet) string {
	return func(h headerSet) string { return firstGroup(h.get(name), p) }
}

// serverRule fingerprints a product named in the Server header.
func serverRule(name string, confidence float64, marker, version string) rule[headerSet] {
	return rule[headerSet]{
		name: name, category: "server", confidence: confidence,
		when:    matches("server", re(marker)),
		version: versionFrom("server", re(version)),
	}
}

// poweredRule fingerprints a runtime named in X-Powered-By.
func poweredRule(name string, confidence float64, marker, version string) rule[headerSet] {
	return rule[headerSet]{
		name: name, category: "language", confidence: confidence,
		when:    matches("x-powered-by", re(marker)),
		version: versionFrom("x-powered-by", re(version)),
	}
}

// presenceRule fingerprints a technology by the presence of any header name.
func presenceRule(name, category string, confidence float64, headers ...string) rule[headerSet] {
	return rule[headerSet]{
		name: name, category: category, confidence: confidence,
		when: func(h headerSet) bool { return h.has(headers...) },
	}
}

var (
	railsRuntime  = regexp.MustCompile(`\d+\.\d+`)
	symfonyMarker = re(`symfony`)
)

var headerRules = []rule[headerSet]{
	serverRule("Nginx", 0.95, `nginx`, `nginx/([\d.]+)`),
	serverRule("Apache", 0.95, `apache`, `Apache/([\d.]+)`),
	serverRule("lighttpd", 0.95, `lighttpd`, `lighttpd/([\d.]+)`),
	serverRule("OpenResty", 0.95, `openresty`, `openresty/([\d.]+)`),
	serverRule("LiteSpeed", 0.95, `litespeed`, `LiteSpeed/([\d.]+)`),
	serverRule("Caddy", 0.90, `caddy`, `Caddy/([\d.]+)`),
	serverRule("IIS", 0.90, `\bIIS\b`, `IIS/([\d.]+)`),
	serverRule("Gunicorn", 0.90, `gunicorn`, `gunicorn/([\d.]+)`),
	serverRule("Tornado", 0.85, `tornado`, `TornadoServer/([\d.]+)`),
	serverRule("Uvicorn", 0.90, `uvicorn`, `uvicorn/([\d.]+)`),
	serverRule("Werkzeug", 0.85, `werkzeug`, `Werkzeug/([\d.]+)`),

	poweredRule("PHP", 0.97, `php`, `PHP/([\d.]+)`),
	poweredRule("ASP.NET", 0.95, `asp\.net`, `ASP\.NET/([\d.]+)`),
	poweredRule("Node.js", 0.85, `node\.?js|express`, `Node\.js/(v?[\d.]+)`),
	poweredRule("Ruby", 0.85, `ruby`, `Ruby/([\d.]+)`),
	poweredRule("Python", 0.85, `python`, `Python/([\d.]+)`),
	{
		name: "Java", category: "language", confidence: 0.80,
		when: func(h headerSet) bool {
			p := strings.ToLower(h.powered())
			return strings.Contains(p, "java") && !strings.Contains(p, "javascript")
		},
		version: versionFrom("x-powered-by", re(`Java/([\d._]+)`)),
	},
	poweredRule("Perl", 0.80, `perl`, `Perl/([\d.]+)`),

	{
		name: "Cloudflare", category: "cdn", confidence: 0.97,
		when: func(h headerSet) bool {
			return strings.Contains(strings.ToLower(h.server()), "cloudflare") || h.has("cf-ray")
		},
	},
	{
		name: "Varnish", category: "cache", confidence: 0.93,
		when: func(h headerSet) bool {
			return strings.Contains(strings.ToLower(h.server()), "varnish") || h.has("x-varnish")
		},
		version: versionFrom("server", re(`varnish/([\d.]+)`)),
	},
	{
		name: "Squid", category: "cache", confidence: 0.88,
		when: func(h headerSet) bool {
			return strings.Contains(strings.ToLower(h.server()), "squid") ||
				strings.Contains(h.get("x-cache"), "x-squid")
		},
		version: versionFrom("server", re(`squid/([\d.]+)`)),
	},
	{
		name: "Akamai", category: "cdn", confidence: 0.90,
		when: func(h headerSet) bool {
			return strings.Contains(strings.ToLower(h.server()), "akamai") ||
				strings.Contains(h.get("x-check-cacheable"), "akamai")
		},
	},
	{
		name: "Fastly", category: "cdn", confidence: 0.90,
		when: func(h headerSet) bool {
			return strings.Contains(h.get("x-served-by"), "fastly") ||
				strings.Contains(h.get("x-cache"), "fastly")
		},
	},
	{
		name: "HAProxy", category: "proxy", confidence: 0.90,
		when:    matches("server", re(`haproxy`)),
		version: versionFrom("server", re(`HAProxy/([\d.]+)`)),
	},

	presenceRule("Shopify", "ecommerce", 0.98, "x-shopify-stage", "x-shopid"),
	{
		name: "WordPress", category: "cms", confidence: 0.92,
		when:    func(h headerSet) bool { return h.has("x-wp-total", "x-wp-totalpages") },
		version: versionFrom("link", re(`WordPress/([\d.]+)`)),
	},
	presenceRule("Drupal", "cms", 0.95, "x-drupal-cache", "x-drupal-dynamic-cache"),
	{
		name: "Joomla", category: "cms", confidence: 0.93,
		when: func(h headerSet) bool {
			return h.has("x-joomla") ||
				strings.Contains(strings.ToLower(h.get("x-content-encoded-by")), "joomla")
		},
	},
	{
		name: "Magento", category: "ecommerce", confidence: 0.93,
		when:    func(h headerSet) bool { return h.has("x-magento", "x-magento-cache-control") },
		version: versionFrom("x-magento-version", re(`magento/([\d.]+)`)),
	},
	{
		name: "WooCommerce", category: "ecommerce", confidence: 0.90,
		when: func(h headerSet) bool {
			return h.has("x-wc-store-id") ||
				strings.Contains(strings.ToLower(h.powered()), "woocommerce")
		},
	},
	presenceRule("Wix", "website-builder", 0.97, "x-wix-request-id"),
	{
		name: "Squarespace", category: "website-builder", confidence: 0.97,
		when: func(h headerSet) bool {
			return h.has("x-squarespace-id") ||
				strings.Contains(strings.ToLower(h.server()), "squarespace")
		},
	},

	{
		name: "Django", category: "backend", confidence: 0.88,
		when: func(h headerSet) bool {
			return h.has("x-powered-by") && strings.Contains(strings.ToLower(h.powered()), "django")
		},
	},
	{
		name: "Flask", category: "backend", confidence: 0.85,
		when: func(h headerSet) bool {
			return h.has("x-flask") || strings.Contains(strings.ToLower(h.powered()), "werkzeug")
		},
		version: versionFrom("x-powered-by", re(`Werkzeug/([\d.]+)`)),
	},
	{
		name: "Laravel", category: "backend", confidence: 0.90,
		when: func(h headerSet) bool {
			return h.has("x-laravel-session") || strings.Contains(h.get("set-cookie"), "laravel_session")
		},
		version: versionFrom("x-powered-by", re(`laravel/([\d.]+)`)),
	},
	{
		name: "Ruby on Rails", category: "backend", confidence: 0.88,
		when: func(h headerSet) bool {
			return h.has("x-rails-cache") || strings.Contains(h.get("set-cookie"), "_rails_session")
		},
	},
	{
		name: "Symfony", category: "backend", confidence: 0.85,
		when: func(h headerSet) bool {
			return h.has("x-symfony") || symfonyMarker.MatchString(h.powered())
		},
		version: versionFrom("x-powered-by", re(`symfony/([\d.]+)`)),
	},
	{
		name: "ASP.NET", category: "language", confidence: 0.97,
		when:    func(h headerSet) bool { return h.has("x-aspnet-version") },
		version: func(h headerSet) string { return strings.TrimSpace(h.get("x-aspnet-version")) },
	},
	{
		name: "Ruby on Rails", category: "backend", confidence: 0.75,
		when: func(h headerSet) bool {
			return h.has("x-runtime") && railsRuntime.MatchString(h.get("x-runtime"))
		},
	},

	presenceRule("HSTS", "security", 0.90, "strict-transport-security"),
	presenceRule("CSP", "security", 0.90, "content-security-policy"),
	presenceRule("X-Frame-Options", "security", 0.85, "x-frame-options"),
	presenceRule("X-XSS-Protection", "security", 0.80, "x-xss-protection"),
	presenceRule("Permissions-Policy", "security", 0.80, "permissions-policy"),
}

// DetectFromHeaders proposes signatures from HTTP response headers.
// Header names are matched case-insensitively.
func DetectFromHeaders(h http.Header) []model.TechSignature {
	return apply(headerRules, newHeaderSet(h), SourceHeaders)
}
