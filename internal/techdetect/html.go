package techdetect

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/onionwatch/internal/model"
)

// page is the evidence for HTML rules: the raw document, its lower-cased
// form for marker checks, and the generator meta content.
type page struct {
	raw       string
	low       string
	generator string
}

func newPage(html string) *page {
	return &page{
		raw:       html,
		low:       strings.ToLower(html),
		generator: metaGenerator(html),
	}
}

// metaGenerator returns the content of <meta name="generator">, if any.
func metaGenerator(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	var gen string
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if !strings.EqualFold(strings.TrimSpace(name), "generator") {
			return true
		}
		gen = strings.TrimSpace(s.AttrOr("content", ""))
		return gen == ""
	})
	return gen
}

type probe func(*page) string

// inDoc probes the raw document.
func inDoc(expr string) probe {
	p := re(expr)
	return func(pg *page) string { return firstGroup(pg.raw, p) }
}

// inGen probes the generator meta content.
func inGen(expr string) probe {
	p := re(expr)
	return func(pg *page) string { return firstGroup(pg.generator, p) }
}

// chain returns the first non-empty probe result.
func chain(probes ...probe) func(*page) string {
	return func(pg *page) string {
		for _, p := range probes {
			if v := p(pg); v != "" {
				return v
			}
		}
		return ""
	}
}

// markers reports whether the lower-cased document contains any substring.
func markers(subs ...string) func(*page) bool {
	return func(pg *page) bool { return containsAny(pg.low, subs...) }
}

// lowMatch reports whether the lower-cased document matches expr.
func lowMatch(expr string) func(*page) bool {
	p := regexp.MustCompile(expr)
	return func(pg *page) bool { return p.MatchString(pg.low) }
}

var (
	onionV3 = regexp.MustCompile(`[a-z2-7]{56}\.onion`)
	onionV2 = regexp.MustCompile(`[a-z2-7]{16}\.onion`)
	uaID    = regexp.MustCompile(`UA-\d+`)

	reactMarker   = lowMatch(`react(?:\.production|\.min|\.development)?\.js`)
	vueMarker     = lowMatch(`vue(?:\.min|\.runtime)?\.js`)
	angularMarker = lowMatch(`angular(?:\.min)?\.js`)
	nextHeadCount = re(`<meta name="next-head-count"`)
	nextVersion   = re(`next/([\d.]+)`)
	stripeVersion = re(`js\.stripe\.com/v(\d)`)
)

var htmlRules = []rule[*page]{
	{
		name: "WordPress", category: "cms", confidence: 0.93,
		when: markers("/wp-content/", "/wp-includes/", "wp-json"),
		version: chain(
			inGen(`WordPress ([\d.]+)`),
			inDoc(`content=["']WordPress ([\d.]+)`),
			inDoc(`ver=([\d.]+)["'].*?wp-`),
			inDoc(`/wp-includes/js/wp-embed\.min\.js\?ver=([\d.]+)`),
		),
	},
	{
		name: "WooCommerce", category: "ecommerce", confidence: 0.90,
		when: markers("woocommerce"),
		version: chain(
			inDoc(`woocommerce[_-]([\d.]+)\.(?:js|css)`),
			inDoc(`"woocommerce":\{"version":"([\d.]+)"`),
			inDoc(`wc-version.*?([\d.]+)`),
		),
	},
	{
		name: "Shopify", category: "ecommerce", confidence: 0.95,
		when: markers("cdn.shopify.com", "myshopify.com"),
	},
	{
		name: "Magento", category: "ecommerce", confidence: 0.85,
		when: markers("mage/", "magento"),
		version: chain(
			inDoc(`"Magento_[\w]+":"([\d.]+)"`),
			inDoc(`Mage\.VERSION\s*=\s*["']([^"']+)`),
			inGen(`magento\s+([\d.]+)`),
			inDoc(`magento/([\d.]+)`),
		),
	},
	{
		name: "PrestaShop", category: "ecommerce", confidence: 0.87,
		when: markers("prestashop"),
		version: chain(
			inGen(`prestashop\s+([\d.]+)`),
			inDoc(`prestashop[_-]([\d.]+)\.js`),
			inDoc(`"ps_version"\s*:\s*"([\d.]+)"`),
		),
	},
	{
		name: "OpenCart", category: "ecommerce", confidence: 0.83,
		when: markers("opencart", "catalog/view/javascript"),
		version: chain(
			inGen(`opencart\s+([\d.]+)`),
			inDoc(`"opencart_version"\s*:\s*"([\d.]+)"`),
		),
	},
	{
		name: "Drupal", category: "cms", confidence: 0.88,
		when: markers("drupal", "/sites/default/files"),
		version: chain(
			inGen(`Drupal ([\d.]+)`),
			inDoc(`"drupalSettings".*?"version"\s*:\s*"([\d.]+)"`),
			inDoc(`drupal\.js\?[a-z]=([\d.]+)`),
			inDoc(`/core/misc/drupal\.js\?v=([\d.]+)`),
		),
	},
	{
		name: "Joomla", category: "cms", confidence: 0.87,
		when: markers("joomla"),
		version: chain(
			inGen(`Joomla!\s*([\d.]+)`),
			inDoc(`/media/jui/js/jquery\.min\.js\?[\d.]+&([\d.]+)`),
			inDoc(`"joomla_version"\s*:\s*"([\d.]+)"`),
		),
	},
	{
		name: "Ghost", category: "cms", confidence: 0.83,
		when: markers("ghost.org", "ghost-theme", `{"ghost"`),
		version: chain(
			inGen(`Ghost/([\d.]+)`),
			inDoc(`"ghost_version"\s*:\s*"([\d.]+)"`),
			inDoc(`ghost@([\d.]+)`),
		),
	},

	{
		name: "jQuery", category: "frontend", confidence: 0.85,
		when: markers("jquery"),
		version: chain(
			inDoc(`jquery[.-]([\d.]+)(?:\.min)?\.js`),
			inDoc(`jQuery v([\d.]+)`),
			inDoc(`"jquery"\s*:\s*"([\d.]+)"`),
			inDoc(`jQuery JavaScript Library v([\d.]+)`),
		),
	},
	{
		name: "React", category: "frontend", confidence: 0.82,
		when: func(pg *page) bool {
			return reactMarker(pg) || containsAny(pg.low, "data-reactroot", "__reactfiber")
		},
		version: chain(
			inDoc(`react(?:\.production\.min)?\.js\?v=([\d.]+)`),
			inDoc(`react[@/]([\d.]+)`),
			inDoc(`"react"\s*:\s*"[\^~]?([\d.]+)"`),
			inDoc(`React\.version\s*=\s*["']([^"']+)`),
		),
	},
	{
		name: "Vue.js", category: "frontend", confidence: 0.82,
		when: func(pg *page) bool {
			return vueMarker(pg) || containsAny(pg.low, "__vue_app__", "data-v-app")
		},
		version: chain(
			inDoc(`vue(?:\.min)?\.js\?v=([\d.]+)`),
			inDoc(`vue[@/]([\d.]+)`),
			inDoc(`"version"\s*:\s*"([\d.]+)"\s*,\s*"Vue"`),
			inDoc(`Vue\.version\s*=\s*["']([^"']+)`),
		),
	},
	{
		name: "Angular", category: "frontend", confidence: 0.82,
		when: func(pg *page) bool {
			return angularMarker(pg) || strings.Contains(pg.low, "ng-version")
		},
		version: chain(
			inDoc(`ng-version="([^"]+)"`),
			inDoc(`angular(?:\.min)?\.js\?v=([\d.]+)`),
			inDoc(`angular[@/]([\d.]+)`),
			inDoc(`angular\.version\s*=\s*\{[^}]*full:\s*["']([^"']+)`),
		),
	},
	{
		name: "Bootstrap", category: "frontend", confidence: 0.80,
		when: markers("bootstrap"),
		version: chain(
			inDoc(`bootstrap(?:\.min)?\.(?:js|css)\?v=([\d.]+)`),
			inDoc(`bootstrap[@/]([\d.]+)`),
			inDoc(`Bootstrap v([\d.]+)`),
			inDoc(`"bootstrap"\s*:\s*"[\^~]?([\d.]+)"`),
		),
	},
	{
		name: "TailwindCSS", category: "frontend", confidence: 0.78,
		when: markers("tailwind"),
		version: chain(
			inDoc(`tailwindcss[@/]([\d.]+)`),
			inDoc(`tailwind\.css\?v=([\d.]+)`),
		),
	},
	{
		name: "Next.js", category: "frontend", confidence: 0.88,
		when: markers("__next", "_next/static", "next.js"),
		version: chain(
			inDoc(`"next"\s*:\s*"[\^~]?([\d.]+)"`),
			inDoc(`next[@/]([\d.]+)`),
			func(pg *page) string {
				if !nextHeadCount.MatchString(pg.raw) {
					return ""
				}
				return firstGroup(pg.raw, nextVersion)
			},
		),
	},
	{
		name: "Nuxt.js", category: "frontend", confidence: 0.87,
		when: markers("__nuxt", "_nuxt/"),
		version: chain(
			inDoc(`nuxt[@/]([\d.]+)`),
			inDoc(`"nuxt"\s*:\s*"[\^~]?([\d.]+)"`),
		),
	},
	{
		name: "Svelte", category: "frontend", confidence: 0.80,
		when:    markers("svelte"),
		version: chain(inDoc(`svelte[@/]([\d.]+)`)),
	},

	{
		name: "Django", category: "backend", confidence: 0.83,
		when:    markers("csrfmiddlewaretoken", "django"),
		version: chain(inDoc(`django/([\d.]+)`), inGen(`Django/([\d.]+)`)),
	},
	{
		name: "Flask", category: "backend", confidence: 0.75,
		when: func(pg *page) bool {
			return strings.Contains(pg.low, "werkzeug") ||
				(strings.Contains(pg.low, "flask") && strings.Contains(pg.low, "python"))
		},
		version: chain(inDoc(`Flask/([\d.]+)`), inDoc(`Werkzeug/([\d.]+)`)),
	},
	{
		name: "Laravel", category: "backend", confidence: 0.85,
		when:    markers("laravel"),
		version: chain(inDoc(`laravel/([\d.]+)`), inDoc(`"laravel_version"\s*:\s*"([\d.]+)"`)),
	},
	{
		name: "Symfony", category: "backend", confidence: 0.82,
		when:    markers("symfony"),
		version: chain(inGen(`Symfony ([\d.]+)`), inDoc(`symfony/([\d.]+)`)),
	},
	{
		name: "Ruby on Rails", category: "backend", confidence: 0.80,
		when:    markers("rails", "actiondispatch"),
		version: chain(inDoc(`rails/([\d.]+)`), inDoc(`"railsVersion"\s*:\s*"([\d.]+)"`)),
	},
	{
		name: "ASP.NET", category: "language", confidence: 0.90,
		when:    markers("__viewstate", "asp.net"),
		version: chain(inGen(`ASP\.NET\s+([\d.]+)`)),
	},

	{
		name: "Google Analytics", category: "analytics", confidence: 0.90,
		when: markers("google-analytics.com", "googletagmanager.com", "gtag(", "ga("),
		version: func(pg *page) string {
			switch {
			case strings.Contains(pg.low, "gtag("):
				return "GA4"
			case uaID.MatchString(pg.raw):
				return "UA"
			}
			return ""
		},
	},
	{
		name: "Matomo", category: "analytics", confidence: 0.87,
		when:    markers("matomo", "piwik"),
		version: chain(inDoc(`matomo/([\d.]+)`), inDoc(`piwik/([\d.]+)`)),
	},
	{
		name: "Stripe", category: "payments", confidence: 0.88,
		when: func(pg *page) bool {
			return strings.Contains(pg.low, "stripe") &&
				containsAny(pg.low, "js.stripe.com", "stripe.js", "stripe-js")
		},
		version: func(pg *page) string {
			if v := firstGroup(pg.raw, stripeVersion); v != "" {
				return "v" + v
			}
			return ""
		},
	},
	{
		name: "PayPal", category: "payments", confidence: 0.88,
		when:    markers("paypalobjects.com", "paypal.com/sdk"),
		version: chain(inDoc(`paypal\.com/sdk/js\?.*?version=([\d.]+)`)),
	},
	{
		name: "Cloudflare Rocket Loader", category: "cdn", confidence: 0.88,
		when: func(pg *page) bool {
			return strings.Contains(pg.low, "cloudflare") && strings.Contains(pg.low, "rocket-loader")
		},
	},
	{
		name: "reCAPTCHA", category: "security", confidence: 0.88,
		when: markers("recaptcha"),
		version: func(pg *page) string {
			if !strings.Contains(pg.low, "recaptcha/api.js") {
				return ""
			}
			if strings.Contains(pg.low, "render=") {
				return "v3"
			}
			return "v2"
		},
	},
	{
		name: "hCaptcha", category: "security", confidence: 0.90,
		when: markers("hcaptcha.com"),
	},

	{name: "Bitcoin", category: "crypto", confidence: 0.82, when: lowMatch(`\b(bitcoin|btc)\b`)},
	{name: "Monero", category: "crypto", confidence: 0.92, when: lowMatch(`\b(monero|xmr)\b`)},
	{name: "Ethereum", category: "crypto", confidence: 0.78, when: lowMatch(`\b(ethereum|eth)\b`)},
	{name: "Litecoin", category: "crypto", confidence: 0.75, when: lowMatch(`\blitecoin\b|\bltc\b`)},

	{
		name: "Tor Hidden Service", category: "network", confidence: 0.92,
		when: func(pg *page) bool {
			return strings.Contains(pg.low, ".onion") &&
				containsAny(pg.low, "hidden service", "onion service")
		},
		version: func(pg *page) string {
			switch {
			case onionV3.MatchString(pg.low):
				return "v3"
			case onionV2.MatchString(pg.low):
				return "v2"
			}
			return ""
		},
	},
}

var generatorParts = regexp.MustCompile(`^(.*?)[\s/]+v?(\d[\w.\-]*)`)

// generatorSignature turns a generator meta value such as "WordPress 6.4.2"
// into a signature in the generator category.
func generatorSignature(gen string) (model.TechSignature, bool) {
	if gen == "" {
		return model.TechSignature{}, false
	}
	name, version := gen, ""
	if m := generatorParts.FindStringSubmatch(gen); m != nil && strings.TrimSpace(m[1]) != "" {
		name, version = strings.TrimSpace(m[1]), m[2]
	}
	return model.TechSignature{
		Name:       name,
		Category:   "generator",
		Version:    version,
		Confidence: 0.90,
		Source:     SourceHTML,
	}, true
}

// DetectFromHTML proposes signatures from markers in an HTML document.
func DetectFromHTML(html string) []model.TechSignature {
	if html == "" {
		return []model.TechSignature{}
	}
	pg := newPage(html)
	out := apply(htmlRules, pg, SourceHTML)
	if sig, ok := generatorSignature(pg.generator); ok {
		out = append(out, sig)
	}
	return out
}
