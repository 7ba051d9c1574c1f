package crawler

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var (
	// onionURLRegex matches scheme-qualified v3 (56 char) and v2 (16 char)
	// onion URLs with an optional path.
	onionURLRegex = regexp.MustCompile(`(?i)https?://([a-z2-7]{56}|[a-z2-7]{16})\.onion(?:/[^\s"'>)]*)?`)

	// bareAttrRegex matches scheme-less onion addresses in href, src and
	// action attributes.
	bareAttrRegex = regexp.MustCompile(`(?i)(?:href|src|action)=["']([a-z2-7]{56}|[a-z2-7]{16})\.onion[^"']*["']`)

	httpsPrefix = regexp.MustCompile(`(?i)^https://`)
)

// trailingPunct is trimmed from the end of every full-URL match.
const trailingPunct = `.,;)>"'`

// ExtractOnionLinks returns the distinct .onion URLs referenced by html,
// sorted. https is rewritten to http so that one service is not recorded
// twice. Links on the same authority as baseURL are excluded.
func ExtractOnionLinks(html, baseURL string) []string {
	found := make(map[string]struct{})

	for _, m := range onionURLRegex.FindAllString(html, -1) {
		link := strings.TrimRight(strings.TrimSpace(m), trailingPunct)
		link = httpsPrefix.ReplaceAllString(link, "http://")
		found[link] = struct{}{}
	}
	for _, m := range bareAttrRegex.FindAllStringSubmatch(html, -1) {
		found["http://"+m[1]+".onion"] = struct{}{}
	}

	base := authority(baseURL)
	links := make([]string, 0, len(found))
	for link := range found {
		if base != "" && authority(link) == base {
			continue
		}
		links = append(links, link)
	}
	sort.Strings(links)
	return links
}

// authority returns the host[:port] of raw, or "" when raw does not parse.
func authority(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

// Domain returns the authority of a URL, the value stored as a target's or
// a discovered link's domain.
func Domain(raw string) string {
	return authority(raw)
}
