package pipeline

import "strings"

// NormalizeURLs turns a newline-separated target list into URLs. Blank lines
// and lines starting with "#" are skipped, "http://" is prefixed when the
// scheme is missing and duplicates are dropped keeping the first one.
func NormalizeURLs(raw string) []string {
	seen := make(map[string]bool)
	urls := make([]string, 0)
	for _, line := range strings.Split(raw, "\n") {
		u := strings.TrimSpace(line)
		if u == "" || strings.HasPrefix(u, "#") {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(u), "http") {
			u = "http://" + u
		}
		if seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

// DedupURLs normalizes a list of targets the same way NormalizeURLs does.
func DedupURLs(list []string) []string {
	return NormalizeURLs(strings.Join(list, "\n"))
}
