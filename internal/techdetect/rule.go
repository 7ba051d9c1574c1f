package techdetect

import (
	"regexp"
	"strings"

	"github.com/nao1215/onionwatch/internal/model"
)

// Signature sources.
const (
	SourceHeaders = "headers"
	SourceHTML    = "html"
)

// rule is one fingerprint. when decides presence, version extracts an
// optional version string from the same evidence.
type rule[E any] struct {
	name       string
	category   string
	confidence float64
	when       func(E) bool
	version    func(E) string
}

func apply[E any](rules []rule[E], evidence E, source string) []model.TechSignature {
	out := make([]model.TechSignature, 0)
	for _, r := range rules {
		if !r.when(evidence) {
			continue
		}
		sig := model.TechSignature{
			Name:       r.name,
			Category:   r.category,
			Confidence: r.confidence,
			Source:     source,
		}
		if r.version != nil {
			sig.Version = r.version(evidence)
		}
		out = append(out, sig)
	}
	return out
}

// re compiles a case-insensitive pattern whose first group is a version.
func re(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + expr)
}

// firstGroup returns the trimmed first capture group of the first pattern
// that matches text.
func firstGroup(text string, patterns ...*regexp.Regexp) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); len(m) > 1 {
			if v := strings.TrimSpace(m[1]); v != "" {
				return v
			}
		}
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
