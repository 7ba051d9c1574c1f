package threat

import (
	"log/slog"
	"math"
	"regexp"
	"sort"
	"sync"

	"github.com/nao1215/onionwatch/internal/model"
)

// Scoring constants.
const (
	// MaxCountPerKeyword caps how many occurrences of one keyword contribute
	// to the threat score.
	MaxCountPerKeyword = 10

	// ScoreCritical, ScoreHigh and ScoreMedium are the threat score thresholds
	// that escalate a verdict independently of keyword severity.
	ScoreCritical = 100
	ScoreHigh     = 40
	ScoreMedium   = 10

	// ScoreNormalizer maps the unbounded threat score onto risk_score in [0,1].
	ScoreNormalizer = 200.0
)

// compiledKeyword pairs a keyword with its word-boundary pattern.
type compiledKeyword struct {
	Keyword
	pattern *regexp.Regexp
}

// Classifier scores page content against a curated keyword table.
// The table is compiled once at construction and never modified, so a
// Classifier is safe for concurrent use.
type Classifier struct {
	keywords []compiledKeyword
	logger   *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithKeywords replaces the built-in keyword table.
func WithKeywords(keywords []Keyword) Option {
	return func(c *Classifier) {
		c.keywords = compile(keywords)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClassifier creates a Classifier over the built-in keyword table.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if c.keywords == nil {
		c.keywords = compile(defaultKeywords)
	}
	return c
}

var (
	defaultOnce       sync.Once
	defaultClassifier *Classifier
)

// Default returns a shared Classifier over the built-in table.
func Default() *Classifier {
	defaultOnce.Do(func() {
		defaultClassifier = NewClassifier()
	})
	return defaultClassifier
}

func compile(keywords []Keyword) []compiledKeyword {
	out := make([]compiledKeyword, 0, len(keywords))
	for _, k := range keywords {
		out = append(out, compiledKeyword{
			Keyword: k,
			pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(k.Term) + `\b`),
		})
	}
	return out
}

// Analyze classifies the concatenation of title, url and text.
// Identical input always yields an identical verdict.
func (c *Classifier) Analyze(text, title, url string) model.ThreatVerdict {
	corpus := title + " " + url + " " + text

	matches := make([]model.KeywordMatch, 0)
	index := make(map[string]int)
	for _, k := range c.keywords {
		found := k.pattern.FindAllStringIndex(corpus, -1)
		if len(found) == 0 {
			continue
		}
		if i, ok := index[k.Term]; ok {
			matches[i].Count += len(found)
			continue
		}
		index[k.Term] = len(matches)
		matches = append(matches, model.KeywordMatch{
			Keyword:  k.Term,
			Category: k.Category,
			Severity: k.Severity,
			Count:    len(found),
		})
	}

	verdict := Score(matches)
	c.logger.Debug("content classified",
		"url", url,
		"matches", len(matches),
		"score", verdict.ThreatScore,
		"level", verdict.RiskLevel,
	)
	return verdict
}

// Score derives a verdict from a list of keyword matches.
func Score(matches []model.KeywordMatch) model.ThreatVerdict {
	score := 0
	var hasCritical, hasHigh, hasMedium bool
	categories := make(map[string]struct{})

	for _, m := range matches {
		score += m.Severity.Weight() * min(m.Count, MaxCountPerKeyword)
		categories[m.Category] = struct{}{}
		switch m.Severity {
		case model.SeverityCritical:
			hasCritical = true
		case model.SeverityHigh:
			hasHigh = true
		case model.SeverityMedium:
			hasMedium = true
		}
	}

	tags := make([]string, 0, len(categories))
	for category := range categories {
		tags = append(tags, category)
	}
	sort.Strings(tags)

	var level model.RiskLevel
	switch {
	case hasCritical || score >= ScoreCritical:
		level = model.RiskCritical
	case hasHigh || score >= ScoreHigh:
		level = model.RiskHigh
	case hasMedium || score >= ScoreMedium:
		level = model.RiskMedium
	case len(matches) > 0:
		level = model.RiskLow
	default:
		level = model.RiskClean
	}

	if matches == nil {
		matches = []model.KeywordMatch{}
	}
	return model.ThreatVerdict{
		Keywords:    matches,
		Tags:        tags,
		ThreatScore: score,
		RiskScore:   normalize(score),
		RiskLevel:   level,
	}
}

// normalize returns round(min(1, score/200), 4).
func normalize(score int) float64 {
	v := math.Min(1.0, float64(score)/ScoreNormalizer)
	return math.Round(v*10000) / 10000
}
