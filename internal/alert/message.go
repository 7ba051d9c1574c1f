package alert

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/onionwatch/internal/model"
)

// DefaultDashboardURL is the dashboard root used for deep links.
const DefaultDashboardURL = "http://127.0.0.1:8000"

// maxKeywords is how many keywords an alert lists.
const maxKeywords = 8

// placeholder stands in for empty fields.
const placeholder = "-"

var levelEmoji = map[model.RiskLevel]string{
	model.RiskCritical: "🔴",
	model.RiskHigh:     "🟠",
	model.RiskMedium:   "🟡",
	model.RiskLow:      "🟢",
	model.RiskClean:    "⚪",
	model.RiskUnknown:  "⚫",
}

// levelColor is the banner color of the HTML email.
var levelColor = map[model.RiskLevel]string{
	model.RiskCritical: "#ef4444",
	model.RiskHigh:     "#f97316",
	model.RiskMedium:   "#eab308",
	model.RiskLow:      "#22c55e",
}

// Emoji returns the marker used for a level in alert titles.
func Emoji(level model.RiskLevel) string {
	if e, ok := levelEmoji[level]; ok {
		return e
	}
	return levelEmoji[model.RiskUnknown]
}

// AlertContext is everything an alert says about one visit.
type AlertContext struct {
	TargetID       int64
	URL            string
	Domain         string
	Title          string
	RiskLevel      model.RiskLevel
	RiskScore      float64
	ExternalRisk   model.ExternalRisk
	Categories     []string
	Keywords       []string
	WalletsSummary string
	Language       string
	At             time.Time
}

// NewAlertContext collects the alert fields of a finished visit.
func NewAlertContext(r *model.ScanResult) AlertContext {
	c := AlertContext{
		TargetID:       r.TargetID,
		URL:            r.URL,
		Domain:         r.Domain,
		Title:          r.Title,
		RiskLevel:      r.RiskLevel(),
		RiskScore:      r.RiskScore(),
		ExternalRisk:   r.ExternalRisk(),
		WalletsSummary: r.WalletsSummary,
		Language:       r.Language,
		At:             r.StartedAt,
	}
	if r.Verdict != nil {
		c.Categories = r.Verdict.Tags
		for _, k := range r.Verdict.Keywords {
			c.Keywords = append(c.Keywords, k.Keyword)
		}
	}
	return c
}

// Message is a rendered alert. Body uses Slack mrkdwn emphasis (*label*).
type Message struct {
	Title string
	Body  string
	Level model.RiskLevel
}

// PlainBody returns the body without emphasis markers.
func (m Message) PlainBody() string {
	return strings.ReplaceAll(m.Body, "*", "")
}

// BuildMessage renders an alert for c with a deep link under dashboardURL.
func BuildMessage(c AlertContext, dashboardURL string) Message {
	if dashboardURL == "" {
		dashboardURL = DefaultDashboardURL
	}
	at := c.At
	if at.IsZero() {
		at = time.Now()
	}
	level := strings.ToUpper(c.RiskLevel.String())
	if level == "" {
		level = strings.ToUpper(model.RiskUnknown.String())
	}
	external := c.ExternalRisk
	if external == "" {
		external = model.ExternalUnknown
	}

	keywords := c.Keywords
	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}

	title := fmt.Sprintf("%s ONIONWATCH ALERT | %s | %s", Emoji(c.RiskLevel), level, orPlaceholder(c.Domain))

	var b strings.Builder
	fmt.Fprintf(&b, "*URL:* %s\n", orPlaceholder(c.URL))
	fmt.Fprintf(&b, "*Title:* %s\n", orPlaceholder(c.Title))
	fmt.Fprintf(&b, "*Risk level:* %s  (score: %.3f)\n", level, c.RiskScore)
	fmt.Fprintf(&b, "*External risk (VT/URLhaus):* %s\n", external)
	fmt.Fprintf(&b, "*Categories:* %s\n", joinOrPlaceholder(titleCase(c.Categories)))
	fmt.Fprintf(&b, "*Keywords:* %s\n", joinOrPlaceholder(keywords))
	fmt.Fprintf(&b, "*Crypto wallets:* %s\n", orPlaceholder(c.WalletsSummary))
	fmt.Fprintf(&b, "*Language:* %s\n", orPlaceholder(c.Language))
	fmt.Fprintf(&b, "*Timestamp:* %s\n", at.UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "*Dashboard:* %s/targets/%s", strings.TrimRight(dashboardURL, "/"), strconv.FormatInt(c.TargetID, 10))

	return Message{Title: title, Body: b.String(), Level: c.RiskLevel}
}

func titleCase(words []string) []string {
	caser := cases.Title(language.English)
	out := make([]string, 0, len(words))
	for _, w := range words {
		out = append(out, caser.String(w))
	}
	return out
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

func joinOrPlaceholder(items []string) string {
	return orPlaceholder(strings.Join(items, ", "))
}
