package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/onionwatch/internal/database"
	"github.com/nao1215/onionwatch/internal/model"
)

// WriteMarkdown writes the Markdown report: a summary table, a pie chart of
// the risk levels, an alert box for the worst level present and a table of
// targets.
func WriteMarkdown(w io.Writer, targets []model.TargetDetail, stats *database.Stats, at time.Time) error {
	if stats == nil {
		stats = &database.Stats{}
	}
	md := markdown.NewMarkdown(w)

	md.H1("onionwatch report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Generated", at.UTC().Format("2006-01-02 15:04:05 MST")},
			{"Targets", strconv.Itoa(len(targets))},
			{"Scanned OK", strconv.Itoa(stats.OK)},
			{"Errors", strconv.Itoa(stats.Errors)},
			{"Discovered links", fmt.Sprintf("%d (%d pending)", stats.TotalLinks, stats.PendingLinks)},
			{"Wallets", strconv.Itoa(stats.WalletsTotal)},
			{"Alerts sent", strconv.Itoa(stats.AlertsSent)},
		},
	})
	md.PlainText("")

	writeLevelSummary(md, stats)
	writeTargets(md, targets)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by %s*", ToolName)
	return md.Build()
}

var reportLevels = []struct {
	level model.RiskLevel
	label string
}{
	{model.RiskCritical, "🔴 Critical"},
	{model.RiskHigh, "🟠 High"},
	{model.RiskMedium, "🟡 Medium"},
	{model.RiskLow, "🔵 Low"},
	{model.RiskClean, "⚪ Clean"},
	{model.RiskUnknown, "❔ Unknown"},
}

func writeLevelSummary(md *markdown.Markdown, stats *database.Stats) {
	md.H2("Risk levels")
	md.PlainText("")

	rows := make([][]string, 0, len(reportLevels))
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Targets by risk level"),
		piechart.WithShowData(true),
	)
	charted := false
	for _, l := range reportLevels {
		n := stats.LevelCount(l.level)
		rows = append(rows, []string{l.label, strconv.Itoa(n)})
		if n > 0 {
			chart.LabelAndIntValue(string(l.level), uint64(n))
			charted = true
		}
	}
	md.Table(markdown.TableSet{Header: []string{"Level", "Targets"}, Rows: rows})
	md.PlainText("")

	if charted {
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case stats.Critical > 0:
		md.Cautionf("%d critical target(s) need immediate review.", stats.Critical)
	case stats.High > 0:
		md.Warningf("%d high risk target(s) found.", stats.High)
	case stats.Medium > 0:
		md.Importantf("%d medium risk target(s) found.", stats.Medium)
	case stats.Low > 0:
		md.Note("Only low risk targets found.")
	default:
		md.Tip("No risky targets found.")
	}
	md.PlainText("")
}

func writeTargets(md *markdown.Markdown, targets []model.TargetDetail) {
	md.H2("Targets")
	md.PlainText("")
	if len(targets) == 0 {
		md.PlainText("No targets collected yet.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(targets))
	for i := range targets {
		t := &targets[i]
		keywords := t.KeywordNames()
		if len(keywords) > maxReportKeywords {
			keywords = keywords[:maxReportKeywords]
		}
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			"`" + t.URL + "`",
			orDash(truncateString(t.Title, 40)),
			string(t.RiskLevel),
			strconv.FormatFloat(t.RiskScore, 'f', 3, 64),
			orDash(strings.Join(t.Tags, ", ")),
			orDash(strings.Join(keywords, ", ")),
			strconv.Itoa(len(t.Wallets)),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "URL", "Title", "Level", "Score", "Tags", "Keywords", "Wallets"},
		Rows:   rows,
	})
	md.PlainText("")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString shortens s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
