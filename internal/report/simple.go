package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/onionwatch/internal/database"
	"github.com/nao1215/onionwatch/internal/model"
)

const (
	ruleWidth     = 70
	levelBarWidth = 36
	topBarWidth   = 25
)

// SimpleWriter prints the store statistics as plain text for terminals.
type SimpleWriter struct {
	output io.Writer

	// showEmpty prints sections that have nothing to show.
	showEmpty bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty prints empty sections too.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// NewSimpleWriter creates a SimpleWriter that prints to output.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{output: output}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteStats prints the risk distribution with bars, the collection totals,
// the top threat categories and the coin counts.
func (w *SimpleWriter) WriteStats(stats *database.Stats) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, "ONIONWATCH STATISTICS")
	w.writeLevels(&sb, stats)
	fmt.Fprintf(&sb, "  wallets: %d   links: %d   pending: %d   alerts: %d\n\n",
		stats.WalletsTotal, stats.TotalLinks, stats.PendingLinks, stats.AlertsSent)
	w.writeTopThreats(&sb, stats.TopThreats)
	w.writeCoins(&sb, stats.TopCoins)
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	pad := max((ruleWidth-len(title))/2, 0)
	sb.WriteString(strings.Repeat(" ", pad) + title + "\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeLevels(sb *strings.Builder, stats *database.Stats) {
	w.writeSection(sb, "RISK DISTRIBUTION")

	total := max(stats.Total, 1)
	rows := []struct {
		label string
		n     int
	}{
		{"CRITICAL", stats.LevelCount(model.RiskCritical)},
		{"HIGH", stats.LevelCount(model.RiskHigh)},
		{"MEDIUM", stats.LevelCount(model.RiskMedium)},
		{"LOW", stats.LevelCount(model.RiskLow)},
		{"CLEAN", stats.LevelCount(model.RiskClean)},
		{"ERRORS", stats.Errors},
	}
	for _, r := range rows {
		filled := r.n * levelBarWidth / total
		fmt.Fprintf(sb, "  %-10s [%s%s] %4d %5.1f%%\n",
			r.label,
			strings.Repeat("|", filled),
			strings.Repeat(".", levelBarWidth-filled),
			r.n,
			float64(r.n)/float64(total)*100,
		)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeTopThreats(sb *strings.Builder, top []database.CategoryCount) {
	if len(top) == 0 && !w.showEmpty {
		return
	}
	w.writeSection(sb, "TOP THREAT CATEGORIES")
	if len(top) == 0 {
		sb.WriteString("  No keyword matches\n\n")
		return
	}
	most := 1
	for _, c := range top {
		most = max(most, c.Count)
	}
	for _, c := range top {
		fmt.Fprintf(sb, "  %-18s %s %d\n", c.Category, strings.Repeat("*", c.Count*topBarWidth/most), c.Count)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeCoins(sb *strings.Builder, coins []database.CoinCount) {
	if len(coins) == 0 && !w.showEmpty {
		return
	}
	w.writeSection(sb, "CRYPTO WALLETS")
	if len(coins) == 0 {
		sb.WriteString("  No wallets\n\n")
		return
	}
	parts := make([]string, 0, len(coins))
	for _, c := range coins {
		parts = append(parts, fmt.Sprintf("%s:%d", c.Coin, c.Count))
	}
	sb.WriteString("  " + strings.Join(parts, "   ") + "\n\n")
}
