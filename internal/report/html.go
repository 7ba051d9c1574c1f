package report

import (
	_ "embed"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/nao1215/onionwatch/internal/database"
	"github.com/nao1215/onionwatch/internal/model"
)

//go:embed templates/report.html.tmpl
var htmlTemplate string

var reportTemplate = template.Must(template.New("report").Parse(htmlTemplate))

// maxReportKeywords is the number of keywords listed per target.
const maxReportKeywords = 8

// levelColors are the badge colors of the risk levels.
var levelColors = map[model.RiskLevel]template.CSS{
	model.RiskCritical: "#ef4444",
	model.RiskHigh:     "#f97316",
	model.RiskMedium:   "#eab308",
	model.RiskLow:      "#22c55e",
}

const defaultLevelColor template.CSS = "#6b7280"

type htmlRow struct {
	ID       int64
	URL      string
	Title    string
	Level    string
	Color    template.CSS
	Score    float64
	Tags     string
	Keywords string
	Scans    int
	Detected string
}

type htmlData struct {
	Generated string
	Tool      string
	Stats     *database.Stats
	Rows      []htmlRow
}

// WriteHTML writes the standalone HTML report: a statistics panel, the top
// threat categories and one row per target.
func WriteHTML(w io.Writer, targets []model.TargetDetail, stats *database.Stats, at time.Time) error {
	if stats == nil {
		stats = &database.Stats{}
	}
	data := htmlData{
		Generated: at.UTC().Format("2006-01-02 15:04 UTC"),
		Tool:      ToolName,
		Stats:     stats,
		Rows:      make([]htmlRow, 0, len(targets)),
	}
	for i := range targets {
		t := &targets[i]
		color, ok := levelColors[t.RiskLevel]
		if !ok {
			color = defaultLevelColor
		}
		keywords := t.KeywordNames()
		if len(keywords) > maxReportKeywords {
			keywords = keywords[:maxReportKeywords]
		}
		title := t.Title
		if title == "" {
			title = "-"
		}
		data.Rows = append(data.Rows, htmlRow{
			ID:       t.ID,
			URL:      t.URL,
			Title:    title,
			Level:    strings.ToUpper(string(t.RiskLevel)),
			Color:    color,
			Score:    t.RiskScore,
			Tags:     strings.Join(t.Tags, ", "),
			Keywords: strings.Join(keywords, ", "),
			Scans:    t.ScanCount,
			Detected: formatTime(t.DetectedAt),
		})
	}
	return reportTemplate.Execute(w, data)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
