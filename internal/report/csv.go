package report

import (
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/nao1215/onionwatch/internal/model"
)

// csvRow is one target line of the CSV export. Multi-valued columns are
// joined with "|".
type csvRow struct {
	ID         int64   `csv:"id"`
	URL        string  `csv:"url"`
	Domain     string  `csv:"domain"`
	Title      string  `csv:"title"`
	Status     string  `csv:"status"`
	RiskLevel  string  `csv:"risk_level"`
	RiskScore  float64 `csv:"risk_score"`
	Language   string  `csv:"language"`
	DetectedAt string  `csv:"detected_at"`
	ScanCount  int     `csv:"scan_count"`
	Tags       string  `csv:"tags"`
	Keywords   string  `csv:"keywords"`
	Tech       string  `csv:"tech"`
}

func newCSVRow(t *model.TargetDetail) csvRow {
	return csvRow{
		ID:         t.ID,
		URL:        t.URL,
		Domain:     t.Domain,
		Title:      t.Title,
		Status:     string(t.Status),
		RiskLevel:  string(t.RiskLevel),
		RiskScore:  t.RiskScore,
		Language:   t.Language,
		DetectedAt: formatTime(t.DetectedAt),
		ScanCount:  t.ScanCount,
		Tags:       strings.Join(t.Tags, "|"),
		Keywords:   strings.Join(t.KeywordNames(), "|"),
		Tech:       strings.Join(t.TechNames(), "|"),
	}
}

// WriteCSV writes one row per target with a header line.
func WriteCSV(w io.Writer, targets []model.TargetDetail) error {
	rows := make([]*csvRow, 0, len(targets))
	for i := range targets {
		row := newCSVRow(&targets[i])
		rows = append(rows, &row)
	}
	return gocsv.Marshal(&rows, w)
}
