package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/onionwatch/internal/model"
)

// Document is the JSON export envelope.
type Document struct {
	ExportedAt time.Time            `json:"exported_at"`
	Tool       string               `json:"tool"`
	Count      int                  `json:"count"`
	Sites      []model.TargetDetail `json:"sites"`
}

// NewDocument wraps targets in the export envelope.
func NewDocument(targets []model.TargetDetail, at time.Time) Document {
	if targets == nil {
		targets = []model.TargetDetail{}
	}
	return Document{
		ExportedAt: at.UTC(),
		Tool:       ToolName,
		Count:      len(targets),
		Sites:      targets,
	}
}

// WriteJSON writes the indented export document.
func WriteJSON(w io.Writer, targets []model.TargetDetail, at time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(NewDocument(targets, at))
}
