package report

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/onionwatch/internal/database"
	"github.com/nao1215/onionwatch/internal/model"
)

// Format is an export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "md"
	FormatXLSX     Format = "xlsx"

	// FormatAll writes every format.
	FormatAll Format = "all"
)

// ExportDir is the directory under the data dir holding exports.
const ExportDir = "exports"

// ToolName identifies the exporter in the generated documents.
const ToolName = "onionwatch"

// Formats returns the single-file formats in the order FormatAll writes them.
func Formats() []Format {
	return []Format{FormatJSON, FormatCSV, FormatHTML, FormatMarkdown, FormatXLSX}
}

// ParseFormat returns the format named s. "markdown" is accepted for md.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatHTML, FormatMarkdown, FormatXLSX, FormatAll:
		return f, nil
	case "markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Exporter writes export files.
type Exporter struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ExporterOption {
	return func(e *Exporter) {
		e.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ExporterOption {
	return func(e *Exporter) {
		e.logger = logger
	}
}

// NewExporter creates an exporter writing to <dataDir>/exports.
func NewExporter(dataDir string, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		dir:    filepath.Join(dataDir, ExportDir),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dir returns the export directory.
func (e *Exporter) Dir() string {
	return e.dir
}

// Export writes targets in format and returns the written paths, one per
// file. Files are named onionwatch_<UTC stamp>.<ext>.
func (e *Exporter) Export(format Format, targets []model.TargetDetail, stats *database.Stats) ([]string, error) {
	formats := []Format{format}
	if format == FormatAll {
		formats = Formats()
	}
	if stats == nil {
		stats = &database.Stats{}
	}
	if err := os.MkdirAll(e.dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}

	at := e.now().UTC()
	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		render, err := renderer(f)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(e.dir, fmt.Sprintf("%s_%s.%s", ToolName, at.Format("20060102_150405"), f))
		if err := writeFile(path, func(w io.Writer) error { return render(w, targets, stats, at) }); err != nil {
			return paths, fmt.Errorf("failed to export %s: %w", f, err)
		}
		e.logger.Info("export written", "format", f, "path", path, "targets", len(targets))
		paths = append(paths, path)
	}
	return paths, nil
}

type renderFunc func(w io.Writer, targets []model.TargetDetail, stats *database.Stats, at time.Time) error

func renderer(f Format) (renderFunc, error) {
	switch f {
	case FormatJSON:
		return func(w io.Writer, t []model.TargetDetail, _ *database.Stats, at time.Time) error {
			return WriteJSON(w, t, at)
		}, nil
	case FormatCSV:
		return func(w io.Writer, t []model.TargetDetail, _ *database.Stats, _ time.Time) error {
			return WriteCSV(w, t)
		}, nil
	case FormatHTML:
		return WriteHTML, nil
	case FormatMarkdown:
		return WriteMarkdown, nil
	case FormatXLSX:
		return func(w io.Writer, t []model.TargetDetail, _ *database.Stats, _ time.Time) error {
			return WriteXLSX(w, t)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

func writeFile(path string, render func(io.Writer) error) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return render(f)
}
