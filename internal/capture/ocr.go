package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// OCR defaults.
const (
	DefaultLanguages  = "eng+spa+rus"
	DefaultOCRTimeout = 60 * time.Second

	fallbackLanguage = "eng"
	tesseractBinary  = "tesseract"
)

// OCRText is the text read from an image.
type OCRText struct {
	Text       string
	Confidence float64
	WordCount  int
	CharCount  int
	Languages  string
}

// RunFunc runs a command and returns its stdout.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Tesseract extracts text from screenshots with the tesseract binary.
type Tesseract struct {
	binary    string
	languages string
	timeout   time.Duration
	enabled   bool
	run       RunFunc
	lookPath  func(string) (string, error)
	logger    *slog.Logger

	langOnce  sync.Once
	langsUsed string
}

// TesseractOption configures a Tesseract.
type TesseractOption func(*Tesseract)

// WithLanguages sets the "+"-joined tesseract languages.
func WithLanguages(langs string) TesseractOption {
	return func(t *Tesseract) {
		if strings.TrimSpace(langs) != "" {
			t.languages = strings.TrimSpace(langs)
		}
	}
}

// WithOCREnabled turns OCR on or off.
func WithOCREnabled(enabled bool) TesseractOption {
	return func(t *Tesseract) {
		t.enabled = enabled
	}
}

// WithOCRTimeout bounds one extraction.
func WithOCRTimeout(d time.Duration) TesseractOption {
	return func(t *Tesseract) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithRunner replaces command execution. Tests use it to fake tesseract.
func WithRunner(run RunFunc, lookPath func(string) (string, error)) TesseractOption {
	return func(t *Tesseract) {
		if run != nil {
			t.run = run
		}
		if lookPath != nil {
			t.lookPath = lookPath
		}
	}
}

// WithOCRLogger sets the logger.
func WithOCRLogger(logger *slog.Logger) TesseractOption {
	return func(t *Tesseract) {
		t.logger = logger
	}
}

// NewTesseract creates an OCR engine. It is enabled by default.
func NewTesseract(opts ...TesseractOption) *Tesseract {
	t := &Tesseract{
		binary:    tesseractBinary,
		languages: DefaultLanguages,
		timeout:   DefaultOCRTimeout,
		enabled:   true,
		run:       execRun,
		lookPath:  exec.LookPath,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Available reports whether OCR is enabled and the binary is on PATH.
func (t *Tesseract) Available() bool {
	if !t.enabled {
		return false
	}
	_, err := t.lookPath(t.binary)
	return err == nil
}

// ExtractText reads the text in the image at path.
func (t *Tesseract) ExtractText(ctx context.Context, path string) (*OCRText, error) {
	if !t.Available() {
		return nil, &OCRError{Path: path, Err: ErrOCRUnavailable}
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	langs := t.resolveLanguages(ctx)
	out, err := t.run(ctx, t.binary, path, "stdout", "-l", langs, "--psm", "3", "tsv")
	if err != nil {
		return nil, &OCRError{Path: path, Err: err}
	}

	text, conf, words := parseTSV(out)
	t.logger.Debug("ocr finished", "path", path, "words", words, "confidence", conf)
	return &OCRText{
		Text:       text,
		Confidence: conf,
		WordCount:  words,
		CharCount:  len([]rune(text)),
		Languages:  langs,
	}, nil
}

// resolveLanguages keeps the configured languages that are installed. It
// asks tesseract once and falls back to English.
func (t *Tesseract) resolveLanguages(ctx context.Context) string {
	t.langOnce.Do(func() {
		t.langsUsed = fallbackLanguage
		out, err := t.run(ctx, t.binary, "--list-langs")
		if err != nil {
			t.logger.Debug("cannot list tesseract languages", "error", err)
			return
		}
		installed := make(map[string]bool)
		for _, line := range strings.Split(string(out), "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "List of") {
				installed[line] = true
			}
		}
		var keep []string
		for _, lang := range strings.Split(t.languages, "+") {
			if installed[lang] {
				keep = append(keep, lang)
			}
		}
		if len(keep) > 0 {
			t.langsUsed = strings.Join(keep, "+")
		}
	})
	return t.langsUsed
}

// parseTSV joins the recognized words of tesseract TSV output, one output
// line per text line, and averages the positive word confidences.
func parseTSV(data []byte) (string, float64, int) {
	const (
		colLevel = 0
		colBlock = 2
		colPar   = 3
		colLine  = 4
		colConf  = 10
		colText  = 11
		wordRow  = "5"
	)

	var (
		lines   []string
		current []string
		lastKey string
		confSum float64
		confN   int
		words   int
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	first := true
	for scanner.Scan() {
		if first {
			first = false
			if strings.HasPrefix(scanner.Text(), "level") {
				continue
			}
		}
		cols := strings.Split(scanner.Text(), "\t")
		if len(cols) <= colText || cols[colLevel] != wordRow {
			continue
		}
		word := strings.TrimSpace(cols[colText])
		if word == "" {
			continue
		}
		key := cols[colBlock] + "." + cols[colPar] + "." + cols[colLine]
		if key != lastKey && len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
			current = nil
		}
		lastKey = key
		current = append(current, word)
		words++
		if conf, err := strconv.ParseFloat(cols[colConf], 64); err == nil && conf > 0 {
			confSum += conf
			confN++
		}
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}

	var mean float64
	if confN > 0 {
		mean = confSum / float64(confN)
	}
	return strings.Join(lines, "\n"), mean, words
}
