// Package report renders the markdown error report of a batch run.
package report

import (
	"fmt"
	"strings"
	"time"
)

// DefaultPath is the vault-relative location of the report.
const DefaultPath = "processing_errors.md"

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// ProcessingError is one failure recorded during a batch run.
type ProcessingError struct {
	File string
	// ImagePath is the raw reference path, empty for document-level failures.
	ImagePath string
	Message   string
	Timestamp time.Time
}

// Writer persists the rendered report.
type Writer interface {
	WriteDocumentText(id, text string) error
}

// Render builds the report document.
func Render(errs []ProcessingError, generatedAt time.Time, runID string) string {
	var b strings.Builder

	b.WriteString("# Processing Error Report\n")
	fmt.Fprintf(&b, "Generated at: %s\n", generatedAt.Format(time.RFC1123))
	if runID != "" {
		fmt.Fprintf(&b, "Run ID: %s\n", runID)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Total Errors: %d\n\n", len(errs))

	b.WriteString("| File | Image Path | Error | Timestamp |\n")
	b.WriteString("|------|------------|-------|-----------|\n")

	for _, e := range errs {
		imagePath := "N/A"
		if e.ImagePath != "" {
			imagePath = "`" + escapeCell(e.ImagePath) + "`"
		}
		fmt.Fprintf(&b, "| [[%s]] | %s | %s | %s |\n",
			escapeCell(e.File), imagePath, escapeCell(e.Message), e.Timestamp.UTC().Format(timestampFormat))
	}

	return b.String()
}

// Write renders the report and stores it at path, replacing any previous report.
func Write(w Writer, path string, errs []ProcessingError, generatedAt time.Time, runID string) error {
	if path == "" {
		path = DefaultPath
	}
	if err := w.WriteDocumentText(path, Render(errs, generatedAt, runID)); err != nil {
		return fmt.Errorf("write error report: %w", err)
	}
	return nil
}

// escapeCell keeps a value inside its table cell.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
