package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// Format names an output encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatXLSX     Format = "xlsx"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat accepts a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unsupported report format %q", s)
}

// FormatFromPath infers the format from a file extension, defaulting to text.
func FormatFromPath(path string) Format {
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return FormatText
	}
	return f
}

// Write renders r to w.
func Write(w io.Writer, r *Report, format Format) error {
	switch format {
	case FormatText, "":
		return WriteText(w, r)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode yaml report: %w", err)
		}
		return enc.Close()
	case FormatXLSX:
		return WriteXLSX(w, r)
	case FormatMarkdown:
		return WriteMarkdown(w, r)
	case FormatHTML:
		return WriteHTML(w, r)
	}
	return fmt.Errorf("unsupported report format %q", format)
}

// WriteFile renders r into path. An empty format is inferred from the path.
func WriteFile(path string, r *Report, format Format) error {
	if format == "" {
		format = FormatFromPath(path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := Write(f, r, format); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteText prints one line per case followed by the aggregate verdict.
func WriteText(w io.Writer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Localization check %s (%s)\n", r.RunID, r.Engine)
	for _, res := range r.Results {
		label := strings.ToUpper(res.Locale)
		if res.Passed {
			fmt.Fprintf(tw, "  ✅ %s\tpassed\ttitle=%q\n", label, res.ActualTitle)
			continue
		}
		kind := res.Kind
		if kind == KindNone {
			kind = KindOther
		}
		fmt.Fprintf(tw, "  ❌ %s\tfailed\t[%s] %s\n", label, kind, res.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	passed, failed := r.Counts()
	_, err := fmt.Fprintf(w, "Result: %s (%d passed, %d failed, %d total) in %s\n",
		verdict(r), passed, failed, len(r.Results), r.Duration().Round(time.Millisecond))
	return err
}

func verdict(r *Report) string {
	if r.Passed() {
		return "PASSED"
	}
	return "FAILED"
}

var xlsxHeader = []any{"Locale", "URL", "Expected Title", "Actual Title", "Passed", "Kind", "Error", "Screenshot", "Duration (ms)"}

// WriteXLSX renders r as a workbook with a Results and a Summary sheet.
func WriteXLSX(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Results"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &xlsxHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "I1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, res := range r.Results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			res.Locale, res.URL, res.Expected, res.ActualTitle, res.Passed,
			string(res.Kind), res.Error, res.Screenshot, res.Duration.Milliseconds(),
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", res.Locale, err)
		}
	}

	if _, err := f.NewSheet("Summary"); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	passed, failed := r.Counts()
	summary := [][]any{
		{"Run ID", r.RunID},
		{"Engine", r.Engine},
		{"Started", r.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Passed", passed},
		{"Failed", failed},
		{"Verdict", verdict(r)},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow("Summary", cell, &row); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
