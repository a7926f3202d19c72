package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var cellEscaper = strings.NewReplacer("|", `\|`, "\r", " ", "\n", " ")

// WriteMarkdown renders r as a GitHub-flavored markdown table.
func WriteMarkdown(w io.Writer, r *Report) error {
	var b bytes.Buffer
	passed, failed := r.Counts()
	fmt.Fprintf(&b, "# Localization check %s\n\n", r.RunID)
	fmt.Fprintf(&b, "Engine `%s`, started %s. Verdict: **%s** (%d passed, %d failed, %d total)\n\n",
		r.Engine, r.StartedAt.Format("2006-01-02 15:04:05 MST"), verdict(r), passed, failed, len(r.Results))

	b.WriteString("| Locale | Result | Expected | Actual title | Error | Screenshot |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- |\n")
	for _, res := range r.Results {
		mark := "✅"
		if !res.Passed {
			mark = "❌"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			strings.ToUpper(res.Locale), mark,
			cellEscaper.Replace(res.Expected), cellEscaper.Replace(res.ActualTitle),
			cellEscaper.Replace(res.Error), cellEscaper.Replace(res.Screenshot))
	}
	_, err := w.Write(b.Bytes())
	return err
}

// Page titles come from remote sites, so the rendered table is sanitized.
var htmlPolicy = bluemonday.UGCPolicy()

// WriteHTML renders the markdown report to a standalone HTML page.
func WriteHTML(w io.Writer, r *Report) error {
	var md bytes.Buffer
	if err := WriteMarkdown(&md, r); err != nil {
		return err
	}

	var body bytes.Buffer
	conv := goldmark.New(goldmark.WithExtensions(extension.Table))
	if err := conv.Convert(md.Bytes(), &body); err != nil {
		return fmt.Errorf("failed to render html report: %w", err)
	}

	if _, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html lang=\"en\">\n<head><meta charset=\"utf-8\"><title>Localization check %s</title></head>\n<body>\n",
		htmlPolicy.Sanitize(r.RunID)); err != nil {
		return err
	}
	if _, err := w.Write(htmlPolicy.SanitizeBytes(body.Bytes())); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</body>\n</html>\n")
	return err
}
