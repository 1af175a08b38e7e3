// Package cli provides terminal output for PDF Buddy commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/pdfbuddy/internal/chat"
	"github.com/hyperjump/pdfbuddy/internal/models"
	"github.com/hyperjump/pdfbuddy/internal/notify"
	"github.com/hyperjump/pdfbuddy/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json"; anything else is an error.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("invalid output format %q (use text or json)", s)
	}
}

const rule = "─────────────────────────────────────────────────────────"

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteDocuments writes the document list to w in the given format.
func WriteDocuments(w io.Writer, docs []models.Document, format OutputFormat) error {
	if format == OutputJSON {
		if docs == nil {
			docs = []models.Document{}
		}
		return writeJSON(w, docs)
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "No files uploaded yet")
		return nil
	}
	for _, d := range docs {
		fmt.Fprintln(w, DocumentLine(d))
	}
	return nil
}

// WriteDocument writes one document to w in the given format.
func WriteDocument(w io.Writer, doc models.Document, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, doc)
	}
	fmt.Fprintln(w, DocumentLine(doc))
	return nil
}

// DocumentLine renders a document as a single status line, e.g.
// "report.pdf  2.40 MB • 10 pages  [Indexed]".
func DocumentLine(d models.Document) string {
	parts := []string{utils.FormatSize(d.Size)}
	if d.Pages > 0 {
		parts = append(parts, fmt.Sprintf("%d pages", d.Pages))
	}
	if d.StartPage > 0 && d.EndPage > 0 {
		parts = append(parts, fmt.Sprintf("Pages %d-%d", d.StartPage, d.EndPage))
	}
	status := d.Status.Label()
	if d.Status.Active() {
		status = fmt.Sprintf("%s %d%%", status, d.Progress)
	}
	line := fmt.Sprintf("%s  %s  [%s]", d.Name, strings.Join(parts, " • "), status)
	if d.Status == models.StatusError && d.Error != "" {
		line += ": " + utils.SingleLine(d.Error)
	}
	return line
}

// WriteExchange writes the assistant reply of ex, followed by its references when showRefs is set.
func WriteExchange(w io.Writer, ex *chat.Exchange, showRefs bool, format OutputFormat) error {
	if format == OutputJSON {
		out := struct {
			*chat.Exchange
			Error string `json:"error,omitempty"`
		}{Exchange: ex}
		if ex.Err != nil {
			out.Error = ex.Err.Error()
		}
		return writeJSON(w, out)
	}
	fmt.Fprintf(w, "\nassistant> %s\n", ex.Reply.Content)
	if showRefs {
		writeReferencesText(w, ex.References)
	} else if n := len(ex.References); n > 0 {
		fmt.Fprintf(w, "(%d references, /refs to show)\n", n)
	}
	fmt.Fprintln(w)
	return nil
}

// WriteReferences writes a reference list to w in the given format.
func WriteReferences(w io.Writer, refs []models.Reference, format OutputFormat) error {
	if format == OutputJSON {
		if refs == nil {
			refs = []models.Reference{}
		}
		return writeJSON(w, refs)
	}
	writeReferencesText(w, refs)
	return nil
}

func writeReferencesText(w io.Writer, refs []models.Reference) {
	if len(refs) == 0 {
		fmt.Fprintln(w, "No references")
		return
	}
	fmt.Fprintf(w, "\nReferences (%d)\n", len(refs))
	for i, r := range refs {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "[%d] %s\n", i+1, r.Label)
		fmt.Fprintf(w, "%s\n", utils.Truncate(utils.SingleLine(r.Content), 300))
	}
}

// WriteNotification writes a toast as one line.
func WriteNotification(w io.Writer, n notify.Notification) {
	prefix := "i"
	if n.Level == notify.LevelError {
		prefix = "!"
	}
	if n.Detail == "" {
		fmt.Fprintf(w, "[%s] %s\n", prefix, n.Title)
		return
	}
	fmt.Fprintf(w, "[%s] %s: %s\n", prefix, n.Title, utils.SingleLine(n.Detail))
}

// Notifier returns a notifier that writes toasts to w.
func Notifier(w io.Writer) notify.Notifier {
	return notify.Func(func(n notify.Notification) { WriteNotification(w, n) })
}
