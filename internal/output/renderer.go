package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/joseph-ayodele/invoice-desk/internal/formengine"
	"github.com/joseph-ayodele/invoice-desk/internal/ingest"
	"github.com/joseph-ayodele/invoice-desk/internal/invoice"
	"github.com/joseph-ayodele/invoice-desk/internal/invoiceapi"
)

// Renderer writes command results to an output stream.
type Renderer interface {
	Results(results []invoiceapi.ExtractResult) error
	Invoices(names []string) error
	Fields(fields []formengine.Field) error
	Record(record *formengine.Mapping) error
	Totals(t invoice.Totals) error
	Outcome(o ingest.Outcome, err error) error
	Message(msg string) error
}

// New picks a renderer by format name: "json" or anything else for text.
func New(format string, w io.Writer) Renderer {
	if strings.EqualFold(format, "json") {
		return NewJSONRenderer(w)
	}
	return NewTextRenderer(w)
}

// ---------------------------------------------------------------------------
// Text Renderer (styled terminal output)
// ---------------------------------------------------------------------------

type styles struct {
	ok      lipgloss.Style
	fail    lipgloss.Style
	warn    lipgloss.Style
	section lipgloss.Style
	label   lipgloss.Style
	path    lipgloss.Style
}

// TextRenderer prints human-readable output, coloured when w is a terminal.
type TextRenderer struct {
	w  io.Writer
	st styles
}

func NewTextRenderer(w io.Writer) *TextRenderer {
	r := lipgloss.NewRenderer(w)
	return &TextRenderer{
		w: w,
		st: styles{
			ok:      r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),  // green
			fail:    r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true), // red
			warn:    r.NewStyle().Foreground(lipgloss.Color("220")),            // yellow
			section: r.NewStyle().Foreground(lipgloss.Color("39")).Bold(true).Underline(true),
			label:   r.NewStyle().Width(24),
			path:    r.NewStyle().Foreground(lipgloss.Color("245")).Faint(true),
		},
	}
}

func (r *TextRenderer) Results(results []invoiceapi.ExtractResult) error {
	for _, res := range results {
		if !res.OK() {
			if _, err := fmt.Fprintf(r.w, "%s %s: %s\n", r.st.fail.Render("FAILED"), res.Filename, res.Error); err != nil {
				return err
			}
			continue
		}
		data, err := formengine.Indent(res.Record, formengine.CopyIndent)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(r.w, "%s %s\n%s\n", r.st.ok.Render("OK"), res.Filename, data); err != nil {
			return err
		}
	}
	return nil
}

func (r *TextRenderer) Invoices(names []string) error {
	if len(names) == 0 {
		return r.Message("no invoices")
	}
	for _, n := range names {
		if _, err := fmt.Fprintln(r.w, n); err != nil {
			return err
		}
	}
	return nil
}

// Fields prints one line per field, with a heading whenever the section changes.
func (r *TextRenderer) Fields(fields []formengine.Field) error {
	section := "\x00"
	for _, f := range fields {
		if f.Section != section {
			section = f.Section
			heading := section
			if heading == "" {
				heading = "(top level)"
			}
			if _, err := fmt.Fprintln(r.w, r.st.section.Render(heading)); err != nil {
				return err
			}
		}
		line := fmt.Sprintf("  %s %s  %s", r.st.label.Render(f.Label), f.Value, r.st.path.Render(f.Path.String()))
		if _, err := fmt.Fprintln(r.w, line); err != nil {
			return err
		}
	}
	return nil
}

func (r *TextRenderer) Record(record *formengine.Mapping) error {
	data, err := formengine.Indent(record, formengine.CopyIndent)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(r.w, "%s\n", data)
	return err
}

func (r *TextRenderer) Totals(t invoice.Totals) error {
	switch {
	case t.Mismatch():
		_, err := fmt.Fprintf(r.w, "%s line items sum to %s but the invoice total is %s\n",
			r.st.warn.Render("WARNING"), t.LineSum.StringFixed(2), t.Declared.StringFixed(2))
		return err
	case t.Matches:
		_, err := fmt.Fprintf(r.w, "%s %d line items sum to the invoice total %s\n",
			r.st.ok.Render("OK"), t.Lines, t.Declared.StringFixed(2))
		return err
	}
	return nil
}

func (r *TextRenderer) Outcome(o ingest.Outcome, err error) error {
	switch {
	case err != nil:
		_, werr := fmt.Fprintf(r.w, "%s %s: %v\n", r.st.fail.Render("FAILED"), o.Path, err)
		return werr
	case o.Skipped:
		_, werr := fmt.Fprintf(r.w, "%s %s (already extracted)\n", r.st.warn.Render("SKIPPED"), o.Path)
		return werr
	case o.OutFile != "":
		_, werr := fmt.Fprintf(r.w, "%s %s -> %s\n", r.st.ok.Render("OK"), o.Path, o.OutFile)
		return werr
	default:
		_, werr := fmt.Fprintf(r.w, "%s %s\n", r.st.ok.Render("OK"), o.Path)
		return werr
	}
}

func (r *TextRenderer) Message(msg string) error {
	_, err := fmt.Fprintln(r.w, msg)
	return err
}

// ---------------------------------------------------------------------------
// JSON Renderer (structured output for piping)
// ---------------------------------------------------------------------------

// JSONRenderer prints each result as a single JSON value per line.
type JSONRenderer struct {
	enc *json.Encoder
}

func NewJSONRenderer(w io.Writer) *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(w)}
}

// Results uses the service's own shape: [{filename: record | {error}}].
func (r *JSONRenderer) Results(results []invoiceapi.ExtractResult) error {
	docs := make([]*formengine.Mapping, 0, len(results))
	for _, res := range results {
		docs = append(docs, res.Document())
	}
	return r.enc.Encode(docs)
}

func (r *JSONRenderer) Invoices(names []string) error {
	if names == nil {
		names = []string{}
	}
	return r.enc.Encode(map[string][]string{"invoices": names})
}

func (r *JSONRenderer) Fields(fields []formengine.Field) error {
	if fields == nil {
		fields = []formengine.Field{}
	}
	return r.enc.Encode(fields)
}

func (r *JSONRenderer) Record(record *formengine.Mapping) error {
	return r.enc.Encode(record)
}

func (r *JSONRenderer) Totals(t invoice.Totals) error {
	return r.enc.Encode(t)
}

type outcomeJSON struct {
	Path     string `json:"path"`
	Filename string `json:"filename,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
	OutFile  string `json:"out_file,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (r *JSONRenderer) Outcome(o ingest.Outcome, err error) error {
	out := outcomeJSON{Path: o.Path, Filename: o.Result.Filename, Skipped: o.Skipped, OutFile: o.OutFile}
	if err != nil {
		out.Error = err.Error()
	}
	return r.enc.Encode(out)
}

func (r *JSONRenderer) Message(msg string) error {
	return r.enc.Encode(map[string]string{"message": msg})
}
