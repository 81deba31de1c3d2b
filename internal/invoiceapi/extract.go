package invoiceapi

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/joseph-ayodele/invoice-desk/constants"
	"github.com/joseph-ayodele/invoice-desk/internal/formengine"
)

// File is one document to upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// NewFile sniffs data and accepts it only when it is a PDF.
func NewFile(name string, data []byte) (File, error) {
	mt := mimetype.Detect(data)
	if !mt.Is(constants.PDFContentType) {
		return File{}, fmt.Errorf("%s (%s): %w", name, mt.String(), ErrUnsupportedFile)
	}
	return File{Name: filepath.Base(name), ContentType: constants.PDFContentType, Data: data}, nil
}

// FileFromPath reads a PDF from disk.
func FileFromPath(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	return NewFile(path, data)
}

// ExtractResult is the outcome for one uploaded file. Either Record or Error is set.
type ExtractResult struct {
	Filename string              `json:"filename"`
	Record   *formengine.Mapping `json:"record,omitempty"`
	Error    string              `json:"error,omitempty"`
}

func (r ExtractResult) OK() bool {
	return r.Error == "" && r.Record != nil
}

// Document is the result as the service sent it: {filename: record} or
// {filename: {error: ...}}.
func (r ExtractResult) Document() *formengine.Mapping {
	if r.OK() {
		return formengine.NewMapping(formengine.Entry{Key: r.Filename, Value: r.Record})
	}
	return formengine.NewMapping(formengine.Entry{
		Key:   r.Filename,
		Value: formengine.NewMapping(formengine.Entry{Key: constants.KeyError, Value: formengine.String(r.Error)}),
	})
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Extract uploads files in one multipart request, each under the "files" field, and
// returns one result per file in the order the service reports them.
func (c *Client) Extract(ctx context.Context, files []File) ([]ExtractResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, quoteEscaper.Replace(f.Name)))
		ct := f.ContentType
		if ct == "" {
			ct = constants.PDFContentType
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("multipart part %s: %w", f.Name, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, fmt.Errorf("multipart write %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("multipart close: %w", err)
	}

	raw, err := c.send(ctx, request{
		op:          "extract",
		method:      http.MethodPost,
		path:        "/extract_invoice_json",
		body:        buf.Bytes(),
		contentType: mw.FormDataContentType(),
	})
	if err != nil {
		return nil, err
	}

	results, err := parseExtractResults(raw)
	if err != nil {
		c.logger.Error("invoiceapi.extract.decode_error", "error", err)
		return nil, &APIError{Op: "extract", Message: "malformed extraction reply", Err: err}
	}

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	c.logger.Info("invoiceapi.extract.ok", "files", len(files), "results", len(results), "failed", failed)
	return results, nil
}

func parseExtractResults(raw []byte) ([]ExtractResult, error) {
	v, err := formengine.ParseValue(raw)
	if err != nil {
		return nil, err
	}
	seq, ok := v.(*formengine.Sequence)
	if !ok {
		return nil, fmt.Errorf("expected a list, got a %s", v.Kind())
	}

	results := make([]ExtractResult, 0, seq.Len())
	for i, item := range seq.Items() {
		doc, ok := item.(*formengine.Mapping)
		if !ok || doc.Len() == 0 {
			return nil, fmt.Errorf("result %d is not a {filename: record} object", i)
		}
		for _, e := range doc.Entries() {
			results = append(results, toResult(e.Key, e.Value))
		}
	}
	return results, nil
}

func toResult(filename string, v formengine.Value) ExtractResult {
	switch n := v.(type) {
	case *formengine.Mapping:
		if msg, ok := n.Text(constants.KeyError); ok && n.Len() == 1 {
			return ExtractResult{Filename: filename, Error: msg}
		}
		return ExtractResult{Filename: filename, Record: n}
	case formengine.Scalar:
		// some service builds return the model output as a JSON string, sometimes fenced
		if rec, err := formengine.Parse([]byte(unfence(n.Text()))); err == nil {
			return ExtractResult{Filename: filename, Record: rec}
		}
		return ExtractResult{Filename: filename, Error: "extraction returned text that is not a JSON object"}
	}
	return ExtractResult{Filename: filename, Error: fmt.Sprintf("extraction returned a %s", v.Kind())}
}

// unfence strips a ```json ... ``` wrapper from model text.
func unfence(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "```json")
	s = strings.TrimPrefix(strings.TrimSpace(s), "```")
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}
