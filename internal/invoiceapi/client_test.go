package invoiceapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-desk/internal/common"
	"github.com/joseph-ayodele/invoice-desk/internal/formengine"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n%%EOF\n")

// fakeService mimics the extraction service's four endpoints.
type fakeService struct {
	mu       sync.Mutex
	invoices map[string]string
	order    []string
	updates  []string
	uploads  [][]string
}

func newFakeService() *fakeService {
	return &fakeService{invoices: map[string]string{}}
}

func (f *fakeService) put(name, raw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.invoices[name]; !ok {
		f.order = append(f.order, name)
	}
	f.invoices[name] = raw
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /extract_invoice_json", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, `{"error":"bad form"}`, http.StatusBadRequest)
			return
		}
		var names []string
		var out []map[string]any
		for _, fh := range r.MultipartForm.File["files"] {
			names = append(names, fh.Filename)
			if fh.Header.Get("Content-Type") != "application/pdf" {
				out = append(out, map[string]any{fh.Filename: map[string]string{"error": "Invalid file type. Only PDF files are supported"}})
				continue
			}
			raw := `{"invoiceDetails":{"number":"1"},"lineItems":[{"amount":"10"}],"filename":"` + fh.Filename + `"}`
			f.put(fh.Filename, raw)
			out = append(out, map[string]any{fh.Filename: json.RawMessage(raw)})
		}
		f.mu.Lock()
		f.uploads = append(f.uploads, names)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("GET /list_invoices", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"invoices": append([]string{}, f.order...)})
	})
	mux.HandleFunc("GET /get_invoice_json", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("filename")
		if name == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"Filename is required"}`)
			return
		}
		f.mu.Lock()
		raw, ok := f.invoices[name]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"Invoice not found"}`)
			return
		}
		_, _ = io.WriteString(w, raw)
	})
	mux.HandleFunc("PUT /update_invoice", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec, err := formengine.Parse(body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"Invalid data. Filename is required."}`)
			return
		}
		name, _ := rec.Text("filename")
		f.mu.Lock()
		_, ok := f.invoices[name]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"Invoice not found"}`)
			return
		}
		f.put(name, string(body))
		f.mu.Lock()
		f.updates = append(f.updates, string(body))
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"success":"Invoice updated successfully"}`)
	})
	return mux
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExtract(t *testing.T) {
	svc := newFakeService()
	c := newTestClient(t, svc.handler())

	a, err := NewFile("a.pdf", pdfBytes)
	require.NoError(t, err)
	b, err := NewFile("nested/b.pdf", pdfBytes)
	require.NoError(t, err)
	assert.Equal(t, "b.pdf", b.Name)

	results, err := c.Extract(context.Background(), []File{a, b, {Name: "notes.txt", ContentType: "text/plain", Data: []byte("hi")}})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a.pdf", results[0].Filename)
	assert.True(t, results[0].OK())
	assert.Equal(t, []string{"invoiceDetails", "lineItems", "filename"}, results[0].Record.Keys())
	assert.Equal(t, "b.pdf", results[1].Filename)
	assert.False(t, results[2].OK())
	assert.Equal(t, "Invalid file type. Only PDF files are supported", results[2].Error)

	doc, err := results[2].Document().MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"notes.txt":{"error":"Invalid file type. Only PDF files are supported"}}`, string(doc))

	assert.Equal(t, [][]string{{"a.pdf", "b.pdf", "notes.txt"}}, svc.uploads)
}

func TestExtract_NoFiles(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())

	_, err := c.Extract(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFiles)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Equal(t, "Please select a file first!", common.UserMessage(err))
}

func TestExtract_StringPayload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"c.pdf":"{\"total\":\"5\"}"},{"d.pdf":"sorry"}]`)
	}))
	f, err := NewFile("c.pdf", pdfBytes)
	require.NoError(t, err)

	results, err := c.Extract(context.Background(), []File{f})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
}

func TestUnfence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, unfence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, unfence(" ```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, unfence(`{"a":1}`))
}

func TestExtract_ServiceFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"model unavailable"}`)
	}))
	f, err := NewFile("a.pdf", pdfBytes)
	require.NoError(t, err)

	_, err = c.Extract(context.Background(), []File{f})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "model unavailable", apiErr.Message)
	assert.ErrorIs(t, err, common.ErrUpstream)
}

func TestNewFile_RejectsNonPDF(t *testing.T) {
	_, err := NewFile("scan.png", []byte("\x89PNG\r\n\x1a\n0000"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestListAndGet(t *testing.T) {
	svc := newFakeService()
	svc.put("x.pdf", `{"filename":"x.pdf","vendor":{"name":"Acme"},"total":"10"}`)
	svc.put("y.pdf", `{"filename":"y.pdf"}`)
	c := newTestClient(t, svc.handler())
	ctx := context.Background()

	names, err := c.ListInvoices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x.pdf", "y.pdf"}, names)

	rec, err := c.GetInvoice(ctx, " x.pdf ")
	require.NoError(t, err)
	assert.Equal(t, []string{"filename", "vendor", "total"}, rec.Keys())

	_, err = c.GetInvoice(ctx, "missing.pdf")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = c.GetInvoice(ctx, "")
	assert.ErrorIs(t, err, ErrMissingFilename)
}

func TestListInvoices_Malformed(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"files":[]}`)
	}))
	_, err := c.ListInvoices(context.Background())
	assert.ErrorIs(t, err, common.ErrUpstream)
}

func TestUpdateInvoice(t *testing.T) {
	svc := newFakeService()
	svc.put("x.pdf", `{"filename":"x.pdf","total":"10"}`)
	c := newTestClient(t, svc.handler())
	ctx := context.Background()

	rec, err := c.GetInvoice(ctx, "x.pdf")
	require.NoError(t, err)
	edited, err := formengine.ApplyEdit(rec, formengine.Path{formengine.Name("total")}, "12")
	require.NoError(t, err)

	require.NoError(t, c.UpdateInvoice(ctx, edited))
	require.Len(t, svc.updates, 1)
	assert.Equal(t, `{"filename":"x.pdf","total":"12"}`, svc.updates[0])

	orphan := formengine.NewMapping(formengine.Entry{Key: "filename", Value: formengine.String("gone.pdf")})
	err = c.UpdateInvoice(ctx, orphan)
	assert.ErrorIs(t, err, common.ErrNotFound)

	noName := formengine.NewMapping(formengine.Entry{Key: "total", Value: formengine.String("1")})
	assert.ErrorIs(t, c.UpdateInvoice(ctx, noName), ErrMissingFilename)
}

func TestUpdateInvoice_ErrorBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"error":"locked"}`)
	}))
	rec := formengine.NewMapping(formengine.Entry{Key: "filename", Value: formengine.String("a.pdf")})

	err := c.UpdateInvoice(context.Background(), rec)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "locked", apiErr.Message)
}

func TestSend_Cancelled(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"invoices":[]}`)
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListInvoices(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, common.ErrUpstream)
}
