package output

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-desk/internal/formengine"
	"github.com/joseph-ayodele/invoice-desk/internal/ingest"
	"github.com/joseph-ayodele/invoice-desk/internal/invoice"
	"github.com/joseph-ayodele/invoice-desk/internal/invoiceapi"
)

func sampleRecord(t *testing.T) *formengine.Mapping {
	t.Helper()
	rec, err := formengine.Parse([]byte(`{"filename":"a.pdf","invoiceDetails":{"number":"1","total":"30"},"lineItems":[{"amount":"10"},{"amount":"20"}]}`))
	require.NoError(t, err)
	return rec
}

func TestJSONRenderer_Results(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONRenderer(&buf)

	err := r.Results([]invoiceapi.ExtractResult{
		{Filename: "a.pdf", Record: sampleRecord(t)},
		{Filename: "b.pdf", Error: "Unsupported file"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"a.pdf": {"filename":"a.pdf","invoiceDetails":{"number":"1","total":"30"},"lineItems":[{"amount":"10"},{"amount":"20"}]}},
		{"b.pdf": {"error":"Unsupported file"}}
	]`, buf.String())
}

func TestJSONRenderer_Fields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONRenderer(&buf).Fields(formengine.RenderFields(sampleRecord(t))))
	assert.Contains(t, buf.String(), `"path":["lineItems",1,"amount"]`)
}

func TestJSONRenderer_EmptyInvoices(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONRenderer(&buf).Invoices(nil))
	assert.JSONEq(t, `{"invoices":[]}`, buf.String())
}

func TestTextRenderer_Fields(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextRenderer(&buf)
	require.NoError(t, r.Fields(formengine.RenderFields(sampleRecord(t))))

	out := buf.String()
	assert.Contains(t, out, "invoiceDetails\n")
	assert.Contains(t, out, "invoiceDetails.number")
	assert.Contains(t, out, "lineItems.1.amount")
	assert.NotContains(t, out, "filename")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("invoiceDetails.total")), bytes.Index(buf.Bytes(), []byte("lineItems.0.amount")))
}

func TestTextRenderer_ResultsAndOutcomes(t *testing.T) {
	var buf bytes.Buffer
	r := New("text", &buf)

	require.NoError(t, r.Results([]invoiceapi.ExtractResult{
		{Filename: "a.pdf", Record: sampleRecord(t)},
		{Filename: "b.pdf", Error: "Unsupported file"},
	}))
	require.NoError(t, r.Outcome(ingest.Outcome{Path: "in/c.pdf", Skipped: true}, nil))
	require.NoError(t, r.Outcome(ingest.Outcome{Path: "in/d.pdf"}, errors.New("timeout")))

	out := buf.String()
	assert.Contains(t, out, "OK a.pdf\n{\n   \"filename\": \"a.pdf\",")
	assert.Contains(t, out, "FAILED b.pdf: Unsupported file")
	assert.Contains(t, out, "SKIPPED in/c.pdf (already extracted)")
	assert.Contains(t, out, "FAILED in/d.pdf: timeout")
}

func TestTextRenderer_Totals(t *testing.T) {
	rec := sampleRecord(t)
	var buf bytes.Buffer
	r := NewTextRenderer(&buf)

	require.NoError(t, r.Totals(invoice.CheckTotals(rec)))
	assert.Contains(t, buf.String(), "2 line items sum to the invoice total 30.00")

	edited, err := formengine.ApplyEdit(rec, formengine.NewPath(formengine.Name("lineItems"), formengine.Index(1), formengine.Name("amount")), "25")
	require.NoError(t, err)
	buf.Reset()
	require.NoError(t, r.Totals(invoice.CheckTotals(edited)))
	assert.Contains(t, buf.String(), "line items sum to 35.00 but the invoice total is 30.00")
}
