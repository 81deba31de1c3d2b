package invoiceapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/joseph-ayodele/invoice-desk/internal/formengine"
)

// ListInvoices returns the filenames of every processed invoice.
func (c *Client) ListInvoices(ctx context.Context) ([]string, error) {
	raw, err := c.send(ctx, request{op: "list_invoices", method: http.MethodGet, path: "/list_invoices"})
	if err != nil {
		return nil, err
	}

	list := gjson.GetBytes(raw, "invoices")
	if !list.IsArray() {
		return nil, &APIError{Op: "list_invoices", Message: "reply has no invoices list"}
	}
	names := make([]string, 0, len(list.Array()))
	for _, n := range list.Array() {
		if n.Type != gjson.String {
			continue
		}
		names = append(names, n.Str)
	}
	return names, nil
}

// GetInvoice fetches one record by filename.
func (c *Client) GetInvoice(ctx context.Context, filename string) (*formengine.Mapping, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, ErrMissingFilename
	}

	raw, err := c.send(ctx, request{
		op:     "get_invoice",
		method: http.MethodGet,
		path:   "/get_invoice_json",
		query:  url.Values{"filename": []string{filename}},
	})
	if err != nil {
		return nil, err
	}

	rec, err := formengine.Parse(raw)
	if err != nil {
		return nil, &APIError{Op: "get_invoice", Message: fmt.Sprintf("invoice %s is not a JSON object", filename), Err: err}
	}
	return rec, nil
}
