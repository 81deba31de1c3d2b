package invoiceapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/joseph-ayodele/invoice-desk/constants"
	"github.com/joseph-ayodele/invoice-desk/internal/formengine"
)

// UpdateInvoice sends the whole record back. The record must name its file.
func (c *Client) UpdateInvoice(ctx context.Context, record *formengine.Mapping) error {
	if name, ok := record.Text(constants.KeyFilename); !ok || strings.TrimSpace(name) == "" {
		return ErrMissingFilename
	}

	body, err := record.MarshalJSON()
	if err != nil {
		return &APIError{Op: "update_invoice", Message: "encode record", Err: err}
	}

	raw, err := c.send(ctx, request{
		op:          "update_invoice",
		method:      http.MethodPut,
		path:        "/update_invoice",
		body:        body,
		contentType: "application/json",
	})
	if err != nil {
		return err
	}

	// success is a bool in newer builds and a message string in older ones
	success := gjson.GetBytes(raw, "success")
	switch {
	case success.Type == gjson.True:
		return nil
	case success.Type == gjson.String && success.Str != "":
		return nil
	}
	msg := gjson.GetBytes(raw, "error").String()
	if msg == "" {
		msg = "update was not acknowledged"
	}
	return &APIError{Op: "update_invoice", Status: http.StatusOK, Message: msg}
}
