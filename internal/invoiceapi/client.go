package invoiceapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/joseph-ayodele/invoice-desk/internal/common"
)

// Config points the client at the extraction service.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the invoice extraction service. Calls are made once; nothing is retried.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// APIError is any failed exchange with the service: a transport failure (Status 0),
// a non-2xx reply, or a reply carrying an error message.
type APIError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() []error {
	errs := []error{common.ErrUpstream}
	if e.Status == http.StatusNotFound {
		errs = append(errs, common.ErrNotFound)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
}

// send performs one request and returns the body of a 2xx reply.
func (c *Client) send(ctx context.Context, r request) ([]byte, error) {
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
	}
	start := time.Now()

	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		c.logger.Error("invoiceapi.http.build_request_error", "req_id", reqID, "op", r.op, "error", err)
		return nil, &APIError{Op: r.op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	c.logger.Info("invoiceapi.http.request",
		"req_id", reqID,
		"op", r.op,
		"method", r.method,
		"url", endpoint,
		"content_length", len(r.body),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("invoiceapi.http.send_error", "req_id", reqID, "op", r.op, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, &APIError{Op: r.op, Message: "An error occurred while contacting the extraction service.", Err: err}
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.logger.Warn("invoiceapi.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("invoiceapi.http.read_error", "req_id", reqID, "op", r.op, "error", err)
		return nil, &APIError{Op: r.op, Status: resp.StatusCode, Err: err}
	}

	c.logger.Info("invoiceapi.http.response",
		"req_id", reqID,
		"op", r.op,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, &APIError{Op: r.op, Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	return raw, nil
}

// errorMessage pulls {"error": "..."} out of a reply, falling back to the raw text.
func errorMessage(raw []byte) string {
	if gjson.ValidBytes(raw) {
		if msg := gjson.GetBytes(raw, "error"); msg.Exists() {
			return msg.String()
		}
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
