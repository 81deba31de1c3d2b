package workspace

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/invoice-desk/constants"
	"github.com/joseph-ayodele/invoice-desk/internal/common"
	"github.com/joseph-ayodele/invoice-desk/internal/entity"
	"github.com/joseph-ayodele/invoice-desk/internal/formengine"
	"github.com/joseph-ayodele/invoice-desk/internal/invoice"
	"github.com/joseph-ayodele/invoice-desk/internal/invoiceapi"
	"github.com/joseph-ayodele/invoice-desk/internal/repository"
)

// InvoiceService is the part of the extraction service a workspace uses.
type InvoiceService interface {
	Extract(ctx context.Context, files []invoiceapi.File) ([]invoiceapi.ExtractResult, error)
	ListInvoices(ctx context.Context) ([]string, error)
	GetInvoice(ctx context.Context, filename string) (*formengine.Mapping, error)
	UpdateInvoice(ctx context.Context, record *formengine.Mapping) error
}

var ErrNoInvoiceSelected = common.NewAppError("NO_INVOICE", "Select an invoice first.", common.ErrInvalidInput)

// State is a copy of what the workspace holds, for rendering.
type State struct {
	SessionID string                     `json:"session_id"`
	Invoices  []string                   `json:"invoices"`
	Filename  string                     `json:"filename,omitempty"`
	Record    *formengine.Mapping        `json:"record,omitempty"`
	Fields    []formengine.Field         `json:"fields"`
	Uploads   []invoiceapi.ExtractResult `json:"uploads,omitempty"`
	Totals    *invoice.Totals            `json:"totals,omitempty"`
	Loading   bool                       `json:"loading"`
	Dirty     bool                       `json:"dirty"`
}

// Workspace owns the record being edited by one user. The record is only ever
// replaced as a whole: by a fetch, by an edit producing a new copy, or cleared by
// an upload.
type Workspace struct {
	id        string
	svc       InvoiceService
	drafts    repository.DraftRepository
	validator *invoice.Validator
	renderer  *formengine.Renderer
	logger    *slog.Logger

	// ops serializes operations; mu guards the fields below so a snapshot can be
	// taken while an upload is in flight.
	ops sync.Mutex
	mu  sync.Mutex

	restored sync.Once
	restErr  error

	invoices []string
	filename string
	record   *formengine.Mapping
	uploads  []invoiceapi.ExtractResult
	loading  bool
	dirty    bool
	lastUsed time.Time
}

type Option func(*Workspace)

// WithDrafts persists the held record after every change.
func WithDrafts(repo repository.DraftRepository) Option {
	return func(w *Workspace) {
		w.drafts = repo
	}
}

func WithValidator(v *invoice.Validator) Option {
	return func(w *Workspace) {
		if v != nil {
			w.validator = v
		}
	}
}

func WithRenderer(r *formengine.Renderer) Option {
	return func(w *Workspace) {
		if r != nil {
			w.renderer = r
		}
	}
}

func New(id string, svc InvoiceService, logger *slog.Logger, opts ...Option) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Workspace{
		id:        id,
		svc:       svc,
		validator: invoice.DefaultValidator(),
		renderer:  formengine.NewRenderer(),
		logger:    logger.With("session_id", id),
		lastUsed:  time.Now(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Workspace) ID() string { return w.id }

// Upload sends files for extraction. The held record is cleared and the invoice
// list is refreshed once the upload finishes, whether it failed or not.
//
// rejected holds per-file failures found before sending, such as a part that is not
// a PDF. They are reported after the service's results and do not stop the others.
func (w *Workspace) Upload(ctx context.Context, files []invoiceapi.File, rejected ...invoiceapi.ExtractResult) ([]invoiceapi.ExtractResult, error) {
	if len(files) == 0 && len(rejected) == 0 {
		return nil, invoiceapi.ErrNoFiles
	}
	w.ops.Lock()
	defer w.ops.Unlock()

	w.mu.Lock()
	w.loading = true
	w.record, w.filename, w.dirty, w.uploads = nil, "", false, nil
	w.touch()
	w.mu.Unlock()
	w.forgetDraft(ctx)

	start := time.Now()
	var (
		results []invoiceapi.ExtractResult
		err     error
	)
	if len(files) > 0 {
		results, err = w.svc.Extract(ctx, files)
	}
	if err == nil {
		results = append(results, rejected...)
	}
	names, listErr := w.svc.ListInvoices(ctx)

	w.mu.Lock()
	w.loading = false
	if err == nil {
		w.uploads = results
	}
	if listErr == nil {
		w.invoices = names
	}
	w.mu.Unlock()

	if listErr != nil {
		w.logger.Warn("workspace.refresh.failed", "error", listErr)
	}
	if err != nil {
		w.logger.Error("workspace.upload.failed", "files", len(files), "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	w.logger.Info("workspace.upload.ok", "files", len(files), "results", len(results), "elapsed_ms", time.Since(start).Milliseconds())
	return results, nil
}

// Refresh reloads the invoice list.
func (w *Workspace) Refresh(ctx context.Context) ([]string, error) {
	w.ops.Lock()
	defer w.ops.Unlock()

	names, err := w.svc.ListInvoices(ctx)
	if err != nil {
		w.logger.Error("workspace.refresh.failed", "error", err)
		return nil, err
	}
	w.mu.Lock()
	w.invoices = names
	w.touch()
	w.mu.Unlock()
	return append([]string(nil), names...), nil
}

// Select fetches an invoice and makes it the held record. On failure the previous
// record stays.
func (w *Workspace) Select(ctx context.Context, filename string) ([]formengine.Field, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, invoiceapi.ErrMissingFilename
	}
	w.ops.Lock()
	defer w.ops.Unlock()

	rec, err := w.svc.GetInvoice(ctx, filename)
	if err != nil {
		w.logger.Error("workspace.select.failed", "filename", filename, "error", err)
		return nil, err
	}

	w.mu.Lock()
	w.record, w.filename, w.dirty = rec, filename, false
	w.touch()
	w.mu.Unlock()

	w.saveDraft(ctx, rec, filename, constants.DraftStatusEditing)
	w.logger.Info("workspace.select.ok", "filename", filename, "keys", rec.Len())
	return w.renderer.Render(rec), nil
}

// Edit replaces one leaf of the held record.
func (w *Workspace) Edit(ctx context.Context, path formengine.Path, value string) ([]formengine.Field, error) {
	w.ops.Lock()
	defer w.ops.Unlock()

	w.mu.Lock()
	rec, filename := w.record, w.filename
	w.mu.Unlock()
	if rec == nil {
		return nil, ErrNoInvoiceSelected
	}

	updated, err := formengine.ApplyEdit(rec, path, value)
	if err != nil {
		w.logger.Warn("workspace.edit.rejected", "path", path.String(), "error", err)
		return nil, err
	}

	w.mu.Lock()
	w.record, w.dirty = updated, true
	w.touch()
	w.mu.Unlock()

	w.saveDraft(ctx, updated, filename, constants.DraftStatusEditing)
	w.logger.Debug("workspace.edit.ok", "path", path.String())
	return w.renderer.Render(updated), nil
}

// Submit sends the held record back to the service.
func (w *Workspace) Submit(ctx context.Context) error {
	w.ops.Lock()
	defer w.ops.Unlock()

	w.mu.Lock()
	rec, filename := w.record, w.filename
	w.mu.Unlock()
	if rec == nil {
		return ErrNoInvoiceSelected
	}
	if name, ok := rec.Text(constants.KeyFilename); !ok || strings.TrimSpace(name) == "" {
		return invoiceapi.ErrMissingFilename
	}
	if err := w.validator.Validate(rec); err != nil {
		w.logger.Warn("workspace.submit.invalid", "filename", filename, "error", err)
		return err
	}

	start := time.Now()
	if err := w.svc.UpdateInvoice(ctx, rec); err != nil {
		w.logger.Error("workspace.submit.failed", "filename", filename, "error", err)
		return err
	}

	w.mu.Lock()
	if w.record == rec {
		w.dirty = false
	}
	w.touch()
	w.mu.Unlock()

	w.saveDraft(ctx, rec, filename, constants.DraftStatusSubmitted)
	w.logger.Info("workspace.submit.ok", "filename", filename, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// Restore loads the persisted draft, if any. It runs under the operation lock, so
// it never lands on top of a concurrent Select or Edit.
func (w *Workspace) Restore(ctx context.Context) error {
	if w.drafts == nil {
		return nil
	}
	w.ops.Lock()
	defer w.ops.Unlock()

	d, err := w.drafts.Get(ctx, w.id)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	rec, err := formengine.Parse(d.Record)
	if err != nil {
		w.logger.Warn("workspace.restore.bad_draft", "filename", d.Filename, "error", err)
		return nil
	}

	w.mu.Lock()
	w.record, w.filename = rec, d.Filename
	w.dirty = d.Status == constants.DraftStatusEditing
	w.mu.Unlock()
	w.logger.Info("workspace.restore.ok", "filename", d.Filename, "status", string(d.Status))
	return nil
}

// Fields renders the held record.
func (w *Workspace) Fields() []formengine.Field {
	w.mu.Lock()
	rec := w.record
	w.mu.Unlock()
	return w.renderer.Render(rec)
}

// Record returns the held record, or nil.
func (w *Workspace) Record() *formengine.Mapping {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.record
}

// CopyJSON is the held record as indented JSON.
func (w *Workspace) CopyJSON() ([]byte, error) {
	rec := w.Record()
	if rec == nil {
		return nil, ErrNoInvoiceSelected
	}
	return formengine.Indent(rec, formengine.CopyIndent)
}

func (w *Workspace) Snapshot() State {
	w.mu.Lock()
	s := State{
		SessionID: w.id,
		Invoices:  append([]string(nil), w.invoices...),
		Filename:  w.filename,
		Record:    w.record,
		Uploads:   append([]invoiceapi.ExtractResult(nil), w.uploads...),
		Loading:   w.loading,
		Dirty:     w.dirty,
	}
	w.mu.Unlock()

	s.Fields = w.renderer.Render(s.Record)
	if s.Record != nil {
		t := invoice.CheckTotals(s.Record)
		s.Totals = &t
	}
	return s
}

// restoreOnce runs Restore the first time it is called. Later callers block until
// that first restore has finished and get its error.
func (w *Workspace) restoreOnce(ctx context.Context) error {
	w.restored.Do(func() {
		w.restErr = w.Restore(ctx)
	})
	return w.restErr
}

func (w *Workspace) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastUsed
}

// touch must be called with mu held.
func (w *Workspace) touch() {
	w.lastUsed = time.Now()
}

func (w *Workspace) saveDraft(ctx context.Context, rec *formengine.Mapping, filename string, status constants.DraftStatus) {
	if w.drafts == nil {
		return
	}
	raw, err := rec.MarshalJSON()
	if err != nil {
		w.logger.Warn("workspace.draft.encode_failed", "error", err)
		return
	}
	d := &entity.Draft{SessionID: w.id, Filename: filename, Record: raw, Status: status}
	if err := w.drafts.Save(ctx, d); err != nil {
		w.logger.Warn("workspace.draft.save_failed", "filename", filename, "error", err)
	}
}

func (w *Workspace) forgetDraft(ctx context.Context) {
	if w.drafts == nil {
		return
	}
	if err := w.drafts.Delete(ctx, w.id); err != nil {
		w.logger.Warn("workspace.draft.delete_failed", "error", err)
	}
}
