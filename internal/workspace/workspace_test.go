package workspace

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-desk/constants"
	"github.com/joseph-ayodele/invoice-desk/internal/common"
	"github.com/joseph-ayodele/invoice-desk/internal/entity"
	"github.com/joseph-ayodele/invoice-desk/internal/formengine"
	"github.com/joseph-ayodele/invoice-desk/internal/invoiceapi"
	"github.com/joseph-ayodele/invoice-desk/internal/repository"
)

type mockService struct {
	ExtractFunc       func(ctx context.Context, files []invoiceapi.File) ([]invoiceapi.ExtractResult, error)
	ListInvoicesFunc  func(ctx context.Context) ([]string, error)
	GetInvoiceFunc    func(ctx context.Context, filename string) (*formengine.Mapping, error)
	UpdateInvoiceFunc func(ctx context.Context, record *formengine.Mapping) error

	calls []string
}

func (m *mockService) Extract(ctx context.Context, files []invoiceapi.File) ([]invoiceapi.ExtractResult, error) {
	m.calls = append(m.calls, "extract")
	return m.ExtractFunc(ctx, files)
}

func (m *mockService) ListInvoices(ctx context.Context) ([]string, error) {
	m.calls = append(m.calls, "list")
	return m.ListInvoicesFunc(ctx)
}

func (m *mockService) GetInvoice(ctx context.Context, filename string) (*formengine.Mapping, error) {
	m.calls = append(m.calls, "get")
	return m.GetInvoiceFunc(ctx, filename)
}

func (m *mockService) UpdateInvoice(ctx context.Context, record *formengine.Mapping) error {
	m.calls = append(m.calls, "update")
	return m.UpdateInvoiceFunc(ctx, record)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func record(t *testing.T, raw string) *formengine.Mapping {
	t.Helper()
	m, err := formengine.Parse([]byte(raw))
	require.NoError(t, err)
	return m
}

const invoiceA = `{"filename":"a.pdf","invoiceDetails":{"number":"1"},"lineItems":[{"amount":"10"},{"amount":"20"}],"total_invoice_amount":"30"}`

func newMock(t *testing.T) *mockService {
	return &mockService{
		ExtractFunc: func(ctx context.Context, files []invoiceapi.File) ([]invoiceapi.ExtractResult, error) {
			out := make([]invoiceapi.ExtractResult, 0, len(files))
			for _, f := range files {
				out = append(out, invoiceapi.ExtractResult{Filename: f.Name, Record: record(t, invoiceA)})
			}
			return out, nil
		},
		ListInvoicesFunc: func(ctx context.Context) ([]string, error) {
			return []string{"a.pdf"}, nil
		},
		GetInvoiceFunc: func(ctx context.Context, filename string) (*formengine.Mapping, error) {
			if filename != "a.pdf" {
				return nil, &invoiceapi.APIError{Op: "get_invoice", Status: 404}
			}
			return record(t, invoiceA), nil
		},
		UpdateInvoiceFunc: func(ctx context.Context, record *formengine.Mapping) error {
			return nil
		},
	}
}

func pdf(name string) invoiceapi.File {
	return invoiceapi.File{Name: name, ContentType: "application/pdf", Data: []byte("%PDF-1.4")}
}

func TestUpload_NoFiles(t *testing.T) {
	svc := newMock(t)
	w := New("s1", svc, discard())

	_, err := w.Upload(context.Background(), nil)
	assert.ErrorIs(t, err, invoiceapi.ErrNoFiles)
	assert.Empty(t, svc.calls)
	assert.Empty(t, w.Snapshot().Invoices)
}

func TestUpload_RefreshesListAfterFailure(t *testing.T) {
	svc := newMock(t)
	svc.ExtractFunc = func(ctx context.Context, files []invoiceapi.File) ([]invoiceapi.ExtractResult, error) {
		return nil, &invoiceapi.APIError{Op: "extract", Status: 500, Message: "boom"}
	}
	w := New("s1", svc, discard())
	ctx := context.Background()

	_, err := w.Select(ctx, "a.pdf")
	require.NoError(t, err)

	_, err = w.Upload(ctx, []invoiceapi.File{pdf("b.pdf")})
	assert.ErrorIs(t, err, common.ErrUpstream)
	assert.Equal(t, []string{"get", "extract", "list"}, svc.calls)

	state := w.Snapshot()
	assert.Equal(t, []string{"a.pdf"}, state.Invoices)
	assert.False(t, state.Loading)
	assert.Nil(t, state.Record, "an upload clears the held record")
	assert.Empty(t, state.Fields)
}

func TestUpload_RejectedPartsOnly(t *testing.T) {
	svc := newMock(t)
	w := New("s1", svc, discard())

	rejected := invoiceapi.ExtractResult{Filename: "notes.txt", Error: "Invalid file type. Only PDF files are supported"}
	results, err := w.Upload(context.Background(), nil, rejected)
	require.NoError(t, err)
	assert.Equal(t, []invoiceapi.ExtractResult{rejected}, results)
	assert.Equal(t, []string{"list"}, svc.calls)
	assert.Equal(t, results, w.Snapshot().Uploads)
}

func TestUpload_RejectedPartsFollowResults(t *testing.T) {
	svc := newMock(t)
	w := New("s1", svc, discard())

	rejected := invoiceapi.ExtractResult{Filename: "notes.txt", Error: "Invalid file type. Only PDF files are supported"}
	results, err := w.Upload(context.Background(), []invoiceapi.File{pdf("a.pdf")}, rejected)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].OK())
	assert.Equal(t, rejected, results[1])
}

func TestUpload_Success(t *testing.T) {
	svc := newMock(t)
	w := New("s1", svc, discard())

	results, err := w.Upload(context.Background(), []invoiceapi.File{pdf("a.pdf"), pdf("b.pdf")})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	state := w.Snapshot()
	assert.Len(t, state.Uploads, 2)
	assert.Equal(t, []string{"a.pdf"}, state.Invoices)
	assert.Equal(t, []string{"extract", "list"}, svc.calls)
}

func TestSelectEditSubmit(t *testing.T) {
	svc := newMock(t)
	var submitted *formengine.Mapping
	svc.UpdateInvoiceFunc = func(ctx context.Context, rec *formengine.Mapping) error {
		submitted = rec
		return nil
	}
	w := New("s1", svc, discard())
	ctx := context.Background()

	assert.ErrorIs(t, w.Submit(ctx), ErrNoInvoiceSelected)
	_, err := w.Edit(ctx, formengine.Path{formengine.Name("total_invoice_amount")}, "1")
	assert.ErrorIs(t, err, ErrNoInvoiceSelected)

	fields, err := w.Select(ctx, "a.pdf")
	require.NoError(t, err)
	require.Len(t, fields, 4)
	original := w.Record()

	fields, err = w.Edit(ctx, fields[2].Path, "25")
	require.NoError(t, err)
	assert.Equal(t, "25", fields[2].Value)
	assert.NotSame(t, original, w.Record())

	v, err := formengine.Get(original, fields[2].Path)
	require.NoError(t, err)
	assert.Equal(t, formengine.String("20"), v, "the previous record is not mutated")

	state := w.Snapshot()
	assert.True(t, state.Dirty)
	require.NotNil(t, state.Totals)
	assert.True(t, state.Totals.Mismatch())

	require.NoError(t, w.Submit(ctx))
	assert.Same(t, w.Record(), submitted)
	assert.False(t, w.Snapshot().Dirty)
}

func TestEdit_RejectedKeepsRecord(t *testing.T) {
	w := New("s1", newMock(t), discard())
	ctx := context.Background()
	_, err := w.Select(ctx, "a.pdf")
	require.NoError(t, err)
	before := w.Record()

	_, err = w.Edit(ctx, formengine.Path{formengine.Name("missing"), formengine.Name("path")}, "x")
	assert.ErrorIs(t, err, formengine.ErrPathNotFound)
	_, err = w.Edit(ctx, formengine.Path{formengine.Name("lineItems"), formengine.Name("amount")}, "x")
	assert.ErrorIs(t, err, formengine.ErrTypeMismatch)

	assert.Same(t, before, w.Record())
	assert.False(t, w.Snapshot().Dirty)
}

func TestSelect_FailureKeepsRecord(t *testing.T) {
	w := New("s1", newMock(t), discard())
	ctx := context.Background()
	_, err := w.Select(ctx, "a.pdf")
	require.NoError(t, err)

	_, err = w.Select(ctx, "other.pdf")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, "a.pdf", w.Snapshot().Filename)

	_, err = w.Select(ctx, "  ")
	assert.ErrorIs(t, err, invoiceapi.ErrMissingFilename)
}

func TestSubmit_MissingFilename(t *testing.T) {
	svc := newMock(t)
	svc.GetInvoiceFunc = func(ctx context.Context, filename string) (*formengine.Mapping, error) {
		return record(t, `{"invoiceDetails":{"number":"1"}}`), nil
	}
	w := New("s1", svc, discard())
	ctx := context.Background()
	_, err := w.Select(ctx, "a.pdf")
	require.NoError(t, err)

	assert.ErrorIs(t, w.Submit(ctx), invoiceapi.ErrMissingFilename)
	assert.NotContains(t, svc.calls, "update")
}

func TestSubmit_SchemaViolation(t *testing.T) {
	svc := newMock(t)
	svc.GetInvoiceFunc = func(ctx context.Context, filename string) (*formengine.Mapping, error) {
		return record(t, `{"filename":"a.pdf","taxDetails":{"cgst":{"rate":"9"}}}`), nil
	}
	w := New("s1", svc, discard())
	ctx := context.Background()
	_, err := w.Select(ctx, "a.pdf")
	require.NoError(t, err)

	assert.ErrorIs(t, w.Submit(ctx), common.ErrValidation)
	assert.NotContains(t, svc.calls, "update")
}

func TestSubmit_ServiceError(t *testing.T) {
	svc := newMock(t)
	svc.UpdateInvoiceFunc = func(ctx context.Context, rec *formengine.Mapping) error {
		return &invoiceapi.APIError{Op: "update_invoice", Status: 500}
	}
	w := New("s1", svc, discard())
	ctx := context.Background()
	_, err := w.Select(ctx, "a.pdf")
	require.NoError(t, err)
	_, err = w.Edit(ctx, formengine.Path{formengine.Name("total_invoice_amount")}, "31")
	require.NoError(t, err)

	err = w.Submit(ctx)
	var apiErr *invoiceapi.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.True(t, w.Snapshot().Dirty)
}

func TestDrafts_RestoreAcrossWorkspaces(t *testing.T) {
	logger := discard()
	db, err := repository.Open(context.Background(), repository.Config{DSN: ":memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(logger) })
	drafts := repository.NewDraftRepository(db, logger)
	ctx := context.Background()

	w := New("s1", newMock(t), logger, WithDrafts(drafts))
	_, err = w.Select(ctx, "a.pdf")
	require.NoError(t, err)
	_, err = w.Edit(ctx, formengine.Path{formengine.Name("invoiceDetails"), formengine.Name("number")}, "42")
	require.NoError(t, err)

	again := New("s1", newMock(t), logger, WithDrafts(drafts))
	require.NoError(t, again.Restore(ctx))
	state := again.Snapshot()
	assert.Equal(t, "a.pdf", state.Filename)
	assert.True(t, state.Dirty)
	assert.True(t, formengine.Equal(w.Record(), again.Record()))

	other := New("s2", newMock(t), logger, WithDrafts(drafts))
	require.NoError(t, other.Restore(ctx))
	assert.Nil(t, other.Record())

	_, err = w.Upload(ctx, []invoiceapi.File{pdf("c.pdf")})
	require.NoError(t, err)
	cleared := New("s1", newMock(t), logger, WithDrafts(drafts))
	require.NoError(t, cleared.Restore(ctx))
	assert.Nil(t, cleared.Record(), "an upload discards the draft")
}

func TestCopyJSON(t *testing.T) {
	w := New("s1", newMock(t), discard())
	_, err := w.CopyJSON()
	assert.ErrorIs(t, err, ErrNoInvoiceSelected)

	_, err = w.Select(context.Background(), "a.pdf")
	require.NoError(t, err)
	out, err := w.CopyJSON()
	require.NoError(t, err)
	assert.Contains(t, string(out), "\n   \"filename\": \"a.pdf\"")
}

func TestManager(t *testing.T) {
	m := NewManager(newMock(t), discard())
	ctx := context.Background()

	a := m.Get(ctx, "a")
	assert.Same(t, a, m.Get(ctx, "a"))
	assert.NotSame(t, a, m.Get(ctx, "b"))
	assert.Equal(t, 2, m.Len())

	assert.Equal(t, 0, m.Prune(time.Hour))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 2, m.Prune(time.Millisecond))
	assert.Equal(t, 0, m.Len())
}

func TestManager_NilLogger(t *testing.T) {
	m := NewManager(newMock(t), nil)
	m.Get(context.Background(), "a")
	assert.NotPanics(t, func() { m.Prune(0) })
}

// slowDrafts parks Get until release is closed.
type slowDrafts struct {
	entered chan struct{}
	release chan struct{}
	draft   entity.Draft
}

func (d *slowDrafts) Save(ctx context.Context, draft *entity.Draft) error { return nil }

func (d *slowDrafts) Delete(ctx context.Context, sessionID string) error { return nil }

func (d *slowDrafts) Get(ctx context.Context, sessionID string) (*entity.Draft, error) {
	close(d.entered)
	<-d.release
	out := d.draft
	return &out, nil
}

func TestManager_SelectWaitsForRestore(t *testing.T) {
	drafts := &slowDrafts{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		draft: entity.Draft{
			SessionID: "s1",
			Filename:  "old.pdf",
			Record:    []byte(`{"filename":"old.pdf","x":"stale"}`),
			Status:    constants.DraftStatusEditing,
		},
	}
	m := NewManager(newMock(t), discard(), WithDrafts(drafts))
	ctx := context.Background()

	first := make(chan *Workspace, 1)
	go func() { first <- m.Get(ctx, "s1") }()
	<-drafts.entered

	selected := make(chan error, 1)
	go func() {
		_, err := m.Get(ctx, "s1").Select(ctx, "a.pdf")
		selected <- err
	}()

	select {
	case <-selected:
		t.Fatal("select finished before the draft was restored")
	case <-time.After(20 * time.Millisecond):
	}

	close(drafts.release)
	require.NoError(t, <-selected)

	w := <-first
	state := w.Snapshot()
	assert.Equal(t, "a.pdf", state.Filename)
	_, hasStale := state.Record.Get("x")
	assert.False(t, hasStale)
}
