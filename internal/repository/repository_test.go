package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-desk/constants"
	"github.com/joseph-ayodele/invoice-desk/internal/common"
	"github.com/joseph-ayodele/invoice-desk/internal/entity"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := Open(context.Background(), Config{DSN: ":memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(logger) })
	return db
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsPostgres(t *testing.T) {
	assert.True(t, IsPostgres("postgres://u:p@localhost:5432/invoices"))
	assert.True(t, IsPostgres("postgresql://localhost/invoices"))
	assert.False(t, IsPostgres("invoicedesk.db"))
	assert.False(t, IsPostgres(":memory:"))
}

func TestDrafts(t *testing.T) {
	db := openTestDB(t)
	repo := NewDraftRepository(db, discard())
	ctx := context.Background()

	_, err := repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	first := &entity.Draft{SessionID: "s1", Filename: "a.pdf", Record: []byte(`{"filename":"a.pdf"}`)}
	require.NoError(t, repo.Save(ctx, first))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "a.pdf", got.Filename)
	assert.Equal(t, constants.DraftStatusEditing, got.Status)
	assert.JSONEq(t, `{"filename":"a.pdf"}`, string(got.Record))

	replacement := &entity.Draft{SessionID: "s1", Filename: "b.pdf", Record: []byte(`{"filename":"b.pdf"}`), Status: constants.DraftStatusSubmitted}
	require.NoError(t, repo.Save(ctx, replacement))

	got, err = repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID, "id is kept across saves")
	assert.Equal(t, "b.pdf", got.Filename)
	assert.Equal(t, constants.DraftStatusSubmitted, got.Status)
	assert.WithinDuration(t, first.CreatedAt, got.CreatedAt, time.Second)

	require.NoError(t, repo.Delete(ctx, "s1"))
	_, err = repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUploads(t *testing.T) {
	db := openTestDB(t)
	repo := NewUploadRepository(db, discard())
	ctx := context.Background()

	_, err := repo.GetByHash(ctx, "abc")
	assert.ErrorIs(t, err, common.ErrNotFound)

	older := &entity.Upload{ContentHash: "abc", Filename: "a.pdf", SourcePath: "/in/a.pdf", SizeBytes: 10,
		Status: constants.UploadStatusFailed, Error: "timeout", UploadedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, repo.Record(ctx, older))
	newer := &entity.Upload{ContentHash: "def", Filename: "b.pdf", SourcePath: "/in/b.pdf", SizeBytes: 20,
		Status: constants.UploadStatusExtracted}
	require.NoError(t, repo.Record(ctx, newer))

	retry := &entity.Upload{ContentHash: "abc", Filename: "a.pdf", SourcePath: "/in/a.pdf", SizeBytes: 10,
		Status: constants.UploadStatusExtracted, UploadedAt: time.Now().Add(time.Minute)}
	require.NoError(t, repo.Record(ctx, retry))

	got, err := repo.GetByHash(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, older.ID, got.ID)
	assert.Equal(t, constants.UploadStatusExtracted, got.Status)
	assert.Empty(t, got.Error)

	list, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a.pdf", list[0].Filename)
	assert.Equal(t, "b.pdf", list[1].Filename)

	limited, err := repo.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.HealthCheck(context.Background(), time.Second, discard()))
}
