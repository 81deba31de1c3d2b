package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-desk/constants"
	"github.com/joseph-ayodele/invoice-desk/internal/common"
	"github.com/joseph-ayodele/invoice-desk/internal/entity"
)

// UploadRepository remembers which file contents were already sent for extraction.
type UploadRepository interface {
	GetByHash(ctx context.Context, hash string) (*entity.Upload, error)
	Record(ctx context.Context, upload *entity.Upload) error
	List(ctx context.Context, limit int) ([]*entity.Upload, error)
}

type uploadRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewUploadRepository(db *DB, logger *slog.Logger) UploadRepository {
	return &uploadRepo{
		db:     db,
		logger: logger,
	}
}

var uploadColumns = []string{"id", "content_hash", "filename", "source_path", "size_bytes", "status", "error", "uploaded_at"}

func (r *uploadRepo) GetByHash(ctx context.Context, hash string) (*entity.Upload, error) {
	b := r.db.builder()
	query, args := b.Select(uploadColumns...).
		From(b.Table("uploads")).
		Where(entsql.EQ("content_hash", hash)).
		Query()

	u, err := scanUpload(r.db.SQL.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundError("no upload with hash " + hash)
	}
	if err != nil {
		r.logger.Error("failed to get upload by hash", "content_hash", hash, "error", err)
		return nil, common.WrapError(errors.Join(common.ErrDatabase, err), "get upload")
	}
	return u, nil
}

// Record stores the outcome of an upload; a later upload of the same content
// overwrites the earlier outcome.
func (r *uploadRepo) Record(ctx context.Context, u *entity.Upload) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.UploadedAt.IsZero() {
		u.UploadedAt = time.Now().UTC()
	}

	query, args := r.db.builder().Insert("uploads").
		Columns(uploadColumns...).
		Values(u.ID.String(), u.ContentHash, u.Filename, u.SourcePath, u.SizeBytes, string(u.Status), u.Error, u.UploadedAt.UnixMilli()).
		OnConflict(
			entsql.ConflictColumns("content_hash"),
			entsql.ResolveWith(func(s *entsql.UpdateSet) {
				s.SetExcluded("filename")
				s.SetExcluded("source_path")
				s.SetExcluded("status")
				s.SetExcluded("error")
				s.SetExcluded("uploaded_at")
			}),
		).
		Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to record upload", "filename", u.Filename, "content_hash", u.ContentHash, "error", err)
		return common.WrapError(errors.Join(common.ErrDatabase, err), "record upload")
	}
	return nil
}

// List returns the most recent uploads first.
func (r *uploadRepo) List(ctx context.Context, limit int) ([]*entity.Upload, error) {
	b := r.db.builder()
	sel := b.Select(uploadColumns...).
		From(b.Table("uploads")).
		OrderBy(entsql.Desc("uploaded_at"))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	query, args := sel.Query()

	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list uploads", "error", err)
		return nil, common.WrapError(errors.Join(common.ErrDatabase, err), "list uploads")
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close upload rows", "error", err)
		}
	}(rows)

	var out []*entity.Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, common.WrapError(errors.Join(common.ErrDatabase, err), "scan upload")
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row rowScanner) (*entity.Upload, error) {
	var (
		u          entity.Upload
		id, status string
		uploadedAt int64
	)
	if err := row.Scan(&id, &u.ContentHash, &u.Filename, &u.SourcePath, &u.SizeBytes, &status, &u.Error, &uploadedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	u.ID = parsed
	u.Status = constants.UploadStatus(status)
	u.UploadedAt = time.UnixMilli(uploadedAt).UTC()
	return &u, nil
}
