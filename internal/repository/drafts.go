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

// DraftRepository stores one draft per workspace session.
type DraftRepository interface {
	Save(ctx context.Context, draft *entity.Draft) error
	Get(ctx context.Context, sessionID string) (*entity.Draft, error)
	Delete(ctx context.Context, sessionID string) error
}

type draftRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewDraftRepository(db *DB, logger *slog.Logger) DraftRepository {
	return &draftRepo{
		db:     db,
		logger: logger,
	}
}

var draftColumns = []string{"session_id", "id", "filename", "record", "status", "created_at", "updated_at"}

// Save inserts the draft or replaces the session's existing one, keeping its id and
// creation time.
func (r *draftRepo) Save(ctx context.Context, d *entity.Draft) error {
	now := time.Now().UTC()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	if d.Status == "" {
		d.Status = constants.DraftStatusEditing
	}

	query, args := r.db.builder().Insert("drafts").
		Columns(draftColumns...).
		Values(d.SessionID, d.ID.String(), d.Filename, string(d.Record), string(d.Status), d.CreatedAt.UnixMilli(), d.UpdatedAt.UnixMilli()).
		OnConflict(
			entsql.ConflictColumns("session_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("filename")
				u.SetExcluded("record")
				u.SetExcluded("status")
				u.SetExcluded("updated_at")
			}),
		).
		Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to save draft", "session_id", d.SessionID, "filename", d.Filename, "error", err)
		return common.WrapError(errors.Join(common.ErrDatabase, err), "save draft")
	}
	return nil
}

func (r *draftRepo) Get(ctx context.Context, sessionID string) (*entity.Draft, error) {
	b := r.db.builder()
	query, args := b.Select(draftColumns...).
		From(b.Table("drafts")).
		Where(entsql.EQ("session_id", sessionID)).
		Query()

	var (
		d                    entity.Draft
		id, record, status   string
		createdAt, updatedAt int64
	)
	err := r.db.SQL.QueryRowContext(ctx, query, args...).
		Scan(&d.SessionID, &id, &d.Filename, &record, &status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundError("no draft for session " + sessionID)
	}
	if err != nil {
		r.logger.Error("failed to get draft", "session_id", sessionID, "error", err)
		return nil, common.WrapError(errors.Join(common.ErrDatabase, err), "get draft")
	}

	d.ID, err = uuid.Parse(id)
	if err != nil {
		r.logger.Warn("draft has malformed id", "session_id", sessionID, "id", id)
	}
	d.Record = []byte(record)
	d.Status = constants.DraftStatus(status)
	d.CreatedAt = time.UnixMilli(createdAt).UTC()
	d.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &d, nil
}

func (r *draftRepo) Delete(ctx context.Context, sessionID string) error {
	query, args := r.db.builder().Delete("drafts").
		Where(entsql.EQ("session_id", sessionID)).
		Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to delete draft", "session_id", sessionID, "error", err)
		return common.WrapError(errors.Join(common.ErrDatabase, err), "delete draft")
	}
	return nil
}
