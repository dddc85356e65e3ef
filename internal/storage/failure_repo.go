package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_failure_store.go -package=mocks knowledge-graph-service/internal/storage FailureStore

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a failure id does not exist.
var ErrNotFound = errors.New("failure not found")

// FailureStore records ingestion events that could not be processed.
type FailureStore interface {
	Record(ctx context.Context, f *Failure) error
	List(ctx context.Context, limit int, includeReplayed bool) ([]Failure, error)
	Get(ctx context.Context, id int64) (*Failure, error)
	MarkReplayed(ctx context.Context, id int64) error
}

// FailureRepo is the SQLite FailureStore.
type FailureRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewFailureRepo creates a new FailureRepo.
func NewFailureRepo(db *sql.DB) *FailureRepo {
	return &FailureRepo{db: db, now: time.Now}
}

const failureColumns = "id, message_id, event_type, note_id, user_id, body, attempts, last_error, failed_at, replayed_at"

// Record inserts f and sets its ID and FailedAt.
func (r *FailureRepo) Record(ctx context.Context, f *Failure) error {
	if f.FailedAt.IsZero() {
		f.FailedAt = r.now().UTC()
	}
	if f.Body == nil {
		f.Body = []byte{}
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO ingest_failures (message_id, event_type, note_id, user_id, body, attempts, last_error, failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.MessageID, f.EventType, f.NoteID, f.UserID, f.Body, f.Attempts, f.LastError, f.FailedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	f.ID = id
	return nil
}

// List returns the newest failures first. Replayed failures are skipped
// unless includeReplayed is set.
func (r *FailureRepo) List(ctx context.Context, limit int, includeReplayed bool) ([]Failure, error) {
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT " + failureColumns + " FROM ingest_failures"
	if !includeReplayed {
		query += " WHERE replayed_at IS NULL"
	}
	query += " ORDER BY failed_at DESC, id DESC LIMIT ?"

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	failures := []Failure{}
	for rows.Next() {
		f, err := scanFailure(rows)
		if err != nil {
			return nil, err
		}
		failures = append(failures, *f)
	}
	return failures, rows.Err()
}

// Get returns ErrNotFound for an unknown id.
func (r *FailureRepo) Get(ctx context.Context, id int64) (*Failure, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+failureColumns+" FROM ingest_failures WHERE id = ?", id)
	f, err := scanFailure(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// MarkReplayed stamps the failure as republished.
func (r *FailureRepo) MarkReplayed(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE ingest_failures SET replayed_at = ? WHERE id = ?",
		r.now().UTC(), id,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFailure(s scanner) (*Failure, error) {
	var (
		f        Failure
		replayed sql.NullTime
	)
	err := s.Scan(&f.ID, &f.MessageID, &f.EventType, &f.NoteID, &f.UserID, &f.Body,
		&f.Attempts, &f.LastError, &f.FailedAt, &replayed)
	if err != nil {
		return nil, err
	}
	if replayed.Valid {
		t := replayed.Time
		f.ReplayedAt = &t
	}
	return &f, nil
}
