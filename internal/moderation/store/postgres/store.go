package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"docverify/internal/moderation"
	id "docverify/pkg/domain"
	"docverify/pkg/platform/sentinel"
)

// Schema creates the moderation_records table. submission_id is the idempotency key.
const Schema = `
CREATE TABLE IF NOT EXISTS moderation_records (
	id            UUID PRIMARY KEY,
	submission_id UUID NOT NULL UNIQUE,
	user_id       UUID NOT NULL,
	front_ref     TEXT NOT NULL,
	back_ref      TEXT NOT NULL,
	selfie_ref    TEXT NOT NULL,
	status        TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS moderation_records_user_id_idx ON moderation_records (user_id, created_at);
`

// Store implements moderation.Store on Postgres.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema applies Schema. Safe to call repeatedly.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply moderation schema: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, record moderation.Record) error {
	query := `
		INSERT INTO moderation_records (
			id, submission_id, user_id, front_ref, back_ref, selfie_ref, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (submission_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(record.ID),
		uuid.UUID(record.SubmissionID),
		uuid.UUID(record.UserID),
		record.FrontRef,
		record.BackRef,
		record.SelfieRef,
		string(record.Status),
		record.CreatedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("insert moderation record: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert moderation record: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

const selectColumns = `id, submission_id, user_id, front_ref, back_ref, selfie_ref, status, created_at`

func (s *Store) FindBySubmission(ctx context.Context, submissionID id.SubmissionID) (*moderation.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM moderation_records WHERE submission_id = $1`,
		uuid.UUID(submissionID),
	)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("find moderation record: %w", err))
	}
	return &record, nil
}

func (s *Store) ListByUser(ctx context.Context, userID id.UserID) ([]moderation.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM moderation_records WHERE user_id = $1 ORDER BY created_at ASC`,
		uuid.UUID(userID),
	)
	if err != nil {
		return nil, classify(fmt.Errorf("list moderation records: %w", err))
	}
	defer rows.Close()

	var records []moderation.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan moderation record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moderation records: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (moderation.Record, error) {
	var (
		r                            moderation.Record
		recordID, submissionID, user uuid.UUID
		status                       string
	)
	if err := row.Scan(&recordID, &submissionID, &user, &r.FrontRef, &r.BackRef, &r.SelfieRef, &status, &r.CreatedAt); err != nil {
		return moderation.Record{}, err
	}
	r.ID = id.RecordID(recordID)
	r.SubmissionID = id.SubmissionID(submissionID)
	r.UserID = id.UserID(user)
	r.Status = moderation.Status(status)
	return r, nil
}

// classify marks connection-level failures as transient. Constraint and syntax errors
// are permanent.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57", "40":
			return errors.Join(err, sentinel.ErrUnavailable)
		default:
			return err
		}
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return errors.Join(err, sentinel.ErrUnavailable)
}
