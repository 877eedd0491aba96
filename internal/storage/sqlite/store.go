// Package sqlite is the SQLite implementation of the storage interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/psalmlabs/selah/internal/storage"
)

// Store is a SQLite implementation of storage.Store.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath and initializes the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS envelopes (
			trace_id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS prayer_drafts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			visibility TEXT NOT NULL,
			action_id TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_envelopes_user ON envelopes(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_envelopes_created ON envelopes(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_drafts_user ON prayer_drafts(user_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) SaveEnvelope(ctx context.Context, rec *storage.EnvelopeRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO envelopes (trace_id, request_id, user_id, created_at, payload)
	          VALUES (?, ?, ?, ?, ?)
	          ON CONFLICT(trace_id) DO UPDATE SET
	              request_id = excluded.request_id,
	              payload = excluded.payload`

	_, err := s.db.ExecContext(ctx, query,
		rec.TraceID, rec.RequestID, rec.UserID, rec.CreatedAt, string(rec.Payload))
	if err != nil {
		return fmt.Errorf("failed to save envelope: %w", err)
	}

	return nil
}

func (s *Store) GetEnvelope(ctx context.Context, traceID string) (*storage.EnvelopeRecord, error) {
	query := `SELECT trace_id, request_id, user_id, created_at, payload
	          FROM envelopes WHERE trace_id = ?`

	var rec storage.EnvelopeRecord
	var payload string

	err := s.db.QueryRowContext(ctx, query, traceID).Scan(
		&rec.TraceID, &rec.RequestID, &rec.UserID, &rec.CreatedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope: %w", err)
	}

	rec.Payload = []byte(payload)
	return &rec, nil
}

func (s *Store) ListEnvelopes(ctx context.Context, userID string, limit int) ([]*storage.EnvelopeRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT trace_id, request_id, user_id, created_at, payload
	          FROM envelopes WHERE user_id = ?
	          ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list envelopes: %w", err)
	}
	defer rows.Close()

	var records []*storage.EnvelopeRecord
	for rows.Next() {
		var rec storage.EnvelopeRecord
		var payload string
		if err := rows.Scan(&rec.TraceID, &rec.RequestID, &rec.UserID, &rec.CreatedAt, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan envelope: %w", err)
		}
		rec.Payload = []byte(payload)
		records = append(records, &rec)
	}

	return records, rows.Err()
}

func (s *Store) PruneEnvelopes(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM envelopes WHERE created_at < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune envelopes: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) SaveDraft(ctx context.Context, draft *storage.PrayerDraft) error {
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now().UTC()
	}
	if draft.Visibility == "" {
		draft.Visibility = "private"
	}

	query := `INSERT INTO prayer_drafts (id, user_id, title, body, visibility, action_id, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		draft.ID, draft.UserID, draft.Title, draft.Body, draft.Visibility, draft.ActionID, draft.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}

	return nil
}

func (s *Store) GetDraft(ctx context.Context, id string) (*storage.PrayerDraft, error) {
	query := `SELECT id, user_id, title, body, visibility, action_id, created_at
	          FROM prayer_drafts WHERE id = ?`

	var draft storage.PrayerDraft
	var actionID sql.NullString

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&draft.ID, &draft.UserID, &draft.Title, &draft.Body,
		&draft.Visibility, &actionID, &draft.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}

	draft.ActionID = actionID.String
	return &draft, nil
}

func (s *Store) ListDrafts(ctx context.Context, userID string, limit int) ([]*storage.PrayerDraft, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, user_id, title, body, visibility, action_id, created_at
	          FROM prayer_drafts WHERE user_id = ?
	          ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*storage.PrayerDraft
	for rows.Next() {
		var draft storage.PrayerDraft
		var actionID sql.NullString
		if err := rows.Scan(&draft.ID, &draft.UserID, &draft.Title, &draft.Body,
			&draft.Visibility, &actionID, &draft.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		draft.ActionID = actionID.String
		drafts = append(drafts, &draft)
	}

	return drafts, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
