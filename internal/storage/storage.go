// Package storage defines the persistence interfaces for debug envelopes and
// prayer drafts.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// EnvelopeRecord is one archived debug envelope. Payload holds the full
// envelope JSON; the indexed columns exist only for lookup.
type EnvelopeRecord struct {
	TraceID   string
	RequestID string
	UserID    string
	CreatedAt time.Time
	Payload   []byte
}

// PrayerDraft is a user-confirmed prayer draft.
type PrayerDraft struct {
	ID         string
	UserID     string
	Title      string
	Body       string
	Visibility string
	ActionID   string
	CreatedAt  time.Time
}

// EnvelopeStore archives debug envelopes for later inspection.
type EnvelopeStore interface {
	SaveEnvelope(ctx context.Context, rec *EnvelopeRecord) error
	GetEnvelope(ctx context.Context, traceID string) (*EnvelopeRecord, error)
	ListEnvelopes(ctx context.Context, userID string, limit int) ([]*EnvelopeRecord, error)
	PruneEnvelopes(ctx context.Context, olderThan time.Time) (int64, error)
}

// DraftStore persists prayer drafts created from accepted suggestions.
type DraftStore interface {
	SaveDraft(ctx context.Context, draft *PrayerDraft) error
	GetDraft(ctx context.Context, id string) (*PrayerDraft, error)
	ListDrafts(ctx context.Context, userID string, limit int) ([]*PrayerDraft, error)
}

// Store combines the persistence interfaces behind one connection.
type Store interface {
	EnvelopeStore
	DraftStore
	Close() error
}
