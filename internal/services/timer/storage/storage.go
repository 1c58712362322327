// Package storage defines the persistence contracts for the timer engine.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/soundcheck-app/soundcheck/internal/services/timer/domain"
)

var (
	// ErrNotFound indicates a requested record is missing or TTL-expired.
	ErrNotFound = errors.New("record not found")
	// ErrMalformedRecord indicates a stored record failed to decode.
	// Callers treat it like ErrNotFound; it never crashes the poller chain.
	ErrMalformedRecord = errors.New("record malformed")
)

// SessionStore persists timer session records keyed by session id.
//
// Writes are whole-record replaces: concurrent writers to the same key
// never interleave field-by-field, the last writer wins at record
// granularity. Every put refreshes the record's TTL. A revision counter
// is incremented on each put so a compare-and-set upgrade needs no schema
// change, but no write is rejected today: a pause racing an in-flight
// completion can still be overridden one check-interval late.
type SessionStore interface {
	PutSession(ctx context.Context, session domain.Session, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	// DeleteExpiredSessions removes records whose TTL elapsed before now
	// and reports how many were swept.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// TimerDefinition is a timer as configured by the external CRUD layer,
// read-only from the engine's perspective.
type TimerDefinition struct {
	ID              string
	BandID          string
	BandName        string
	Name            string
	DurationMinutes int
	Order           int
	Active          bool
}

// TimerDirectory exposes the externally managed timer definitions.
type TimerDirectory interface {
	GetTimer(ctx context.Context, timerID string) (TimerDefinition, error)
	ListTimers(ctx context.Context) ([]TimerDefinition, error)
}
