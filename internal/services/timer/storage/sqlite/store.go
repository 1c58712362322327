// Package sqlite provides SQLite-backed persistence for timer sessions
// and the timer directory.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/soundcheck-app/soundcheck/internal/platform/storage/sqlitemigrate"
	"github.com/soundcheck-app/soundcheck/internal/services/timer/domain"
	"github.com/soundcheck-app/soundcheck/internal/services/timer/storage"
	"github.com/soundcheck-app/soundcheck/internal/services/timer/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for timer engine state.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a timer SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB, now: time.Now}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SetClock overrides the store clock. Tests use it to exercise TTL expiry
// without sleeping.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PutSession replaces the stored record for the session id and refreshes
// its TTL. The write is a whole-record replace; the revision counter is
// bumped on every put.
func (s *Store) PutSession(ctx context.Context, session domain.Session, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("session ttl must be positive, got %v", ttl)
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO sessions (session_id, record_json, revision, expires_at)
VALUES (?, ?, 1, ?)
ON CONFLICT(session_id) DO UPDATE SET
    record_json = excluded.record_json,
    revision = sessions.revision + 1,
    expires_at = excluded.expires_at
`, session.ID, string(payload), toMillis(s.now().Add(ttl)))
	if err != nil {
		return fmt.Errorf("put session %s: %w", session.ID, err)
	}
	return nil
}

// GetSession loads the record for the session id. A missing or TTL-expired
// row returns storage.ErrNotFound; a row that fails to decode returns
// storage.ErrMalformedRecord.
func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Session{}, fmt.Errorf("storage is not configured")
	}

	var payload string
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT record_json FROM sessions
WHERE session_id = ? AND expires_at > ?
`, sessionID, toMillis(s.now())).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session %s: %w", sessionID, err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", storage.ErrMalformedRecord, err)
	}
	if session.ID == "" {
		return domain.Session{}, storage.ErrMalformedRecord
	}
	return session, nil
}

// DeleteExpiredSessions sweeps rows whose TTL elapsed before now.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	swept, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count swept sessions: %w", err)
	}
	return int(swept), nil
}

// GetTimer loads one timer definition with its band name.
func (s *Store) GetTimer(ctx context.Context, timerID string) (storage.TimerDefinition, error) {
	if err := ctx.Err(); err != nil {
		return storage.TimerDefinition{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.TimerDefinition{}, fmt.Errorf("storage is not configured")
	}

	var def storage.TimerDefinition
	var active int
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT t.timer_id, t.band_id, b.name, t.name, t.duration_minutes, t.sort_order, t.is_active
FROM timers t JOIN bands b ON b.band_id = t.band_id
WHERE t.timer_id = ?
`, timerID).Scan(&def.ID, &def.BandID, &def.BandName, &def.Name, &def.DurationMinutes, &def.Order, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.TimerDefinition{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.TimerDefinition{}, fmt.Errorf("get timer %s: %w", timerID, err)
	}
	def.Active = active != 0
	return def, nil
}

// ListTimers returns active timer definitions ordered by band then order.
func (s *Store) ListTimers(ctx context.Context) ([]storage.TimerDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT t.timer_id, t.band_id, b.name, t.name, t.duration_minutes, t.sort_order, t.is_active
FROM timers t JOIN bands b ON b.band_id = t.band_id
WHERE t.is_active = 1
ORDER BY b.name, t.sort_order
`)
	if err != nil {
		return nil, fmt.Errorf("list timers: %w", err)
	}
	defer rows.Close()

	var defs []storage.TimerDefinition
	for rows.Next() {
		var def storage.TimerDefinition
		var active int
		if err := rows.Scan(&def.ID, &def.BandID, &def.BandName, &def.Name, &def.DurationMinutes, &def.Order, &active); err != nil {
			return nil, fmt.Errorf("scan timer row: %w", err)
		}
		def.Active = active != 0
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timer rows: %w", err)
	}
	return defs, nil
}

// SeedBand inserts or updates a band row. The directory is owned by the
// external CRUD layer; this exists for ops seeding and tests.
func (s *Store) SeedBand(ctx context.Context, bandID, name, description string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(bandID) == "" || strings.TrimSpace(name) == "" {
		return fmt.Errorf("band id and name are required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO bands (band_id, name, description, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(band_id) DO UPDATE SET name = excluded.name, description = excluded.description
`, bandID, name, description, toMillis(s.now()))
	if err != nil {
		return fmt.Errorf("seed band %s: %w", bandID, err)
	}
	return nil
}

// SeedTimer inserts or updates a timer row.
func (s *Store) SeedTimer(ctx context.Context, def storage.TimerDefinition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(def.ID) == "" || strings.TrimSpace(def.BandID) == "" {
		return fmt.Errorf("timer id and band id are required")
	}
	if def.DurationMinutes <= 0 {
		return fmt.Errorf("timer duration must be positive, got %d", def.DurationMinutes)
	}

	active := 0
	if def.Active {
		active = 1
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO timers (timer_id, band_id, name, duration_minutes, sort_order, is_active, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(timer_id) DO UPDATE SET
    band_id = excluded.band_id,
    name = excluded.name,
    duration_minutes = excluded.duration_minutes,
    sort_order = excluded.sort_order,
    is_active = excluded.is_active
`, def.ID, def.BandID, def.Name, def.DurationMinutes, def.Order, active, toMillis(s.now()))
	if err != nil {
		return fmt.Errorf("seed timer %s: %w", def.ID, err)
	}
	return nil
}
