package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/soundcheck-app/soundcheck/internal/services/timer/domain"
	"github.com/soundcheck-app/soundcheck/internal/services/timer/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "timer.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func testSession(t *testing.T) domain.Session {
	t.Helper()
	session, err := domain.Begin("timer-1", "band-1", 10*time.Minute, time.Now())
	if err != nil {
		t.Fatalf("begin session: %v", err)
	}
	return session
}

func TestPutGetSessionRoundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	session := testSession(t)

	if err := store.PutSession(ctx, session, time.Hour); err != nil {
		t.Fatalf("put session: %v", err)
	}

	loaded, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if loaded.ID != session.ID {
		t.Fatalf("id = %q, want %q", loaded.ID, session.ID)
	}
	if loaded.Status != domain.StatusRunning {
		t.Fatalf("status = %q, want running", loaded.Status)
	}
	if !loaded.EndTime.Equal(session.EndTime) {
		t.Fatalf("end time = %v, want %v", loaded.EndTime, session.EndTime)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetSession(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetSessionExpired(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	session := testSession(t)

	base := time.Now()
	store.SetClock(func() time.Time { return base })
	if err := store.PutSession(ctx, session, time.Hour); err != nil {
		t.Fatalf("put session: %v", err)
	}

	// Advance past the TTL; the row must read as absent.
	store.SetClock(func() time.Time { return base.Add(2 * time.Hour) })
	_, err := store.GetSession(ctx, session.ID)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after TTL", err)
	}
}

func TestPutSessionReplacesWholeRecord(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	session := testSession(t)

	if err := store.PutSession(ctx, session, time.Hour); err != nil {
		t.Fatalf("put session: %v", err)
	}

	paused, err := domain.Pause(session, time.Now())
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := store.PutSession(ctx, paused, time.Hour); err != nil {
		t.Fatalf("replace session: %v", err)
	}

	loaded, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if loaded.Status != domain.StatusPaused {
		t.Fatalf("status = %q, want paused after replace", loaded.Status)
	}
	if loaded.PausedAt == nil {
		t.Fatal("expected paused_at to survive the replace")
	}

	var revision int64
	if err := store.sqlDB.QueryRow("SELECT revision FROM sessions WHERE session_id = ?", session.ID).Scan(&revision); err != nil {
		t.Fatalf("read revision: %v", err)
	}
	if revision != 2 {
		t.Fatalf("revision = %d, want 2 after one replace", revision)
	}
}

func TestPutSessionRefreshesTTL(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	session := testSession(t)

	base := time.Now()
	store.SetClock(func() time.Time { return base })
	if err := store.PutSession(ctx, session, time.Hour); err != nil {
		t.Fatalf("put session: %v", err)
	}

	// Rewrite 50 minutes later; the record must live until minute 110.
	store.SetClock(func() time.Time { return base.Add(50 * time.Minute) })
	if err := store.PutSession(ctx, session, time.Hour); err != nil {
		t.Fatalf("refresh session: %v", err)
	}

	store.SetClock(func() time.Time { return base.Add(100 * time.Minute) })
	if _, err := store.GetSession(ctx, session.ID); err != nil {
		t.Fatalf("get after refresh: %v", err)
	}
}

func TestPutSessionRejectsBadInput(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.PutSession(ctx, domain.Session{}, time.Hour); err == nil {
		t.Fatal("expected error for empty session id")
	}
	session := testSession(t)
	if err := store.PutSession(ctx, session, 0); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}
}

func TestGetSessionMalformedRecord(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.sqlDB.Exec(
		"INSERT INTO sessions (session_id, record_json, revision, expires_at) VALUES (?, ?, 1, ?)",
		"broken", "{not json", toMillis(time.Now().Add(time.Hour)),
	)
	if err != nil {
		t.Fatalf("insert malformed row: %v", err)
	}

	_, err = store.GetSession(ctx, "broken")
	if !errors.Is(err, storage.ErrMalformedRecord) {
		t.Fatalf("err = %v, want ErrMalformedRecord", err)
	}
}

func TestDeleteExpiredSessions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Now()
	store.SetClock(func() time.Time { return base })

	keep := testSession(t)
	sweep := testSession(t)
	if err := store.PutSession(ctx, keep, 2*time.Hour); err != nil {
		t.Fatalf("put keep: %v", err)
	}
	if err := store.PutSession(ctx, sweep, time.Minute); err != nil {
		t.Fatalf("put sweep: %v", err)
	}

	swept, err := store.DeleteExpiredSessions(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}
	if _, err := store.GetSession(ctx, keep.ID); err != nil {
		t.Fatalf("kept session must survive: %v", err)
	}
}

func seedDirectory(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	if err := store.SeedBand(ctx, "band-1", "The Loud Ones", ""); err != nil {
		t.Fatalf("seed band: %v", err)
	}
	if err := store.SeedBand(ctx, "band-2", "Quiet Storm", "acoustic set"); err != nil {
		t.Fatalf("seed band: %v", err)
	}
	timers := []storage.TimerDefinition{
		{ID: "timer-1", BandID: "band-1", Name: "Full run", DurationMinutes: 30, Order: 1, Active: true},
		{ID: "timer-2", BandID: "band-1", Name: "Encore", DurationMinutes: 10, Order: 2, Active: true},
		{ID: "timer-3", BandID: "band-2", Name: "Retired slot", DurationMinutes: 15, Order: 1, Active: false},
	}
	for _, def := range timers {
		if err := store.SeedTimer(ctx, def); err != nil {
			t.Fatalf("seed timer %s: %v", def.ID, err)
		}
	}
}

func TestGetTimer(t *testing.T) {
	store := openTestStore(t)
	seedDirectory(t, store)

	def, err := store.GetTimer(context.Background(), "timer-1")
	if err != nil {
		t.Fatalf("get timer: %v", err)
	}
	if def.BandName != "The Loud Ones" {
		t.Fatalf("band name = %q, want joined band name", def.BandName)
	}
	if def.DurationMinutes != 30 {
		t.Fatalf("duration = %d, want 30", def.DurationMinutes)
	}
	if !def.Active {
		t.Fatal("expected timer to be active")
	}
}

func TestGetTimerNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetTimer(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListTimersSkipsInactive(t *testing.T) {
	store := openTestStore(t)
	seedDirectory(t, store)

	defs, err := store.ListTimers(context.Background())
	if err != nil {
		t.Fatalf("list timers: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("len = %d, want 2 active timers", len(defs))
	}
	for _, def := range defs {
		if !def.Active {
			t.Fatalf("inactive timer %s in listing", def.ID)
		}
	}
	if defs[0].ID != "timer-1" || defs[1].ID != "timer-2" {
		t.Fatalf("order = %s,%s, want timer-1,timer-2", defs[0].ID, defs[1].ID)
	}
}
