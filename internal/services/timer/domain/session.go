// Package domain defines the timer session record and the pure state
// machine that governs its transitions. Functions here never touch
// storage; they take the current time explicitly so callers and tests
// control the clock.
package domain

import (
	"time"

	apperrors "github.com/soundcheck-app/soundcheck/internal/errors"
)

// Status is the lifecycle state of a timer session.
type Status string

const (
	// StatusRunning means the session deadline is live.
	StatusRunning Status = "running"
	// StatusPaused means the countdown is frozen until resumed.
	StatusPaused Status = "paused"
	// StatusCompleted is terminal; only store TTL expiry removes the record.
	StatusCompleted Status = "completed"
)

// Session is one running, paused, or completed instance of a timer.
//
// StartTime and EndTime define the deadline; EndTime minus now is the
// authoritative remaining duration. RemainingSeconds is advisory only,
// recomputed on every read, and never consulted for transition decisions.
type Session struct {
	ID               string     `json:"session_id"`
	TimerID          string     `json:"timer_id"`
	BandID           string     `json:"band_id"`
	Status           Status     `json:"status"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          time.Time  `json:"end_time"`
	PausedAt         *time.Time `json:"paused_at,omitempty"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// Begin creates a running session with the deadline total from now.
func Begin(timerID, bandID string, total time.Duration, now time.Time) (Session, error) {
	if total <= 0 {
		return Session{}, apperrors.Newf(apperrors.CodeTimerDurationInvalid, "timer duration must be positive, got %v", total)
	}
	id, err := NewSessionID()
	if err != nil {
		return Session{}, err
	}
	now = now.UTC()
	session := Session{
		ID:        id,
		TimerID:   timerID,
		BandID:    bandID,
		Status:    StatusRunning,
		StartTime: now,
		EndTime:   now.Add(total),
		CreatedAt: now,
	}
	session.RemainingSeconds = remainingSeconds(session, now)
	return session, nil
}

// Pause freezes a running session at now.
func Pause(s Session, now time.Time) (Session, error) {
	if s.Status != StatusRunning {
		return s, apperrors.Newf(apperrors.CodeInvalidTransition, "cannot pause session in status %q", s.Status)
	}
	now = now.UTC()
	s.Status = StatusPaused
	s.PausedAt = &now
	s.RemainingSeconds = remainingSeconds(s, now)
	return s, nil
}

// Resume restarts a paused session at now, shifting the deadline forward
// by exactly the elapsed pause duration so no work time is lost or gained.
func Resume(s Session, now time.Time) (Session, error) {
	if s.Status != StatusPaused || s.PausedAt == nil {
		return s, apperrors.Newf(apperrors.CodeInvalidTransition, "cannot resume session in status %q", s.Status)
	}
	now = now.UTC()
	pausedFor := now.Sub(*s.PausedAt)
	if pausedFor < 0 {
		pausedFor = 0
	}
	s.Status = StatusRunning
	s.EndTime = s.EndTime.Add(pausedFor)
	s.PausedAt = nil
	s.RemainingSeconds = remainingSeconds(s, now)
	return s, nil
}

// Complete finalizes a running session. Completing an already completed
// session is a no-op; completing a paused session is invalid.
func Complete(s Session, now time.Time) (Session, error) {
	if s.Status == StatusCompleted {
		return s, nil
	}
	if s.Status != StatusRunning {
		return s, apperrors.Newf(apperrors.CodeInvalidTransition, "cannot complete session in status %q", s.Status)
	}
	now = now.UTC()
	s.Status = StatusCompleted
	s.CompletedAt = &now
	s.RemainingSeconds = 0
	return s, nil
}

// Remaining reports the authoritative remaining duration at now: the time
// until the deadline while running, the value frozen at pause time while
// paused, and zero once completed.
func Remaining(s Session, now time.Time) time.Duration {
	switch s.Status {
	case StatusCompleted:
		return 0
	case StatusPaused:
		if s.PausedAt == nil {
			return 0
		}
		return maxDuration(0, s.EndTime.Sub(*s.PausedAt))
	default:
		return maxDuration(0, s.EndTime.Sub(now.UTC()))
	}
}

// WithRemaining returns a copy of s with the advisory RemainingSeconds
// field recomputed at now.
func WithRemaining(s Session, now time.Time) Session {
	s.RemainingSeconds = remainingSeconds(s, now)
	return s
}

// Expired reports whether a running session's deadline has passed.
func Expired(s Session, now time.Time) bool {
	return s.Status == StatusRunning && !now.UTC().Before(s.EndTime)
}

func remainingSeconds(s Session, now time.Time) int64 {
	return int64(Remaining(s, now) / time.Second)
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
