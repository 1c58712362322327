package app

import (
	"context"
	"errors"
	"log"
	"time"

	apperrors "github.com/soundcheck-app/soundcheck/internal/errors"
	"github.com/soundcheck-app/soundcheck/internal/services/timer/domain"
	"github.com/soundcheck-app/soundcheck/internal/services/timer/storage"
)

// EventType names a realtime event delivered to band subscribers.
const (
	EventTimerUpdate    = "timer_update"
	EventTimerCompleted = "timer_completed"
)

// SessionStatus is the wire payload for status responses and realtime events.
type SessionStatus struct {
	SessionID        string `json:"session_id"`
	TimerID          string `json:"timer_id"`
	BandID           string `json:"band_id"`
	Status           string `json:"status"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

// Event is one realtime fan-out message for a band.
type Event struct {
	Type string        `json:"type"`
	Data SessionStatus `json:"data"`
}

// EventPublisher delivers events to the subscribers of a band.
// Delivery is at-most-once, best-effort.
type EventPublisher interface {
	Publish(bandID string, event Event)
}

// Rearmer schedules a future completion check for a session id.
type Rearmer interface {
	Schedule(sessionID string, delay time.Duration)
}

// ServiceConfig controls session TTL and poller cadence.
type ServiceConfig struct {
	// SessionTTL is the store expiry window. It must exceed the longest
	// timer duration plus pause slack; StartTimer rejects timers that
	// do not fit.
	SessionTTL time.Duration
	// PollInterval is the completion check cadence.
	PollInterval time.Duration
	// InitialDelay is the delay before the first check after start/resume.
	InitialDelay time.Duration
}

const (
	defaultSessionTTL   = time.Hour
	defaultPollInterval = 10 * time.Second
	defaultInitialDelay = 5 * time.Second
)

func (c ServiceConfig) normalized() ServiceConfig {
	if c.SessionTTL <= 0 {
		c.SessionTTL = defaultSessionTTL
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = defaultInitialDelay
	}
	return c
}

// Service implements the timer control operations and the completion
// check executed by the scheduler. The store is the single source of
// truth; the service holds no per-session state.
type Service struct {
	store     storage.SessionStore
	directory storage.TimerDirectory
	publisher EventPublisher
	rearm     Rearmer
	cfg       ServiceConfig
	now       func() time.Time
}

// NewService wires the control operations. The scheduler is attached
// separately with SetRearmer because the scheduler's job function is the
// service's own CheckCompletion.
func NewService(store storage.SessionStore, directory storage.TimerDirectory, publisher EventPublisher, cfg ServiceConfig) *Service {
	return &Service{
		store:     store,
		directory: directory,
		publisher: publisher,
		cfg:       cfg.normalized(),
		now:       time.Now,
	}
}

// SetRearmer attaches the scheduler used to arm completion checks.
func (s *Service) SetRearmer(rearm Rearmer) {
	s.rearm = rearm
}

// SetClock overrides the service clock for tests.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// StartResult reports a freshly started session.
type StartResult struct {
	Session         domain.Session
	BandName        string
	DurationMinutes int
}

// StartTimer resolves the timer definition, creates a running session,
// persists it, and arms the completion poller. Concurrent starts for the
// same timer produce independent sessions.
func (s *Service) StartTimer(ctx context.Context, timerID string) (StartResult, error) {
	def, err := s.directory.GetTimer(ctx, timerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return StartResult{}, apperrors.Newf(apperrors.CodeTimerNotFound, "timer %q not found", timerID)
		}
		return StartResult{}, apperrors.Wrap(apperrors.CodeBackendUnavailable, "load timer definition", err)
	}
	if !def.Active {
		return StartResult{}, apperrors.Newf(apperrors.CodeTimerInactive, "timer %q is inactive", timerID)
	}

	total := time.Duration(def.DurationMinutes) * time.Minute
	if total >= s.cfg.SessionTTL {
		return StartResult{}, apperrors.Newf(apperrors.CodeTimerDurationInvalid,
			"timer duration %v does not fit in the session window %v", total, s.cfg.SessionTTL)
	}

	session, err := domain.Begin(def.ID, def.BandID, total, s.now())
	if err != nil {
		return StartResult{}, err
	}
	if err := s.store.PutSession(ctx, session, s.cfg.SessionTTL); err != nil {
		return StartResult{}, apperrors.Wrap(apperrors.CodeBackendUnavailable, "persist session", err)
	}
	if s.rearm != nil {
		s.rearm.Schedule(session.ID, s.cfg.InitialDelay)
	}
	return StartResult{Session: session, BandName: def.BandName, DurationMinutes: def.DurationMinutes}, nil
}

// PauseTimer freezes a running session. The in-flight poller check is not
// canceled; its own status check makes it stop on the next wake.
func (s *Service) PauseTimer(ctx context.Context, sessionID string) (domain.Session, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	paused, err := domain.Pause(session, s.now())
	if err != nil {
		return domain.Session{}, err
	}
	if err := s.store.PutSession(ctx, paused, s.cfg.SessionTTL); err != nil {
		return domain.Session{}, apperrors.Wrap(apperrors.CodeBackendUnavailable, "persist session", err)
	}
	return paused, nil
}

// ResumeTimer restarts a paused session and re-arms the poller. Pausing
// stopped the polling chain, so the re-arm is required for the session to
// ever complete in the background.
func (s *Service) ResumeTimer(ctx context.Context, sessionID string) (domain.Session, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	resumed, err := domain.Resume(session, s.now())
	if err != nil {
		return domain.Session{}, err
	}
	if err := s.store.PutSession(ctx, resumed, s.cfg.SessionTTL); err != nil {
		return domain.Session{}, apperrors.Wrap(apperrors.CodeBackendUnavailable, "persist session", err)
	}
	if s.rearm != nil {
		s.rearm.Schedule(resumed.ID, s.cfg.InitialDelay)
	}
	return resumed, nil
}

// GetStatus loads a session with its remaining time recomputed. A running
// session whose deadline has passed is finalized here opportunistically,
// so callers see Completed even before the background poller runs.
func (s *Service) GetStatus(ctx context.Context, sessionID string) (domain.Session, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}

	now := s.now()
	if domain.Expired(session, now) {
		completed, err := domain.Complete(session, now)
		if err != nil {
			return domain.Session{}, err
		}
		if err := s.store.PutSession(ctx, completed, s.cfg.SessionTTL); err != nil {
			return domain.Session{}, apperrors.Wrap(apperrors.CodeBackendUnavailable, "persist session", err)
		}
		s.publish(EventTimerCompleted, completed)
		return completed, nil
	}

	return domain.WithRemaining(session, now), nil
}

// CheckCompletion is the self-rescheduling poller check. It never returns
// an error: nothing is listening. A missing or malformed record halts the
// chain silently; a paused or completed session halts it; a live session
// is either finalized or re-checked after the poll interval. Transient
// store failures retry on the same cadence, bounded by the record TTL.
func (s *Service) CheckCompletion(ctx context.Context, sessionID string) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrMalformedRecord) {
			return
		}
		log.Printf("completion check %s: load: %v", sessionID, err)
		s.reschedule(sessionID)
		return
	}
	if session.Status != domain.StatusRunning {
		return
	}

	now := s.now()
	if domain.Expired(session, now) {
		completed, err := domain.Complete(session, now)
		if err != nil {
			return
		}
		if err := s.store.PutSession(ctx, completed, s.cfg.SessionTTL); err != nil {
			log.Printf("completion check %s: persist: %v", sessionID, err)
			s.reschedule(sessionID)
			return
		}
		s.publish(EventTimerCompleted, completed)
		return
	}

	refreshed := domain.WithRemaining(session, now)
	if err := s.store.PutSession(ctx, refreshed, s.cfg.SessionTTL); err != nil {
		log.Printf("completion check %s: persist: %v", sessionID, err)
	} else {
		s.publish(EventTimerUpdate, refreshed)
	}
	s.reschedule(sessionID)
}

// ListTimers exposes the read-only timer directory for the boundary.
func (s *Service) ListTimers(ctx context.Context) ([]storage.TimerDefinition, error) {
	defs, err := s.directory.ListTimers(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeBackendUnavailable, "list timers", err)
	}
	return defs, nil
}

func (s *Service) loadSession(ctx context.Context, sessionID string) (domain.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Session{}, apperrors.Newf(apperrors.CodeNotFound, "session %q not found", sessionID)
		}
		if errors.Is(err, storage.ErrMalformedRecord) {
			return domain.Session{}, apperrors.Newf(apperrors.CodeNotFound, "session %q unreadable", sessionID)
		}
		return domain.Session{}, apperrors.Wrap(apperrors.CodeBackendUnavailable, "load session", err)
	}
	return session, nil
}

func (s *Service) reschedule(sessionID string) {
	if s.rearm != nil {
		s.rearm.Schedule(sessionID, s.cfg.PollInterval)
	}
}

func (s *Service) publish(eventType string, session domain.Session) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(session.BandID, Event{
		Type: eventType,
		Data: SessionStatus{
			SessionID:        session.ID,
			TimerID:          session.TimerID,
			BandID:           session.BandID,
			Status:           string(session.Status),
			RemainingSeconds: session.RemainingSeconds,
		},
	})
}
