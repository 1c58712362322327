package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	apperrors "github.com/soundcheck-app/soundcheck/internal/errors"
	"github.com/soundcheck-app/soundcheck/internal/platform/timeouts"
	"github.com/soundcheck-app/soundcheck/internal/services/timer/domain"
	"golang.org/x/net/websocket"
)

const maxDecodeErrorsPerConn = 3

type startRequest struct {
	TimerID string `json:"timer_id"`
}

type startResponse struct {
	Success         bool   `json:"success"`
	SessionID       string `json:"session_id"`
	BandID          string `json:"band_id"`
	BandName        string `json:"band_name"`
	DurationMinutes int    `json:"duration_minutes"`
}

type statusResponse struct {
	Success bool          `json:"success"`
	Session SessionStatus `json:"session"`
}

type timerListing struct {
	TimerID         string `json:"timer_id"`
	BandID          string `json:"band_id"`
	BandName        string `json:"band_name"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
}

type listResponse struct {
	Success bool           `json:"success"`
	Timers  []timerListing `json:"timers"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewHandler creates the control API routes and the per-band websocket
// endpoint. Every control handler carries its own caller-side deadline so
// a degraded store never hangs the caller.
func NewHandler(service *Service, hub *bandHub) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("GET /api/timers", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.ControlRequest)
		defer cancel()

		defs, err := service.ListTimers(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		listings := make([]timerListing, 0, len(defs))
		for _, def := range defs {
			listings = append(listings, timerListing{
				TimerID:         def.ID,
				BandID:          def.BandID,
				BandName:        def.BandName,
				Name:            def.Name,
				DurationMinutes: def.DurationMinutes,
			})
		}
		writeJSON(w, http.StatusOK, listResponse{Success: true, Timers: listings})
	})

	mux.HandleFunc("POST /api/timers/start", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.ControlRequest)
		defer cancel()

		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.TimerID) == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Code: "INVALID_ARGUMENT", Message: "timer_id is required"})
			return
		}

		result, err := service.StartTimer(ctx, strings.TrimSpace(req.TimerID))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, startResponse{
			Success:         true,
			SessionID:       result.Session.ID,
			BandID:          result.Session.BandID,
			BandName:        result.BandName,
			DurationMinutes: result.DurationMinutes,
		})
	})

	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.ControlRequest)
		defer cancel()

		session, err := service.GetStatus(ctx, r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Success: true, Session: statusPayload(session)})
	})

	mux.HandleFunc("POST /api/sessions/{id}/pause", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.ControlRequest)
		defer cancel()

		session, err := service.PauseTimer(ctx, r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Success: true, Session: statusPayload(session)})
	})

	mux.HandleFunc("POST /api/sessions/{id}/resume", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.ControlRequest)
		defer cancel()

		session, err := service.ResumeTimer(ctx, r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Success: true, Session: statusPayload(session)})
	})

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		bandID := ""
		if request := conn.Request(); request != nil {
			bandID = strings.TrimSpace(request.PathValue("band_id"))
		}
		handleWSConn(conn, hub, bandID)
	})

	mux.HandleFunc("GET /ws/bands/{band_id}", func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(r.PathValue("band_id")) == "" {
			http.Error(w, "band id is required", http.StatusBadRequest)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})

	return mux
}

func statusPayload(session domain.Session) SessionStatus {
	return SessionStatus{
		SessionID:        session.ID,
		TimerID:          session.TimerID,
		BandID:           session.BandID,
		Status:           string(session.Status),
		RemainingSeconds: session.RemainingSeconds,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

// writeError answers with a structured failure envelope; no internal
// error ever escapes the boundary as anything but a known code.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	message := "an unexpected error occurred"
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	writeJSON(w, apperrors.HTTPStatus(code), errorResponse{Code: string(code), Message: message})
}

type wsInbound struct {
	Type      string          `json:"type"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

type wsNotice struct {
	Type      string          `json:"type"`
	BandID    string          `json:"band_id,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

func handleWSConn(conn *websocket.Conn, hub *bandHub, bandID string) {
	defer func() {
		_ = conn.Close()
	}()

	peer := newWSPeer(json.NewEncoder(conn))
	room := hub.room(bandID)
	room.join(peer)
	defer hub.leave(room, peer)

	_ = peer.writeFrame(wsNotice{
		Type:    "connection_established",
		BandID:  bandID,
		Message: "subscribed to band " + bandID,
	})

	decoder := json.NewDecoder(conn)
	decodeErrors := 0
	for {
		var frame wsInbound
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = peer.writeFrame(wsNotice{Type: "error", Message: "invalid message format"})
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		switch frame.Type {
		case "ping":
			_ = peer.writeFrame(wsNotice{Type: "pong", Timestamp: frame.Timestamp})
		case "timer_status_request":
			// Not implemented yet; acknowledged so clients do not retry.
			_ = peer.writeFrame(wsNotice{Type: "timer_status_response", Message: "timer status is not available"})
		default:
			_ = peer.writeFrame(wsNotice{Type: "error", Message: "unsupported message type"})
		}
	}
}
