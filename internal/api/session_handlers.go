package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/telehealth-scheduling/internal/booking"
)

// sessionActionHandler adapts the session service methods that share the
// (ctx, id) -> session signature: get, start, end, cancel, technical issues.
func sessionActionHandler(action func(ctx context.Context, id uuid.UUID) (*booking.TelehealthSession, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_session_id", "id must be a valid UUID")
			return
		}

		sess, err := action(r.Context(), id)
		if err != nil {
			handleSessionError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toSessionResponse(sess))
	}
}

func joinSessionHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_session_id", "id must be a valid UUID")
			return
		}

		var req JoinSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var isSubject bool
		switch req.Role {
		case "subject":
			isSubject = true
		case "provider":
			isSubject = false
		default:
			writeError(w, http.StatusBadRequest, "invalid_role", "role must be subject or provider")
			return
		}

		sess, err := svc.JoinSession(r.Context(), id, isSubject)
		if err != nil {
			handleSessionError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toSessionResponse(sess))
	}
}

func handleSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, booking.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, booking.ErrSessionNotStarted):
		writeError(w, http.StatusConflict, "session_not_started", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	default:
		writeInternalError(w, r, err)
	}
}
