package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/telehealth-scheduling/internal/booking"
)

func availableSlotsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(r.URL.Query().Get("provider_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}

		day, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted YYYY-MM-DD")
			return
		}

		slots, err := svc.ProposeSlots(r.Context(), providerID, day)
		if err != nil {
			writeInternalError(w, r, err)
			return
		}

		starts := make([]string, 0, len(slots))
		for _, s := range slots {
			starts = append(starts, s.Start.UTC().Format("15:04"))
		}

		writeJSON(w, http.StatusOK, AvailableSlotsResponse{
			ProviderID: providerID,
			Date:       day.Format("2006-01-02"),
			Slots:      starts,
		})
	}
}

func createBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}

		subjectID, err := uuid.Parse(req.SubjectID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_subject_id", "subject_id must be a valid UUID")
			return
		}

		startAt, err := time.Parse(time.RFC3339, req.StartAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_at", "start_at must be an RFC3339 timestamp")
			return
		}

		res, err := svc.CommitBooking(r.Context(), booking.CommitBookingInput{
			ProviderID:      providerID,
			SubjectID:       subjectID,
			StartAt:         startAt,
			DurationMinutes: req.DurationMinutes,
			Title:           req.Title,
			Notes:           req.Notes,
			Telehealth:      req.Telehealth,
		})
		if err != nil {
			handleBookingError(w, r, err)
			return
		}

		resp := BookingResponse{
			AppointmentResponse: toAppointmentResponse(res.Appointment),
			Session:             toSessionResponse(res.Session),
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func listAppointmentsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(r.URL.Query().Get("provider_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}

		day, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted YYYY-MM-DD")
			return
		}

		appointments, err := svc.ListDay(r.Context(), providerID, day)
		if err != nil {
			writeInternalError(w, r, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appointments))
		for i := range appointments {
			resp = append(resp, toAppointmentResponse(&appointments[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			if errors.Is(err, booking.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
				return
			}
			writeInternalError(w, r, err)
			return
		}

		resp := BookingResponse{AppointmentResponse: toAppointmentResponse(appt)}
		if sess, err := svc.SessionForAppointment(r.Context(), id); err == nil {
			resp.Session = toSessionResponse(sess)
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func transitionAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		target, err := booking.ParseAppointmentStatus(req.TargetStatus)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_target_status", err.Error())
			return
		}

		appt, err := svc.TransitionAppointment(r.Context(), id, target)
		if err != nil {
			handleTransitionError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func handleBookingError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *booking.ConflictError
	switch {
	case errors.As(err, &conflict):
		writeConflict(w, err.Error(), conflict.Window)
	case errors.Is(err, booking.ErrProviderBusy):
		writeError(w, http.StatusConflict, "provider_busy", err.Error())
	case errors.Is(err, booking.ErrPastStartTime):
		writeError(w, http.StatusBadRequest, "past_start_time", err.Error())
	case errors.Is(err, booking.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, "invalid_duration", err.Error())
	default:
		writeInternalError(w, r, err)
	}
}

func handleTransitionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	default:
		writeInternalError(w, r, err)
	}
}

// writeInternalError distinguishes transient storage failures, which the
// caller may retry wholesale, from everything else. The underlying error
// goes to the request log only; the response body stays generic.
func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Error().
		Err(err).
		Str("request_id", GetRequestID(r.Context())).
		Msg("request failed")

	var storage *booking.StorageError
	if errors.As(err, &storage) {
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "storage temporarily unavailable, retry the request")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
}
