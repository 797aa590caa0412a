package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-scheduling/internal/booking"
)

type CreateBookingRequest struct {
	ProviderID      string `json:"provider_id"`
	SubjectID       string `json:"subject_id"`
	StartAt         string `json:"start_at"` // RFC3339
	DurationMinutes int    `json:"duration_minutes"`
	Title           string `json:"title"`
	Notes           string `json:"notes"`
	Telehealth      bool   `json:"telehealth"`
}

type TransitionRequest struct {
	TargetStatus string `json:"target_status"`
}

type JoinSessionRequest struct {
	Role string `json:"role"` // subject or provider
}

type AvailableSlotsResponse struct {
	ProviderID uuid.UUID `json:"provider_id"`
	Date       string    `json:"date"`
	Slots      []string  `json:"slots"`
}

type AppointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	ProviderID      uuid.UUID `json:"provider_id"`
	SubjectID       uuid.UUID `json:"subject_id"`
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	Title           string    `json:"title,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type SessionResponse struct {
	ID               uuid.UUID  `json:"id"`
	AppointmentID    uuid.UUID  `json:"appointment_id"`
	Status           string     `json:"status"`
	JoinToken        string     `json:"join_token"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	SubjectJoinedAt  *time.Time `json:"subject_joined_at,omitempty"`
	ProviderJoinedAt *time.Time `json:"provider_joined_at,omitempty"`
}

type BookingResponse struct {
	AppointmentResponse
	Session *SessionResponse `json:"session,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type ConflictWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type ConflictResponse struct {
	Error          string         `json:"error"`
	Details        string         `json:"details,omitempty"`
	ConflictWindow ConflictWindow `json:"conflict_window"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		ProviderID:      a.ProviderID,
		SubjectID:       a.SubjectID,
		StartAt:         a.StartAt.UTC(),
		EndAt:           a.EndAt().UTC(),
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Title:           a.Title,
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func toSessionResponse(s *booking.TelehealthSession) *SessionResponse {
	if s == nil {
		return nil
	}
	return &SessionResponse{
		ID:               s.ID,
		AppointmentID:    s.AppointmentID,
		Status:           string(s.Status),
		JoinToken:        s.JoinToken,
		StartedAt:        s.StartedAt,
		EndedAt:          s.EndedAt,
		SubjectJoinedAt:  s.SubjectJoinedAt,
		ProviderJoinedAt: s.ProviderJoinedAt,
	}
}
