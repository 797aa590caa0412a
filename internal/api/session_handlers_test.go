package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/telehealth-scheduling/internal/booking"
)

func seedSessionLedger(repo *memRepo, status booking.SessionStatus) (*booking.TelehealthSession, *booking.Appointment) {
	appt := seedLedger(repo, uuid.New(), testNow.Add(2*time.Hour), 60, booking.StatusConfirmed)
	sess := &booking.TelehealthSession{
		ID:            uuid.New(),
		AppointmentID: appt.ID,
		Status:        status,
		JoinToken:     uuid.NewString(),
	}
	repo.sessions[sess.ID] = sess
	return sess, appt
}

func TestSessionStartJoinEndFlow(t *testing.T) {
	repo := newMemRepo()
	sess, _ := seedSessionLedger(repo, booking.SessionScheduled)
	router := newTestRouter(repo)

	base := "/telehealth-sessions/" + sess.ID.String()

	// Subject enters the waiting room first.
	rec := doRequest(t, router, http.MethodPost, base+"/join", JoinSessionRequest{Role: "subject"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "waiting_room", resp.Status)
	require.NotNil(t, resp.SubjectJoinedAt)
	assert.Nil(t, resp.ProviderJoinedAt)

	// Provider joins too; still waiting_room, both timestamps recorded.
	rec = doRequest(t, router, http.MethodPost, base+"/join", JoinSessionRequest{Role: "provider"})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.Equal(t, "waiting_room", resp.Status)
	require.NotNil(t, resp.ProviderJoinedAt)
	require.NotNil(t, resp.SubjectJoinedAt)

	rec = doRequest(t, router, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.Equal(t, "in_session", resp.Status)
	require.NotNil(t, resp.StartedAt)

	rec = doRequest(t, router, http.MethodPost, base+"/end", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.Equal(t, "completed", resp.Status)
	require.NotNil(t, resp.EndedAt)

	// Completed is terminal.
	rec = doRequest(t, router, http.MethodPost, base+"/join", JoinSessionRequest{Role: "subject"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessionEndBeforeStart(t *testing.T) {
	repo := newMemRepo()
	sess, _ := seedSessionLedger(repo, booking.SessionWaitingRoom)
	router := newTestRouter(repo)

	rec := doRequest(t, router, http.MethodPost, "/telehealth-sessions/"+sess.ID.String()+"/end", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	var errResp ErrorResponse
	decodeBody(t, rec, &errResp)
	assert.Equal(t, "session_not_started", errResp.Error)
}

func TestSessionCancelAndTechnicalIssues(t *testing.T) {
	repo := newMemRepo()
	sess, _ := seedSessionLedger(repo, booking.SessionScheduled)
	router := newTestRouter(repo)

	rec := doRequest(t, router, http.MethodPost, "/telehealth-sessions/"+sess.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "cancelled", resp.Status)

	// Cancelled is terminal; flagging now fails.
	rec = doRequest(t, router, http.MethodPost, "/telehealth-sessions/"+sess.ID.String()+"/technical-issues", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	other, _ := seedSessionLedger(repo, booking.SessionInSession)
	rec = doRequest(t, router, http.MethodPost, "/telehealth-sessions/"+other.ID.String()+"/technical-issues", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.Equal(t, "technical_issues", resp.Status)
}

func TestSessionJoinValidation(t *testing.T) {
	repo := newMemRepo()
	sess, _ := seedSessionLedger(repo, booking.SessionScheduled)
	router := newTestRouter(repo)

	rec := doRequest(t, router, http.MethodPost, "/telehealth-sessions/"+sess.ID.String()+"/join", JoinSessionRequest{Role: "observer"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	decodeBody(t, rec, &errResp)
	assert.Equal(t, "invalid_role", errResp.Error)

	rec = doRequest(t, router, http.MethodPost, "/telehealth-sessions/not-a-uuid/join", JoinSessionRequest{Role: "subject"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSession(t *testing.T) {
	repo := newMemRepo()
	sess, appt := seedSessionLedger(repo, booking.SessionScheduled)
	router := newTestRouter(repo)

	rec := doRequest(t, router, http.MethodGet, "/telehealth-sessions/"+sess.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, sess.ID, resp.ID)
	assert.Equal(t, appt.ID, resp.AppointmentID)

	rec = doRequest(t, router, http.MethodGet, "/telehealth-sessions/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
