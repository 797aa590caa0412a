package api

import (
	"encoding/json"
	"net/http"

	"github.com/hackgods/telehealth-scheduling/internal/booking"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeConflict names the colliding window so the caller can offer a
// different slot without another proposal round trip.
func writeConflict(w http.ResponseWriter, details string, window booking.TimeSlot) {
	writeJSON(w, http.StatusConflict, ConflictResponse{
		Error:   "slot_conflict",
		Details: details,
		ConflictWindow: ConflictWindow{
			Start: window.Start.UTC(),
			End:   window.End.UTC(),
		},
	})
}
