package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// timeLayout is used for every timestamp in API responses.
const timeLayout = time.RFC3339

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondMessage sends a {"message": ...} response.
func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}

// parseIDParam reads a positive integer URL parameter. On failure it writes a
// 400 response and returns false.
func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// formatTime formats an optional timestamp; nil becomes nil so it serializes as null.
func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timeLayout)
	return &s
}

// HealthChecker reports the state of the face service.
type HealthChecker interface {
	Health(ctx context.Context) (string, error)
}

// HealthHandler handles the health check endpoint
type HealthHandler struct {
	face HealthChecker
}

// NewHealthHandler creates a health handler. face may be nil.
func NewHealthHandler(face HealthChecker) *HealthHandler {
	return &HealthHandler{face: face}
}

// Get reports "ok" when the server is up. The face service state is reported
// alongside but does not change the status code.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	if h.face != nil {
		model, err := h.face.Health(r.Context())
		if err != nil {
			log.Printf("warning: face service health check failed: %v", err)
			resp["face_service"] = "unavailable"
		} else {
			resp["face_service"] = "ok"
			resp["face_model"] = model
		}
	}
	respondJSON(w, http.StatusOK, resp)
}
