package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// ClassesHandler handles class, enrollment and bout creation endpoints
type ClassesHandler struct {
	classes database.ClassStore
	roster  database.RosterReader
	bouts   database.BoutStore
	now     func() time.Time
}

// NewClassesHandler creates a new classes handler
func NewClassesHandler(classes database.ClassStore, roster database.RosterReader, bouts database.BoutStore) *ClassesHandler {
	return &ClassesHandler{classes: classes, roster: roster, bouts: bouts, now: time.Now}
}

type classResponse struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

type boutResponse struct {
	ID        int64   `json:"id"`
	ClassID   int64   `json:"class_id"`
	StartTime string  `json:"start_time"`
	EndTime   *string `json:"end_time"`
}

type enrollmentResponse struct {
	ID        int64 `json:"id"`
	StudentID int64 `json:"student_id"`
	ClassID   int64 `json:"class_id"`
}

func toClassResponse(c database.Class) classResponse {
	return classResponse{ID: c.ID, Description: c.Description, CreatedAt: c.CreatedAt.Format(timeLayout)}
}

func toBoutResponse(b database.Bout) boutResponse {
	return boutResponse{
		ID:        b.ID,
		ClassID:   b.ClassID,
		StartTime: b.StartTime.Format(timeLayout),
		EndTime:   formatTime(b.EndTime),
	}
}

type createClassRequest struct {
	Description string `json:"description"`
}

// Create adds a class.
func (h *ClassesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		respondError(w, http.StatusBadRequest, "description is required")
		return
	}

	class, err := h.classes.CreateClass(r.Context(), req.Description)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create class")
		return
	}
	respondJSON(w, http.StatusCreated, toClassResponse(*class))
}

// List returns all classes.
func (h *ClassesHandler) List(w http.ResponseWriter, r *http.Request) {
	classes, err := h.classes.ListClasses(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list classes")
		return
	}
	result := make([]classResponse, len(classes))
	for i, c := range classes {
		result[i] = toClassResponse(c)
	}
	respondJSON(w, http.StatusOK, result)
}

// Get returns one class.
func (h *ClassesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	class, err := h.classes.GetClass(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Class not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get class")
		return
	}
	respondJSON(w, http.StatusOK, toClassResponse(*class))
}

// Students returns the students enrolled in a class.
func (h *ClassesHandler) Students(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	students, err := h.roster.GetEnrolledStudents(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get students")
		return
	}
	if len(students) == 0 {
		respondError(w, http.StatusNotFound, "No students found for this class")
		return
	}
	result := make([]studentResponse, len(students))
	for i, s := range students {
		result[i] = toStudentResponse(s)
	}
	respondJSON(w, http.StatusOK, result)
}

// CreateBout starts a new bout of a class at the current time.
func (h *ClassesHandler) CreateBout(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	bout, err := h.bouts.CreateBout(r.Context(), id, h.now())
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Class not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create bout")
		return
	}
	respondJSON(w, http.StatusCreated, toBoutResponse(*bout))
}

// ListBouts returns the bouts of a class.
func (h *ClassesHandler) ListBouts(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.classes.GetClass(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Class not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get class")
		return
	}
	bouts, err := h.bouts.ListBoutsByClass(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list bouts")
		return
	}
	result := make([]boutResponse, len(bouts))
	for i, b := range bouts {
		result[i] = toBoutResponse(b)
	}
	respondJSON(w, http.StatusOK, result)
}

type enrollRequest struct {
	StudentID int64 `json:"student_id"`
	ClassID   int64 `json:"class_id"`
}

// Enroll adds a student to a class.
func (h *ClassesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.StudentID <= 0 || req.ClassID <= 0 {
		respondError(w, http.StatusBadRequest, "student_id and class_id are required")
		return
	}

	enrollment, err := h.classes.Enroll(r.Context(), req.StudentID, req.ClassID)
	switch {
	case errors.Is(err, database.ErrAlreadyEnrolled):
		respondError(w, http.StatusBadRequest, "Student already enrolled")
		return
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "Student or class not found")
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "failed to enroll student")
		return
	}

	respondJSON(w, http.StatusCreated, enrollmentResponse{
		ID:        enrollment.ID,
		StudentID: enrollment.StudentID,
		ClassID:   enrollment.ClassID,
	})
}
