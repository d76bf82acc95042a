package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// BoutsHandler handles bout lifecycle, attendance and batch video endpoints
type BoutsHandler struct {
	bouts   database.BoutStore
	manager *attendance.Manager
}

// NewBoutsHandler creates a new bouts handler
func NewBoutsHandler(bouts database.BoutStore, manager *attendance.Manager) *BoutsHandler {
	return &BoutsHandler{bouts: bouts, manager: manager}
}

type attendanceResponse struct {
	ID           int64  `json:"id"`
	StudentID    int64  `json:"student_id"`
	StudentName  string `json:"student_name"`
	BoutID       int64  `json:"bout_id"`
	RegisterTime string `json:"register_time"`
	Presence     bool   `json:"presence"`
}

type processVideoResponse struct {
	Message            string  `json:"message"`
	RecognizedStudents []int64 `json:"recognized_students"`
	TotalRecognized    int     `json:"total_recognized"`
	ProcessingTime     string  `json:"processing_time"`
}

// respondBoutError maps bout lookup errors to 404/400 and anything else to 500.
func respondBoutError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, attendance.ErrBoutNotFound), errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "Bout not found")
	case errors.Is(err, attendance.ErrSessionEnded), errors.Is(err, database.ErrBoutEnded):
		respondError(w, http.StatusBadRequest, "Bout has already ended")
	default:
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

// Get returns one bout.
func (h *BoutsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	bout, err := h.bouts.GetBout(r.Context(), id)
	if err != nil {
		respondBoutError(w, err, "failed to get bout")
		return
	}
	respondJSON(w, http.StatusOK, toBoutResponse(*bout))
}

// End closes a bout. Live streams of the bout are rejected from then on.
func (h *BoutsHandler) End(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.manager.End(r.Context(), id); err != nil {
		if !errors.Is(err, attendance.ErrBoutNotFound) && !errors.Is(err, attendance.ErrSessionEnded) {
			log.Printf("Failed to end bout %d: %v", id, err)
		}
		respondBoutError(w, err, "failed to end bout")
		return
	}
	respondMessage(w, http.StatusOK, "Bout ended successfully")
}

// Attendance lists the attendance records of a bout.
func (h *BoutsHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.bouts.GetBout(r.Context(), id); err != nil {
		respondBoutError(w, err, "failed to get bout")
		return
	}
	records, err := h.manager.Ledger().ListByBout(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}
	result := make([]attendanceResponse, len(records))
	for i, rec := range records {
		result[i] = attendanceResponse{
			ID:           rec.ID,
			StudentID:    rec.StudentID,
			StudentName:  rec.StudentName,
			BoutID:       rec.BoutID,
			RegisterTime: rec.RegisterTime.Format(timeLayout),
			Presence:     rec.Presence,
		}
	}
	respondJSON(w, http.StatusOK, result)
}

// saveUploadedVideo copies the multipart file to a temporary file and returns its path.
func saveUploadedVideo(r io.Reader, filename string) (string, error) {
	out, err := os.CreateTemp("", "bout-video-*"+filepath.Ext(filepath.Base(filename)))
	if err != nil {
		return "", errors.New("failed to create temp file")
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", errors.New("failed to save file")
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", errors.New("failed to save file")
	}
	return out.Name(), nil
}

// ProcessVideo records attendance from an uploaded video. The multipart form
// carries the file in "video_file" and an optional "sample_interval".
func (h *BoutsHandler) ProcessVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxVideoUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	interval := 0
	if v := r.FormValue("sample_interval"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "sample_interval must be a positive integer")
			return
		}
		interval = n
	}

	file, header, err := r.FormFile("video_file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "video_file is required")
		return
	}
	defer file.Close()

	path, err := saveUploadedVideo(file, header.Filename)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.Remove(path)

	log.Printf("bout %d: processing uploaded video %q (%d bytes)", id, sanitizeForLog(header.Filename), header.Size)

	result, err := h.manager.ProcessVideo(r.Context(), id, path, interval)
	if err != nil {
		if !errors.Is(err, attendance.ErrBoutNotFound) && !errors.Is(err, attendance.ErrSessionEnded) {
			log.Printf("bout %d: video processing failed: %v", id, err)
		}
		respondBoutError(w, err, fmt.Sprintf("Failed to process video for bout %d", id))
		return
	}

	recognized := result.RecognizedStudents
	if recognized == nil {
		recognized = []int64{}
	}
	respondJSON(w, http.StatusOK, processVideoResponse{
		Message:            "Video processed successfully",
		RecognizedStudents: recognized,
		TotalRecognized:    result.TotalRecognized,
		ProcessingTime:     result.ProcessedAt.Format(time.RFC3339Nano),
	})
}
