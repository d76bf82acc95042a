package handlers

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// StudentsHandler handles student endpoints
type StudentsHandler struct {
	store    database.StudentStore
	imageDir string
}

// NewStudentsHandler creates a new students handler. Reference images are stored in imageDir.
func NewStudentsHandler(store database.StudentStore, imageDir string) *StudentsHandler {
	return &StudentsHandler{store: store, imageDir: imageDir}
}

type studentResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ImagePath string `json:"image_path"`
	CreatedAt string `json:"created_at"`
}

func toStudentResponse(s database.Student) studentResponse {
	return studentResponse{
		ID:        s.ID,
		Name:      s.Name,
		ImagePath: s.ImagePath,
		CreatedAt: s.CreatedAt.Format(timeLayout),
	}
}

// imageFileName derives the stored file name from a student name and a
// per-upload tag: spaces become underscores. Students sharing a name get
// distinct files.
func imageFileName(name, tag string) (string, error) {
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", errors.New("invalid student name")
	}
	return strings.ReplaceAll(name, " ", "_") + "_" + tag + ".jpg", nil
}

func newImageTag() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// saveReferenceImage decodes the upload and stores it as JPEG.
func saveReferenceImage(r io.Reader, path string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	img, err := facematch.DecodeImage(data)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	return writeJPEG(img, path)
}

func writeJPEG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create image directory: %w", err)
	}
	out, err := os.Create(path) //nolint:gosec // file name derived via imageFileName
	if err != nil {
		return fmt.Errorf("create image file: %w", err)
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: constants.StudentImageJPEGQuality}); err != nil {
		out.Close()
		os.Remove(path)
		return fmt.Errorf("encode image: %w", err)
	}
	return out.Close()
}

// Create registers a student from a multipart form with "name" and "image" fields.
func (h *StudentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	fileName, err := imageFileName(name, newImageTag())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}
	defer file.Close()

	path := filepath.Join(h.imageDir, fileName)
	if err := saveReferenceImage(file, path); err != nil {
		log.Printf("Failed to store image for student %q: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusBadRequest, "invalid image")
		return
	}

	student, err := h.store.CreateStudent(r.Context(), name, path)
	if err != nil {
		os.Remove(path)
		log.Printf("Failed to create student %q: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "failed to create student")
		return
	}

	respondJSON(w, http.StatusCreated, toStudentResponse(*student))
}

// List returns all students.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	students, err := h.store.ListStudents(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list students")
		return
	}
	result := make([]studentResponse, len(students))
	for i, s := range students {
		result[i] = toStudentResponse(s)
	}
	respondJSON(w, http.StatusOK, result)
}

// Image serves the stored reference image of a student.
func (h *StudentsHandler) Image(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	student, err := h.store.GetStudent(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Student not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get student")
		return
	}
	if student.ImagePath == "" {
		respondError(w, http.StatusNotFound, "Student has no image")
		return
	}
	if _, err := os.Stat(student.ImagePath); err != nil {
		respondError(w, http.StatusNotFound, "Student has no image")
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, student.ImagePath)
}

// Delete removes a student and its reference image.
func (h *StudentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	student, err := h.store.GetStudent(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Student not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get student")
		return
	}

	if err := h.store.DeleteStudent(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Student not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete student")
		return
	}

	if student.ImagePath != "" {
		if err := os.Remove(student.ImagePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("warning: failed to remove image of student %d: %v", id, err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
