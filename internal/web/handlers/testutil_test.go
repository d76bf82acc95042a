package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/video"
)

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// jsonRequest creates a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// multipartRequest creates a multipart request with form fields and one file
func multipartRequest(t *testing.T, path string, fields map[string]string, fileField, fileName string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// pngBytes encodes a blank image of the given width. The width selects the fake match result.
func pngBytes(t *testing.T, width int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, 4))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// rosterBuilder knows every roster entry.
type rosterBuilder struct{}

func (rosterBuilder) Build(_ context.Context, roster []facematch.RosterEntry) (*facematch.Registry, error) {
	faces := make([]facematch.KnownFace, len(roster))
	for i, r := range roster {
		faces[i] = facematch.KnownFace{StudentID: r.StudentID, Embedding: facematch.Embedding{float32(r.StudentID)}}
	}
	return facematch.NewRegistry(faces), nil
}

// widthMatcher recognizes the student whose ID equals the frame width.
type widthMatcher struct{}

func (widthMatcher) Match(_ context.Context, frame image.Image, reg *facematch.Registry) (facematch.RecognitionResult, error) {
	id := int64(frame.Bounds().Dx())
	for _, known := range reg.StudentIDs() {
		if known == id {
			return facematch.RecognitionResult{
				RecognizedStudentIDs: []int64{id},
				FaceBoxes:            []facematch.BBox{{Top: 1, Right: 3, Bottom: 3, Left: 1}},
				PerFaceMatched:       []bool{true},
				TotalFacesDetected:   1,
			}, nil
		}
	}
	return facematch.RecognitionResult{
		RecognizedStudentIDs: []int64{},
		FaceBoxes:            []facematch.BBox{},
		PerFaceMatched:       []bool{},
	}, nil
}

// stubSampler returns a preset result.
type stubSampler struct {
	mu   sync.Mutex
	ids  []int64
	err  error
	path string
	n    int
}

func (s *stubSampler) SampleAndMatch(_ context.Context, path string, interval int, _ *facematch.Registry) (facematch.StudentSet, video.SampleStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
	s.n = interval
	if s.err != nil {
		return nil, video.SampleStats{}, s.err
	}
	set := make(facematch.StudentSet)
	set.Add(s.ids...)
	return set, video.SampleStats{FramesRead: 60, FramesSampled: 2}, nil
}

// testEnv is a class with two enrolled students and one active bout.
type testEnv struct {
	store    *mock.MockStore
	manager  *attendance.Manager
	sampler  *stubSampler
	class    *database.Class
	students []*database.Student
	bout     *database.Bout
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := mock.NewMockStore()
	env := &testEnv{store: store, sampler: &stubSampler{}}

	var err error
	env.class, err = store.CreateClass(ctx, "Judo")
	if err != nil {
		t.Fatalf("create class: %v", err)
	}
	for _, name := range []string{"Ana Souza", "Bruno Lima"} {
		s, err := store.CreateStudent(ctx, name, "")
		if err != nil {
			t.Fatalf("create student: %v", err)
		}
		if _, err := store.Enroll(ctx, s.ID, env.class.ID); err != nil {
			t.Fatalf("enroll: %v", err)
		}
		env.students = append(env.students, s)
	}
	env.bout, err = store.CreateBout(ctx, env.class.ID, time.Now())
	if err != nil {
		t.Fatalf("create bout: %v", err)
	}

	env.manager = attendance.NewManager(attendance.ManagerDeps{
		Bouts:   store,
		Roster:  store,
		Builder: rosterBuilder{},
		Matcher: widthMatcher{},
		Sampler: env.sampler,
		Ledger:  attendance.NewLedger(store),
		Hub:     attendance.NewHub(),
	})
	return env
}
