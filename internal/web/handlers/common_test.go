package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRespondJSON_SetsStatusAndContentType(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"OK", http.StatusOK},
		{"Created", http.StatusCreated},
		{"BadRequest", http.StatusBadRequest},
		{"NotFound", http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondJSON(recorder, tc.statusCode, map[string]int{"n": 1})

			assertStatusCode(t, recorder, tc.statusCode)
			assertContentType(t, recorder, "application/json")
		})
	}
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusOK, nil)

	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got '%s'", recorder.Body.String())
	}
}

func TestRespondError_ContainsErrorKey(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondError(recorder, http.StatusNotFound, "Bout not found")

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "Bout not found")
}

func TestRespondMessage(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondMessage(recorder, http.StatusOK, "Bout ended successfully")

	var result map[string]string
	parseJSONResponse(t, recorder, &result)
	if result["message"] != "Bout ended successfully" {
		t.Errorf("expected message, got %v", result)
	}
}

func TestParseIDParam(t *testing.T) {
	tests := []struct {
		value  string
		wantID int64
		wantOK bool
	}{
		{"1", 1, true},
		{"42", 42, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			req := requestWithChiParams(httptest.NewRequest("GET", "/", nil), map[string]string{"id": tc.value})
			recorder := httptest.NewRecorder()

			id, ok := parseIDParam(recorder, req, "id")
			if ok != tc.wantOK || id != tc.wantID {
				t.Errorf("parseIDParam(%q) = %d, %v; want %d, %v", tc.value, id, ok, tc.wantID, tc.wantOK)
			}
			if !ok {
				assertStatusCode(t, recorder, http.StatusBadRequest)
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	if formatTime(nil) != nil {
		t.Error("expected nil for nil time")
	}
	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	got := formatTime(&ts)
	if got == nil || *got != "2024-03-01T09:30:00Z" {
		t.Errorf("formatTime = %v", got)
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("a\nb\rc"); got != "abc" {
		t.Errorf("sanitizeForLog = %q", got)
	}
}

type fakeHealth struct {
	model string
	err   error
}

func (f fakeHealth) Health(context.Context) (string, error) { return f.model, f.err }

func TestHealthHandler_Get(t *testing.T) {
	tests := []struct {
		name        string
		face        HealthChecker
		wantService string
		wantModel   string
	}{
		{"no face service", nil, "", ""},
		{"face service up", fakeHealth{model: "face_recognition"}, "ok", "face_recognition"},
		{"face service down", fakeHealth{err: errors.New("connection refused")}, "unavailable", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewHealthHandler(tc.face)
			recorder := httptest.NewRecorder()

			handler.Get(recorder, httptest.NewRequest("GET", "/api/v1/health", nil))

			assertStatusCode(t, recorder, http.StatusOK)
			var result map[string]string
			if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if result["status"] != "ok" {
				t.Errorf("expected status 'ok', got '%s'", result["status"])
			}
			if result["face_service"] != tc.wantService {
				t.Errorf("face_service = %q, want %q", result["face_service"], tc.wantService)
			}
			if result["face_model"] != tc.wantModel {
				t.Errorf("face_model = %q, want %q", result["face_model"], tc.wantModel)
			}
		})
	}
}
