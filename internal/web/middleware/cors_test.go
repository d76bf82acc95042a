package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsOriginAllowed(t *testing.T) {
	allowed := map[string]struct{}{"https://dojo.example.com": {}}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", false},
		{"http://localhost", true},
		{"http://localhost:5173", true},
		{"https://localhost:8443", true},
		{"https://dojo.example.com", true},
		{"https://evil.example.com", false},
	}

	for _, tc := range tests {
		t.Run(tc.origin, func(t *testing.T) {
			if got := isOriginAllowed(tc.origin, allowed); got != tc.want {
				t.Errorf("isOriginAllowed(%q) = %v, want %v", tc.origin, got, tc.want)
			}
		})
	}
}

func TestParseAllowedOrigins(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,,")

	origins := parseAllowedOrigins()

	if len(origins) != 2 {
		t.Fatalf("expected 2 origins, got %v", origins)
	}
	if _, ok := origins["https://b.example.com"]; !ok {
		t.Error("expected trimmed origin to be present")
	}
}

func TestCORS_Headers(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", "")
	called := false
	handler := CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest("GET", "/api/v1/classes", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if !called {
		t.Error("expected next handler to be called")
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unexpected allow-origin header for unknown origin")
	}

	called = false
	req = httptest.NewRequest("OPTIONS", "/api/v1/classes", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if called {
		t.Error("preflight must not reach the next handler")
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Error("expected allow-origin header for localhost")
	}
}

func TestWebSocketOrigin(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://dojo.example.com")
	check := WebSocketOrigin()

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://dojo.example.com", true},
		{"http://localhost:3000", true},
		{"https://evil.example.com", false},
	}

	for _, tc := range tests {
		t.Run(tc.origin, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/ws/attendance/1", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if got := check(req); got != tc.want {
				t.Errorf("check(%q) = %v, want %v", tc.origin, got, tc.want)
			}
		})
	}
}
