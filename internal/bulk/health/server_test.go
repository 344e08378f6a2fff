package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jatinvaidya/auth0-bulk-delete/internal/bulk/runner"
	"github.com/jatinvaidya/auth0-bulk-delete/internal/core/domain"
)

type stubSource struct {
	p runner.Progress
}

func (s stubSource) Progress() runner.Progress { return s.p }

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		p    runner.Progress
		want Status
	}{
		{"idle", runner.Progress{}, StatusIdle},
		{"running", runner.Progress{Running: true, Succeeded: 10, Failed: 1}, StatusRunning},
		{"just started", runner.Progress{Running: true}, StatusRunning},
		{"mostly failing", runner.Progress{Running: true, Succeeded: 2, Failed: 9}, StatusDegraded},
		{"first failure", runner.Progress{Running: true, Failed: 1}, StatusRunning},
		{"few settled", runner.Progress{Running: true, Succeeded: 1, Failed: 5}, StatusRunning},
		{"already deleted ids", runner.Progress{Running: true, Succeeded: 2, Failed: 20, NotFound: 20}, StatusRunning},
		{"failing beyond not found", runner.Progress{Running: true, Succeeded: 3, Failed: 12, NotFound: 8}, StatusDegraded},
		{"finished with failures", runner.Progress{Succeeded: 0, Failed: 50}, StatusIdle},
	}
	for _, tt := range tests {
		if got := status(tt.p); got != tt.want {
			t.Errorf("%s: status = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestServer_Endpoints(t *testing.T) {
	src := stubSource{p: runner.Progress{
		Entity:    domain.EntityUsers,
		Running:   true,
		Attempted: 3,
		Succeeded: 2,
	}}
	s := NewServer(src, 0)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/health code = %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != string(StatusRunning) {
		t.Errorf("status = %q", body["status"])
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))
	var detailed map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&detailed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detailed["entity"] != "users" || detailed["succeeded"] != float64(2) {
		t.Errorf("detailed = %v", detailed)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "bulkdelete_") {
		t.Errorf("/metrics code = %d", rec.Code)
	}
}
