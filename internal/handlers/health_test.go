package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_ServeHTTP(t *testing.T) {
	ok := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		checks     []Check
		wantStatus int
		wantBody   string
		wantIssues int
	}{
		{
			name:       "healthy",
			checks:     []Check{{Name: "graph_store", Pinger: ok, Critical: true}, {Name: "vector_store", Pinger: ok}},
			wantStatus: http.StatusOK,
			wantBody:   "healthy",
		},
		{
			name:       "optional dependency down",
			checks:     []Check{{Name: "graph_store", Pinger: ok, Critical: true}, {Name: "vector_store", Pinger: down}},
			wantStatus: http.StatusOK,
			wantBody:   "degraded",
			wantIssues: 1,
		},
		{
			name:       "critical dependency down",
			checks:     []Check{{Name: "graph_store", Pinger: down, Critical: true}, {Name: "vector_store", Pinger: down}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "unhealthy",
			wantIssues: 2,
		},
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantBody:   "healthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checks...)
			h.now = func() time.Time { return time.Date(2025, 11, 14, 3, 0, 0, 0, time.UTC) }

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ai/health", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			resp := decodeBody[HealthResponse](t, w)
			if resp.Status != tt.wantBody {
				t.Errorf("Status = %q, want %q", resp.Status, tt.wantBody)
			}
			if len(resp.Issues) != tt.wantIssues {
				t.Errorf("len(Issues) = %d, want %d", len(resp.Issues), tt.wantIssues)
			}
			if resp.Timestamp != "2025-11-14T03:00:00Z" {
				t.Errorf("Timestamp = %q", resp.Timestamp)
			}
			if len(resp.Checks) != len(tt.checks) {
				t.Errorf("len(Checks) = %d, want %d", len(resp.Checks), len(tt.checks))
			}
		})
	}
}
