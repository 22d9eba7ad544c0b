package v1_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	v1 "deepsearch/handler/http/v1"
	"deepsearch/src/fsutil"
)

func healthRouter(t *testing.T, pings v1.ComponentPings) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler := v1.NewHandler(
		&fakeRagService{},
		&fakeAnswerService{},
		newFakeCache(),
		&fakeQueryLogs{},
		fsutil.NewLocalFileStore(),
		nil,
		&fakeEnqueuer{},
		v1.Config{DocumentsDir: t.TempDir(), Pings: pings},
	)

	r := gin.New()
	handler.RegisterRoutes(r)
	return r
}

func TestCheckHealth(t *testing.T) {
	up := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("unreachable") }

	tests := []struct {
		name         string
		pings        v1.ComponentPings
		wantStatus   string
		wantWeaviate v1.ComponentStatus
	}{
		{
			name:         "all components up",
			pings:        v1.ComponentPings{Postgres: up, Valkey: up, Weaviate: up, Ollama: up},
			wantStatus:   "healthy",
			wantWeaviate: v1.StatusUp,
		},
		{
			name:         "one component down",
			pings:        v1.ComponentPings{Postgres: up, Valkey: up, Weaviate: down, Ollama: up},
			wantStatus:   "unhealthy",
			wantWeaviate: v1.StatusDown,
		},
		{
			name:         "missing probe reports down",
			pings:        v1.ComponentPings{Postgres: up, Valkey: up, Ollama: up},
			wantStatus:   "unhealthy",
			wantWeaviate: v1.StatusDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := healthRouter(t, tt.pings)

			req, _ := http.NewRequest(http.MethodGet, "/api/v1/health", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}

			var resp v1.HealthStatus
			decodeJSON(t, w, &resp)
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.Components.Weaviate != tt.wantWeaviate {
				t.Errorf("weaviate = %q, want %q", resp.Components.Weaviate, tt.wantWeaviate)
			}
		})
	}
}
