package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func get(t *testing.T, r http.Handler, path string, out any) int {
	t.Helper()
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), out))
	return rr.Code
}

func TestReadiness(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("all checks up", func(t *testing.T) {
		h := New("test", logger)
		h.RegisterCheck("postgres", func(context.Context) error { return nil })
		h.RegisterCheck("redis", func(context.Context) error { return nil })

		var res ReadinessResponse
		status := get(t, newRouter(h), "/health/ready", &res)

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "ready", res.Status)
		assert.Equal(t, map[string]string{"postgres": "up", "redis": "up"}, res.Checks)
	})

	t.Run("failing check is reported without details", func(t *testing.T) {
		h := New("test", logger)
		h.RegisterCheck("postgres", func(context.Context) error { return nil })
		h.RegisterCheck("redis", func(context.Context) error { return errors.New("dial tcp 10.0.0.5:6379: refused") })

		rr := httptest.NewRecorder()
		newRouter(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.NotContains(t, rr.Body.String(), "10.0.0.5")
		var res ReadinessResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
		assert.Equal(t, "not_ready", res.Status)
		assert.Equal(t, "down", res.Checks["redis"])
		assert.Equal(t, "up", res.Checks["postgres"])
	})

	t.Run("slow check times out", func(t *testing.T) {
		h := New("test", logger)
		h.checkTimeout = 20 * time.Millisecond
		h.RegisterCheck("slow", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})

		var res ReadinessResponse
		status := get(t, newRouter(h), "/health/ready", &res)

		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, "down", res.Checks["slow"])
	})
}

func TestLivenessAndStatus(t *testing.T) {
	h := New("staging", nil)
	h.RegisterCheck("redis", func(context.Context) error { return nil })
	r := newRouter(h)

	var live LivenessResponse
	assert.Equal(t, http.StatusOK, get(t, r, "/health/live", &live))
	assert.Equal(t, "alive", live.Status)

	for _, path := range []string{"/health", "/api/v1/health"} {
		var status StatusResponse
		assert.Equal(t, http.StatusOK, get(t, r, path, &status))
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, "staging", status.Environment)
		assert.Equal(t, []string{"redis"}, status.Checks)
	}
}
