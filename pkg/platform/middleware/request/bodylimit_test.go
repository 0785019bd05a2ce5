package request

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"talentgate/pkg/validation"
)

func TestBodyLimit(t *testing.T) {
	tests := []struct {
		name     string
		limit    int64
		size     int
		tooLarge bool
	}{
		{name: "under limit", limit: 1024, size: 100},
		{name: "exactly at limit", limit: 100, size: 100},
		{name: "over limit", limit: 100, size: 101, tooLarge: true},
		{name: "default limit", limit: 0, size: validation.MaxBodySize + 1, tooLarge: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var readErr error
			var read int
			handler := BodyLimit(tt.limit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				data, err := io.ReadAll(r.Body)
				read, readErr = len(data), err
			}))
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(strings.Repeat("x", tt.size)))

			handler.ServeHTTP(httptest.NewRecorder(), req)

			if !tt.tooLarge {
				assert.NoError(t, readErr)
				assert.Equal(t, tt.size, read)
				return
			}
			var maxErr *http.MaxBytesError
			assert.True(t, errors.As(readErr, &maxErr))
		})
	}
}

func TestBodyLimit_NoBody(t *testing.T) {
	called := false
	handler := BodyLimit(10)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.NoBody, r.Body)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.True(t, called)
}
