package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	err error
}

func (s *stubChecker) Health(ctx context.Context) error { return s.err }

func probeHealth(t *testing.T, ollamaErr, storeErr error) (int, HealthResponse) {
	t.Helper()
	handler := NewHealthHandler(
		&stubChecker{err: ollamaErr}, "http://localhost:11434",
		&stubChecker{err: storeErr}, "localhost:6334",
	)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestHealthHandler_AllUp(t *testing.T) {
	code, resp := probeHealth(t, nil, nil)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "up", resp.Services["ollama"].Status)
	assert.Equal(t, "up", resp.Services["vector"].Status)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestHealthHandler_Degraded(t *testing.T) {
	code, resp := probeHealth(t, errors.New("connection refused"), nil)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "down", resp.Services["ollama"].Status)
	assert.Equal(t, "up", resp.Services["vector"].Status)
	assert.Equal(t, "http://localhost:11434", resp.Services["ollama"].URL)
}
