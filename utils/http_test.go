package utils

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	t.Run("writes payload and content type", func(t *testing.T) {
		rec := httptest.NewRecorder()

		err := WriteJSON(rec, 200, map[string]string{"hello": "world"})
		require.NoError(t, err)

		assert.Equal(t, 200, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"hello":"world"}`, rec.Body.String())
	})

	t.Run("nil body writes status only", func(t *testing.T) {
		rec := httptest.NewRecorder()

		err := WriteJSON(rec, 204, nil)
		require.NoError(t, err)

		assert.Equal(t, 204, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}

func TestWriteOK(t *testing.T) {
	rec := httptest.NewRecorder()

	err := WriteOK(rec, map[string]int{"count": 3})
	require.NoError(t, err)

	assert.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `{"data":{"count":3}}`, rec.Body.String())
}

func TestErrorWriters(t *testing.T) {
	t.Run("bad request with details", func(t *testing.T) {
		rec := httptest.NewRecorder()

		_ = WriteBadRequest(rec, "bad input", map[string]interface{}{"field": "prompt"})

		assert.Equal(t, 400, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "bad_request", resp.Error)
		assert.Equal(t, "bad input", resp.Message)
		assert.Equal(t, "prompt", resp.Details["field"])
	})

	t.Run("unauthorized default message", func(t *testing.T) {
		rec := httptest.NewRecorder()

		_ = WriteUnauthorized(rec, "")

		assert.Equal(t, 401, rec.Code)
		assert.Equal(t, "Authentication required", decodeError(t, rec).Message)
	})

	t.Run("not found", func(t *testing.T) {
		rec := httptest.NewRecorder()

		_ = WriteNotFound(rec, "no such quota")

		assert.Equal(t, 404, rec.Code)
		assert.Equal(t, "not_found", decodeError(t, rec).Error)
	})

	t.Run("too many requests", func(t *testing.T) {
		rec := httptest.NewRecorder()

		_ = WriteTooManyRequests(rec, "quota exhausted", nil)

		assert.Equal(t, 429, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "quota_exceeded", resp.Error)
		assert.Equal(t, "quota exhausted", resp.Message)
	})

	t.Run("bad gateway default message", func(t *testing.T) {
		rec := httptest.NewRecorder()

		_ = WriteBadGateway(rec, "", nil)

		assert.Equal(t, 502, rec.Code)
		assert.Equal(t, "Upstream provider error", decodeError(t, rec).Message)
	})

	t.Run("service unavailable", func(t *testing.T) {
		rec := httptest.NewRecorder()

		_ = WriteServiceUnavailable(rec, "")

		assert.Equal(t, 503, rec.Code)
		assert.Equal(t, "service_unavailable", decodeError(t, rec).Error)
	})

	t.Run("internal server error", func(t *testing.T) {
		rec := httptest.NewRecorder()

		_ = WriteInternalServerError(rec, "")

		assert.Equal(t, 500, rec.Code)
		assert.Equal(t, "internal_error", decodeError(t, rec).Error)
	})
}
