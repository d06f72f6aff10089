package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrelay/gatewaysuite/internal/api"
	"github.com/openrelay/gatewaysuite/internal/gatewayerr"
)

func TestWriteJSON_SetsStatusAndContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	api.WriteJSON(rec, http.StatusCreated, map[string]string{"a": "b"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "b", body["a"])
}

func TestWriteError_GatewayErrorUsesItsStatusAndKind(t *testing.T) {
	rec := httptest.NewRecorder()
	api.WriteError(rec, gatewayerr.RateLimited("slow down"))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	var body struct {
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate_limited", body.Error.Kind)
	assert.Equal(t, "slow down", body.Error.Message)
}

func TestWriteError_PlainErrorBecomesInternalError(t *testing.T) {
	rec := httptest.NewRecorder()
	api.WriteError(rec, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal_error", body.Error.Kind)
}
