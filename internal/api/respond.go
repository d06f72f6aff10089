package api

import (
	"encoding/json"
	"net/http"

	"github.com/openrelay/gatewaysuite/internal/gatewayerr"
	"github.com/rs/zerolog/log"
)

// WriteJSON encodes v as the response body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// WriteError translates err to its HTTP status and a structured error body.
// Non-gatewayerr errors are treated as InternalError with an opaque message.
func WriteError(w http.ResponseWriter, err error) {
	ge, ok := gatewayerr.As(err)
	if !ok {
		ge = gatewayerr.InternalError("unhandled error", err)
	}
	WriteJSON(w, ge.StatusCode(), map[string]interface{}{
		"error": map[string]string{
			"kind":    string(ge.Kind),
			"message": ge.Message,
		},
	})
}
