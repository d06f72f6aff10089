package gatewayerr_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openrelay/gatewaysuite/internal/gatewayerr"
)

func TestStatusCode_AllKinds(t *testing.T) {
	cases := []struct {
		err  *gatewayerr.Error
		want int
	}{
		{gatewayerr.InvalidRequest("bad"), http.StatusBadRequest},
		{gatewayerr.Unauthorized("nope"), http.StatusUnauthorized},
		{gatewayerr.RateLimited("slow down"), http.StatusTooManyRequests},
		{gatewayerr.Timeout("too slow"), http.StatusGatewayTimeout},
		{gatewayerr.UpstreamFailure("upstream broke", nil), http.StatusBadGateway},
		{gatewayerr.NoProviderAvailable("none configured"), http.StatusServiceUnavailable},
		{gatewayerr.InternalError("oops", nil), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(string(tc.err.Kind), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.StatusCode())
		})
	}
}

func TestError_MessageIncludesCauseWhenPresent(t *testing.T) {
	cause := errors.New("root cause")
	err := gatewayerr.UpstreamFailure("provider call failed", cause)
	assert.Contains(t, err.Error(), "upstream_failure")
	assert.Contains(t, err.Error(), "provider call failed")
	assert.Contains(t, err.Error(), "root cause")
}

func TestError_MessageOmitsCauseWhenNil(t *testing.T) {
	err := gatewayerr.InvalidRequest("missing field")
	assert.Equal(t, "invalid_request: missing field", err.Error())
}

func TestUnwrap_ErrorsIsThroughCause(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := gatewayerr.InternalError("wrapping", sentinel)
	assert.True(t, errors.Is(err, sentinel))
}

func TestUnwrap_NilCause(t *testing.T) {
	err := gatewayerr.RateLimited("too many")
	assert.Nil(t, err.Unwrap())
}

func TestAs_MatchesGatewayError(t *testing.T) {
	var err error = gatewayerr.Timeout("slow upstream")
	ge, ok := gatewayerr.As(err)
	assert.True(t, ok)
	assert.Equal(t, gatewayerr.TimeoutKind, ge.Kind)
}

func TestAs_NonGatewayErrorFails(t *testing.T) {
	_, ok := gatewayerr.As(errors.New("plain error"))
	assert.False(t, ok)
}

func TestErrorsAs_StandardLibraryInterop(t *testing.T) {
	var err error = gatewayerr.InvalidRequest("bad field")
	var ge *gatewayerr.Error
	assert.True(t, errors.As(err, &ge))
	assert.Equal(t, gatewayerr.InvalidRequestKind, ge.Kind)
}
