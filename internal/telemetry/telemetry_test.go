package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrelay/gatewaysuite/internal/config"
	"github.com/openrelay/gatewaysuite/internal/telemetry"
)

func TestInit_DisabledReturnsNoopShutdown(t *testing.T) {
	shutdown, err := telemetry.Init(config.TelemetryConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_EnabledWithoutEndpointIsTreatedAsDisabled(t *testing.T) {
	shutdown, err := telemetry.Init(config.TelemetryConfig{Enabled: true, OTLPEndpoint: ""})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
