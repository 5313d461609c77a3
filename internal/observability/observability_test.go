package observability

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitCLILogger(t *testing.T) {
	InitCLILogger("jarl-test", true)
	require.NotNil(t, CLILogger)

	CLILogger.Debug("verbose cli logger", zap.String("test", "value"))
}

func TestInitServerLogger(t *testing.T) {
	t.Cleanup(func() { ServerLogger = nil })

	InitServerLogger("jarl-test", "debug", "shopify")
	require.NotNil(t, ServerLogger)
	assert.Same(t, ServerLogger, Logger())

	ServerLogger.Info("structured server logger", zap.Int("port", 7000))
	Sync()
}

func TestLoggerFallback(t *testing.T) {
	savedCLI, savedServer := CLILogger, ServerLogger
	CLILogger, ServerLogger = nil, nil
	t.Cleanup(func() { CLILogger, ServerLogger = savedCLI, savedServer })

	logger := Logger()
	require.NotNil(t, logger)
	assert.Same(t, logger, Logger())
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]string{
		"trace":   "TRACE",
		"DEBUG":   "DEBUG",
		"info":    "INFO",
		"warning": "WARN",
		"warn":    "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"bogus":   "INFO",
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), "parseLogLevel(%q)", in)
	}
}

func TestInitMetricsOnEphemeralPort(t *testing.T) {
	require.NoError(t, InitMetrics("", 0))
	t.Cleanup(func() { _ = ShutdownMetrics() })

	require.NotNil(t, TelemetrySystem)
	require.NotNil(t, PrometheusExporter)
	assert.Greater(t, GetMetricsPort(), 0)

	require.NoError(t, ShutdownMetrics())
	assert.Nil(t, TelemetrySystem)
	assert.Zero(t, GetMetricsPort())
	require.NoError(t, ShutdownMetrics())
}

func TestCrucibleVersionAvailable(t *testing.T) {
	version := crucible.GetVersion()
	assert.NotEmpty(t, version.Gofulmen)
	assert.NotEmpty(t, crucible.GetVersionString())
}
