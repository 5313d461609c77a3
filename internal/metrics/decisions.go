package metrics

import (
	"time"

	"github.com/jarlhq/jarl/internal/observability"
	"github.com/jarlhq/jarl/internal/window"
)

// Delay-server metrics. The exporter namespace adds the jarl_ prefix.
const (
	DecisionsTotal    = "decisions_total"
	DelayMillis       = "delay_ms"
	WindowSize        = "window_size"
	OverflowCount     = "overflow"
	AcceptErrorsTotal = "accept_errors_total"
	WriteErrorsTotal  = "write_errors_total"
	InFlightWrites    = "inflight_writes"

	HealthCheckTotal    = "health_check_total"
	HealthCheckDuration = "health_check_duration_ms"
	ServerStartTime     = "server_start_time_seconds"
	ServerUptime        = "server_uptime_seconds"
)

// Outcome labels for DecisionsTotal.
const (
	OutcomeImmediate = "immediate"
	OutcomeDelayed   = "delayed"
)

// RecordDecision records one delay decision and the window state it left behind.
func RecordDecision(d window.Decision) {
	if observability.TelemetrySystem == nil {
		return
	}

	outcome := OutcomeImmediate
	if d.Delayed() {
		outcome = OutcomeDelayed
	}

	_ = observability.TelemetrySystem.Counter(
		DecisionsTotal,
		1,
		map[string]string{"outcome": outcome},
	)
	_ = observability.TelemetrySystem.Histogram(
		DelayMillis,
		d.Delay,
		map[string]string{"outcome": outcome},
	)
	_ = observability.TelemetrySystem.Gauge(
		WindowSize,
		float64(d.WindowLen),
		nil,
	)

	overflow := 0
	if d.Delayed() {
		overflow = d.Overflow + 1
	}
	_ = observability.TelemetrySystem.Gauge(
		OverflowCount,
		float64(overflow),
		nil,
	)
}

// RecordAcceptError counts a failed accept on the delay listener
func RecordAcceptError(temporary bool) {
	if observability.TelemetrySystem != nil {
		kind := "permanent"
		if temporary {
			kind = "temporary"
		}
		_ = observability.TelemetrySystem.Counter(
			AcceptErrorsTotal,
			1,
			map[string]string{"kind": kind},
		)
	}
}

// RecordWriteError counts a delay that could not be delivered
func RecordWriteError(stage string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			WriteErrorsTotal,
			1,
			map[string]string{"stage": stage},
		)
	}
}

// SetInFlightWrites sets the number of connections still being written to
func SetInFlightWrites(count int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			InFlightWrites,
			float64(count),
			nil,
		)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}

// SetServerUptime records the server uptime in seconds
func SetServerUptime(seconds int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerUptime,
			float64(seconds),
			nil,
		)
	}
}
