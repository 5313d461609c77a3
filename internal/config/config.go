package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/jarlhq/jarl/internal/window"
)

// Config represents the complete process configuration. It is built once from
// command-line flags and never mutated afterwards.
type Config struct {
	// Service is an opaque label for the rate-limited service.
	Service string `mapstructure:"service"`

	// Requests is the maximum number of requests allowed per period.
	Requests int `mapstructure:"requests"`

	// Period is the window length in seconds.
	Period float64 `mapstructure:"period"`

	// IP is the interface the delay listener binds to.
	IP string `mapstructure:"ip"`

	// Port is the TCP port the delay listener binds to.
	Port int `mapstructure:"port"`

	Logging LoggingConfig `mapstructure:"logging"`
	Admin   AdminConfig   `mapstructure:"admin"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`
}

// AdminConfig contains the optional status HTTP server configuration
type AdminConfig struct {
	Host string `mapstructure:"host"`

	// Port of the status server; 0 disables it
	Port int `mapstructure:"port"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Port is the dedicated Prometheus exporter port; 0 disables metrics
	Port int `mapstructure:"port"`
}

// PeriodDuration returns the period as a time.Duration.
func (c *Config) PeriodDuration() (time.Duration, error) {
	return window.ParseSeconds(c.Period)
}

// Address returns the host:port the delay listener binds to.
func (c *Config) Address() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(c.Port))
}

// AdminEnabled reports whether the status server should run.
func (c *Config) AdminEnabled() bool {
	return c.Admin.Port > 0
}

// AdminAddress returns the host:port of the status server.
func (c *Config) AdminAddress() string {
	return net.JoinHostPort(c.Admin.Host, strconv.Itoa(c.Admin.Port))
}

// MetricsEnabled reports whether the Prometheus exporter should run.
func (c *Config) MetricsEnabled() bool {
	return c.Metrics.Port > 0
}

// String summarises the rate limit for log lines.
func (c *Config) String() string {
	return fmt.Sprintf("%s: %d requests per %ss on %s", c.Service, c.Requests, strconv.FormatFloat(c.Period, 'f', -1, 64), c.Address())
}
