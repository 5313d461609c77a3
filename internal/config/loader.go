// Package config builds the immutable process configuration from command-line
// flags. Flags are bound into a viper instance and decoded with mapstructure;
// no configuration files or environment variables are consulted.
package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default values for optional settings.
const (
	DefaultIP        = "0.0.0.0"
	DefaultAdminHost = "127.0.0.1"
	DefaultLogLevel  = "info"
)

var hostnamePattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9.-]*[A-Za-z0-9])?$`)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// SetDefaults registers default values for optional settings.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("ip", DefaultIP)
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("admin.host", DefaultAdminHost)
	v.SetDefault("admin.port", 0)
	v.SetDefault("metrics.port", 0)
}

// Load decodes the settings held by v into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		return nil, errors.New("config source is required")
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Service = strings.TrimSpace(cfg.Service)
	cfg.IP = strings.TrimSpace(cfg.IP)
	cfg.Admin.Host = strings.TrimSpace(cfg.Admin.Host)
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Service == "" {
		errs = append(errs, errors.New("service name is required"))
	}
	if c.Requests <= 0 {
		errs = append(errs, fmt.Errorf("requests must be a positive integer, got %d", c.Requests))
	}
	if _, err := c.PeriodDuration(); err != nil {
		errs = append(errs, fmt.Errorf("invalid period: %w", err))
	}
	if !validHost(c.IP) {
		errs = append(errs, fmt.Errorf("invalid ip: %q", c.IP))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	if c.Logging.Level != "" && !validLogLevels[c.Logging.Level] {
		errs = append(errs, fmt.Errorf("invalid log level: %q", c.Logging.Level))
	}

	if c.Admin.Port < 0 || c.Admin.Port > 65535 {
		errs = append(errs, fmt.Errorf("admin port must be between 0 and 65535, got %d", c.Admin.Port))
	}
	if c.AdminEnabled() && !validHost(c.Admin.Host) {
		errs = append(errs, fmt.Errorf("invalid admin host: %q", c.Admin.Host))
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		errs = append(errs, fmt.Errorf("metrics port must be between 0 and 65535, got %d", c.Metrics.Port))
	}

	if c.AdminEnabled() && c.Admin.Port == c.Port {
		errs = append(errs, fmt.Errorf("admin port %d collides with the delay port", c.Admin.Port))
	}
	if c.MetricsEnabled() && c.Metrics.Port == c.Port {
		errs = append(errs, fmt.Errorf("metrics port %d collides with the delay port", c.Metrics.Port))
	}
	if c.AdminEnabled() && c.MetricsEnabled() && c.Admin.Port == c.Metrics.Port {
		errs = append(errs, fmt.Errorf("metrics port %d collides with the admin port", c.Metrics.Port))
	}

	return errors.Join(errs...)
}

func validHost(host string) bool {
	if host == "" {
		return false
	}
	if net.ParseIP(host) != nil {
		return true
	}
	return hostnamePattern.MatchString(host)
}
