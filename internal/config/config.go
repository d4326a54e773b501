// Package config provides configuration management functionality for the mediakeyd daemon.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/connorhough/mediakeyd/internal/power"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// MEDIAKEYD_POWER_BACKEND.
const EnvPrefix = "MEDIAKEYD"

// Configuration keys.
const (
	KeyLogLevel          = "log_level"
	KeyLogFormat         = "log_format"
	KeyUinputPath        = "input.uinput_path"
	KeyDeviceName        = "input.device_name"
	KeyStaleAfter        = "input.stale_after"
	KeyFromSystem        = "inject.from_system"
	KeyPowerBackend      = "power.backend"
	KeyBacklightDir      = "power.backlight_dir"
	KeyWatchEnabled      = "watch.enabled"
	KeyWatchInputDir     = "watch.input_dir"
	KeyWatchHoldDuration = "watch.hold_threshold"
)

// Config is the resolved daemon configuration.
type Config struct {
	LogLevel  string
	LogFormat string
	Input     InputConfig
	Inject    InjectConfig
	Power     PowerConfig
	Watch     WatchConfig
}

// InputConfig controls the virtual keyboard.
type InputConfig struct {
	UinputPath string
	DeviceName string
	StaleAfter time.Duration
}

// InjectConfig controls event construction.
type InjectConfig struct {
	// FromSystem marks injected events with system provenance. Off by default.
	FromSystem bool
}

// PowerConfig selects how wake state is read.
type PowerConfig struct {
	Backend      string
	BacklightDir string
}

// WatchConfig controls the volume key hold watcher.
type WatchConfig struct {
	Enabled       bool
	InputDir      string
	HoldThreshold time.Duration
}

// SetDefaults registers the default for every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyUinputPath, "/dev/uinput")
	v.SetDefault(KeyDeviceName, "mediakeyd virtual keyboard")
	v.SetDefault(KeyStaleAfter, time.Second)
	v.SetDefault(KeyFromSystem, false)
	v.SetDefault(KeyPowerBackend, power.BackendBacklight)
	v.SetDefault(KeyBacklightDir, "")
	v.SetDefault(KeyWatchEnabled, true)
	v.SetDefault(KeyWatchInputDir, "/dev/input")
	v.SetDefault(KeyWatchHoldDuration, 700*time.Millisecond)
}

// BindEnv makes v read MEDIAKEYD_* environment variables, mapping nested
// keys with underscores (power.backend -> MEDIAKEYD_POWER_BACKEND).
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load resolves the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom resolves and validates the configuration held by v. Defaults are
// applied for keys v does not set.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		LogLevel:  v.GetString(KeyLogLevel),
		LogFormat: v.GetString(KeyLogFormat),
		Input: InputConfig{
			UinputPath: v.GetString(KeyUinputPath),
			DeviceName: v.GetString(KeyDeviceName),
			StaleAfter: v.GetDuration(KeyStaleAfter),
		},
		Inject: InjectConfig{
			FromSystem: v.GetBool(KeyFromSystem),
		},
		Power: PowerConfig{
			Backend:      strings.ToLower(strings.TrimSpace(v.GetString(KeyPowerBackend))),
			BacklightDir: v.GetString(KeyBacklightDir),
		},
		Watch: WatchConfig{
			Enabled:       v.GetBool(KeyWatchEnabled),
			InputDir:      v.GetString(KeyWatchInputDir),
			HoldThreshold: v.GetDuration(KeyWatchHoldDuration),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalises and checks the configuration.
func (c *Config) Validate() error {
	lvl, err := NormalizeLogLevel(c.LogLevel)
	if err != nil {
		return err
	}
	c.LogLevel = lvl

	format, err := NormalizeFormat(c.LogFormat)
	if err != nil {
		return err
	}
	c.LogFormat = format

	switch c.Power.Backend {
	case power.BackendBacklight, power.BackendLogind:
	default:
		return fmt.Errorf("invalid %s %q (expected %s or %s)", KeyPowerBackend, c.Power.Backend, power.BackendBacklight, power.BackendLogind)
	}
	if c.Input.UinputPath == "" {
		return fmt.Errorf("%s must not be empty", KeyUinputPath)
	}
	if c.Input.StaleAfter <= 0 {
		return fmt.Errorf("%s must be positive, got %s", KeyStaleAfter, c.Input.StaleAfter)
	}
	if c.Watch.Enabled {
		if c.Watch.InputDir == "" {
			return fmt.Errorf("%s must not be empty", KeyWatchInputDir)
		}
		if c.Watch.HoldThreshold <= 0 {
			return fmt.Errorf("%s must be positive, got %s", KeyWatchHoldDuration, c.Watch.HoldThreshold)
		}
	}
	return nil
}

// NormalizeLogLevel lower-cases level and checks it is supported.
func NormalizeLogLevel(level string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "debug", "info", "warn", "error":
		return normalized, nil
	case "warning":
		return "warn", nil
	default:
		return "", fmt.Errorf("invalid %s %q (expected debug, info, warn or error)", KeyLogLevel, level)
	}
}

// NormalizeFormat lower-cases format and checks it is supported.
func NormalizeFormat(format string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(format))
	switch normalized {
	case "text", "json":
		return normalized, nil
	case "console":
		return "text", nil
	default:
		return "", fmt.Errorf("invalid %s %q (expected text or json)", KeyLogFormat, format)
	}
}
