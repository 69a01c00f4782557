// Package config loads the bridge configuration: which serial device to
// drive, how fast to poll, how to find the hand anchors and per-object mass
// overrides.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/banshee-data/grabsend/internal/interaction"
	"github.com/banshee-data/grabsend/internal/serialbridge"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/grabsend.defaults.json"

const (
	defaultTickRateHz = 72
	maxTickRateHz     = 1000
)

// Config is the root configuration. Every field is optional; the Get*
// methods fall back to defaults for anything left unset, so partial files
// are safe.
type Config struct {
	// Serial params
	SerialPort   *string `json:"serial_port,omitempty"`
	BaudRate     *int    `json:"baud_rate,omitempty"`
	ReadTimeout  *string `json:"read_timeout,omitempty"`  // duration string like "50ms"
	WriteTimeout *string `json:"write_timeout,omitempty"` // duration string like "50ms"

	// Driver params
	TickRateHz *float64 `json:"tick_rate_hz,omitempty"`

	// Handedness fallback
	LeftAnchorName  *string `json:"left_anchor_name,omitempty"`
	RightAnchorName *string `json:"right_anchor_name,omitempty"`

	// MassOverrides maps object names to a mass in grams that replaces the
	// rigid-body mass. Values <= 0 are ignored.
	MassOverrides map[string]float64 `json:"mass_overrides,omitempty"`

	// DebugListen is the address of the debug HTTP server; empty disables it.
	DebugListen *string `json:"debug_listen,omitempty"`
}

// EnvOverrides are read from the environment after the file is loaded.
// Unset or zero values leave the file's settings alone.
type EnvOverrides struct {
	SerialPort  string  `env:"GRABSEND_SERIAL_PORT"`
	BaudRate    int     `env:"GRABSEND_BAUD_RATE"`
	TickRateHz  float64 `env:"GRABSEND_TICK_HZ"`
	DebugListen string  `env:"GRABSEND_DEBUG_LISTEN"`
}

// Empty returns a Config with all fields unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The file must have a .json extension
// and be under 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overlays GRABSEND_* environment variables onto c and validates
// the result.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(env.Options{})
}

func (c *Config) applyEnv(opts env.Options) error {
	var o EnvOverrides
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if o.SerialPort != "" {
		c.SerialPort = &o.SerialPort
	}
	if o.BaudRate != 0 {
		c.BaudRate = &o.BaudRate
	}
	if o.TickRateHz != 0 {
		c.TickRateHz = &o.TickRateHz
	}
	if o.DebugListen != "" {
		c.DebugListen = &o.DebugListen
	}
	return c.Validate()
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.SerialPort != nil && strings.TrimSpace(*c.SerialPort) == "" {
		return fmt.Errorf("serial_port must not be empty when set")
	}

	if _, err := c.PortOptions().Normalise(); err != nil {
		return err
	}

	for name, field := range map[string]*string{
		"read_timeout":  c.ReadTimeout,
		"write_timeout": c.WriteTimeout,
	} {
		if field == nil || *field == "" {
			continue
		}
		d, err := time.ParseDuration(*field)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *field, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *field)
		}
	}

	if c.TickRateHz != nil && (math.IsNaN(*c.TickRateHz) || *c.TickRateHz <= 0 || *c.TickRateHz > maxTickRateHz) {
		return fmt.Errorf("tick_rate_hz must be in (0, %d], got %f", maxTickRateHz, *c.TickRateHz)
	}

	return nil
}

// GetSerialPort returns the serial device path, defaulting to the
// platform's usual USB serial adapter.
func (c *Config) GetSerialPort() string {
	if c.SerialPort == nil || *c.SerialPort == "" {
		return serialbridge.DefaultPortPath()
	}
	return *c.SerialPort
}

func (c *Config) GetBaudRate() int {
	if c.BaudRate == nil || *c.BaudRate <= 0 {
		return serialbridge.DefaultBaudRate
	}
	return *c.BaudRate
}

func (c *Config) GetReadTimeout() time.Duration {
	return parseDurationOr(c.ReadTimeout, serialbridge.DefaultTimeout)
}

func (c *Config) GetWriteTimeout() time.Duration {
	return parseDurationOr(c.WriteTimeout, serialbridge.DefaultTimeout)
}

// GetTickInterval converts the tick rate into the driver's frame period.
func (c *Config) GetTickInterval() time.Duration {
	hz := float64(defaultTickRateHz)
	if c.TickRateHz != nil && *c.TickRateHz > 0 {
		hz = *c.TickRateHz
	}
	return time.Duration(float64(time.Second) / hz)
}

func (c *Config) GetLeftAnchorName() string {
	if c.LeftAnchorName == nil || *c.LeftAnchorName == "" {
		return interaction.LeftAnchorName
	}
	return *c.LeftAnchorName
}

func (c *Config) GetRightAnchorName() string {
	if c.RightAnchorName == nil || *c.RightAnchorName == "" {
		return interaction.RightAnchorName
	}
	return *c.RightAnchorName
}

// GetMassOverride returns the configured override for an object, or 0 when
// there is none.
func (c *Config) GetMassOverride(name string) float64 {
	if v, ok := c.MassOverrides[name]; ok && v > 0 {
		return v
	}
	return 0
}

func (c *Config) GetDebugListen() string {
	if c.DebugListen == nil {
		return ""
	}
	return *c.DebugListen
}

// PortOptions builds the serial options from the configuration. Unparseable
// durations fall back to the defaults; Validate reports them.
func (c *Config) PortOptions() serialbridge.PortOptions {
	return serialbridge.PortOptions{
		BaudRate:     c.GetBaudRate(),
		ReadTimeout:  c.GetReadTimeout(),
		WriteTimeout: c.GetWriteTimeout(),
	}
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
