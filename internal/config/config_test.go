package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/grabsend/internal/serialbridge"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := Empty()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, serialbridge.DefaultPortPath(), cfg.GetSerialPort())
	assert.Equal(t, 57600, cfg.GetBaudRate())
	assert.Equal(t, 50*time.Millisecond, cfg.GetReadTimeout())
	assert.Equal(t, 50*time.Millisecond, cfg.GetWriteTimeout())
	assert.Equal(t, time.Second/72, cfg.GetTickInterval())
	assert.Equal(t, "LeftHandAnchor", cfg.GetLeftAnchorName())
	assert.Equal(t, "RightHandAnchor", cfg.GetRightAnchorName())
	assert.Equal(t, 0.0, cfg.GetMassOverride("Cube"))
	assert.Equal(t, "", cfg.GetDebugListen())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "bridge.json", `{
  "serial_port": "COM3",
  "baud_rate": 115200,
  "write_timeout": "20ms",
  "tick_rate_hz": 90,
  "left_anchor_name": "L",
  "mass_overrides": {"Cube": 250, "Ball": -1},
  "debug_listen": "localhost:8081"
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "COM3", cfg.GetSerialPort())
	assert.Equal(t, 115200, cfg.GetBaudRate())
	assert.Equal(t, 20*time.Millisecond, cfg.GetWriteTimeout())
	assert.Equal(t, 50*time.Millisecond, cfg.GetReadTimeout())
	assert.Equal(t, time.Second/90, cfg.GetTickInterval())
	assert.Equal(t, "L", cfg.GetLeftAnchorName())
	assert.Equal(t, "RightHandAnchor", cfg.GetRightAnchorName())
	assert.Equal(t, 250.0, cfg.GetMassOverride("Cube"))
	assert.Equal(t, 0.0, cfg.GetMassOverride("Ball"), "non-positive overrides are ignored")
	assert.Equal(t, "localhost:8081", cfg.GetDebugListen())

	opts := cfg.PortOptions()
	assert.Equal(t, 115200, opts.BaudRate)
	assert.Equal(t, 20*time.Millisecond, opts.WriteTimeout)
}

func TestLoad_DefaultsFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", DefaultConfigPath))
	require.NoError(t, err)
	assert.Equal(t, 57600, cfg.GetBaudRate())
	assert.Equal(t, time.Second/72, cfg.GetTickInterval())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "bridge.yaml", `{}`, ".json extension"},
		{"bad json", "bridge.json", `{"baud_rate": }`, "failed to parse"},
		{"bad baud", "bridge.json", `{"baud_rate": 1234}`, "invalid baud rate"},
		{"bad timeout", "bridge.json", `{"write_timeout": "soon"}`, "invalid write_timeout"},
		{"zero timeout", "bridge.json", `{"read_timeout": "0s"}`, "must be positive"},
		{"bad tick rate", "bridge.json", `{"tick_rate_hz": 0}`, "tick_rate_hz"},
		{"empty port", "bridge.json", `{"serial_port": " "}`, "serial_port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoad_TooLarge(t *testing.T) {
	body := `{"serial_port": "` + strings.Repeat("x", 1024*1024) + `"}`
	_, err := Load(writeConfig(t, "big.json", body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestApplyEnv(t *testing.T) {
	cfg := Empty()
	port := "/dev/ttyACM0"
	cfg.SerialPort = &port

	err := cfg.applyEnv(env.Options{Environment: map[string]string{
		"GRABSEND_BAUD_RATE":    "9600",
		"GRABSEND_TICK_HZ":      "30",
		"GRABSEND_DEBUG_LISTEN": ":9090",
	}})
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", cfg.GetSerialPort(), "unset variables keep file values")
	assert.Equal(t, 9600, cfg.GetBaudRate())
	assert.Equal(t, time.Second/30, cfg.GetTickInterval())
	assert.Equal(t, ":9090", cfg.GetDebugListen())
}

func TestApplyEnv_Invalid(t *testing.T) {
	err := Empty().applyEnv(env.Options{Environment: map[string]string{
		"GRABSEND_BAUD_RATE": "fast",
	}})
	assert.Error(t, err)

	err = Empty().applyEnv(env.Options{Environment: map[string]string{
		"GRABSEND_BAUD_RATE": "1234",
	}})
	assert.Error(t, err)
}

func TestValidate_TickRate(t *testing.T) {
	tests := []struct {
		name    string
		hz      float64
		wantErr bool
	}{
		{"default rate", 72, false},
		{"upper bound", 1000, false},
		{"zero", 0, true},
		{"negative", -1, true},
		{"too fast", 1001, true},
		{"NaN", math.NaN(), true},
		{"infinite", math.Inf(1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hz := tt.hz
			cfg := &Config{TickRateHz: &hz}
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestApplyEnv_NaNTickRate(t *testing.T) {
	err := Empty().applyEnv(env.Options{Environment: map[string]string{
		"GRABSEND_TICK_HZ": "NaN",
	}})
	assert.Error(t, err)
}

func TestApplyEnv_ProcessEnvironment(t *testing.T) {
	t.Setenv("GRABSEND_SERIAL_PORT", "COM9")
	cfg := Empty()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "COM9", cfg.GetSerialPort())
}
