package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/pothole-engine/internal/detect"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, detect.DefaultThresholds(), cfg.Detector.Thresholds())
	assert.Equal(t, detect.DefaultFilter(), cfg.Filter.Filter())
	assert.Equal(t, 25*time.Second, cfg.Scan.Timeout())
	assert.Equal(t, 150*time.Millisecond, cfg.Scan.Cadence())
}

func TestLoadLayersOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "street.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[data]
root = "/tmp/pothole"

[sensor]
kind = "replay"
replay_path = "/tmp/trace.txt"

[detector]
stable_required = 3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/pothole", cfg.Data.Root)
	assert.Equal(t, SensorReplay, cfg.Sensor.Kind)
	assert.Equal(t, 3, cfg.Detector.StableRequired)
	assert.Equal(t, 6, cfg.Detector.StabilityWindow, "unset keys keep defaults")
	assert.Equal(t, 25, cfg.Scan.TimeoutSeconds)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data root", func(c *Config) { c.Data.Root = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"unknown sensor", func(c *Config) { c.Sensor.Kind = "lidar" }},
		{"hcsr04 without pins", func(c *Config) { c.Sensor.Kind = SensorHCSR04; c.Sensor.EchoPin = "" }},
		{"serial bad unit", func(c *Config) { c.Sensor.Kind = SensorSerial; c.Sensor.SerialUnit = "ft" }},
		{"replay without path", func(c *Config) { c.Sensor.Kind = SensorReplay }},
		{"inverted filter", func(c *Config) { c.Filter.MinCM = 300 }},
		{"zero timeout", func(c *Config) { c.Scan.TimeoutSeconds = 0 }},
		{"negative cadence", func(c *Config) { c.Scan.SampleIntervalMS = -1 }},
		{"no history", func(c *Config) { c.Scan.History = 0 }},
		{"required above window", func(c *Config) { c.Detector.StableRequired = 9 }},
		{"zero spacing", func(c *Config) { c.Detector.SampleSpacingCM = 0 }},
		{"gps without host", func(c *Config) { c.GPS.Enabled = true; c.GPS.GPSDHost = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestParseReportsSyntaxErrors(t *testing.T) {
	cfg := Default()
	err := Parse([]byte("[scan\ntimeout_seconds = 3"), &cfg)
	assert.Error(t, err)
}

func TestListProfiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bench.toml"), []byte("[sensor]\nkind = \"simulated\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.toml"), []byte("[scan]\ntimeout_seconds = 0\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	profiles, err := ListProfiles(dir)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	assert.Equal(t, "bench", profiles[0].Name)
	assert.True(t, profiles[0].Valid)
	assert.Equal(t, SensorSimulated, profiles[0].SensorKind)

	assert.Equal(t, "broken", profiles[1].Name)
	assert.False(t, profiles[1].Valid)
	assert.NotEmpty(t, profiles[1].Error)
}

func TestListProfilesMissingDir(t *testing.T) {
	profiles, err := ListProfiles(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestDefaultConfigDirEnv(t *testing.T) {
	t.Setenv("POTHOLE_CONFIG_DIR", "/srv/profiles")
	assert.Equal(t, "/srv/profiles", DefaultConfigDir())
	assert.Equal(t, "/srv/profiles/night.toml", ProfilePath(DefaultConfigDir(), "night"))
}
