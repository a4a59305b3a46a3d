// Package config handles loading, defaulting, and validation of the pothole
// engine TOML configuration file. Every section maps to a typed struct so the
// rest of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/large-farva/pothole-engine/internal/detect"
)

// Sensor kinds accepted in [sensor].kind.
const (
	SensorHCSR04    = "hcsr04"
	SensorSerial    = "serial"
	SensorReplay    = "replay"
	SensorSimulated = "simulated"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Data     DataConfig     `toml:"data"     json:"data"`
	Logging  LoggingConfig  `toml:"logging"  json:"logging"`
	Server   ServerConfig   `toml:"server"   json:"server"`
	Demo     DemoConfig     `toml:"demo"     json:"demo"`
	Sensor   SensorConfig   `toml:"sensor"   json:"sensor"`
	Filter   FilterConfig   `toml:"filter"   json:"filter"`
	Scan     ScanConfig     `toml:"scan"     json:"scan"`
	Detector DetectorConfig `toml:"detector" json:"detector"`
	GPS      GPSConfig      `toml:"gps"      json:"gps"`
}

type DataConfig struct {
	Root string `toml:"root" json:"root"`
	// SaveCharts writes a PNG pothole map for every resolved scan under
	// <root>/charts.
	SaveCharts bool `toml:"save_charts" json:"save_charts"`
}

type LoggingConfig struct {
	Level      string `toml:"level"        json:"level"`
	File       string `toml:"file"         json:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"  json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"  json:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days"`
}

type ServerConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

type DemoConfig struct {
	Enabled         bool   `toml:"enabled"          json:"enabled"`
	IntervalSeconds int    `toml:"interval_seconds" json:"interval_seconds"`
	Profile         string `toml:"profile"          json:"profile"`
}

func (d DemoConfig) Interval() time.Duration {
	return time.Duration(d.IntervalSeconds) * time.Second
}

type SensorConfig struct {
	Kind          string `toml:"kind"            json:"kind"`
	TriggerPin    string `toml:"trigger_pin"     json:"trigger_pin"`
	EchoPin       string `toml:"echo_pin"        json:"echo_pin"`
	EchoTimeoutMS int    `toml:"echo_timeout_ms" json:"echo_timeout_ms"`
	SerialDevice  string `toml:"serial_device"   json:"serial_device"`
	BaudRate      int    `toml:"baud_rate"       json:"baud_rate"`
	SerialUnit    string `toml:"serial_unit"     json:"serial_unit"`
	ReplayPath    string `toml:"replay_path"     json:"replay_path"`
}

// EchoTimeout is the longest the GPIO driver waits for each echo edge.
func (s SensorConfig) EchoTimeout() time.Duration {
	return time.Duration(s.EchoTimeoutMS) * time.Millisecond
}

type FilterConfig struct {
	MinCM float64 `toml:"min_cm" json:"min_cm"`
	MaxCM float64 `toml:"max_cm" json:"max_cm"`
}

func (f FilterConfig) Filter() detect.Filter {
	return detect.Filter{MinCM: f.MinCM, MaxCM: f.MaxCM}
}

type ScanConfig struct {
	TimeoutSeconds      int  `toml:"timeout_seconds"       json:"timeout_seconds"`
	SampleIntervalMS    int  `toml:"sample_interval_ms"    json:"sample_interval_ms"`
	History             int  `toml:"history"               json:"history"`
	Auto                bool `toml:"auto"                  json:"auto"`
	AutoIntervalSeconds int  `toml:"auto_interval_seconds" json:"auto_interval_seconds"`
}

func (s ScanConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func (s ScanConfig) Cadence() time.Duration {
	return time.Duration(s.SampleIntervalMS) * time.Millisecond
}

// AutoInterval is the idle gap between back-to-back scans.
func (s ScanConfig) AutoInterval() time.Duration {
	return time.Duration(s.AutoIntervalSeconds) * time.Second
}

type DetectorConfig struct {
	BaselineSamples   int     `toml:"baseline_samples"    json:"baseline_samples"`
	OnsetDeviationCM  float64 `toml:"onset_deviation_cm"  json:"onset_deviation_cm"`
	StableDeviationCM float64 `toml:"stable_deviation_cm" json:"stable_deviation_cm"`
	StabilityWindow   int     `toml:"stability_window"    json:"stability_window"`
	StableRequired    int     `toml:"stable_required"     json:"stable_required"`
	SampleSpacingCM   float64 `toml:"sample_spacing_cm"   json:"sample_spacing_cm"`
	CautionDepthCM    float64 `toml:"caution_depth_cm"    json:"caution_depth_cm"`
	DangerousDepthCM  float64 `toml:"dangerous_depth_cm"  json:"dangerous_depth_cm"`
}

// Thresholds converts the section into detector tunables.
func (d DetectorConfig) Thresholds() detect.Thresholds {
	return detect.Thresholds{
		BaselineSamples:   d.BaselineSamples,
		OnsetDeviationCM:  d.OnsetDeviationCM,
		StableDeviationCM: d.StableDeviationCM,
		StabilityWindow:   d.StabilityWindow,
		StableRequired:    d.StableRequired,
		SampleSpacingCM:   d.SampleSpacingCM,
		CautionDepthCM:    d.CautionDepthCM,
		DangerousDepthCM:  d.DangerousDepthCM,
	}
}

type GPSConfig struct {
	Enabled        bool   `toml:"enabled"         json:"enabled"`
	GPSDHost       string `toml:"gpsd_host"       json:"gpsd_host"`
	TimeoutSeconds int    `toml:"timeout_seconds" json:"timeout_seconds"`
}

func (g GPSConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	th := detect.DefaultThresholds()
	f := detect.DefaultFilter()
	return Config{
		Data: DataConfig{
			Root:       "/var/lib/pothole",
			SaveCharts: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Server: ServerConfig{
			Bind: "0.0.0.0:8080",
		},
		Demo: DemoConfig{
			Enabled:         true,
			IntervalSeconds: 30,
		},
		Sensor: SensorConfig{
			Kind:          SensorSimulated,
			TriggerPin:    "GPIO23",
			EchoPin:       "GPIO24",
			EchoTimeoutMS: 30,
			SerialDevice:  "/dev/ttyUSB0",
			BaudRate:      9600,
			SerialUnit:    "mm",
		},
		Filter: FilterConfig{
			MinCM: f.MinCM,
			MaxCM: f.MaxCM,
		},
		Scan: ScanConfig{
			TimeoutSeconds:      25,
			SampleIntervalMS:    150,
			History:             50,
			AutoIntervalSeconds: 5,
		},
		Detector: DetectorConfig{
			BaselineSamples:   th.BaselineSamples,
			OnsetDeviationCM:  th.OnsetDeviationCM,
			StableDeviationCM: th.StableDeviationCM,
			StabilityWindow:   th.StabilityWindow,
			StableRequired:    th.StableRequired,
			SampleSpacingCM:   th.SampleSpacingCM,
			CautionDepthCM:    th.CautionDepthCM,
			DangerousDepthCM:  th.DangerousDepthCM,
		},
		GPS: GPSConfig{
			Enabled:        false,
			GPSDHost:       "localhost:2947",
			TimeoutSeconds: 3,
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := Parse(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes TOML into cfg (which should already hold defaults) and
// validates it.
func Parse(b []byte, cfg *Config) error {
	if err := toml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return Validate(*cfg)
}

// Validate checks every constraint and returns the first violation.
func Validate(cfg Config) error {
	if cfg.Data.Root == "" {
		return errors.New("data.root must not be empty")
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", cfg.Logging.Level)
	}
	if cfg.Demo.IntervalSeconds < 0 {
		return errors.New("demo.interval_seconds must be >= 0")
	}
	switch cfg.Sensor.Kind {
	case SensorHCSR04:
		if cfg.Sensor.TriggerPin == "" || cfg.Sensor.EchoPin == "" {
			return errors.New("sensor.trigger_pin and sensor.echo_pin are required for hcsr04")
		}
		if cfg.Sensor.EchoTimeoutMS <= 0 {
			return errors.New("sensor.echo_timeout_ms must be > 0")
		}
	case SensorSerial:
		if cfg.Sensor.SerialDevice == "" {
			return errors.New("sensor.serial_device is required for serial")
		}
		switch cfg.Sensor.SerialUnit {
		case "mm", "cm", "in":
		default:
			return fmt.Errorf("sensor.serial_unit %q must be mm, cm or in", cfg.Sensor.SerialUnit)
		}
	case SensorReplay:
		if cfg.Sensor.ReplayPath == "" {
			return errors.New("sensor.replay_path is required for replay")
		}
	case SensorSimulated:
	default:
		return fmt.Errorf("sensor.kind %q is not one of hcsr04, serial, replay, simulated", cfg.Sensor.Kind)
	}
	if cfg.Filter.MinCM >= cfg.Filter.MaxCM {
		return errors.New("filter.min_cm must be below filter.max_cm")
	}
	if cfg.Scan.TimeoutSeconds < 1 {
		return errors.New("scan.timeout_seconds must be >= 1")
	}
	if cfg.Scan.SampleIntervalMS < 0 {
		return errors.New("scan.sample_interval_ms must be >= 0")
	}
	if cfg.Scan.History < 1 {
		return errors.New("scan.history must be >= 1")
	}
	if cfg.Scan.AutoIntervalSeconds < 0 {
		return errors.New("scan.auto_interval_seconds must be >= 0")
	}
	if err := cfg.Detector.Thresholds().Validate(); err != nil {
		return fmt.Errorf("detector.%w", err)
	}
	if cfg.GPS.Enabled && cfg.GPS.GPSDHost == "" {
		return errors.New("gps.gpsd_host must not be empty when gps is enabled")
	}
	return nil
}
