// Package sensor provides the ranging sources a scan reads from: an HC-SR04
// wired to GPIO, a serial ultrasonic rangefinder, and a recorded trace. Each
// source returns raw, unfiltered centimeter values; range checking is left to
// the detector's filter.
package sensor

import (
	"context"
	"errors"
	"fmt"

	"github.com/large-farva/pothole-engine/internal/config"
)

var (
	// ErrNoEcho means a single measurement produced nothing usable. The scan
	// loop counts it and tries again.
	ErrNoEcho = errors.New("sensor: no echo")

	// ErrExhausted means a finite source has no more samples.
	ErrExhausted = errors.New("sensor: source exhausted")
)

// Source produces one raw distance per call.
type Source interface {
	Measure(ctx context.Context) (float64, error)
	Close() error
}

// Open builds the hardware or replay source named by cfg.Kind. Simulated
// sources live in the demo package.
func Open(cfg config.SensorConfig) (Source, error) {
	switch cfg.Kind {
	case config.SensorHCSR04:
		return OpenHCSR04(cfg.TriggerPin, cfg.EchoPin, cfg.EchoTimeout())
	case config.SensorSerial:
		return OpenSerial(cfg.SerialDevice, SerialOptions{BaudRate: cfg.BaudRate, Unit: cfg.SerialUnit})
	case config.SensorReplay:
		return OpenReplay(cfg.ReplayPath)
	default:
		return nil, fmt.Errorf("sensor: kind %q has no hardware source", cfg.Kind)
	}
}
