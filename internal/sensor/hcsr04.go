package sensor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// halfSpeedOfSound converts echo pulse width (s) into one-way distance (cm).
const halfSpeedOfSound = 17150.0

// HCSR04 drives a trigger/echo ultrasonic ranger over two GPIO lines.
type HCSR04 struct {
	trigger gpio.PinOut
	echo    gpio.PinIn
	timeout time.Duration

	now func() time.Time
}

// OpenHCSR04 initializes the host drivers and claims the named pins, e.g.
// "GPIO23" and "GPIO24" on a Raspberry Pi.
func OpenHCSR04(triggerName, echoName string, timeout time.Duration) (*HCSR04, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hcsr04: host init: %w", err)
	}
	trig := gpioreg.ByName(triggerName)
	if trig == nil {
		return nil, fmt.Errorf("hcsr04: no trigger pin %q", triggerName)
	}
	echo := gpioreg.ByName(echoName)
	if echo == nil {
		return nil, fmt.Errorf("hcsr04: no echo pin %q", echoName)
	}
	return NewHCSR04(trig, echo, timeout)
}

// NewHCSR04 wraps already-resolved pins. The trigger is driven low and the
// echo line is armed for edge detection.
func NewHCSR04(trigger gpio.PinOut, echo gpio.PinIn, timeout time.Duration) (*HCSR04, error) {
	if err := trigger.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("hcsr04: trigger low: %w", err)
	}
	if err := echo.In(gpio.PullDown, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("hcsr04: echo input: %w", err)
	}
	return &HCSR04{
		trigger: trigger,
		echo:    echo,
		timeout: timeout,
		now:     time.Now,
	}, nil
}

// Measure fires one 10µs trigger pulse and times the echo pulse. A missing
// rising or falling edge within the timeout is reported as ErrNoEcho.
func (s *HCSR04) Measure(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := s.trigger.Out(gpio.High); err != nil {
		return 0, fmt.Errorf("hcsr04: trigger high: %w", err)
	}
	time.Sleep(10 * time.Microsecond)
	if err := s.trigger.Out(gpio.Low); err != nil {
		return 0, fmt.Errorf("hcsr04: trigger low: %w", err)
	}

	if !s.echo.WaitForEdge(s.timeout) {
		return 0, ErrNoEcho
	}
	start := s.now()
	if !s.echo.WaitForEdge(s.timeout) {
		return 0, ErrNoEcho
	}
	stop := s.now()

	return stop.Sub(start).Seconds() * halfSpeedOfSound, nil
}

// Close disarms edge detection and leaves the trigger low.
func (s *HCSR04) Close() error {
	return errors.Join(
		s.echo.In(gpio.PullDown, gpio.NoEdge),
		s.trigger.Out(gpio.Low),
	)
}
