package sensor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
)

// maxFrameLen bounds how much unterminated input is buffered before it is
// discarded as line noise.
const maxFrameLen = 64

// SerialOptions configures a serial rangefinder. Unit is the unit of the
// digits in each "R####" frame: mm, cm, or in.
type SerialOptions struct {
	BaudRate    int
	Unit        string
	ReadTimeout time.Duration
}

func (o SerialOptions) normalize() SerialOptions {
	if o.BaudRate <= 0 {
		o.BaudRate = 9600
	}
	if o.Unit == "" {
		o.Unit = "mm"
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 500 * time.Millisecond
	}
	return o
}

// Serial reads free-running "R####\r" frames, as emitted by MaxBotix-style
// ultrasonic rangefinders.
type Serial struct {
	port io.ReadCloser
	unit string

	pending []byte
	chunk   [32]byte
}

// OpenSerial opens device at 8N1 with the given baud rate.
func OpenSerial(device string, opts SerialOptions) (*Serial, error) {
	opts = opts.normalize()
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", device, err)
	}
	if err := port.SetReadTimeout(opts.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("serial: read timeout: %w", err)
	}
	return NewSerial(port, opts.Unit), nil
}

// NewSerial reads frames from any byte stream. A read that returns no bytes
// and no error is treated as a read timeout.
func NewSerial(port io.ReadCloser, unit string) *Serial {
	return &Serial{port: port, unit: unit}
}

func (s *Serial) Measure(ctx context.Context) (float64, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		if i := bytes.IndexByte(s.pending, '\r'); i >= 0 {
			frame := s.pending[:i]
			s.pending = s.pending[i+1:]
			// Line noise ahead of the frame marker is not part of the frame.
			if j := bytes.LastIndexByte(frame, 'R'); j > 0 {
				frame = frame[j:]
			}
			return parseFrame(string(frame), s.unit)
		}
		if len(s.pending) > maxFrameLen {
			// Keep a frame that may have started inside the noise. j > 0
			// guarantees the buffer shrinks.
			if j := bytes.LastIndexByte(s.pending, 'R'); j > 0 {
				s.pending = append(s.pending[:0], s.pending[j:]...)
			} else {
				s.pending = s.pending[:0]
			}
			return 0, fmt.Errorf("%w: unterminated frame", ErrNoEcho)
		}

		n, err := s.port.Read(s.chunk[:])
		s.pending = append(s.pending, s.chunk[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, ErrExhausted
			}
			return 0, fmt.Errorf("serial: read: %w", err)
		}
		if n == 0 {
			return 0, ErrNoEcho
		}
	}
}

func (s *Serial) Close() error {
	return s.port.Close()
}

// parseFrame converts "R0123" into centimeters.
func parseFrame(frame, unit string) (float64, error) {
	frame = strings.TrimSpace(frame)
	digits, ok := strings.CutPrefix(frame, "R")
	if !ok || digits == "" {
		return 0, fmt.Errorf("%w: malformed frame %q", ErrNoEcho, frame)
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed frame %q", ErrNoEcho, frame)
	}

	switch unit {
	case "mm":
		return float64(v) / 10, nil
	case "cm":
		return float64(v), nil
	case "in":
		return float64(v) * 2.54, nil
	default:
		return 0, fmt.Errorf("serial: unknown unit %q", unit)
	}
}
