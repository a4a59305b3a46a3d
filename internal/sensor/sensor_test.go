package sensor

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/large-farva/pothole-engine/internal/config"
)

func TestReplayTrace(t *testing.T) {
	trace := `# recorded 2024-05-02, bench
20.0
 20.1
-

0,19.9
1,nan
300
`
	r := NewReplay(strings.NewReader(trace))
	ctx := context.Background()

	type step struct {
		v   float64
		err error
	}
	want := []step{
		{20.0, nil},
		{20.1, nil},
		{0, ErrNoEcho},
		{0, ErrNoEcho},
		{19.9, nil},
		{0, ErrNoEcho},
		{300, nil},
		{0, ErrExhausted},
	}
	for i, w := range want {
		v, err := r.Measure(ctx)
		if w.err != nil {
			assert.ErrorIs(t, err, w.err, "step %d", i)
			continue
		}
		require.NoError(t, err, "step %d", i)
		assert.InDelta(t, w.v, v, 1e-9, "step %d", i)
	}
	assert.NoError(t, r.Close())
}

func TestReplayBadLine(t *testing.T) {
	r := NewReplay(strings.NewReader("20\nabc\n"))
	_, err := r.Measure(context.Background())
	require.NoError(t, err)

	_, err = r.Measure(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.False(t, errors.Is(err, ErrNoEcho))
}

func TestReplayCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewReplay(strings.NewReader("20\n")).Measure(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenReplayFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.txt")
	require.NoError(t, os.WriteFile(path, []byte("42.5\n"), 0o644))

	src, err := Open(config.SensorConfig{Kind: config.SensorReplay, ReplayPath: path})
	require.NoError(t, err)
	defer src.Close()

	v, err := src.Measure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42.5, v)
}

func TestOpenRejectsSimulated(t *testing.T) {
	_, err := Open(config.SensorConfig{Kind: config.SensorSimulated})
	assert.Error(t, err)
}

// chunkedPort hands out one preset chunk per Read, then io.EOF.
type chunkedPort struct {
	chunks []string
	closed bool
}

func (p *chunkedPort) Read(b []byte) (int, error) {
	if len(p.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(b, p.chunks[0])
	p.chunks[0] = p.chunks[0][n:]
	if p.chunks[0] == "" {
		p.chunks = p.chunks[1:]
	}
	return n, nil
}

func (p *chunkedPort) Close() error {
	p.closed = true
	return nil
}

func TestSerialFrames(t *testing.T) {
	port := &chunkedPort{chunks: []string{"R02", "05\rR0198\r", "Rxx\r", "", "R0300\r"}}
	s := NewSerial(port, "mm")
	ctx := context.Background()

	v, err := s.Measure(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 20.5, v, 1e-9)

	v, err = s.Measure(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 19.8, v, 1e-9)

	_, err = s.Measure(ctx)
	assert.ErrorIs(t, err, ErrNoEcho)

	// An empty read is a port read timeout.
	_, err = s.Measure(ctx)
	assert.ErrorIs(t, err, ErrNoEcho)

	v, err = s.Measure(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 30.0, v, 1e-9)

	_, err = s.Measure(ctx)
	assert.ErrorIs(t, err, ErrExhausted)

	require.NoError(t, s.Close())
	assert.True(t, port.closed)
}

func TestSerialUnterminatedNoise(t *testing.T) {
	port := &chunkedPort{chunks: []string{strings.Repeat("z", 40), strings.Repeat("z", 40), "R0100\r"}}
	s := NewSerial(port, "cm")

	_, err := s.Measure(context.Background())
	assert.ErrorIs(t, err, ErrNoEcho)

	v, err := s.Measure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)
}

func TestSerialFrameStartsInsideNoise(t *testing.T) {
	// The frame marker arrives in the chunk that overflows the buffer.
	port := &chunkedPort{chunks: []string{strings.Repeat("z", 70) + "R02", "50\r", "#!R0120\r"}}
	s := NewSerial(port, "cm")
	ctx := context.Background()

	_, err := s.Measure(ctx)
	assert.ErrorIs(t, err, ErrNoEcho)

	v, err := s.Measure(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250.0, v)

	v, err = s.Measure(ctx)
	require.NoError(t, err, "leading line noise is dropped")
	assert.Equal(t, 120.0, v)
}

func TestParseFrameUnits(t *testing.T) {
	tests := []struct {
		frame string
		unit  string
		want  float64
	}{
		{"R0500", "mm", 50},
		{"R050", "cm", 50},
		{"R010", "in", 25.4},
		{"\nR0500", "mm", 50},
	}
	for _, tt := range tests {
		got, err := parseFrame(tt.frame, tt.unit)
		require.NoError(t, err, tt.frame)
		assert.InDelta(t, tt.want, got, 1e-9, tt.frame)
	}

	_, err := parseFrame("R0500", "furlong")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoEcho))

	_, err = parseFrame("R", "mm")
	assert.ErrorIs(t, err, ErrNoEcho)
}

func newTestPins() (*gpiotest.Pin, *gpiotest.Pin) {
	trig := &gpiotest.Pin{N: "GPIO23", Num: 23}
	echo := &gpiotest.Pin{N: "GPIO24", Num: 24, EdgesChan: make(chan gpio.Level, 4)}
	return trig, echo
}

func TestHCSR04PulseWidth(t *testing.T) {
	trig, echo := newTestPins()
	s, err := NewHCSR04(trig, echo, 50*time.Millisecond)
	require.NoError(t, err)

	t0 := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	stamps := []time.Time{t0, t0.Add(time.Millisecond)}
	s.now = func() time.Time {
		ts := stamps[0]
		stamps = stamps[1:]
		return ts
	}

	echo.EdgesChan <- gpio.High
	echo.EdgesChan <- gpio.Low

	v, err := s.Measure(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 17.15, v, 1e-9)
	assert.Equal(t, gpio.Low, trig.Read())
}

func TestHCSR04NoEcho(t *testing.T) {
	trig, echo := newTestPins()
	s, err := NewHCSR04(trig, echo, 5*time.Millisecond)
	require.NoError(t, err)

	_, err = s.Measure(context.Background())
	assert.ErrorIs(t, err, ErrNoEcho)

	// Rising edge seen, falling edge lost.
	echo.EdgesChan <- gpio.High
	_, err = s.Measure(context.Background())
	assert.ErrorIs(t, err, ErrNoEcho)

	assert.NoError(t, s.Close())
}
