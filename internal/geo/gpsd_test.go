package geo

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGPSD accepts one client, checks for the WATCH command, then writes
// lines and keeps the connection open until the test ends.
func fakeGPSD(t *testing.T, lines ...string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		cmd, _ := bufio.NewReader(conn).ReadString(';')
		if !strings.HasPrefix(cmd, "?WATCH=") {
			return
		}
		for _, l := range lines {
			if _, err := conn.Write([]byte(l + "\n")); err != nil {
				return
			}
		}
		time.Sleep(2 * time.Second)
	}()
	return ln.Addr().String()
}

func TestLocationFromGPSD3DFix(t *testing.T) {
	addr := fakeGPSD(t,
		`{"class":"VERSION","release":"3.25"}`,
		`not json`,
		`{"class":"TPV","mode":1}`,
		`{"class":"TPV","mode":3,"time":"2024-05-02T12:00:00.000Z","lat":45.5231,"lon":-122.6765,"altMSL":15.2}`,
	)

	loc, err := LocationFromGPSD(context.Background(), addr, time.Second)
	require.NoError(t, err)
	assert.InDelta(t, 45.5231, loc.Lat, 1e-9)
	assert.InDelta(t, -122.6765, loc.Lon, 1e-9)
	assert.InDelta(t, 15.2, loc.Alt, 1e-9)
	assert.Equal(t, 3, loc.Mode)
	assert.Equal(t, 2024, loc.Time.Year())
	assert.Equal(t, "45.523100,-122.676500", loc.String())
}

func TestLocationFromGPSD2DFixDropsAltitude(t *testing.T) {
	addr := fakeGPSD(t, `{"class":"TPV","mode":2,"lat":1.5,"lon":2.5,"altMSL":99}`)

	loc, err := LocationFromGPSD(context.Background(), addr, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, loc.Mode)
	assert.Zero(t, loc.Alt)
	assert.True(t, loc.Time.IsZero())
}

func TestLocationFromGPSDNoFix(t *testing.T) {
	addr := fakeGPSD(t, `{"class":"TPV","mode":1}`)

	start := time.Now()
	_, err := LocationFromGPSD(context.Background(), addr, 200*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fix")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 1500*time.Millisecond)
}

func TestLocationFromGPSDNoFixRepeated(t *testing.T) {
	// Whichever of the socket and context deadlines fires first, a silent
	// gpsd reads as a missing fix.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		var conns []net.Conn
		defer func() {
			for _, c := range conns {
				c.Close()
			}
		}()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conns = append(conns, conn) // silent: never answers WATCH
		}
	}()

	addr := ln.Addr().String()
	for range 20 {
		_, err := LocationFromGPSD(context.Background(), addr, 20*time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no fix")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
}

func TestLocationFromGPSDCancelled(t *testing.T) {
	addr := fakeGPSD(t)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := LocationFromGPSD(ctx, addr, 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocationFromGPSDRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = LocationFromGPSD(context.Background(), addr, time.Second)
	assert.Error(t, err)
}
