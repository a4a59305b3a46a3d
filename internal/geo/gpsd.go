// Package geo tags scans with a position fix from a local gpsd.
package geo

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// Location is where a scan was taken.
type Location struct {
	Lat  float64   `json:"lat"`           // degrees North
	Lon  float64   `json:"lon"`           // degrees East
	Alt  float64   `json:"alt_m"`         // meters above sea level, zero on a 2D fix
	Mode int       `json:"mode"`          // 2 = 2D fix, 3 = 3D fix
	Time time.Time `json:"time,omitzero"` // receiver time, when gpsd reports one
}

// tpvReport is the subset of a gpsd TPV JSON object we need.
type tpvReport struct {
	Class string  `json:"class"`
	Mode  int     `json:"mode"`
	Time  string  `json:"time"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Alt   float64 `json:"altMSL"`
}

// LocationFromGPSD connects to gpsd at addr (host:port), enables JSON
// watching, and reads TPV reports until a 2D or 3D fix arrives. The whole
// exchange is bounded by timeout and by ctx.
func LocationFromGPSD(ctx context.Context, addr string, timeout time.Duration) (Location, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Location{}, fmt.Errorf("gpsd connect: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return Location{}, fmt.Errorf("gpsd set deadline: %w", err)
		}
	}
	// Unblock the scanner if the caller gives up before the deadline.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := fmt.Fprint(conn, `?WATCH={"enable":true,"json":true};`); err != nil {
		return Location{}, fmt.Errorf("gpsd watch: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var report tpvReport
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			continue
		}
		if report.Class != "TPV" || report.Mode < 2 {
			continue
		}

		loc := Location{Lat: report.Lat, Lon: report.Lon, Mode: report.Mode}
		if report.Mode >= 3 {
			loc.Alt = report.Alt
		}
		if t, err := time.Parse(time.RFC3339Nano, report.Time); err == nil {
			loc.Time = t
		}
		return loc, nil
	}

	if err := ctx.Err(); err != nil {
		return Location{}, fmt.Errorf("gpsd: no fix obtained within %v: %w", timeout, err)
	}
	if err := scanner.Err(); err != nil {
		// The socket deadline equals the context deadline and may fire first.
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return Location{}, fmt.Errorf("gpsd: no fix obtained within %v: %w", timeout, context.DeadlineExceeded)
		}
		return Location{}, fmt.Errorf("gpsd read: %w", err)
	}
	return Location{}, fmt.Errorf("gpsd: connection closed before a fix")
}

func (l Location) String() string {
	return fmt.Sprintf("%.6f,%.6f", l.Lat, l.Lon)
}
