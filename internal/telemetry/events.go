// Package telemetry defines the typed events that flow over the WebSocket
// connection between potholed and its clients. Scans, the scheduler, and the
// app all emit these structs; the hub marshals them as-is.
package telemetry

import (
	"time"

	"github.com/large-farva/pothole-engine/internal/detect"
	"github.com/large-farva/pothole-engine/internal/geo"
)

// EventType identifies the kind of WebSocket event.
type EventType string

const (
	EventHello           EventType = "hello"
	EventHeartbeat       EventType = "heartbeat"
	EventState           EventType = "state"
	EventLog             EventType = "log"
	EventReading         EventType = "reading"
	EventPotholeOpened   EventType = "pothole_opened"
	EventPotholeResolved EventType = "pothole_resolved"
	EventScanComplete    EventType = "scan_complete"
)

// Event is the base envelope shared by every event type.
type Event struct {
	Type      EventType `json:"type"`
	TS        string    `json:"ts"`
	Component string    `json:"component,omitempty"`
}

// NewEvent stamps an envelope with t, formatted like every other event
// timestamp.
func NewEvent(typ EventType, component string, t time.Time) Event {
	return Event{Type: typ, TS: t.UTC().Format(time.RFC3339Nano), Component: component}
}

// NowTS returns the current UTC time as an RFC 3339 nano string.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Hello is the first message every WebSocket client receives.
type Hello struct {
	Event
	Version string `json:"version"`
	State   string `json:"state"`
	Mode    string `json:"mode"`
	Paused  bool   `json:"paused"`
}

// Heartbeat is sent periodically so clients can detect connectivity and
// monitor daemon uptime.
type Heartbeat struct {
	Event
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	ScansTotal    int    `json:"scans_total"`
}

// StateTransition is emitted whenever the daemon or a scan's detector moves
// between states. Component tells the two apart.
type StateTransition struct {
	Event
	From   string `json:"from"`
	To     string `json:"to"`
	ScanID string `json:"scan_id,omitempty"`
}

// LogLine carries a human-readable log message at a severity level.
type LogLine struct {
	Event
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Reading is one accepted distance within a scan.
type Reading struct {
	Event
	ScanID    string  `json:"scan_id"`
	Index     int     `json:"index"`
	Distance  float64 `json:"distance_cm"`
	Deviation float64 `json:"deviation_cm"`
	State     string  `json:"state"`
}

// PotholeOpened marks the onset reading of a pothole.
type PotholeOpened struct {
	Event
	ScanID     string  `json:"scan_id"`
	StartIndex int     `json:"start_index"`
	Baseline   float64 `json:"baseline_cm"`
	Distance   float64 `json:"distance_cm"`
}

// PotholeResolved carries the finalized pothole summary.
type PotholeResolved struct {
	Event
	ScanID  string       `json:"scan_id"`
	Pothole detect.Event `json:"pothole"`
}

// ScanComplete is emitted once per scan, resolved or not. Pothole is nil for
// an incomplete scan.
type ScanComplete struct {
	Event
	ScanID   string        `json:"scan_id"`
	Source   string        `json:"source"`
	Stop     string        `json:"stop"`
	Readings int           `json:"readings"`
	Invalid  int           `json:"invalid"`
	Duration float64       `json:"duration_seconds"`
	Pothole  *detect.Event `json:"pothole,omitempty"`
	Location *geo.Location `json:"location,omitempty"`
}
