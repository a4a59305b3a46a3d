package scan

import (
	"time"

	"github.com/large-farva/pothole-engine/internal/detect"
	"github.com/large-farva/pothole-engine/internal/geo"
)

// Stop records why a scan ended.
type Stop string

const (
	StopResolved    Stop = "resolved"
	StopTimeout     Stop = "timeout"
	StopCancelled   Stop = "cancelled"
	StopExhausted   Stop = "exhausted"
	StopSourceError Stop = "source_error"
)

// Result is everything known about a finished scan. Event is set only when
// the detector resolved; an incomplete scan never reports depth or length.
type Result struct {
	ID         string           `json:"id"`
	Source     string           `json:"source"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Stop       Stop             `json:"stop"`
	Readings   []detect.Reading `json:"readings"`
	Baseline   *float64         `json:"baseline_cm,omitempty"`
	Event      *detect.Event    `json:"pothole,omitempty"`
	RawSamples int              `json:"raw_samples"`
	Invalid    int              `json:"invalid"`
	FinalState detect.State     `json:"final_state"`
	Location   *geo.Location    `json:"location,omitempty"`
}

// Resolved reports whether the scan produced a pothole event.
func (r *Result) Resolved() bool {
	return r.Stop == StopResolved && r.Event != nil
}

func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ShortID is the first block of the scan UUID, used in logs and file names.
func (r *Result) ShortID() string {
	if len(r.ID) < 8 {
		return r.ID
	}
	return r.ID[:8]
}

// Summary is the list view of a scan, without the reading log.
type Summary struct {
	ID              string        `json:"id"`
	Source          string        `json:"source"`
	StartedAt       time.Time     `json:"started_at"`
	DurationSeconds float64       `json:"duration_seconds"`
	Stop            Stop          `json:"stop"`
	Readings        int           `json:"readings"`
	Invalid         int           `json:"invalid"`
	Pothole         *detect.Event `json:"pothole,omitempty"`
	Location        *geo.Location `json:"location,omitempty"`
}

func (r *Result) Summary() Summary {
	return Summary{
		ID:              r.ID,
		Source:          r.Source,
		StartedAt:       r.StartedAt,
		DurationSeconds: r.Duration().Seconds(),
		Stop:            r.Stop,
		Readings:        len(r.Readings),
		Invalid:         r.Invalid,
		Pothole:         r.Event,
		Location:        r.Location,
	}
}
