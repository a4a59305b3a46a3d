package detect

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Reading is one validated sample in the scan log. Index is its 0-based
// position and never changes once appended.
type Reading struct {
	Index    int     `json:"index"`
	Distance float64 `json:"distance_cm"`
}

// Event is the finalized summary of a pothole. It only exists once the
// detector has resolved.
type Event struct {
	StartIndex int     `json:"start_index"`
	EndIndex   int     `json:"end_index"`
	Depth      float64 `json:"depth_cm"`
	LengthCM   float64 `json:"length_cm"`
	Tier       Tier    `json:"safety_tier"`
}

// Report describes what a single Ingest call did.
type Report struct {
	Index     int     `json:"index"`
	Distance  float64 `json:"distance_cm"`
	Deviation float64 `json:"deviation_cm"` // |d - baseline|, zero before calibration
	From      State   `json:"from"`
	To        State   `json:"to"`
	Opened    bool    `json:"opened,omitempty"`
	Resolved  bool    `json:"resolved,omitempty"`
	Ignored   bool    `json:"ignored,omitempty"` // reading arrived after resolution
	Event     *Event  `json:"event,omitempty"`
}

// Transitioned reports whether the reading moved the detector between states.
func (r Report) Transitioned() bool { return r.From != r.To }

// Detector is the pothole state machine. It is owned by a single caller and
// is not safe for concurrent use.
type Detector struct {
	th Thresholds

	state    State
	log      []Reading
	baseline float64

	start  int
	maxDev float64
	window *stabilityWindow
	event  Event
}

// New returns a detector in StateAwaitingBaseline.
func New(th Thresholds) (*Detector, error) {
	if err := th.Validate(); err != nil {
		return nil, fmt.Errorf("detector thresholds: %w", err)
	}
	return &Detector{
		th:     th,
		window: newStabilityWindow(th.StabilityWindow),
	}, nil
}

// NewDefault returns a detector using DefaultThresholds.
func NewDefault() *Detector {
	d, _ := New(DefaultThresholds())
	return d
}

// Reset discards the log, baseline and any event, keeping the thresholds.
func (d *Detector) Reset() {
	d.state = StateAwaitingBaseline
	d.log = nil
	d.baseline = 0
	d.start = 0
	d.maxDev = 0
	d.window.reset()
	d.event = Event{}
}

func (d *Detector) Thresholds() Thresholds { return d.th }

func (d *Detector) State() State { return d.state }

// Baseline returns the reference surface distance once calibrated.
func (d *Detector) Baseline() (float64, bool) {
	if d.state == StateAwaitingBaseline {
		return 0, false
	}
	return d.baseline, true
}

// Readings returns a copy of the reading log.
func (d *Detector) Readings() []Reading {
	out := make([]Reading, len(d.log))
	copy(out, d.log)
	return out
}

// Len is the number of readings in the log.
func (d *Detector) Len() int { return len(d.log) }

// MaxDeviation is the running maximum deviation of the open (or closed) event.
func (d *Detector) MaxDeviation() (float64, bool) {
	if d.state != StateInPothole && d.state != StateResolved {
		return 0, false
	}
	return d.maxDev, true
}

// StartIndex is the index of the reading that opened the current event.
func (d *Detector) StartIndex() (int, bool) {
	if d.state != StateInPothole && d.state != StateResolved {
		return 0, false
	}
	return d.start, true
}

// Event returns the finalized event. Partial data from an unresolved scan is
// never returned.
func (d *Detector) Event() (Event, bool) {
	if d.state != StateResolved {
		return Event{}, false
	}
	return d.event, true
}

// Ingest feeds one filtered distance into the state machine.
func (d *Detector) Ingest(dist float64) Report {
	rep := Report{Index: -1, Distance: dist, From: d.state}

	switch d.state {
	case StateResolved:
		rep.Ignored = true

	case StateAwaitingBaseline:
		rep.Index = d.appendReading(dist)
		if len(d.log) == d.th.BaselineSamples {
			d.baseline = stat.Mean(d.distances(), nil)
			d.state = StateIdle
		}

	case StateIdle:
		rep.Index = d.appendReading(dist)
		rep.Deviation = math.Abs(dist - d.baseline)
		prev := dist
		if len(d.log) > 1 {
			prev = d.log[len(d.log)-2].Distance
		}
		if rep.Deviation > d.th.OnsetDeviationCM && math.Abs(dist-prev) > d.th.OnsetDeviationCM {
			d.open(rep.Index)
			rep.Opened = true
			// The onset reading is also the first reading inside the pothole.
			d.track(rep.Deviation, &rep)
		}

	case StateInPothole:
		rep.Index = d.appendReading(dist)
		rep.Deviation = math.Abs(dist - d.baseline)
		d.track(rep.Deviation, &rep)
	}

	rep.To = d.state
	return rep
}

func (d *Detector) appendReading(dist float64) int {
	idx := len(d.log)
	d.log = append(d.log, Reading{Index: idx, Distance: dist})
	return idx
}

func (d *Detector) distances() []float64 {
	out := make([]float64, len(d.log))
	for i, r := range d.log {
		out[i] = r.Distance
	}
	return out
}

func (d *Detector) open(idx int) {
	d.state = StateInPothole
	d.start = idx
	d.maxDev = 0
	d.window.reset()
}

// track updates the open event with one deviation and closes it once enough
// of the trailing window sits near the baseline.
func (d *Detector) track(dev float64, rep *Report) {
	d.maxDev = math.Max(d.maxDev, dev)
	d.window.push(dev <= d.th.StableDeviationCM)
	if d.window.stableCount() < d.th.StableRequired {
		return
	}

	end := len(d.log) - 1
	d.event = Event{
		StartIndex: d.start,
		EndIndex:   end,
		Depth:      d.maxDev,
		LengthCM:   float64(end-d.start) * d.th.SampleSpacingCM,
		Tier:       Classify(d.maxDev, d.th),
	}
	d.state = StateResolved
	ev := d.event
	rep.Resolved = true
	rep.Event = &ev
}
