// Package scan runs one acquisition pass: it polls a sensor at a fixed
// cadence, filters each raw value, feeds the detector, and stops when the
// detector resolves, the scan times out, the source runs dry, or the caller
// cancels. The detector never sees time; the timeout lives here.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/large-farva/pothole-engine/internal/detect"
	"github.com/large-farva/pothole-engine/internal/sensor"
	"github.com/large-farva/pothole-engine/internal/telemetry"
)

const (
	DefaultTimeout = 25 * time.Second
	DefaultCadence = 150 * time.Millisecond
)

// Runner holds everything one scan needs. Zero-valued fields fall back to
// defaults; only Source is required. A Runner without a preset ID may be
// reused for many scans but must not run two at once.
type Runner struct {
	// ID names the next scan. A fresh UUID is used when empty.
	ID string

	Source     sensor.Source
	SourceName string

	Clock      clock.Clock
	Filter     detect.Filter
	Thresholds detect.Thresholds
	Timeout    time.Duration
	Cadence    time.Duration

	Log *zap.SugaredLogger

	// Emit receives telemetry events as the scan progresses. It is called
	// from the scanning goroutine and must not block.
	Emit func(v any)
}

func (r *Runner) withDefaults() {
	if r.Clock == nil {
		r.Clock = clock.New()
	}
	if r.Filter == (detect.Filter{}) {
		r.Filter = detect.DefaultFilter()
	}
	if r.Thresholds == (detect.Thresholds{}) {
		r.Thresholds = detect.DefaultThresholds()
	}
	if r.Timeout <= 0 {
		r.Timeout = DefaultTimeout
	}
	if r.Log == nil {
		r.Log = zap.NewNop().Sugar()
	}
}

// Run performs one scan. The returned error is non-nil only for a hard
// source failure (StopSourceError) or an unusable configuration; the Result
// is still returned in the first case so the readings are not lost.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.Source == nil {
		return nil, errors.New("scan: no source")
	}
	r.withDefaults()

	det, err := detect.New(r.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	res := &Result{
		ID:        id,
		Source:    r.SourceName,
		StartedAt: r.Clock.Now().UTC(),
	}
	deadline := res.StartedAt.Add(r.Timeout)
	scanCtx, cancel := r.Clock.WithDeadline(ctx, deadline)
	defer cancel()

	log := r.Log.With("scan", res.ShortID())
	log.Infow("scan started", "source", r.SourceName, "timeout", r.Timeout, "cadence", r.Cadence)

	var runErr error
loop:
	for {
		if stop, done := r.expired(ctx, scanCtx, deadline); done {
			res.Stop = stop
			break
		}

		raw, err := r.Source.Measure(scanCtx)
		switch {
		case err == nil:
		case errors.Is(err, sensor.ErrNoEcho):
			res.RawSamples++
			res.Invalid++
			log.Debugw("lost echo", "error", err)
			r.pause(scanCtx)
			continue
		case errors.Is(err, sensor.ErrExhausted):
			res.Stop = StopExhausted
			break loop
		case scanCtx.Err() != nil:
			continue
		default:
			res.Stop = StopSourceError
			runErr = fmt.Errorf("scan %s: %w", res.ShortID(), err)
			log.Errorw("sensor failed", "error", err)
			break loop
		}

		res.RawSamples++
		dist, ok := r.Filter.Validate(raw)
		if !ok {
			res.Invalid++
			log.Debugw("reading rejected", "raw_cm", raw)
			r.pause(scanCtx)
			continue
		}

		rep := det.Ingest(dist)
		r.publish(res.ID, det, rep, log)
		if det.State() == detect.StateResolved {
			res.Stop = StopResolved
			break
		}
		r.pause(scanCtx)
	}

	res.FinishedAt = r.Clock.Now().UTC()
	res.Readings = det.Readings()
	res.FinalState = det.State()
	if b, ok := det.Baseline(); ok {
		res.Baseline = &b
	}
	if ev, ok := det.Event(); ok && res.Stop == StopResolved {
		res.Event = &ev
	}

	log.Infow("scan finished",
		"stop", res.Stop,
		"readings", len(res.Readings),
		"invalid", res.Invalid,
		"state", res.FinalState,
		"elapsed", res.Duration(),
	)
	return res, runErr
}

// expired reports whether the scan must end before taking another sample.
// Cancellation by the caller wins over the timeout.
func (r *Runner) expired(ctx, scanCtx context.Context, deadline time.Time) (Stop, bool) {
	if ctx.Err() != nil {
		return StopCancelled, true
	}
	if scanCtx.Err() != nil || !r.Clock.Now().Before(deadline) {
		return StopTimeout, true
	}
	return "", false
}

// pause waits one cadence period on the runner's clock.
func (r *Runner) pause(ctx context.Context) {
	if r.Cadence <= 0 {
		return
	}
	t := r.Clock.Timer(r.Cadence)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (r *Runner) publish(id string, det *detect.Detector, rep detect.Report, log *zap.SugaredLogger) {
	now := r.Clock.Now()

	r.emit(telemetry.Reading{
		Event:     telemetry.NewEvent(telemetry.EventReading, "scan", now),
		ScanID:    id,
		Index:     rep.Index,
		Distance:  rep.Distance,
		Deviation: rep.Deviation,
		State:     rep.To.String(),
	})

	if rep.Transitioned() {
		r.emit(telemetry.StateTransition{
			Event:  telemetry.NewEvent(telemetry.EventState, "detector", now),
			From:   rep.From.String(),
			To:     rep.To.String(),
			ScanID: id,
		})
	}

	if rep.From == detect.StateAwaitingBaseline && rep.To == detect.StateIdle {
		b, _ := det.Baseline()
		log.Infow("baseline established", "baseline_cm", b)
	}

	if rep.Opened {
		b, _ := det.Baseline()
		log.Infow("pothole opened", "index", rep.Index, "distance_cm", rep.Distance, "baseline_cm", b)
		r.emit(telemetry.PotholeOpened{
			Event:      telemetry.NewEvent(telemetry.EventPotholeOpened, "scan", now),
			ScanID:     id,
			StartIndex: rep.Index,
			Baseline:   b,
			Distance:   rep.Distance,
		})
	}

	if rep.Resolved && rep.Event != nil {
		ev := *rep.Event
		log.Infow("pothole resolved",
			"start", ev.StartIndex,
			"end", ev.EndIndex,
			"depth_cm", ev.Depth,
			"length_cm", ev.LengthCM,
			"tier", ev.Tier,
		)
		r.emit(telemetry.PotholeResolved{
			Event:   telemetry.NewEvent(telemetry.EventPotholeResolved, "scan", now),
			ScanID:  id,
			Pothole: ev,
		})
	}
}

func (r *Runner) emit(v any) {
	if r.Emit != nil {
		r.Emit(v)
	}
}
