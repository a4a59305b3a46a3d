// Package scheduler owns the scan loop that drives the potholed daemon. It
// waits for a trigger (or the auto interval), opens the configured source,
// runs one scan, tags it with a position fix, and hands the result to the
// app. Commands arrive on a channel and are handled between and during scans.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/large-farva/pothole-engine/internal/config"
	"github.com/large-farva/pothole-engine/internal/demo"
	"github.com/large-farva/pothole-engine/internal/geo"
	"github.com/large-farva/pothole-engine/internal/scan"
	"github.com/large-farva/pothole-engine/internal/sensor"
	"github.com/large-farva/pothole-engine/internal/telemetry"
)

// Daemon states reported through setState.
const (
	StateIdle     = "IDLE"
	StateScanning = "SCANNING"
	StatePaused   = "PAUSED"
)

// forever stands in for "until a command arrives".
const forever = 24 * 365 * time.Hour

// Broadcaster fans events out to live clients. *ws.Hub satisfies it.
type Broadcaster interface {
	BroadcastJSON(v any)
}

// Command represents an external command sent to the scheduler via its
// Commands channel. The Reply channel receives exactly one result.
type Command struct {
	Type    string
	Payload json.RawMessage
	Reply   chan<- CommandResult
}

// CommandResult is the response sent back through a Command's Reply channel.
type CommandResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	ScanID  string `json:"scan_id,omitempty"`
}

// TriggerPayload is the optional body of a trigger command. Profile picks a
// simulated surface and is only honored by simulated sources.
type TriggerPayload struct {
	Profile string `json:"profile,omitempty"`
}

// Progress describes the scan in flight.
type Progress struct {
	ScanID        string    `json:"scan_id"`
	Source        string    `json:"source"`
	Reason        string    `json:"reason"`
	StartedAt     time.Time `json:"started_at"`
	Readings      int       `json:"readings"`
	DetectorState string    `json:"detector_state"`
	PotholeOpen   bool      `json:"pothole_open"`
}

// SourceFactory opens the source for one scan and returns a display name for
// it. profile is empty unless a trigger asked for a simulated surface.
type SourceFactory func(profile string) (sensor.Source, string, error)

// Locator returns the current position.
type Locator func(ctx context.Context) (geo.Location, error)

// Runner owns the scheduling loop.
type Runner struct {
	Hub   Broadcaster
	Log   *zap.SugaredLogger
	Clock clock.Clock

	// Commands receives external commands from HTTP handlers.
	Commands chan Command

	mu           sync.Mutex
	cfg          config.Config
	autoInterval time.Duration
	newSource    SourceFactory
	locate       Locator

	paused atomic.Bool

	scanMu     sync.Mutex
	scanCancel context.CancelFunc

	resultCallback   func(*scan.Result)
	progressCallback func(*Progress)
}

// New builds a scheduler for cfg. Demo mode or a simulated sensor scans the
// demo catalog; any other sensor kind is opened fresh for every scan.
func New(hub Broadcaster, cfg config.Config, log *zap.SugaredLogger) (*Runner, error) {
	r := &Runner{
		Hub:      hub,
		Log:      log,
		Clock:    clock.New(),
		Commands: make(chan Command, 4),
	}
	if err := r.Reconfigure(cfg); err != nil {
		return nil, err
	}
	return r, nil
}

// Reconfigure swaps in cfg for every scan that starts afterwards. A scan in
// flight keeps the settings it started with.
func (r *Runner) Reconfigure(cfg config.Config) error {
	factory, err := SourceFactoryFor(cfg)
	if err != nil {
		return err
	}

	var auto time.Duration
	switch {
	case cfg.Demo.Enabled:
		auto = cfg.Demo.Interval()
	case cfg.Scan.Auto:
		auto = cfg.Scan.AutoInterval()
	}

	var locate Locator
	if cfg.GPS.Enabled {
		host, timeout := cfg.GPS.GPSDHost, cfg.GPS.Timeout()
		locate = func(ctx context.Context) (geo.Location, error) {
			return geo.LocationFromGPSD(ctx, host, timeout)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	r.autoInterval = auto
	r.newSource = factory
	r.locate = locate
	return nil
}

// SourceFactoryFor picks the acquisition source described by cfg.
func SourceFactoryFor(cfg config.Config) (SourceFactory, error) {
	if cfg.Demo.Enabled || cfg.Sensor.Kind == config.SensorSimulated {
		cycler, err := demo.NewCycler(cfg.Demo.Profile)
		if err != nil {
			return nil, err
		}
		return func(profile string) (sensor.Source, string, error) {
			p := cycler.Next()
			if profile != "" {
				var err error
				if p, err = demo.ProfileByName(profile); err != nil {
					return nil, "", err
				}
			}
			return demo.NewSource(p, 0.2, uint64(time.Now().UnixNano())), "demo:" + p.Name, nil
		}, nil
	}

	sc := cfg.Sensor
	return func(profile string) (sensor.Source, string, error) {
		if profile != "" {
			return nil, "", fmt.Errorf("profile %q needs a simulated sensor", profile)
		}
		src, err := sensor.Open(sc)
		if err != nil {
			return nil, "", err
		}
		return src, sc.Kind, nil
	}, nil
}

// SetSourceFactory replaces the source used for subsequent scans.
func (r *Runner) SetSourceFactory(fn SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.newSource = fn
}

// SetLocator enables position tagging of resolved scans.
func (r *Runner) SetLocator(fn Locator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locate = fn
}

// SetAutoInterval changes the gap between unattended scans. Zero means scans
// only run when triggered. It takes effect after the current wait.
func (r *Runner) SetAutoInterval(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.autoInterval = d
}

// AutoInterval reports the gap between unattended scans.
func (r *Runner) AutoInterval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.autoInterval
}

func (r *Runner) settings() (config.Config, SourceFactory, Locator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg, r.newSource, r.locate
}

// SetResultCallback registers a function called with every finished scan.
func (r *Runner) SetResultCallback(fn func(*scan.Result)) {
	r.resultCallback = fn
}

// SetProgressCallback registers a function called as the active scan
// advances, and with nil when it ends.
func (r *Runner) SetProgressCallback(fn func(*Progress)) {
	r.progressCallback = fn
}

// IsPaused reports whether unattended scans are paused.
func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

// Run is the main scheduler loop.
//
// Lifecycle:
//  1. IDLE: wait for a command, or for AutoInterval when auto scanning
//  2. SCANNING: run one scan, still answering commands
//  3. Tag with gpsd (resolved scans only), report, back to step 1
//
// While PAUSED only commands are served; a trigger still runs a scan.
func (r *Runner) Run(ctx context.Context, setState func(string)) {
	cfg, _, _ := r.settings()
	mode := "manual"
	if auto := r.AutoInterval(); auto > 0 {
		mode = fmt.Sprintf("auto every %s", auto)
	}
	r.Log.Infow("scheduler started", "mode", mode, "sensor", cfg.Sensor.Kind, "demo", cfg.Demo.Enabled)

	for {
		if ctx.Err() != nil {
			return
		}

		if r.paused.Load() {
			setState(StatePaused)
			if r.sleepOrCommand(ctx, forever, setState) == sleepCancelled {
				return
			}
			continue
		}

		setState(StateIdle)
		auto := r.AutoInterval()
		wait := auto
		if wait <= 0 {
			wait = forever
		}
		switch r.sleepOrCommand(ctx, wait, setState) {
		case sleepCancelled:
			return
		case sleepCompleted:
			if auto > 0 {
				r.autoScan(ctx, setState)
			}
		}
	}
}

// sleepResult indicates what ended a sleep period.
type sleepResult int

const (
	sleepCompleted   sleepResult = iota // timer expired normally
	sleepCancelled                      // context was cancelled
	sleepInterrupted                    // a command was received and handled
)

// sleepOrCommand blocks for duration d, until ctx is cancelled, or until a
// command arrives on r.Commands. Commands are handled inline.
func (r *Runner) sleepOrCommand(ctx context.Context, d time.Duration, setState func(string)) sleepResult {
	t := r.Clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return sleepCancelled
	case <-t.C:
		return sleepCompleted
	case cmd := <-r.Commands:
		r.handleCommand(ctx, cmd, setState)
		return sleepInterrupted
	}
}

// handleCommand dispatches a command received while no scan is running.
func (r *Runner) handleCommand(ctx context.Context, cmd Command, setState func(string)) {
	switch cmd.Type {
	case "trigger":
		r.handleTriggerCommand(ctx, cmd, setState)
	case "pause":
		r.handlePauseCommand(cmd)
	case "resume":
		r.handleResumeCommand(cmd)
	case "cancel":
		cmd.Reply <- CommandResult{OK: false, Error: "no scan in progress"}
	default:
		cmd.Reply <- CommandResult{OK: false, Error: "unknown command: " + cmd.Type}
	}
}

// handleBusyCommand answers a command received mid-scan.
func (r *Runner) handleBusyCommand(cmd Command, scanID string) {
	switch cmd.Type {
	case "trigger":
		cmd.Reply <- CommandResult{OK: false, Error: "scan already in progress", ScanID: scanID}
	case "pause":
		r.handlePauseCommand(cmd)
	case "resume":
		r.handleResumeCommand(cmd)
	case "cancel":
		r.handleCancelCommand(cmd, scanID)
	default:
		cmd.Reply <- CommandResult{OK: false, Error: "unknown command: " + cmd.Type}
	}
}

// handleTriggerCommand starts an immediate scan.
func (r *Runner) handleTriggerCommand(ctx context.Context, cmd Command, setState func(string)) {
	var payload TriggerPayload
	if len(cmd.Payload) > 0 {
		if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
			cmd.Reply <- CommandResult{OK: false, Error: "invalid payload: " + err.Error()}
			return
		}
	}

	id := uuid.NewString()
	r.Log.Infow("manual trigger", "scan", id[:8], "profile", payload.Profile)

	// A source that cannot be opened refuses the trigger, so every scan ID
	// handed out ends up in a result.
	ss, err := r.openSource(payload.Profile)
	if err != nil {
		r.Log.Warnw("trigger refused", "scan", id[:8], "error", err)
		cmd.Reply <- CommandResult{OK: false, Error: "cannot open source: " + err.Error()}
		return
	}

	// Reply before scanning so the HTTP handler is not blocked during the scan.
	cmd.Reply <- CommandResult{OK: true, Message: "scan started", ScanID: id}

	r.runScan(ctx, id, "manual", ss, setState)
}

func (r *Runner) handlePauseCommand(cmd Command) {
	if r.paused.Load() {
		cmd.Reply <- CommandResult{OK: true, Message: "scheduler already paused"}
		return
	}
	r.paused.Store(true)
	r.Log.Infow("scheduler paused by user")
	cmd.Reply <- CommandResult{OK: true, Message: "scheduler paused"}
}

func (r *Runner) handleResumeCommand(cmd Command) {
	if !r.paused.Load() {
		cmd.Reply <- CommandResult{OK: true, Message: "scheduler already running"}
		return
	}
	r.paused.Store(false)
	r.Log.Infow("scheduler resumed by user")
	cmd.Reply <- CommandResult{OK: true, Message: "scheduler resumed"}
}

func (r *Runner) handleCancelCommand(cmd Command, scanID string) {
	r.scanMu.Lock()
	cancel := r.scanCancel
	r.scanMu.Unlock()

	if cancel == nil {
		cmd.Reply <- CommandResult{OK: false, Error: "no scan in progress"}
		return
	}

	cancel()
	r.Log.Infow("scan cancelled by user", "scan", scanID[:8])
	cmd.Reply <- CommandResult{OK: true, Message: "scan cancelled", ScanID: scanID}
}

type scanOutcome struct {
	res *scan.Result
	err error
}

// scanSource is an opened source plus the settings snapshot the scan runs
// with.
type scanSource struct {
	src    sensor.Source
	name   string
	cfg    config.Config
	locate Locator
}

func (r *Runner) openSource(profile string) (*scanSource, error) {
	cfg, newSource, locate := r.settings()
	src, name, err := newSource(profile)
	if err != nil {
		return nil, err
	}
	return &scanSource{src: src, name: name, cfg: cfg, locate: locate}, nil
}

// autoScan runs one unattended scan. A source that fails to open is logged
// and retried at the next interval.
func (r *Runner) autoScan(ctx context.Context, setState func(string)) {
	ss, err := r.openSource("")
	if err != nil {
		r.Log.Errorw("cannot open source", "error", err)
		return
	}
	r.runScan(ctx, uuid.NewString(), "auto", ss, setState)
}

// runScan runs one scan over ss on its own goroutine, serving commands until
// it finishes. It closes the source.
func (r *Runner) runScan(ctx context.Context, id, reason string, ss *scanSource, setState func(string)) {
	cfg, src, name, locate := ss.cfg, ss.src, ss.name, ss.locate
	defer func() {
		if err := src.Close(); err != nil {
			r.Log.Warnw("closing source", "error", err)
		}
	}()

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.scanMu.Lock()
	r.scanCancel = cancel
	r.scanMu.Unlock()
	defer func() {
		r.scanMu.Lock()
		r.scanCancel = nil
		r.scanMu.Unlock()
	}()

	setState(StateScanning)
	prog := &Progress{
		ScanID:        id,
		Source:        name,
		Reason:        reason,
		StartedAt:     r.Clock.Now().UTC(),
		DetectorState: "awaiting_baseline",
	}
	r.notifyProgress(prog)

	// Progress is only touched from the scan goroutine until done is read.
	runner := &scan.Runner{
		ID:         id,
		Source:     src,
		SourceName: name,
		Clock:      r.Clock,
		Filter:     cfg.Filter.Filter(),
		Thresholds: cfg.Detector.Thresholds(),
		Timeout:    cfg.Scan.Timeout(),
		Cadence:    cfg.Scan.Cadence(),
		Log:        r.Log.Named("scan"),
		Emit: func(v any) {
			r.Hub.BroadcastJSON(v)
			if trackProgress(prog, v) {
				r.notifyProgress(prog)
			}
		},
	}

	done := make(chan scanOutcome, 1)
	go func() {
		res, err := runner.Run(scanCtx)
		done <- scanOutcome{res, err}
	}()

	var out scanOutcome
wait:
	for {
		select {
		case out = <-done:
			break wait
		case cmd := <-r.Commands:
			r.handleBusyCommand(cmd, id)
		}
	}

	r.notifyProgress(nil)
	if out.err != nil {
		r.Log.Errorw("scan failed", "scan", id[:8], "error", out.err)
	}
	if out.res == nil {
		return
	}
	r.finish(ctx, out.res, locate)
}

// finish tags, announces, and reports a completed scan.
func (r *Runner) finish(ctx context.Context, res *scan.Result, locate Locator) {
	if res.Resolved() && locate != nil {
		loc, err := locate(ctx)
		if err != nil {
			r.Log.Warnw("no position fix for scan", "scan", res.ShortID(), "error", err)
		} else {
			res.Location = &loc
		}
	}

	r.Hub.BroadcastJSON(telemetry.ScanComplete{
		Event:    telemetry.NewEvent(telemetry.EventScanComplete, "scheduler", r.Clock.Now()),
		ScanID:   res.ID,
		Source:   res.Source,
		Stop:     string(res.Stop),
		Readings: len(res.Readings),
		Invalid:  res.Invalid,
		Duration: res.Duration().Seconds(),
		Pothole:  res.Event,
		Location: res.Location,
	})

	if res.Resolved() {
		r.Log.Infow("pothole recorded",
			"scan", res.ShortID(),
			"depth_cm", res.Event.Depth,
			"length_cm", res.Event.LengthCM,
			"tier", res.Event.Tier,
		)
	} else {
		r.Log.Infow("scan ended without a pothole", "scan", res.ShortID(), "stop", res.Stop)
	}

	if r.resultCallback != nil {
		r.resultCallback(res)
	}
}

// trackProgress folds one scan event into p and reports whether p changed.
func trackProgress(p *Progress, v any) bool {
	switch ev := v.(type) {
	case telemetry.Reading:
		p.Readings = ev.Index + 1
		p.DetectorState = ev.State
		return true
	case telemetry.PotholeOpened:
		p.PotholeOpen = true
		return true
	case telemetry.PotholeResolved:
		p.PotholeOpen = false
		return true
	}
	return false
}

func (r *Runner) notifyProgress(p *Progress) {
	if r.progressCallback == nil {
		return
	}
	if p == nil {
		r.progressCallback(nil)
		return
	}
	cp := *p
	r.progressCallback(&cp)
}

// Send delivers a command and waits for its reply, giving up when ctx ends.
func (r *Runner) Send(ctx context.Context, typ string, payload json.RawMessage) (CommandResult, error) {
	reply := make(chan CommandResult, 1)
	select {
	case r.Commands <- Command{Type: typ, Payload: payload, Reply: reply}:
	case <-ctx.Done():
		return CommandResult{}, errors.New("scheduler busy")
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return CommandResult{}, errors.New("scheduler did not respond")
	}
}
