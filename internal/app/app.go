// Package app wires together the HTTP server, WebSocket hub, and the scan
// scheduler. It owns the daemon's lifecycle, keeps the recent scan history,
// and is the single source of truth for the current operating state.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/large-farva/pothole-engine/internal/config"
	"github.com/large-farva/pothole-engine/internal/logging"
	"github.com/large-farva/pothole-engine/internal/report"
	"github.com/large-farva/pothole-engine/internal/scan"
	"github.com/large-farva/pothole-engine/internal/scheduler"
	"github.com/large-farva/pothole-engine/internal/telemetry"
	"github.com/large-farva/pothole-engine/internal/ws"
)

const (
	stateBooting = "BOOTING"

	heartbeatInterval = 10 * time.Second
	commandTimeout    = 5 * time.Second
)

// Options holds everything the App needs from the caller.
type Options struct {
	Logger *zap.SugaredLogger
	// Tail, when set, backs /api/logs and is mirrored to WebSocket clients.
	Tail       *logging.Tail
	Cfg        config.Config
	ConfigPath string
	Bind       string
}

// App is the top-level daemon process.
type App struct {
	log    *zap.SugaredLogger
	tail   *logging.Tail
	bind   string
	server *http.Server

	cfgMu      sync.RWMutex
	cfg        config.Config
	configPath string

	startedAt time.Time
	state     atomic.Value // current state string (BOOTING, IDLE, etc.)

	wsHub     *ws.Hub
	scheduler *scheduler.Runner
	history   *History
	current   atomic.Pointer[scheduler.Progress]
}

// New creates an App in the BOOTING state. Call Run to start serving.
func New(opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	a := &App{
		log:        log,
		tail:       opts.Tail,
		bind:       opts.Bind,
		cfg:        opts.Cfg,
		configPath: opts.ConfigPath,
		startedAt:  time.Now(),
		wsHub:      ws.NewHub(),
		history:    NewHistory(opts.Cfg.Scan.History),
	}
	a.state.Store(stateBooting)

	sched, err := scheduler.New(a.wsHub, opts.Cfg, log.Named("scheduler"))
	if err != nil {
		return nil, err
	}
	sched.SetResultCallback(a.record)
	sched.SetProgressCallback(a.current.Store)
	a.scheduler = sched

	a.wsHub.Hello = a.hello
	if a.tail != nil {
		a.tail.Subscribe(func(e logging.Entry) {
			a.wsHub.BroadcastJSON(telemetry.LogLine{
				Event:   telemetry.Event{Type: telemetry.EventLog, TS: e.TS, Component: e.Component},
				Level:   e.Level,
				Message: e.Message,
			})
		})
	}
	return a, nil
}

// Handler returns the HTTP routes served by the daemon.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.HandleFunc("GET /api/status", a.handleStatus)
	mux.HandleFunc("GET /api/version", a.handleVersion)
	mux.HandleFunc("GET /api/config", a.handleConfig)
	mux.HandleFunc("GET /api/config/profiles", a.handleConfigProfiles)
	mux.HandleFunc("POST /api/reload", a.handleReload)

	mux.HandleFunc("POST /api/scan", a.handleTrigger)
	mux.HandleFunc("POST /api/cancel", a.handleCommand("cancel"))
	mux.HandleFunc("POST /api/pause", a.handleCommand("pause"))
	mux.HandleFunc("POST /api/resume", a.handleCommand("resume"))

	mux.HandleFunc("GET /api/scans", a.handleScans)
	mux.HandleFunc("GET /api/scans/latest", a.handleLatestScan)
	mux.HandleFunc("GET /api/scans/{id}", a.handleScan)
	mux.HandleFunc("GET /api/scans/{id}/chart.png", a.handleScanChart)

	mux.HandleFunc("GET /api/stats", a.handleStats)
	mux.HandleFunc("GET /api/logs", a.handleLogs)
	mux.Handle("/ws", a.wsHub.Handler())
	return mux
}

// Run starts the HTTP server, WebSocket hub, heartbeat ticker, and the scan
// scheduler. It blocks until the context is cancelled or the server returns
// an error.
func (a *App) Run(ctx context.Context) error {
	bind := a.bind
	if bind == "" {
		bind = a.getConfig().Server.Bind
	}
	if bind == "" {
		bind = "0.0.0.0:8080"
	}

	a.server = &http.Server{
		Addr:              bind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	a.log.Infow("listening", "url", "http://"+ln.Addr().String())

	a.start(ctx)

	go func() {
		<-ctx.Done()
		a.log.Infow("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.server.Shutdown(shutdownCtx)
	}()

	if err := a.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// start launches the background loops that run until ctx is cancelled.
func (a *App) start(ctx context.Context) {
	go a.wsHub.Run(ctx)
	a.transition(scheduler.StateIdle)
	go a.heartbeatLoop(ctx)
	go a.scheduler.Run(ctx, a.transition)
}

func (a *App) getConfig() config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

func (a *App) getState() string {
	return a.state.Load().(string)
}

// transition atomically updates the daemon state and broadcasts the change
// to all connected WebSocket clients.
func (a *App) transition(newState string) {
	old := a.state.Swap(newState).(string)
	if old == newState {
		return
	}
	a.wsHub.BroadcastJSON(telemetry.StateTransition{
		Event: telemetry.NewEvent(telemetry.EventState, "potholed", time.Now()),
		From:  old,
		To:    newState,
	})
}

// heartbeatLoop sends a periodic heartbeat event so clients can detect
// connectivity and track uptime without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(heartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.wsHub.BroadcastJSON(telemetry.Heartbeat{
				Event:         telemetry.NewEvent(telemetry.EventHeartbeat, "potholed", time.Now()),
				State:         a.getState(),
				UptimeSeconds: int64(time.Since(a.startedAt).Seconds()),
				ScansTotal:    a.history.Stats().ScansTotal,
			})
		}
	}
}

func (a *App) hello() any {
	return telemetry.Hello{
		Event:   telemetry.NewEvent(telemetry.EventHello, "potholed", time.Now()),
		Version: Version,
		State:   a.getState(),
		Mode:    mode(a.getConfig()),
		Paused:  a.scheduler.IsPaused(),
	}
}

// record is the scheduler's result callback.
func (a *App) record(res *scan.Result) {
	a.history.Add(res)

	cfg := a.getConfig()
	if !res.Resolved() || !cfg.Data.SaveCharts {
		return
	}
	path, err := report.SaveChart(res, filepath.Join(cfg.Data.Root, "charts"))
	if err != nil {
		a.log.Warnw("saving pothole map", "scan", res.ShortID(), "error", err)
		return
	}
	a.log.Debugw("pothole map saved", "scan", res.ShortID(), "path", path)
}

func mode(cfg config.Config) string {
	if cfg.Demo.Enabled || cfg.Sensor.Kind == config.SensorSimulated {
		return "demo"
	}
	return "live"
}
