package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/large-farva/pothole-engine/internal/config"
	"github.com/large-farva/pothole-engine/internal/demo"
	"github.com/large-farva/pothole-engine/internal/detect"
	"github.com/large-farva/pothole-engine/internal/report"
	"github.com/large-farva/pothole-engine/internal/scan"
	"github.com/large-farva/pothole-engine/internal/scheduler"
	"github.com/large-farva/pothole-engine/internal/telemetry"
)

// ---------------------------------------------------------------------------
// Core handlers
// ---------------------------------------------------------------------------

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	// If the client asks for JSON, return component-level health checks.
	if r.Header.Get("Accept") == "application/json" {
		a.handleHealthDetailed(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleHealthDetailed(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()

	checks := map[string]any{}
	allOK := true

	// Check data directory.
	tmpPath := filepath.Join(cfg.Data.Root, ".healthcheck")
	if err := os.WriteFile(tmpPath, []byte("ok"), 0o644); err != nil {
		checks["data_dir"] = map[string]any{"ok": false, "error": err.Error()}
		allOK = false
	} else {
		os.Remove(tmpPath)
		dirCheck := map[string]any{"ok": true, "path": cfg.Data.Root}
		if du, err := diskUsage(cfg.Data.Root); err == nil {
			dirCheck["available_bytes"] = du.AvailableBytes
			if cfg.Data.SaveCharts && du.tooFullForCharts() {
				dirCheck["ok"] = false
				dirCheck["error"] = fmt.Sprintf("only %d bytes free for pothole maps", du.AvailableBytes)
				allOK = false
			}
		}
		checks["data_dir"] = dirCheck
	}

	// Sensor device present.
	sensorCheck := map[string]any{"ok": true, "kind": cfg.Sensor.Kind}
	var device string
	switch cfg.Sensor.Kind {
	case config.SensorSerial:
		device = cfg.Sensor.SerialDevice
	case config.SensorReplay:
		device = cfg.Sensor.ReplayPath
	case config.SensorHCSR04:
		sensorCheck["trigger_pin"] = cfg.Sensor.TriggerPin
		sensorCheck["echo_pin"] = cfg.Sensor.EchoPin
	}
	if device != "" {
		sensorCheck["path"] = device
		if _, err := os.Stat(device); err != nil {
			sensorCheck["ok"] = false
			sensorCheck["error"] = err.Error()
			allOK = false
		}
	}
	checks["sensor"] = sensorCheck

	if cfg.GPS.Enabled {
		checks["gps"] = map[string]any{"ok": true, "gpsd_host": cfg.GPS.GPSDHost}
	}

	// Config file readable.
	if path := a.getConfigPath(); path != "" {
		if _, err := os.Stat(path); err != nil {
			checks["config_file"] = map[string]any{"ok": false, "error": err.Error()}
			allOK = false
		} else {
			checks["config_file"] = map[string]any{"ok": true, "path": path}
		}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"healthy": allOK,
		"checks":  checks,
	})
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()

	resp := map[string]any{
		"name":           "pothole-engine",
		"state":          a.getState(),
		"mode":           mode(cfg),
		"sensor":         cfg.Sensor.Kind,
		"uptime_seconds": int64(time.Since(a.startedAt).Seconds()),
		"data_root":      cfg.Data.Root,
		"paused":         a.scheduler.IsPaused(),
		"auto_interval":  a.scheduler.AutoInterval().String(),
		"ws_clients":     a.wsHub.Clients(),
		"scans_kept":     a.history.Len(),
	}

	if p := a.current.Load(); p != nil {
		resp["current_scan"] = p
	}
	if latest := a.history.Latest(); latest != nil {
		resp["last_scan"] = latest.Summary()
	}
	if du, err := diskUsage(cfg.Data.Root); err == nil {
		resp["disk"] = du
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, versionInfo())
}

func (a *App) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.getConfig())
}

func (a *App) handleConfigProfiles(w http.ResponseWriter, _ *http.Request) {
	dir := config.DefaultConfigDir()
	profiles, err := config.ListProfiles(dir)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if profiles == nil {
		profiles = []config.ProfileInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"config_dir": dir,
		"profiles":   profiles,
	})
}

func (a *App) handleReload(w http.ResponseWriter, r *http.Request) {
	// Accept optional profile name in body: {"profile": "bench"}
	var body struct {
		Profile string `json:"profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}

	loadPath := a.getConfigPath()
	if body.Profile != "" {
		candidate := config.ProfilePath(config.DefaultConfigDir(), filepath.Base(body.Profile))
		if _, err := os.Stat(candidate); err != nil {
			jsonError(w, fmt.Sprintf("profile %q not found at %s", body.Profile, candidate), http.StatusNotFound)
			return
		}
		loadPath = candidate
	}

	if loadPath == "" {
		jsonError(w, "no config file path set", http.StatusInternalServerError)
		return
	}

	newCfg, err := config.Load(loadPath)
	if err != nil {
		jsonError(w, "config reload failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if err := a.scheduler.Reconfigure(newCfg); err != nil {
		jsonError(w, "config reload failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	a.history.Resize(newCfg.Scan.History)

	a.cfgMu.Lock()
	a.cfg = newCfg
	a.configPath = loadPath
	a.cfgMu.Unlock()

	a.log.Infow("config reloaded", "path", loadPath)
	a.wsHub.BroadcastJSON(telemetry.LogLine{
		Event:   telemetry.NewEvent(telemetry.EventLog, "potholed", time.Now()),
		Level:   "info",
		Message: "config reloaded from " + loadPath,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"message":       "configuration reloaded from " + loadPath,
		"path":          loadPath,
		"mode":          mode(newCfg),
		"sensor":        newCfg.Sensor.Kind,
		"auto_interval": a.scheduler.AutoInterval().String(),
		"history":       newCfg.Scan.History,
	})
}

// ---------------------------------------------------------------------------
// Scheduler controls
// ---------------------------------------------------------------------------

func (a *App) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req scheduler.TriggerPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}

	var payload json.RawMessage
	if req.Profile != "" {
		if _, err := demo.ProfileByName(req.Profile); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		payload, _ = json.Marshal(req)
	}
	a.sendSchedulerCommand(w, r, "trigger", payload)
}

func (a *App) handleCommand(typ string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.sendSchedulerCommand(w, r, typ, nil)
	}
}

// ---------------------------------------------------------------------------
// Scan history
// ---------------------------------------------------------------------------

func (a *App) handleScans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			jsonError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	var tier *detect.Tier
	resolvedOnly := q.Get("resolved") == "true"
	if s := q.Get("tier"); s != "" {
		t, err := detect.ParseTier(s)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		tier = &t
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scans": a.history.List(limit, tier, resolvedOnly),
	})
}

func (a *App) handleLatestScan(w http.ResponseWriter, _ *http.Request) {
	res := a.history.Latest()
	if res == nil {
		jsonError(w, "no scans yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *App) handleScan(w http.ResponseWriter, r *http.Request) {
	res, ok := a.lookupScan(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *App) handleScanChart(w http.ResponseWriter, r *http.Request) {
	res, ok := a.lookupScan(w, r)
	if !ok {
		return
	}

	// Render fully before writing so a failure can still become a JSON error.
	var buf bytes.Buffer
	if err := report.WriteChart(res, &buf, report.DefaultWidth, report.DefaultHeight); err != nil {
		if errors.Is(err, report.ErrNoReadings) {
			jsonError(w, "scan has no readings to chart", http.StatusNotFound)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func (a *App) lookupScan(w http.ResponseWriter, r *http.Request) (*scan.Result, bool) {
	id := r.PathValue("id")
	res, ok := a.history.Get(id)
	if !ok {
		jsonError(w, fmt.Sprintf("scan %q not found", id), http.StatusNotFound)
		return nil, false
	}
	return res, true
}

// ---------------------------------------------------------------------------
// Logs + Stats
// ---------------------------------------------------------------------------

func (a *App) handleLogs(w http.ResponseWriter, r *http.Request) {
	if a.tail == nil {
		writeJSON(w, http.StatusOK, map[string]any{"logs": []any{}})
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"logs": a.tail.Entries(r.URL.Query().Get("level"), limit),
	})
}

func (a *App) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"scans":          a.history.Stats(),
		"uptime_seconds": int64(time.Since(a.startedAt).Seconds()),
		"ws_clients":     a.wsHub.Clients(),
		"ws_dropped":     a.wsHub.Dropped(),
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (a *App) getConfigPath() string {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.configPath
}

// sendSchedulerCommand sends a command to the scheduler, waits for the reply,
// and writes it out.
func (a *App) sendSchedulerCommand(w http.ResponseWriter, r *http.Request, cmdType string, payload json.RawMessage) {
	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	result, err := a.scheduler.Send(ctx, cmdType, payload)
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeCommandResult(w, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]any{
		"ok":    false,
		"error": msg,
	})
}

// writeCommandResult writes a scheduler.CommandResult as JSON. A refused
// command conflicts with the scheduler's current state.
func writeCommandResult(w http.ResponseWriter, result scheduler.CommandResult) {
	status := http.StatusOK
	if !result.OK {
		status = http.StatusConflict
	}
	writeJSON(w, status, result)
}
