package ctl

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture redirects command output into a buffer for the test's lifetime.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := out
	out = &buf
	t.Cleanup(func() { out = prev })
	return &buf
}

func serveJSON(v any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
}

const scanID = "3f2a9c1e-0000-4000-8000-000000000001"

var summary = map[string]any{
	"id":               scanID,
	"source":           "demo:deep-hole",
	"started_at":       "2026-04-01T12:00:00Z",
	"duration_seconds": 3.5,
	"stop":             "resolved",
	"readings":         12,
	"invalid":          1,
	"pothole": map[string]any{
		"start_index": 5,
		"end_index":   10,
		"depth_cm":    12.0,
		"length_cm":   7.5,
		"safety_tier": "dangerous",
	},
}

func fakeDaemon(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", serveJSON(map[string]any{
		"name":           "potholed",
		"state":          "IDLE",
		"mode":           "demo",
		"sensor":         "simulated",
		"uptime_seconds": 3725,
		"data_root":      "/var/lib/pothole",
		"auto_interval":  "30s",
		"paused":         true,
		"last_scan":      summary,
	}))
	mux.HandleFunc("GET /api/scans", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dangerous", r.URL.Query().Get("tier"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		serveJSON(map[string]any{"scans": []any{summary}})(w, r)
	})
	mux.HandleFunc("GET /api/scans/latest", serveJSON(summary))
	mux.HandleFunc("GET /api/scans/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(scanID, r.PathValue("id")) {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "scan not found"})
			return
		}
		detail := map[string]any{
			"id":          scanID,
			"source":      "demo:deep-hole",
			"started_at":  "2026-04-01T12:00:00Z",
			"stop":        "resolved",
			"baseline_cm": 20.0,
			"pothole":     summary["pothole"],
			"invalid":     1,
			"location":    map[string]any{"lat": 40.1, "lon": -88.2, "alt_m": 0, "mode": 2},
			"readings": []any{
				map[string]any{"index": 4, "distance_cm": 20.1},
				map[string]any{"index": 5, "distance_cm": 32.0},
			},
		}
		serveJSON(detail)(w, r)
	})
	mux.HandleFunc("GET /api/scans/{id}/chart.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG fake"))
	})
	mux.HandleFunc("POST /api/scan", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "shallow-dip", body["profile"])
		serveJSON(map[string]any{"ok": true, "message": "scan started", "scan_id": scanID})(w, r)
	})
	mux.HandleFunc("POST /api/cancel", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "no scan in progress"})
	})
	mux.HandleFunc("POST /api/pause", serveJSON(map[string]any{"ok": true, "message": "scheduler paused"}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"healthy": false,
			"checks": map[string]any{
				"data_dir": map[string]any{"ok": true, "path": "/var/lib/pothole"},
				"sensor":   map[string]any{"ok": false, "error": "stat /dev/ttyUSB0: no such file or directory"},
			},
		})
	})
	mux.HandleFunc("GET /api/config", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sensor":{"kind":"serial","serial_device":""},"data":{"root":"/tmp/p","save_charts":true}}`))
	})
	mux.HandleFunc("GET /api/stats", serveJSON(map[string]any{
		"scans": map[string]any{
			"scans_total": 4,
			"resolved":    3,
			"incomplete":  1,
			"by_tier":     map[string]int{"dangerous": 2, "safe": 1},
			"by_stop":     map[string]int{"resolved": 3, "timeout": 1},
			"deepest_cm":  14.25,
		},
		"uptime_seconds": 90,
		"ws_dropped":     7,
	}))
	mux.HandleFunc("GET /api/logs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "warn", r.URL.Query().Get("level"))
		serveJSON(map[string]any{"logs": []any{
			map[string]any{"ts": "2026-04-01T12:00:00Z", "level": "warn", "message": "echo lost", "component": "sensor"},
		}})(w, r)
	})
	mux.HandleFunc("POST /api/reload", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		serveJSON(map[string]any{
			"ok":            true,
			"path":          "/etc/pothole/" + body["profile"] + ".toml",
			"mode":          "demo",
			"sensor":        "simulated",
			"auto_interval": "20s",
			"history":       10,
		})(w, r)
	})
	mux.HandleFunc("GET /api/version", serveJSON(map[string]any{
		"version": "v1.2.0", "go_version": "go1.26.0", "built_at": "2026-04-01", "os": "linux", "arch": "arm64",
	}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStatus(t *testing.T) {
	srv := fakeDaemon(t)
	buf := capture(t)

	require.NoError(t, Status(srv.URL, false))
	got := buf.String()
	assert.Contains(t, got, "every 30s (paused)")
	assert.Contains(t, got, "1h 2m 5s")
	assert.Contains(t, got, "demo (simulated)")
	assert.Contains(t, got, "3f2a9c1e")
	assert.Contains(t, got, "DANGEROUS  depth 12.00 cm, length 7.50 cm")
}

func TestScansAndShow(t *testing.T) {
	srv := fakeDaemon(t)
	buf := capture(t)

	require.NoError(t, Scans(srv.URL, ScansOptions{Limit: 5, Tier: "dangerous"}))
	got := buf.String()
	assert.Contains(t, got, "3f2a9c1e")
	assert.Contains(t, got, "demo:deep-hole")
	assert.Contains(t, got, "12.00")
	assert.Contains(t, got, "7.50")

	buf.Reset()
	require.NoError(t, Show(srv.URL, "3f2a", false))
	got = buf.String()
	assert.Contains(t, got, "Baseline:")
	assert.Contains(t, got, "20.00 cm")
	assert.Contains(t, got, "readings 5-10")
	assert.Contains(t, got, "40.100000,-88.200000")
	assert.Contains(t, got, "32.00")

	err := Show(srv.URL, "ffff", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan not found")

	assert.Error(t, Show(srv.URL, "", false))
}

func TestChartDownload(t *testing.T) {
	srv := fakeDaemon(t)
	buf := capture(t)

	path := filepath.Join(t.TempDir(), "map.png")
	require.NoError(t, Chart(srv.URL, "latest", path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG fake", string(b))
	assert.Contains(t, buf.String(), "SAVED")
}

func TestSchedulerCommands(t *testing.T) {
	srv := fakeDaemon(t)
	buf := capture(t)

	require.NoError(t, Scan(srv.URL, ScanOptions{Profile: "shallow-dip"}))
	assert.Contains(t, buf.String(), "STARTED")
	assert.Contains(t, buf.String(), "3f2a9c1e")

	buf.Reset()
	require.NoError(t, Pause(srv.URL, false))
	assert.Contains(t, buf.String(), "PAUSED  scheduler paused")

	err := Cancel(srv.URL, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "no scan in progress")
}

func TestHealthChecks(t *testing.T) {
	srv := fakeDaemon(t)
	buf := capture(t)

	require.NoError(t, Health(srv.URL, false))
	got := buf.String()
	assert.Contains(t, got, "UNHEALTHY")
	assert.Contains(t, got, "HTTP 503")
	assert.Contains(t, got, "no such file or directory")
	assert.Less(t, strings.Index(got, "data_dir"), strings.Index(got, "sensor"))
}

func TestConfigKeepsSectionOrder(t *testing.T) {
	srv := fakeDaemon(t)
	buf := capture(t)

	require.NoError(t, Config(srv.URL, false))
	got := buf.String()
	assert.Less(t, strings.Index(got, "[data]"), strings.Index(got, "[sensor]"))
	assert.Contains(t, got, "(unset)")
	assert.Contains(t, got, "save_charts:")
}

func TestStatsAndLogs(t *testing.T) {
	srv := fakeDaemon(t)
	buf := capture(t)

	require.NoError(t, Stats(srv.URL, false))
	got := buf.String()
	assert.Contains(t, got, "14.25 cm")
	assert.Contains(t, got, "BY SAFETY TIER")
	assert.Contains(t, got, "7 live events dropped")
	assert.Less(t, strings.Index(got, "dangerous"), strings.Index(got, "safe"))

	buf.Reset()
	require.NoError(t, Logs(srv.URL, LogsOptions{Level: "warn"}))
	assert.Contains(t, buf.String(), "echo lost")
	assert.Contains(t, buf.String(), "sensor")
	assert.Contains(t, buf.String(), "WARN")

	assert.ErrorContains(t, Logs(srv.URL, LogsOptions{Level: "loud"}), "unknown log level")
}

func TestReloadAndVersion(t *testing.T) {
	srv := fakeDaemon(t)
	buf := capture(t)

	require.NoError(t, Reload(srv.URL, ReloadOptions{Profile: "bench"}))
	got := buf.String()
	assert.Contains(t, got, "RELOADED  /etc/pothole/bench.toml")
	assert.Contains(t, got, "demo (simulated)")
	assert.Contains(t, got, "every 20s")
	assert.Contains(t, got, "last 10 kept")

	buf.Reset()
	require.NoError(t, VersionInfo(srv.URL, false))
	got = buf.String()
	assert.Contains(t, got, "potholed")
	assert.Contains(t, got, "v1.2.0")
	assert.Contains(t, got, "versions differ")

	buf.Reset()
	require.NoError(t, VersionInfo("http://127.0.0.1:1", false), "offline is not an error")
	assert.Contains(t, buf.String(), "daemon unreachable")
}

func TestJSONOutput(t *testing.T) {
	srv := fakeDaemon(t)
	buf := capture(t)

	require.NoError(t, Show(srv.URL, "3f2a9c1e", true))
	var v map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &v))
	assert.Equal(t, scanID, v["id"])
}

func TestWatchRendersEvents(t *testing.T) {
	events := []string{
		`{"type":"hello","ts":"2026-04-01T12:00:00Z","version":"dev","state":"IDLE","mode":"demo"}`,
		`{"type":"reading","ts":"2026-04-01T12:00:01Z","index":3,"distance_cm":20.1,"deviation_cm":0.1,"state":"idle"}`,
		`{"type":"pothole_opened","ts":"2026-04-01T12:00:02Z","start_index":5,"baseline_cm":20,"distance_cm":32}`,
		`{"type":"pothole_resolved","ts":"2026-04-01T12:00:03Z","pothole":{"depth_cm":12,"length_cm":7.5,"safety_tier":"dangerous"}}`,
		`{"type":"scan_complete","ts":"2026-04-01T12:00:03Z","scan_id":"` + scanID + `","stop":"resolved","readings":11,"invalid":0,"duration_seconds":3.2,"pothole":{"safety_tier":"dangerous"}}`,
	}
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, e := range events {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(e))
		}
	}))
	defer srv.Close()

	buf := capture(t)
	require.NoError(t, watch(srv.URL, WatchOptions{}, make(chan struct{})))
	got := buf.String()
	assert.Contains(t, got, "potholed dev, demo mode")
	assert.NotContains(t, got, "#3", "readings hidden by default")
	assert.Contains(t, got, "at reading 5, 32.00 cm vs baseline 20.00 cm")
	assert.Contains(t, got, "depth 12.00 cm, length 7.50 cm  DANGEROUS")
	assert.Contains(t, got, "SCAN DONE  3f2a9c1e  resolved, 11 readings (0 rejected)")

	buf.Reset()
	require.NoError(t, watch(srv.URL, WatchOptions{Filter: []string{"reading"}}, make(chan struct{})))
	assert.Contains(t, buf.String(), "#3")
	assert.NotContains(t, buf.String(), "SCAN DONE")
}

func TestShouldShow(t *testing.T) {
	none := map[string]bool{}
	assert.True(t, shouldShow("log", none, false))
	assert.False(t, shouldShow("reading", none, false))
	assert.True(t, shouldShow("reading", none, true))
	assert.False(t, shouldShow("log", map[string]bool{"state": true}, false))
}

func TestWSURL(t *testing.T) {
	u, err := wsURL("https://pi.local:8080/")
	require.NoError(t, err)
	assert.Equal(t, "wss://pi.local:8080/ws", u)

	_, err = wsURL("ftp://pi.local")
	assert.Error(t, err)
}
