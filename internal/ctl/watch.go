package ctl

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// WatchOptions controls the watch command behavior.
type WatchOptions struct {
	Filter []string // event types to show (empty = all)
	JSON   bool     // output raw JSON per event
	// Readings shows every accepted distance; they are hidden by default
	// because a scan produces several per second.
	Readings bool
}

// Watch connects to the daemon's WebSocket endpoint and streams events to
// the terminal in a human-readable format until interrupted.
func Watch(baseURL string, opts WatchOptions) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	stop := make(chan struct{})
	go func() {
		<-sig
		close(stop)
	}()
	return watch(baseURL, opts, stop)
}

func wsURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// watch streams until stop is closed or the daemon hangs up.
func watch(baseURL string, opts WatchOptions, stop <-chan struct{}) error {
	target, err := wsURL(baseURL)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if !opts.JSON {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  %s %s\n", colorize(green, "connected"), colorize(dim, target))
		if len(opts.Filter) > 0 {
			fmt.Fprintf(out, "  %s %s\n", colorize(dim, "filter:"), colorize(dim, strings.Join(opts.Filter, ", ")))
		}
		rule(50)
		fmt.Fprintln(out)
	}

	// Build a filter set for O(1) lookup.
	filterSet := make(map[string]bool, len(opts.Filter))
	for _, f := range opts.Filter {
		filterSet[f] = true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var ev map[string]any
			if err := json.Unmarshal(msg, &ev); err != nil {
				fmt.Fprintf(out, "  %s\n", string(msg))
				continue
			}
			evType, _ := ev["type"].(string)
			if !shouldShow(evType, filterSet, opts.Readings) {
				continue
			}

			if opts.JSON {
				fmt.Fprintln(out, string(msg))
			} else {
				renderEvent(ev)
			}
		}
	}()

	select {
	case <-stop:
		if !opts.JSON {
			fmt.Fprintln(out)
			fmt.Fprintln(out, colorize(dim, "  disconnecting..."))
		}
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(1*time.Second),
		)
		return nil
	case <-done:
		return nil
	}
}

func shouldShow(evType string, filter map[string]bool, readings bool) bool {
	if evType == "reading" && !readings && !filter["reading"] {
		return false
	}
	if len(filter) == 0 {
		return true
	}
	return filter[evType]
}

// renderEvent prints an event in a human-friendly format. Unrecognized
// event types fall back to indented JSON.
func renderEvent(ev map[string]any) {
	evType, _ := ev["type"].(string)
	ts := formatEventTime(ev)
	str := func(k string) string { v, _ := ev[k].(string); return v }
	num := func(k string) float64 { v, _ := ev[k].(float64); return v }

	switch evType {
	case "hello":
		state := str("state")
		fmt.Fprintf(out, "  %s %s  potholed %s, %s mode, %s\n",
			colorize(dim, ts),
			colorize(dim, "hello"),
			str("version"),
			str("mode"),
			colorize(stateColor(state), state),
		)

	case "heartbeat":
		// Heartbeats are noisy, so show them dimmed on a single line.
		state := str("state")
		uptimeStr := formatDuration(time.Duration(num("uptime_seconds")) * time.Second)
		fmt.Fprintf(out, "  %s %s  %s  up %s  %s\n",
			colorize(dim, ts),
			colorize(dim, "heartbeat"),
			colorize(stateColor(state), state),
			colorize(dim, uptimeStr),
			colorize(dim, fmt.Sprintf("%d scans", int(num("scans_total")))),
		)

	case "state":
		from, to := str("from"), str("to")
		label := "STATE"
		if str("component") == "detector" {
			label = "DETECT"
		}
		fmt.Fprintf(out, "  %s %s  %s %s %s\n",
			colorize(dim, ts),
			colorize(bold, padRight(label, 6)),
			colorize(stateColor(from), from),
			colorize(dim, "->"),
			colorize(stateColor(to), to),
		)

	case "log":
		src := ""
		if c := str("component"); c != "" {
			src = colorize(dim, "["+c+"] ")
		}
		fmt.Fprintf(out, "  %s %s  %s%s\n", colorize(dim, ts), formatLogLevel(str("level")), src, str("message"))

	case "reading":
		state := str("state")
		fmt.Fprintf(out, "  %s %s  #%-3d %7.2f cm  %s  %s\n",
			colorize(dim, ts),
			colorize(dim, "reading"),
			int(num("index")),
			num("distance_cm"),
			colorize(dim, fmt.Sprintf("dev %.2f", num("deviation_cm"))),
			colorize(stateColor(state), state),
		)

	case "pothole_opened":
		fmt.Fprintf(out, "  %s %s  at reading %d, %.2f cm vs baseline %.2f cm\n",
			colorize(dim, ts),
			colorize(yellow, "POTHOLE?"),
			int(num("start_index")),
			num("distance_cm"),
			num("baseline_cm"),
		)

	case "pothole_resolved":
		p, _ := ev["pothole"].(map[string]any)
		tier, _ := p["safety_tier"].(string)
		depth, _ := p["depth_cm"].(float64)
		length, _ := p["length_cm"].(float64)
		fmt.Fprintf(out, "  %s %s  depth %.2f cm, length %.2f cm  %s\n",
			colorize(dim, ts),
			colorize(tierColor(tier), "POTHOLE "),
			depth,
			length,
			colorize(tierColor(tier), strings.ToUpper(tier)),
		)

	case "scan_complete":
		outcome := colorize(dim, "no pothole")
		if p, ok := ev["pothole"].(map[string]any); ok {
			tier, _ := p["safety_tier"].(string)
			outcome = colorize(tierColor(tier), strings.ToUpper(tier))
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  %s %s  %s  %s, %d readings (%d rejected) in %.1fs  %s\n",
			colorize(dim, ts),
			header("SCAN DONE"),
			shortID(str("scan_id")),
			str("stop"),
			int(num("readings")),
			int(num("invalid")),
			num("duration_seconds"),
			outcome,
		)
		if loc, ok := ev["location"].(map[string]any); ok {
			lat, _ := loc["lat"].(float64)
			lon, _ := loc["lon"].(float64)
			fmt.Fprintf(out, "    %s %.6f,%.6f\n", colorize(dim, "at"), lat, lon)
		}
		fmt.Fprintln(out)

	default:
		// Unknown event type, so dump as indented JSON to keep everything.
		pretty, err := json.MarshalIndent(ev, "  ", "  ")
		if err != nil {
			return
		}
		fmt.Fprintf(out, "  %s\n", string(pretty))
	}
}

// formatEventTime extracts and shortens the timestamp from an event.
func formatEventTime(ev map[string]any) string {
	tsRaw, ok := ev["ts"].(string)
	if !ok {
		return "        "
	}
	t, err := time.Parse(time.RFC3339Nano, tsRaw)
	if err != nil {
		return tsRaw
	}
	return t.Local().Format("15:04:05")
}

// formatLogLevel returns a colored, fixed-width log level label.
func formatLogLevel(level string) string {
	switch level {
	case "debug":
		return colorize(dim, "DEBUG")
	case "info":
		return colorize(green, "INFO ")
	case "warn":
		return colorize(yellow, "WARN ")
	case "error":
		return colorize(red, "ERROR")
	default:
		return padRight(level, 5)
	}
}
