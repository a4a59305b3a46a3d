package ctl

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"time"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// LogsOptions configures the logs command.
type LogsOptions struct {
	Level string // minimum level; empty shows everything the daemon kept
	Limit int
	Tail  bool
	JSON  bool
}

type logEntry struct {
	TS        string `json:"ts"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Component string `json:"component"`
}

// Logs prints the daemon's recent log tail, or follows new lines with Tail.
func Logs(baseURL string, opts LogsOptions) error {
	if opts.Level != "" && !slices.Contains(logLevels, opts.Level) {
		return fmt.Errorf("unknown log level %q (want one of %v)", opts.Level, logLevels)
	}
	if opts.Tail {
		return Watch(baseURL, WatchOptions{Filter: []string{"log"}, JSON: opts.JSON})
	}

	q := url.Values{}
	if opts.Level != "" {
		q.Set("level", opts.Level)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := "/api/logs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Logs []logEntry `json:"logs"`
	}
	if err := getJSON(baseURL, path, &resp); err != nil {
		return err
	}
	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, header("  DAEMON LOGS"))
	rule(70)
	if len(resp.Logs) == 0 {
		fmt.Fprintln(out, colorize(dim, "  Nothing logged at this level yet."))
		fmt.Fprintln(out)
		return nil
	}

	t := newTable("  ", "Time", "Level", "From", "Message")
	for _, e := range resp.Logs {
		ts := e.TS
		if parsed, err := time.Parse(time.RFC3339Nano, e.TS); err == nil {
			ts = parsed.Local().Format("15:04:05")
		}
		t.row(ts, formatLogLevel(e.Level), colorize(dim, e.Component), e.Message)
	}
	t.flush()
	fmt.Fprintln(out)
	return nil
}
