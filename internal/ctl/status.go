package ctl

import (
	"fmt"
	"strings"
	"time"
)

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name          string `json:"name"`
	State         string `json:"state"`
	Mode          string `json:"mode"`
	Sensor        string `json:"sensor"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	DataRoot      string `json:"data_root"`
	Paused        bool   `json:"paused"`
	AutoInterval  string `json:"auto_interval"`
	WSClients     int    `json:"ws_clients"`
	ScansKept     int    `json:"scans_kept"`
	CurrentScan   *struct {
		ScanID        string `json:"scan_id"`
		Source        string `json:"source"`
		Reason        string `json:"reason"`
		StartedAt     string `json:"started_at"`
		Readings      int    `json:"readings"`
		DetectorState string `json:"detector_state"`
		PotholeOpen   bool   `json:"pothole_open"`
	} `json:"current_scan,omitempty"`
	LastScan *ScanSummary `json:"last_scan,omitempty"`
	Disk     *struct {
		TotalBytes     uint64  `json:"total_bytes"`
		UsedBytes      uint64  `json:"used_bytes"`
		AvailableBytes uint64  `json:"available_bytes"`
		UsedPercent    float64 `json:"used_percent"`
	} `json:"disk,omitempty"`
}

// Status fetches the daemon status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(s)
	}

	uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)
	schedule := "manual"
	if s.AutoInterval != "" && s.AutoInterval != "0s" {
		schedule = "every " + s.AutoInterval
	}
	if s.Paused {
		schedule += colorize(yellow, " (paused)")
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, header("  POTHOLE ENGINE STATUS"))
	rule(38)
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Daemon:"), s.Name)
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "State:"), colorize(stateColor(s.State), s.State))
	fmt.Fprintf(out, "  %-12s %s (%s)\n", colorize(dim, "Mode:"), s.Mode, s.Sensor)
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Scans:"), schedule)
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Uptime:"), uptime)
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Data:"), s.DataRoot)
	if s.Disk != nil {
		fmt.Fprintf(out, "  %-12s %s free of %s (%.0f%% used)\n", colorize(dim, "Disk:"),
			formatBytes(s.Disk.AvailableBytes), formatBytes(s.Disk.TotalBytes), s.Disk.UsedPercent)
	}
	fmt.Fprintf(out, "  %-12s %d\n", colorize(dim, "Watchers:"), s.WSClients)
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Host:"), baseURL)

	if c := s.CurrentScan; c != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, header("  CURRENT SCAN"))
		fmt.Fprintf(out, "  %-12s %s (%s)\n", colorize(dim, "Scan:"), shortID(c.ScanID), c.Reason)
		fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Source:"), c.Source)
		fmt.Fprintf(out, "  %-12s %d\n", colorize(dim, "Readings:"), c.Readings)
		fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Detector:"), colorize(stateColor(c.DetectorState), c.DetectorState))
	}

	if l := s.LastScan; l != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, header("  LAST SCAN"))
		fmt.Fprintf(out, "  %-12s %s at %s\n", colorize(dim, "Scan:"), shortID(l.ID), formatTime(l.StartedAt))
		fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Result:"), l.outcome())
	}
	fmt.Fprintln(out)

	return nil
}

func shortID(id string) string {
	if len(id) < 8 {
		return id
	}
	return id[:8]
}
