package ctl

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Stats shows aggregate scan statistics from the daemon.
func Stats(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		Scans struct {
			ScansTotal   int            `json:"scans_total"`
			Resolved     int            `json:"resolved"`
			Incomplete   int            `json:"incomplete"`
			ByTier       map[string]int `json:"by_tier"`
			ByStop       map[string]int `json:"by_stop"`
			DeepestCM    float64        `json:"deepest_cm"`
			LastScanAt   string         `json:"last_scan_at"`
			LastPothole  string         `json:"last_pothole_at"`
			InvalidTotal int            `json:"invalid_total"`
		} `json:"scans"`
		UptimeSeconds int64 `json:"uptime_seconds"`
		WSClients     int   `json:"ws_clients"`
		WSDropped     int64 `json:"ws_dropped"`
	}
	if err := getJSON(baseURL, "/api/stats", &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	s := resp.Scans
	fmt.Fprintln(out)
	fmt.Fprintln(out, header("  SCAN STATISTICS"))
	rule(42)
	fmt.Fprintf(out, "  Uptime:           %s\n", formatDuration(time.Duration(resp.UptimeSeconds)*time.Second))
	fmt.Fprintf(out, "  Scans:            %d\n", s.ScansTotal)
	fmt.Fprintf(out, "  Potholes found:   %d\n", s.Resolved)
	fmt.Fprintf(out, "  Incomplete:       %d\n", s.Incomplete)
	fmt.Fprintf(out, "  Rejected samples: %d\n", s.InvalidTotal)
	if s.Resolved > 0 {
		fmt.Fprintf(out, "  Deepest:          %.2f cm\n", s.DeepestCM)
	}
	if s.LastScanAt != "" {
		fmt.Fprintf(out, "  Last scan:        %s\n", formatTime(s.LastScanAt))
	} else {
		fmt.Fprintf(out, "  Last scan:        none\n")
	}
	if s.LastPothole != "" {
		fmt.Fprintf(out, "  Last pothole:     %s\n", formatTime(s.LastPothole))
	}

	if len(s.ByTier) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, header("  BY SAFETY TIER"))
		t := newTable("  ", "Tier", "Potholes")
		t.alignRight(1)
		for _, tier := range []string{"dangerous", "caution", "safe"} {
			if n, ok := s.ByTier[tier]; ok {
				t.row(colorize(tierColor(tier), tier), strconv.Itoa(n))
			}
		}
		t.flush()
	}

	if len(s.ByStop) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, header("  BY OUTCOME"))
		stops := make([]string, 0, len(s.ByStop))
		for stop := range s.ByStop {
			stops = append(stops, stop)
		}
		sort.Strings(stops)
		t := newTable("  ", "Stopped", "Scans")
		t.alignRight(1)
		for _, stop := range stops {
			t.row(stop, strconv.Itoa(s.ByStop[stop]))
		}
		t.flush()
	}

	if resp.WSDropped > 0 {
		fmt.Fprintf(out, "\n  %s %d live events dropped for slow watchers\n", colorize(yellow, "note:"), resp.WSDropped)
	}
	fmt.Fprintln(out)
	return nil
}
