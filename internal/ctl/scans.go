package ctl

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Pothole mirrors the pothole summary in scan results.
type Pothole struct {
	StartIndex int     `json:"start_index"`
	EndIndex   int     `json:"end_index"`
	Depth      float64 `json:"depth_cm"`
	LengthCM   float64 `json:"length_cm"`
	Tier       string  `json:"safety_tier"`
}

// Location mirrors a gpsd position fix.
type Location struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Alt  float64 `json:"alt_m"`
	Mode int     `json:"mode"`
}

// ScanSummary mirrors one entry of GET /api/scans.
type ScanSummary struct {
	ID              string    `json:"id"`
	Source          string    `json:"source"`
	StartedAt       string    `json:"started_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	Stop            string    `json:"stop"`
	Readings        int       `json:"readings"`
	Invalid         int       `json:"invalid"`
	Pothole         *Pothole  `json:"pothole,omitempty"`
	Location        *Location `json:"location,omitempty"`
}

func (s ScanSummary) outcome() string {
	if s.Pothole == nil {
		return colorize(dim, "no pothole ("+s.Stop+")")
	}
	return fmt.Sprintf("%s  depth %.2f cm, length %.2f cm",
		colorize(tierColor(s.Pothole.Tier), strings.ToUpper(s.Pothole.Tier)),
		s.Pothole.Depth, s.Pothole.LengthCM)
}

// ScanDetail mirrors GET /api/scans/{id}.
type ScanDetail struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	StartedAt  string    `json:"started_at"`
	FinishedAt string    `json:"finished_at"`
	Stop       string    `json:"stop"`
	Baseline   *float64  `json:"baseline_cm,omitempty"`
	Pothole    *Pothole  `json:"pothole,omitempty"`
	RawSamples int       `json:"raw_samples"`
	Invalid    int       `json:"invalid"`
	FinalState string    `json:"final_state"`
	Location   *Location `json:"location,omitempty"`
	Readings   []struct {
		Index    int     `json:"index"`
		Distance float64 `json:"distance_cm"`
	} `json:"readings"`
}

// ScansOptions controls the scans command.
type ScansOptions struct {
	Limit    int
	Tier     string
	Resolved bool
	JSON     bool
}

// Scans lists recent scans, newest first.
func Scans(baseURL string, opts ScansOptions) error {
	params := url.Values{}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Tier != "" {
		params.Set("tier", opts.Tier)
	}
	if opts.Resolved {
		params.Set("resolved", "true")
	}
	path := "/api/scans"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp struct {
		Scans []ScanSummary `json:"scans"`
	}
	if err := getJSON(baseURL, path, &resp); err != nil {
		return err
	}
	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, header("  RECENT SCANS"))
	rule(76)
	if len(resp.Scans) == 0 {
		fmt.Fprintln(out, colorize(dim, "  No scans recorded yet."))
		fmt.Fprintln(out)
		return nil
	}

	t := newTable("  ", "Scan", "Started", "Source", "Readings", "Depth", "Length", "Tier")
	t.alignRight(3, 4, 5)
	for _, s := range resp.Scans {
		depth, length, tier := "-", "-", colorize(dim, s.Stop)
		if p := s.Pothole; p != nil {
			depth = fmt.Sprintf("%.2f", p.Depth)
			length = fmt.Sprintf("%.2f", p.LengthCM)
			tier = colorize(tierColor(p.Tier), p.Tier)
		}
		t.row(shortID(s.ID), formatTime(s.StartedAt), s.Source, strconv.Itoa(s.Readings), depth, length, tier)
	}
	t.flush()
	fmt.Fprintln(out)
	return nil
}

// Show prints one scan in full. id may be a short ID or "latest".
func Show(baseURL, id string, jsonOutput bool) error {
	if id == "" {
		return errors.New("scan id required (or \"latest\")")
	}

	var s ScanDetail
	if err := getJSON(baseURL, "/api/scans/"+url.PathEscape(id), &s); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(s)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, header("  SCAN "+shortID(s.ID)))
	rule(50)
	field := func(key string, val any) {
		fmt.Fprintf(out, "  %-12s %v\n", colorize(dim, key+":"), val)
	}
	field("ID", s.ID)
	field("Source", s.Source)
	field("Started", formatTime(s.StartedAt))
	field("Stopped", s.Stop)
	field("Readings", fmt.Sprintf("%d accepted, %d rejected", len(s.Readings), s.Invalid))
	if s.Baseline != nil {
		field("Baseline", fmt.Sprintf("%.2f cm", *s.Baseline))
	}
	if s.Location != nil {
		field("Location", fmt.Sprintf("%.6f,%.6f", s.Location.Lat, s.Location.Lon))
	}

	fmt.Fprintln(out)
	if p := s.Pothole; p != nil {
		fmt.Fprintln(out, header("  POTHOLE"))
		field("Depth", fmt.Sprintf("%.2f cm", p.Depth))
		field("Length", fmt.Sprintf("%.2f cm", p.LengthCM))
		field("Span", fmt.Sprintf("readings %d-%d", p.StartIndex, p.EndIndex))
		field("Safety", colorize(tierColor(p.Tier), strings.ToUpper(p.Tier)))
	} else {
		fmt.Fprintln(out, colorize(dim, "  No pothole detected or insufficient data."))
	}

	if len(s.Readings) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, header("  READINGS"))
		t := newTable("  ", "#", "Distance (cm)", "")
		t.alignRight(0, 1)
		for _, r := range s.Readings {
			mark := ""
			if p := s.Pothole; p != nil && r.Index >= p.StartIndex && r.Index <= p.EndIndex {
				mark = colorize(red, "pothole")
			}
			t.row(strconv.Itoa(r.Index), fmt.Sprintf("%.2f", r.Distance), mark)
		}
		t.flush()
	}
	fmt.Fprintln(out)
	return nil
}

// Chart downloads the pothole map PNG for a scan to path. An empty path
// saves to <short-id>.png in the working directory.
func Chart(baseURL, id, path string) error {
	if id == "" {
		return errors.New("scan id required (or \"latest\")")
	}
	if id == "latest" {
		var s ScanSummary
		if err := getJSON(baseURL, "/api/scans/latest", &s); err != nil {
			return err
		}
		id = s.ID
	}

	status, body, err := getRaw(baseURL, "/api/scans/"+url.PathEscape(id)+"/chart.png", nil)
	if err != nil {
		return err
	}
	if status != 200 {
		return httpError(strconv.Itoa(status), body)
	}

	if path == "" {
		path = shortID(id) + ".png"
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n  %s  %s (%s)\n\n", colorize(green, "SAVED"), path, formatBytes(uint64(len(body))))
	return nil
}
