package ctl

import "fmt"

// commandResult mirrors the scheduler's reply to a control command.
type commandResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	ScanID  string `json:"scan_id,omitempty"`
}

// ScanOptions controls the scan command.
type ScanOptions struct {
	// Profile picks a simulated surface on daemons running the demo source.
	Profile string
	JSON    bool
}

// Scan asks the daemon to start a scan now.
func Scan(baseURL string, opts ScanOptions) error {
	var body any
	if opts.Profile != "" {
		body = map[string]string{"profile": opts.Profile}
	}

	var result commandResult
	if err := postJSON(baseURL, "/api/scan", body, &result); err != nil {
		return err
	}
	if opts.JSON {
		return printJSON(result)
	}

	fmt.Fprintf(out, "\n  %s  %s %s\n", colorize(green, "STARTED"), result.Message, colorize(dim, shortID(result.ScanID)))
	fmt.Fprintf(out, "  %s\n\n", colorize(dim, "follow it with: potholectl watch"))
	return nil
}

// Pause stops unattended scanning. Manual scans still run.
func Pause(baseURL string, jsonOutput bool) error {
	return control(baseURL, "/api/pause", yellow, "PAUSED", jsonOutput)
}

// Resume restarts unattended scanning.
func Resume(baseURL string, jsonOutput bool) error {
	return control(baseURL, "/api/resume", green, "RESUMED", jsonOutput)
}

// Cancel aborts the scan in progress. The daemon answers 409 when there is
// none, which surfaces here as an error.
func Cancel(baseURL string, jsonOutput bool) error {
	return control(baseURL, "/api/cancel", red, "CANCELLED", jsonOutput)
}

func control(baseURL, path, color, label string, jsonOutput bool) error {
	var result commandResult
	if err := postJSON(baseURL, path, nil, &result); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(result)
	}
	fmt.Fprintf(out, "\n  %s  %s\n\n", colorize(color, label), result.Message)
	return nil
}
