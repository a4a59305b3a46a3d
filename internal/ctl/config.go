package ctl

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config fetches and displays the daemon's running configuration.
func Config(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	// Decode into a generic map to preserve all fields for both display modes.
	var raw json.RawMessage
	if err := getJSON(baseURL, "/api/config", &raw); err != nil {
		return err
	}

	if jsonOutput {
		var v any
		_ = json.Unmarshal(raw, &v)
		return printJSON(v)
	}

	// Sections print in file order; keys within a section keep the daemon's
	// field order.
	var cfg map[string]json.RawMessage
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, header("  DAEMON CONFIGURATION"))
	rule(50)

	for _, name := range []string{"data", "logging", "server", "demo", "sensor", "filter", "scan", "detector", "gps"} {
		section, ok := cfg[name]
		if !ok {
			continue
		}
		fmt.Fprintf(out, "\n  %s\n", colorize(bold, "["+name+"]"))

		dec := json.NewDecoder(strings.NewReader(string(section)))
		if err := printSection(dec); err != nil {
			return fmt.Errorf("config section %s: %w", name, err)
		}
	}
	fmt.Fprintln(out)

	return nil
}

// printSection walks one flat JSON object token by token so keys come out in
// the order the daemon wrote them.
func printSection(dec *json.Decoder) error {
	if _, err := dec.Token(); err != nil { // {
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var val any
		if err := dec.Decode(&val); err != nil {
			return err
		}
		if s, ok := val.(string); ok && s == "" {
			val = colorize(dim, "(unset)")
		}
		fmt.Fprintf(out, "    %-22s %v\n", colorize(dim, key+":"), val)
	}
	return nil
}

// ConfigList shows the config profiles available to reload --profile.
func ConfigList(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		ConfigDir string `json:"config_dir"`
		Profiles  []struct {
			Name       string `json:"name"`
			Path       string `json:"path"`
			SensorKind string `json:"sensor_kind"`
			ModifiedAt string `json:"modified_at"`
			Valid      bool   `json:"valid"`
			Error      string `json:"error"`
		} `json:"profiles"`
	}
	if err := getJSON(baseURL, "/api/config/profiles", &resp); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, header("  CONFIG PROFILES"))
	fmt.Fprintf(out, "  %s %s\n", colorize(dim, "Directory:"), resp.ConfigDir)
	rule(60)
	if len(resp.Profiles) == 0 {
		fmt.Fprintln(out, colorize(dim, "  No profiles found."))
		fmt.Fprintln(out)
		return nil
	}

	t := newTable("  ", "Profile", "Sensor", "Modified", "Status")
	for _, p := range resp.Profiles {
		status := colorize(green, "valid")
		if !p.Valid {
			status = colorize(red, "invalid: "+p.Error)
		}
		t.row(p.Name, p.SensorKind, formatTime(p.ModifiedAt), status)
	}
	t.flush()
	fmt.Fprintln(out)
	return nil
}

// ReloadOptions configures the reload command.
type ReloadOptions struct {
	// Profile names a *.toml in the daemon's config directory. Empty re-reads
	// the file the daemon is running from.
	Profile string
	JSON    bool
}

// Reload makes the daemon re-read its configuration and shows what the next
// scans will run with.
func Reload(baseURL string, opts ReloadOptions) error {
	var body any
	if opts.Profile != "" {
		body = map[string]string{"profile": opts.Profile}
	}

	var resp struct {
		OK           bool   `json:"ok"`
		Path         string `json:"path"`
		Mode         string `json:"mode"`
		Sensor       string `json:"sensor"`
		AutoInterval string `json:"auto_interval"`
		History      int    `json:"history"`
	}
	if err := postJSON(baseURL, "/api/reload", body, &resp); err != nil {
		return err
	}
	if opts.JSON {
		return printJSON(resp)
	}

	schedule := "manual"
	if resp.AutoInterval != "" && resp.AutoInterval != "0s" {
		schedule = "every " + resp.AutoInterval
	}
	fmt.Fprintf(out, "\n  %s  %s\n", colorize(green, "RELOADED"), resp.Path)
	fmt.Fprintf(out, "  %-12s %s (%s)\n", colorize(dim, "Mode:"), resp.Mode, resp.Sensor)
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Scans:"), schedule)
	fmt.Fprintf(out, "  %-12s last %d kept\n\n", colorize(dim, "History:"), resp.History)
	return nil
}
