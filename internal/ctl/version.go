package ctl

import (
	"fmt"
	"runtime"
)

// Build-time variables set via -ldflags.
var (
	Version   = "dev"
	GoVersion = "unknown"
)

type buildInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	BuiltAt   string `json:"built_at,omitempty"`
	OS        string `json:"os,omitempty"`
	Arch      string `json:"arch,omitempty"`
}

func cliBuild() buildInfo {
	b := buildInfo{Version: Version, GoVersion: GoVersion, OS: runtime.GOOS, Arch: runtime.GOARCH}
	if b.GoVersion == "unknown" {
		b.GoVersion = runtime.Version()
	}
	return b
}

// VersionInfo prints the CLI build next to the daemon's. An unreachable
// daemon is reported, not returned as an error, so the command still works
// offline.
func VersionInfo(baseURL string, jsonOutput bool) error {
	cli := cliBuild()
	var daemon buildInfo
	daemonErr := getJSON(baseURL, "/api/version", &daemon)

	if jsonOutput {
		resp := map[string]any{"cli": cli}
		if daemonErr != nil {
			resp["daemon_error"] = daemonErr.Error()
		} else {
			resp["daemon"] = daemon
		}
		return printJSON(resp)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, header("  POTHOLE ENGINE VERSION"))
	rule(50)
	t := newTable("  ", "", "Version", "Go", "Platform")
	t.row("potholectl", cli.Version, cli.GoVersion, cli.OS+"/"+cli.Arch)
	if daemonErr == nil {
		t.row("potholed", daemon.Version, daemon.GoVersion, daemon.OS+"/"+daemon.Arch)
	}
	t.flush()

	switch {
	case daemonErr != nil:
		fmt.Fprintf(out, "\n  %s %s\n", colorize(red, "daemon unreachable:"), daemonErr)
	case daemon.Version != cli.Version:
		fmt.Fprintf(out, "\n  %s CLI and daemon versions differ\n", colorize(yellow, "note:"))
	}
	if daemonErr == nil && daemon.BuiltAt != "" && daemon.BuiltAt != "unknown" {
		fmt.Fprintf(out, "  %s %s\n", colorize(dim, "daemon built"), daemon.BuiltAt)
	}
	fmt.Fprintln(out)
	return nil
}
