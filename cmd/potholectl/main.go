// Potholectl is the command-line client for monitoring and controlling a
// running potholed instance. It connects over HTTP and WebSocket to query
// status, browse scan results, and stream live events from the daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/large-farva/pothole-engine/internal/ctl"
)

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8080", "Pothole daemon URL (e.g. http://192.168.8.1:8080)")
		jsonOut = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
		filter  = pflag.StringSlice("filter", nil, "Event types to show in watch (e.g. --filter state,log)")
	)

	// Stop parsing global flags at the first non-flag argument (the command
	// name), so subcommand-specific flags like --tier are not rejected.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	var err error
	switch cmd {
	// ── Query commands ────────────────────────────────────────────
	case "status":
		err = ctl.Status(*host, *jsonOut)

	case "health":
		err = ctl.Health(*host, *jsonOut)

	case "version":
		err = ctl.VersionInfo(*host, *jsonOut)

	case "config":
		err = ctl.Config(*host, *jsonOut)

	case "config-list":
		err = ctl.ConfigList(*host, *jsonOut)

	case "scans":
		opts := ctl.ScansOptions{JSON: *jsonOut}
		scanFlags := pflag.NewFlagSet("scans", pflag.ContinueOnError)
		scanFlags.IntVar(&opts.Limit, "limit", 0, "Limit number of scans shown")
		scanFlags.StringVar(&opts.Tier, "tier", "", "Only scans with this safety tier (safe, caution, dangerous)")
		scanFlags.BoolVar(&opts.Resolved, "resolved", false, "Only scans that found a pothole")
		_ = scanFlags.Parse(subArgs)
		err = ctl.Scans(*host, opts)

	case "show":
		err = ctl.Show(*host, firstArg(subArgs), *jsonOut)

	case "chart":
		var outPath string
		chartFlags := pflag.NewFlagSet("chart", pflag.ContinueOnError)
		chartFlags.StringVarP(&outPath, "out", "o", "", "Write the PNG here (default: <scan-id>.png)")
		_ = chartFlags.Parse(subArgs)
		err = ctl.Chart(*host, firstArg(chartFlags.Args()), outPath)

	case "stats":
		err = ctl.Stats(*host, *jsonOut)

	case "logs":
		opts := ctl.LogsOptions{JSON: *jsonOut}
		logFlags := pflag.NewFlagSet("logs", pflag.ContinueOnError)
		logFlags.StringVar(&opts.Level, "level", "", "Minimum log level (debug, info, warn, error)")
		logFlags.IntVar(&opts.Limit, "limit", 0, "Limit number of log entries shown")
		logFlags.BoolVar(&opts.Tail, "tail", false, "Stream live log events (like watch --filter log)")
		_ = logFlags.Parse(subArgs)
		err = ctl.Logs(*host, opts)

	// ── Control commands ──────────────────────────────────────────
	case "scan":
		opts := ctl.ScanOptions{JSON: *jsonOut}
		scanFlags := pflag.NewFlagSet("scan", pflag.ContinueOnError)
		scanFlags.StringVar(&opts.Profile, "profile", "", "Demo surface to scan (simulated sensor only)")
		_ = scanFlags.Parse(subArgs)
		err = ctl.Scan(*host, opts)

	case "pause":
		err = ctl.Pause(*host, *jsonOut)

	case "resume":
		err = ctl.Resume(*host, *jsonOut)

	case "cancel":
		err = ctl.Cancel(*host, *jsonOut)

	case "reload":
		opts := ctl.ReloadOptions{JSON: *jsonOut}
		reloadFlags := pflag.NewFlagSet("reload", pflag.ContinueOnError)
		reloadFlags.StringVar(&opts.Profile, "profile", "", "Switch to a named config profile")
		_ = reloadFlags.Parse(subArgs)
		err = ctl.Reload(*host, opts)

	// ── Live streaming ────────────────────────────────────────────
	case "watch":
		opts := ctl.WatchOptions{Filter: *filter, JSON: *jsonOut}
		watchFlags := pflag.NewFlagSet("watch", pflag.ContinueOnError)
		watchFlags.BoolVar(&opts.Readings, "readings", false, "Also show every accepted distance reading")
		_ = watchFlags.Parse(subArgs)
		err = ctl.Watch(*host, opts)

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func usage() {
	fmt.Print(`
  potholectl: pothole engine control CLI

  USAGE
    potholectl [flags] <command> [command-flags]

  COMMANDS (query)
    status          Show daemon state, uptime, and the current scan
    health          Check daemon and component health
    version         Show CLI and daemon version information
    config          Show the daemon's running configuration
    config-list     List available config profiles
    scans           List recent scans, newest first
    show ID         Show one scan in full (ID may be a prefix or "latest")
    chart ID        Download the pothole map PNG for a scan
    stats           Show aggregate scan statistics
    logs            Show recent daemon log messages

  COMMANDS (control)
    scan            Start a scan now
    pause           Pause automatic scanning
    resume          Resume automatic scanning
    cancel          Abort an in-progress scan
    reload          Reload configuration from disk

  COMMANDS (live)
    watch           Stream live events from the daemon (Ctrl-C to stop)

  GLOBAL FLAGS
    -H, --host URL      Daemon base URL (default: http://127.0.0.1:8080)
        --json          Output raw JSON instead of formatted text
        --filter TYPE   Event types to show in watch (comma-separated)

  COMMAND FLAGS
    scans:
        --limit N           Limit number of scans shown
        --tier TIER         Only scans with this safety tier
        --resolved          Only scans that found a pothole

    chart:
        -o, --out PATH      Write the PNG here (default: <scan-id>.png)

    logs:
        --level LEVEL       Minimum log level (debug, info, warn, error)
        --limit N           Limit number of log entries shown
        --tail              Stream live log events

    scan:
        --profile NAME      Demo surface (flat, shallow-dip, pothole, deep-pothole, noisy-pothole)

    reload:
        --profile NAME      Switch to a named config profile

    watch:
        --readings          Also show every accepted distance reading

  EXAMPLES
    potholectl status
    potholectl --json status
    potholectl --host http://192.168.8.1:8080 watch
    potholectl scan --profile deep-pothole
    potholectl scans --tier dangerous --limit 5
    potholectl show latest
    potholectl chart latest -o pothole.png
    potholectl logs --level warn --limit 20
    potholectl logs --tail
    potholectl pause
    potholectl resume
    potholectl cancel
    potholectl config-list
    potholectl stats
    potholectl reload --profile bench
    potholectl watch --filter state,pothole_resolved,scan_complete

`)
}
