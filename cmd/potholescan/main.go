// Potholescan runs a single scan in the foreground and prints the result.
//
// It is the bench tool for a sensor rig: no daemon, no HTTP, just one pass
// over the configured sensor (or a demo surface, or a recorded trace) ending
// in the results block. Ctrl-C cancels the scan and still prints what was
// collected.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/large-farva/pothole-engine/internal/config"
	"github.com/large-farva/pothole-engine/internal/geo"
	"github.com/large-farva/pothole-engine/internal/logging"
	"github.com/large-farva/pothole-engine/internal/report"
	"github.com/large-farva/pothole-engine/internal/scan"
	"github.com/large-farva/pothole-engine/internal/scheduler"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "/etc/pothole/potholed.toml", "Path to config TOML")
		profile    = pflag.StringP("profile", "p", "", "Scan a demo surface instead of the configured sensor")
		replay     = pflag.String("replay", "", "Scan a recorded trace file (one distance per line)")
		timeout    = pflag.Duration("timeout", 0, "Scan timeout (default: [scan].timeout_seconds)")
		chartPath  = pflag.String("chart", "", "Write a PNG pothole map to this path")
		jsonOut    = pflag.Bool("json", false, "Print the full result as JSON")
		verbose    = pflag.BoolP("verbose", "v", false, "Log every reading decision")
	)
	pflag.Parse()

	if err := run(*configPath, *profile, *replay, *timeout, *chartPath, *jsonOut, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "potholescan:", err)
		os.Exit(1)
	}
}

// checkFlags rejects flag combinations that would otherwise be resolved
// silently in favour of one of them.
func checkFlags(profile, replay string, timeout time.Duration) error {
	if profile != "" && replay != "" {
		return errors.New("--profile and --replay are mutually exclusive")
	}
	if timeout < 0 || (timeout > 0 && timeout < time.Second) {
		return fmt.Errorf("--timeout %s: must be at least 1s", timeout)
	}
	return nil
}

func run(configPath, profile, replay string, timeout time.Duration, chartPath string, jsonOut, verbose bool) error {
	if err := checkFlags(profile, replay, timeout); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) && !pflag.CommandLine.Changed("config") {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	switch {
	case replay != "":
		cfg.Demo.Enabled = false
		cfg.Sensor.Kind = config.SensorReplay
		cfg.Sensor.ReplayPath = replay
	case profile != "":
		cfg.Sensor.Kind = config.SensorSimulated
	}
	scanTimeout := cfg.Scan.Timeout()
	if timeout > 0 {
		scanTimeout = timeout
	}

	// The results block is the product here, so logs stay quiet unless asked.
	cfg.Logging.File = ""
	cfg.Logging.Level = "warn"
	if verbose {
		cfg.Logging.Level = "debug"
	}
	base, err := logging.New(cfg.Logging, nil)
	if err != nil {
		return err
	}
	defer func() { _ = base.Sync() }()
	log := base.Named("potholescan")

	newSource, err := scheduler.SourceFactoryFor(cfg)
	if err != nil {
		return err
	}
	src, name, err := newSource(profile)
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !jsonOut {
		fmt.Printf("Scanning %s for up to %s...\n", name, scanTimeout)
	}

	r := &scan.Runner{
		Source:     src,
		SourceName: name,
		Filter:     cfg.Filter.Filter(),
		Thresholds: cfg.Detector.Thresholds(),
		Timeout:    scanTimeout,
		Cadence:    cfg.Scan.Cadence(),
		Log:        log,
	}
	res, runErr := r.Run(ctx)
	if res == nil {
		return runErr
	}

	if res.Resolved() && cfg.GPS.Enabled {
		fixCtx, cancel := context.WithTimeout(context.Background(), cfg.GPS.Timeout()+time.Second)
		loc, err := geo.LocationFromGPSD(fixCtx, cfg.GPS.GPSDHost, cfg.GPS.Timeout())
		cancel()
		if err != nil {
			log.Warnw("no position fix", "error", err)
		} else {
			res.Location = &loc
		}
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		fmt.Println()
		fmt.Print(report.Summary(res))
	}

	if chartPath != "" {
		if err := report.SaveChartAs(res, chartPath); err != nil {
			return fmt.Errorf("chart: %w", err)
		}
		if !jsonOut {
			fmt.Printf("\nPothole map written to %s\n", chartPath)
		}
	}
	return runErr
}
