// Potholed is the pothole engine daemon.
//
// It loads configuration, starts the HTTP/WebSocket server, and runs scans
// against the configured distance sensor or the built-in demo surfaces.
// Shutdown is handled gracefully on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/large-farva/pothole-engine/internal/app"
	"github.com/large-farva/pothole-engine/internal/config"
	"github.com/large-farva/pothole-engine/internal/logging"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "/etc/pothole/potholed.toml", "Path to config TOML")
		bind       = pflag.String("bind", "", "HTTP bind address (overrides [server].bind)")
	)
	pflag.Parse()

	// A missing default config file means "run on defaults"; an explicit
	// --config must exist.
	cfg, err := config.Load(*configPath)
	defaulted := false
	if errors.Is(err, fs.ErrNotExist) && !pflag.CommandLine.Changed("config") {
		cfg, err, defaulted = config.Default(), nil, true
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "potholed: config load failed: %v\n", err)
		os.Exit(1)
	}

	tail := logging.NewTail(500)
	base, err := logging.New(cfg.Logging, tail)
	if err != nil {
		fmt.Fprintf(os.Stderr, "potholed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = base.Sync() }()
	logger := base.Named("potholed")

	if defaulted {
		logger.Warnw("config file not found, using defaults", "path", *configPath)
		*configPath = ""
	}

	a, err := app.New(app.Options{
		Logger:     logger,
		Tail:       tail,
		Cfg:        cfg,
		ConfigPath: *configPath,
		Bind:       *bind,
	})
	if err != nil {
		logger.Fatalw("startup failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalw("potholed failed", "error", err)
	}
	logger.Infow("stopped")
}
