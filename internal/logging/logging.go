// Package logging builds the daemon's zap logger. Entries go to stdout, to an
// optional rotating file, and to an in-memory tail that the HTTP API serves.
package logging

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/large-farva/pothole-engine/internal/config"
)

// DefaultTailSize is how many recent entries Tail keeps.
const DefaultTailSize = 500

// Entry is one captured log line.
type Entry struct {
	TS        string `json:"ts"`
	Level     string `json:"level"`
	Component string `json:"component"`
	Message   string `json:"message"`
}

// Tail is a bounded, concurrency-safe buffer of recent log entries.
type Tail struct {
	mu      sync.Mutex
	entries []Entry
	max     int
	subs    []func(Entry)
}

func NewTail(max int) *Tail {
	if max <= 0 {
		max = DefaultTailSize
	}
	return &Tail{max: max}
}

// Add appends e, dropping the oldest entry once full, then hands it to every
// subscriber.
func (t *Tail) Add(e Entry) {
	t.mu.Lock()
	t.entries = append(t.entries, e)
	if len(t.entries) > t.max {
		t.entries = t.entries[len(t.entries)-t.max:]
	}
	subs := t.subs
	t.mu.Unlock()

	for _, fn := range subs {
		fn(e)
	}
}

// Subscribe registers fn to receive every entry added after the call. fn runs
// on the logging goroutine and must not block or log.
func (t *Tail) Subscribe(fn func(Entry)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = append(t.subs[:len(t.subs):len(t.subs)], fn)
}

// Entries returns up to limit of the newest entries, optionally restricted to
// one level. limit <= 0 means no limit.
func (t *Tail) Entries(level string, limit int) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		if level != "" && e.Level != level {
			continue
		}
		out = append(out, e)
	}
	if limit > 0 && limit < len(out) {
		out = out[len(out)-limit:]
	}
	return out
}

func (t *Tail) hook(e zapcore.Entry) error {
	t.Add(Entry{
		TS:        e.Time.UTC().Format(time.RFC3339Nano),
		Level:     e.Level.String(),
		Component: e.LoggerName,
		Message:   e.Message,
	})
	return nil
}

// New builds a logger for cfg. When tail is non-nil every entry at or above
// the configured level is copied into it.
func New(cfg config.LoggingConfig, tail *Tail) (*zap.SugaredLogger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging level: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCfg := encCfg
	consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stdout), level),
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), level))
	}

	opts := []zap.Option{zap.AddCaller()}
	if tail != nil {
		opts = append(opts, zap.Hooks(tail.hook))
	}

	return zap.New(zapcore.NewTee(cores...), opts...).Sugar(), nil
}

// Nop returns a logger that discards everything, for tests and library use.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
