package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/pothole-engine/internal/config"
)

func TestTailBounded(t *testing.T) {
	tail := NewTail(3)
	for _, msg := range []string{"a", "b", "c", "d"} {
		tail.Add(Entry{Level: "info", Message: msg})
	}

	got := tail.Entries("", 0)
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].Message)
	assert.Equal(t, "d", got[2].Message)
}

func TestTailFilters(t *testing.T) {
	tail := NewTail(10)
	tail.Add(Entry{Level: "info", Message: "one"})
	tail.Add(Entry{Level: "error", Message: "two"})
	tail.Add(Entry{Level: "info", Message: "three"})

	infos := tail.Entries("info", 0)
	require.Len(t, infos, 2)
	assert.Equal(t, "three", infos[1].Message)

	last := tail.Entries("", 1)
	require.Len(t, last, 1)
	assert.Equal(t, "three", last[0].Message)
}

func TestTailSubscribe(t *testing.T) {
	tail := NewTail(10)
	tail.Add(Entry{Level: "info", Message: "before"})

	var got []string
	tail.Subscribe(func(e Entry) { got = append(got, e.Message) })
	tail.Add(Entry{Level: "info", Message: "after"})

	assert.Equal(t, []string{"after"}, got)
}

func TestNewCapturesIntoTail(t *testing.T) {
	cfg := config.Default().Logging
	cfg.Level = "warn"
	cfg.File = filepath.Join(t.TempDir(), "pothole.log")
	tail := NewTail(10)

	log, err := New(cfg, tail)
	require.NoError(t, err)

	scanLog := log.Named("scan")
	scanLog.Infow("below level")
	scanLog.Warnw("echo lost", "count", 3)
	_ = log.Sync()

	entries := tail.Entries("", 0)
	require.Len(t, entries, 1)
	assert.Equal(t, "warn", entries[0].Level)
	assert.Equal(t, "scan", entries[0].Component)
	assert.Equal(t, "echo lost", entries[0].Message)

	b, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	assert.Contains(t, string(b), "echo lost")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "chatty"}, nil)
	assert.Error(t, err)
}
