package sensor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Replay plays back a recorded trace, one raw centimeter value per line.
// Lines starting with '#' are comments. A blank line, "-", "none" or "nan"
// stands for a lost echo. When a line has several comma separated fields the
// last one is the distance, so "index,distance" logs replay as-is.
type Replay struct {
	closer  io.Closer
	scanner *bufio.Scanner
	line    int
}

// OpenReplay opens a trace file.
func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	r := NewReplay(f)
	r.closer = f
	return r, nil
}

// NewReplay reads a trace from r.
func NewReplay(r io.Reader) *Replay {
	return &Replay{scanner: bufio.NewScanner(r)}
}

func (r *Replay) Measure(ctx context.Context) (float64, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return 0, fmt.Errorf("replay: %w", err)
			}
			return 0, ErrExhausted
		}
		r.line++

		text := strings.TrimSpace(r.scanner.Text())
		if strings.HasPrefix(text, "#") {
			continue
		}
		if i := strings.LastIndexByte(text, ','); i >= 0 {
			text = strings.TrimSpace(text[i+1:])
		}
		switch strings.ToLower(text) {
		case "", "-", "none", "nan":
			return 0, ErrNoEcho
		}

		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, fmt.Errorf("replay: line %d: %w", r.line, err)
		}
		return v, nil
	}
}

func (r *Replay) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
