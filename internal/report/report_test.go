package report

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/pothole-engine/internal/detect"
	"github.com/large-farva/pothole-engine/internal/geo"
	"github.com/large-farva/pothole-engine/internal/scan"
)

func readings(vs ...float64) []detect.Reading {
	out := make([]detect.Reading, len(vs))
	for i, v := range vs {
		out[i] = detect.Reading{Index: i, Distance: v}
	}
	return out
}

func resolvedResult() *scan.Result {
	base := 10.0
	start := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	return &scan.Result{
		ID:         "0f8fad5b-d9cb-469f-a165-70867728950e",
		Source:     "replay",
		StartedAt:  start,
		FinishedAt: start.Add(1650 * time.Millisecond),
		Stop:       scan.StopResolved,
		Readings:   readings(10, 10, 10, 10, 10, 21, 22, 9, 9.5, 9.8, 10.1),
		Baseline:   &base,
		Event:      &detect.Event{StartIndex: 5, EndIndex: 10, Depth: 12, LengthCM: 7.5, Tier: detect.TierDangerous},
		FinalState: detect.StateResolved,
		Location:   &geo.Location{Lat: 45.5, Lon: -122.25, Mode: 2},
	}
}

func TestSummaryResolved(t *testing.T) {
	out := Summary(resolvedResult())

	assert.Contains(t, out, "========= RESULTS =========")
	assert.Contains(t, out, "0f8fad5b (replay)")
	assert.Contains(t, out, "resolved after 1.65s")
	assert.Contains(t, out, "Pothole Depth:  12.00 cm")
	assert.Contains(t, out, "Pothole Length: 7.50 cm")
	assert.Contains(t, out, "readings 5-10")
	assert.Contains(t, out, "Dangerous - avoid!")
	assert.Contains(t, out, "45.500000,-122.250000")
	assert.NotContains(t, out, NoEvent)
}

func TestSummaryIncomplete(t *testing.T) {
	res := resolvedResult()
	res.Stop = scan.StopTimeout
	res.Event = nil
	res.FinalState = detect.StateInPothole

	out := Summary(res)
	assert.Contains(t, out, NoEvent)
	assert.Contains(t, out, "timeout after")
	assert.NotContains(t, out, "Pothole Depth")
}

func TestAdvice(t *testing.T) {
	assert.Equal(t, "Dangerous - avoid!", Advice(detect.TierDangerous))
	assert.Equal(t, "Caution - slow down!", Advice(detect.TierCaution))
	assert.Equal(t, "Safe to pass.", Advice(detect.TierSafe))
}

func TestWriteChartPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChart(resolvedResult(), &buf, DefaultWidth, DefaultHeight))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), img.Bounds().Dy())
}

func TestChartIncompleteHasNoPotholeBars(t *testing.T) {
	res := resolvedResult()
	res.Stop = scan.StopExhausted
	res.Event = nil

	p, err := Chart(res)
	require.NoError(t, err)
	assert.Equal(t, "2D Pothole Map", p.Title.Text)
	assert.Equal(t, "Reading Index", p.X.Label.Text)
	assert.Equal(t, "Distance (cm)", p.Y.Label.Text)
}

func TestChartEmpty(t *testing.T) {
	_, err := Chart(&scan.Result{})
	assert.ErrorIs(t, err, ErrNoReadings)
}

func TestSaveChart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	res := resolvedResult()

	path, err := SaveChart(res, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, res.ID+".png"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = png.Decode(f)
	assert.NoError(t, err)
}
