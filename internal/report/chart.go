package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/large-farva/pothole-engine/internal/scan"
)

// Default chart size, a wide strip like the sweep it shows.
const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 3 * vg.Inch
)

var (
	potholeColor  = color.RGBA{R: 220, G: 40, B: 40, A: 255}
	surfaceColor  = color.RGBA{R: 40, G: 160, B: 70, A: 255}
	baselineColor = color.RGBA{R: 30, G: 80, B: 220, A: 255}
)

// ErrNoReadings is returned when there is nothing to draw.
var ErrNoReadings = errors.New("report: scan has no readings")

// Chart builds the pothole map: one bar per reading, bars inside the event
// span in red and the rest in green, with the baseline as a dashed line.
func Chart(res *scan.Result) (*plot.Plot, error) {
	if len(res.Readings) == 0 {
		return nil, ErrNoReadings
	}

	inside := make(plotter.Values, len(res.Readings))
	outside := make(plotter.Values, len(res.Readings))
	for i, r := range res.Readings {
		if res.Resolved() && r.Index >= res.Event.StartIndex && r.Index <= res.Event.EndIndex {
			inside[i] = r.Distance
		} else {
			outside[i] = r.Distance
		}
	}

	p := plot.New()
	p.Title.Text = "2D Pothole Map"
	p.X.Label.Text = "Reading Index"
	p.Y.Label.Text = "Distance (cm)"
	p.Y.Min = 0

	width := vg.Points(6)
	surface, err := plotter.NewBarChart(outside, width)
	if err != nil {
		return nil, fmt.Errorf("report: surface bars: %w", err)
	}
	surface.Color = surfaceColor
	surface.LineStyle.Width = 0
	p.Add(surface)
	p.Legend.Add("Surface", surface)

	if res.Resolved() {
		hole, err := plotter.NewBarChart(inside, width)
		if err != nil {
			return nil, fmt.Errorf("report: pothole bars: %w", err)
		}
		hole.Color = potholeColor
		hole.LineStyle.Width = 0
		p.Add(hole)
		p.Legend.Add("Pothole", hole)
	}

	if res.Baseline != nil {
		n := float64(len(res.Readings))
		line, err := plotter.NewLine(plotter.XYs{
			{X: -0.5, Y: *res.Baseline},
			{X: n - 0.5, Y: *res.Baseline},
		})
		if err != nil {
			return nil, fmt.Errorf("report: baseline: %w", err)
		}
		line.Color = baselineColor
		line.Width = vg.Points(1)
		line.Dashes = []vg.Length{vg.Points(5), vg.Points(3)}
		p.Add(line)
		p.Legend.Add("Baseline", line)
	}

	p.Legend.Top = true
	return p, nil
}

// WriteChart renders the chart as PNG to w.
func WriteChart(res *scan.Result, w io.Writer, width, height vg.Length) error {
	p, err := Chart(res)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("report: render: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("report: write: %w", err)
	}
	return nil
}

// SaveChart writes <dir>/<scan-id>.png and returns the path.
func SaveChart(res *scan.Result, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: %w", err)
	}
	path := filepath.Join(dir, res.ID+".png")
	return path, SaveChartAs(res, path)
}

// SaveChartAs writes the PNG to an explicit path.
func SaveChartAs(res *scan.Result, path string) error {
	p, err := Chart(res)
	if err != nil {
		return err
	}
	if err := p.Save(DefaultWidth, DefaultHeight, path); err != nil {
		return fmt.Errorf("report: save %s: %w", path, err)
	}
	return nil
}
