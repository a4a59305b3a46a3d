// Package report renders finished scans for people: a plain-text results
// block and the "2D Pothole Map" bar chart.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/large-farva/pothole-engine/internal/detect"
	"github.com/large-farva/pothole-engine/internal/scan"
)

// NoEvent is printed for any scan that did not resolve.
const NoEvent = "No pothole detected or insufficient data."

// Advice is the driver-facing line for a tier.
func Advice(t detect.Tier) string {
	switch t {
	case detect.TierDangerous:
		return "Dangerous - avoid!"
	case detect.TierCaution:
		return "Caution - slow down!"
	default:
		return "Safe to pass."
	}
}

// Summary formats the results block for a scan.
func Summary(res *scan.Result) string {
	var b strings.Builder

	b.WriteString("========= RESULTS =========\n")
	field(&b, "Scan", fmt.Sprintf("%s (%s)", res.ShortID(), sourceName(res)))
	field(&b, "Stopped", fmt.Sprintf("%s after %s", res.Stop, res.Duration().Round(time.Millisecond)))
	field(&b, "Readings", fmt.Sprintf("%d (%d invalid)", len(res.Readings), res.Invalid))
	if res.Baseline != nil {
		field(&b, "Baseline", fmt.Sprintf("%.2f cm", *res.Baseline))
	}
	if res.Location != nil {
		field(&b, "Location", res.Location.String())
	}

	if !res.Resolved() {
		b.WriteString("\n" + NoEvent + "\n")
		return b.String()
	}

	ev := res.Event
	field(&b, "Pothole Depth", fmt.Sprintf("%.2f cm", ev.Depth))
	field(&b, "Pothole Length", fmt.Sprintf("%.2f cm", ev.LengthCM))
	field(&b, "Span", fmt.Sprintf("readings %d-%d", ev.StartIndex, ev.EndIndex))
	field(&b, "Safety", Advice(ev.Tier))
	return b.String()
}

func field(b *strings.Builder, name, value string) {
	fmt.Fprintf(b, "%-16s%s\n", name+":", value)
}

func sourceName(res *scan.Result) string {
	if res.Source == "" {
		return "unknown source"
	}
	return res.Source
}
