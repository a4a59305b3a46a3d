package app

import (
	"strings"
	"sync"
	"time"

	"github.com/large-farva/pothole-engine/internal/detect"
	"github.com/large-farva/pothole-engine/internal/scan"
)

// Stats aggregates every scan since startup, including ones that have since
// fallen out of the history window.
type Stats struct {
	ScansTotal   int            `json:"scans_total"`
	Resolved     int            `json:"resolved"`
	Incomplete   int            `json:"incomplete"`
	ByTier       map[string]int `json:"by_tier"`
	ByStop       map[string]int `json:"by_stop"`
	DeepestCM    float64        `json:"deepest_cm"`
	LastScanAt   *time.Time     `json:"last_scan_at,omitempty"`
	LastPothole  *time.Time     `json:"last_pothole_at,omitempty"`
	InvalidTotal int            `json:"invalid_total"`
}

// History keeps the most recent scan results in memory, oldest first.
type History struct {
	mu    sync.RWMutex
	max   int
	scans []*scan.Result
	stats Stats
}

func NewHistory(max int) *History {
	if max < 1 {
		max = 1
	}
	return &History{
		max: max,
		stats: Stats{
			ByTier: map[string]int{},
			ByStop: map[string]int{},
		},
	}
}

// Add records res and evicts the oldest entry once the window is full.
func (h *History) Add(res *scan.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.scans = append(h.scans, res)
	h.trim()

	s := &h.stats
	s.ScansTotal++
	s.InvalidTotal += res.Invalid
	s.ByStop[string(res.Stop)]++
	finished := res.FinishedAt
	s.LastScanAt = &finished
	if !res.Resolved() {
		s.Incomplete++
		return
	}
	s.Resolved++
	s.ByTier[res.Event.Tier.String()]++
	s.LastPothole = &finished
	if res.Event.Depth > s.DeepestCM {
		s.DeepestCM = res.Event.Depth
	}
}

// Resize changes the window, dropping the oldest entries if it shrinks.
func (h *History) Resize(max int) {
	if max < 1 {
		max = 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.max = max
	h.trim()
}

func (h *History) trim() {
	if over := len(h.scans) - h.max; over > 0 {
		h.scans = append([]*scan.Result(nil), h.scans[over:]...)
	}
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.scans)
}

// List returns up to limit summaries, newest first. A non-nil tier keeps only
// resolved scans of that tier; resolvedOnly keeps every resolved scan.
func (h *History) List(limit int, tier *detect.Tier, resolvedOnly bool) []scan.Summary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]scan.Summary, 0, len(h.scans))
	for i := len(h.scans) - 1; i >= 0; i-- {
		res := h.scans[i]
		if (tier != nil || resolvedOnly) && !res.Resolved() {
			continue
		}
		if tier != nil && res.Event.Tier != *tier {
			continue
		}
		out = append(out, res.Summary())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Latest returns the newest result, or nil.
func (h *History) Latest() *scan.Result {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.scans) == 0 {
		return nil
	}
	return h.scans[len(h.scans)-1]
}

// Get finds a scan by full ID or by a unique prefix such as the short ID.
func (h *History) Get(id string) (*scan.Result, bool) {
	if id == "" {
		return nil, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	var match *scan.Result
	for _, res := range h.scans {
		if res.ID == id {
			return res, true
		}
		if strings.HasPrefix(res.ID, id) {
			if match != nil {
				return nil, false
			}
			match = res
		}
	}
	return match, match != nil
}

// Stats returns a copy of the running totals.
func (h *History) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := h.stats
	s.ByTier = make(map[string]int, len(h.stats.ByTier))
	for k, v := range h.stats.ByTier {
		s.ByTier[k] = v
	}
	s.ByStop = make(map[string]int, len(h.stats.ByStop))
	for k, v := range h.stats.ByStop {
		s.ByStop[k] = v
	}
	return s
}
