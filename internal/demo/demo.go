// Package demo simulates road surfaces so the daemon, CLI, and dashboard can
// be exercised end-to-end without an ultrasonic sensor attached. Each profile
// is a short sweep of raw distances, including the occasional lost echo and
// out-of-range glitch a real sensor produces.
package demo

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/large-farva/pothole-engine/internal/sensor"
)

// lost marks a sample where the simulated sensor heard no echo.
var lost = math.NaN()

// Profile is one simulated sweep. Surface is the nominal sensor-to-road
// distance in centimeters; Samples are the raw values returned in order.
type Profile struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Surface     float64   `json:"surface_cm"`
	Samples     []float64 `json:"samples"`
}

var catalog = []Profile{
	{
		Name:        "flat",
		Description: "smooth asphalt, no defect",
		Surface:     20,
		Samples: []float64{
			20.0, 20.1, 19.9, 20.0, 20.0,
			20.2, 19.8, 20.0, 20.1, 19.9, 20.0, 20.2, 19.9,
			20.0, 20.1, 19.8, 20.0, 20.1, 19.9, 20.0,
		},
	},
	{
		Name:        "shallow-dip",
		Description: "worn patch about 7 cm deep",
		Surface:     20,
		Samples: []float64{
			20.0, 20.1, 19.9, 20.0, 20.0,
			20.1, 26.8, 27.4, 27.1, 26.5,
			20.2, 20.0, 19.9, 20.1, 20.0, 20.1,
		},
	},
	{
		Name:        "pothole",
		Description: "classic pothole about 12 cm deep",
		Surface:     20,
		Samples: []float64{
			20.0, 19.9, 20.1, 20.0, 20.0,
			20.0, 31.0, 32.5, 30.8, 29.6,
			20.4, 20.2, 19.8, 20.1, 20.0, 19.9,
		},
	},
	{
		Name:        "deep-pothole",
		Description: "long, deep cavity",
		Surface:     20,
		Samples: []float64{
			20.1, 20.0, 19.9, 20.0, 20.0,
			20.1, 28.0, 34.5, 41.2, 44.8, 45.3, 43.9, 38.2, 30.1,
			21.0, 20.3, 20.1, 19.9, 20.0, 20.1,
		},
	},
	{
		Name:        "noisy-pothole",
		Description: "pothole seen through lost echoes and range glitches",
		Surface:     20,
		Samples: []float64{
			20.0, lost, 20.1, 250.0, 19.9, 20.0, 20.0,
			20.1, lost, 36.0, 1.2, 35.4, 34.8, lost, 33.0,
			20.3, 20.1, 400.0, 19.9, 20.0, 20.1,
		},
	},
}

// Catalog returns a copy of every built-in profile.
func Catalog() []Profile {
	out := make([]Profile, len(catalog))
	for i, p := range catalog {
		p.Samples = append([]float64(nil), p.Samples...)
		out[i] = p
	}
	return out
}

// ProfileByName looks up a built-in profile.
func ProfileByName(name string) (Profile, error) {
	for _, p := range Catalog() {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("demo: unknown profile %q", name)
}

// Source plays a profile back as a sensor.Source. Jitter adds uniform noise
// of up to ±Jitter cm to every echo; lost samples are never jittered.
type Source struct {
	profile Profile
	jitter  float64
	rng     *rand.Rand
	pos     int
}

var _ sensor.Source = (*Source)(nil)

// NewSource returns a source for p. The same seed yields the same noise.
func NewSource(p Profile, jitter float64, seed uint64) *Source {
	return &Source{
		profile: p,
		jitter:  jitter,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *Source) Profile() Profile { return s.profile }

func (s *Source) Measure(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.pos >= len(s.profile.Samples) {
		return 0, sensor.ErrExhausted
	}
	v := s.profile.Samples[s.pos]
	s.pos++

	if math.IsNaN(v) {
		return 0, sensor.ErrNoEcho
	}
	if s.jitter > 0 {
		v += (s.rng.Float64()*2 - 1) * s.jitter
	}
	return v, nil
}

func (s *Source) Close() error { return nil }

// Cycler hands out profiles in catalog order, wrapping at the end, so each
// demo scan features a different surface.
type Cycler struct {
	mu       sync.Mutex
	profiles []Profile
	next     int
}

// NewCycler cycles through the whole catalog, or repeats a single profile
// when name is set.
func NewCycler(name string) (*Cycler, error) {
	if name == "" {
		return &Cycler{profiles: Catalog()}, nil
	}
	p, err := ProfileByName(name)
	if err != nil {
		return nil, err
	}
	return &Cycler{profiles: []Profile{p}}, nil
}

func (c *Cycler) Next() Profile {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.profiles[c.next%len(c.profiles)]
	c.next++
	return p
}
