// Package fleet holds read-only reference data about the yachts that can be
// chartered: capacity limits, maintenance windows and seasonal rate windows.
// The registry is loaded once at startup and only read afterwards.
package fleet

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Window is a closed date interval during which a yacht is out of service.
type Window struct {
	Start  time.Time `yaml:"start"`
	End    time.Time `yaml:"end"`
	Reason string    `yaml:"reason"`
}

// Contains reports whether date falls inside the window, boundaries included.
func (w Window) Contains(date time.Time) bool {
	return !date.Before(w.Start) && !date.After(w.End)
}

// RateWindow applies a price multiplier during a seasonal period.
type RateWindow struct {
	Start      time.Time `yaml:"start"`
	End        time.Time `yaml:"end"`
	Multiplier float64   `yaml:"multiplier"`
}

type Yacht struct {
	ID              string       `yaml:"id"`
	Name            string       `yaml:"name"`
	MaxGuests       int          `yaml:"max_guests"`
	MinBookingHours int          `yaml:"min_booking_hours"`
	Maintenance     []Window     `yaml:"maintenance,omitempty"`
	SeasonalRates   []RateWindow `yaml:"seasonal_rates,omitempty"`
}

// RateMultiplier returns the seasonal multiplier in effect on date, or 1.0
// when no rate window covers it. Overlapping windows resolve to the first
// declared match.
func (y Yacht) RateMultiplier(date time.Time) float64 {
	for _, rw := range y.SeasonalRates {
		if !date.Before(rw.Start) && !date.After(rw.End) {
			return rw.Multiplier
		}
	}
	return 1.0
}

// Registry is a synchronous, in-memory lookup of yacht specifications.
type Registry struct {
	mu     sync.RWMutex
	yachts map[string]Yacht
}

func NewRegistry(yachts ...Yacht) *Registry {
	r := &Registry{yachts: make(map[string]Yacht, len(yachts))}
	for _, y := range yachts {
		r.yachts[y.ID] = y
	}
	return r
}

func (r *Registry) Get(id string) (Yacht, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	y, ok := r.yachts[id]
	return y, ok
}

// All returns the registered yachts sorted by id for stable iteration.
func (r *Registry) All() []Yacht {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Yacht, 0, len(r.yachts))
	for _, y := range r.yachts {
		out = append(out, y)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fleetFile struct {
	Yachts []Yacht `yaml:"yachts"`
}

// LoadFile reads a fleet definition from a YAML file.
func LoadFile(path string) ([]Yacht, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fleet: read %s: %w", path, err)
	}
	var f fleetFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("fleet: parse %s: %w", path, err)
	}
	for i, y := range f.Yachts {
		if y.ID == "" {
			return nil, fmt.Errorf("fleet: yacht %d has no id", i)
		}
		if y.MaxGuests < 1 {
			return nil, fmt.Errorf("fleet: yacht %q: max_guests must be positive", y.ID)
		}
		for _, w := range y.Maintenance {
			if w.End.Before(w.Start) {
				return nil, fmt.Errorf("fleet: yacht %q: maintenance window ends before it starts", y.ID)
			}
		}
	}
	return f.Yachts, nil
}
