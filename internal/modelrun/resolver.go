package modelrun

import (
	"fmt"
	"sync"
	"time"
)

// Default publication schedule of the GFS family.
const (
	DefaultLatency = 3*time.Hour + 30*time.Minute
	DefaultSpacing = 6 * time.Hour
)

// Resolver decides which forecast cycles are usable at a given wall-clock time.
type Resolver struct {
	latency time.Duration
	spacing time.Duration
}

// NewResolver creates a Resolver. Non-positive arguments fall back to the defaults.
// The spacing must divide a day evenly; cycles are then 0, spacing, 2*spacing... UTC.
func NewResolver(latency, spacing time.Duration) (*Resolver, error) {
	if latency <= 0 {
		latency = DefaultLatency
	}
	if spacing <= 0 {
		spacing = DefaultSpacing
	}
	if spacing%time.Hour != 0 || (24*time.Hour)%spacing != 0 {
		return nil, fmt.Errorf("cycle spacing %s must be a whole number of hours dividing 24h", spacing)
	}
	return &Resolver{latency: latency, spacing: spacing}, nil
}

// Latency is the publish latency applied to every cycle.
func (r *Resolver) Latency() time.Duration { return r.latency }

// Usable reports whether run has cleared its publish latency at now.
func (r *Resolver) Usable(run Run, now time.Time) bool {
	return !now.Before(run.Time().Add(r.latency))
}

// Resolve returns the usable cycles at now, most recent first. The list holds at most
// the latest nominal cycle and the one before it, and is empty when neither is usable.
func (r *Resolver) Resolve(now time.Time) []Run {
	now = now.UTC()
	latest := r.nominal(now)

	var runs []Run
	for _, t := range []time.Time{latest, latest.Add(-r.spacing)} {
		run := At(t)
		if r.Usable(run, now) {
			runs = append(runs, run)
		}
	}
	return runs
}

// NextUsable returns the first instant after now at which another cycle clears
// its publish latency.
func (r *Resolver) NextUsable(now time.Time) time.Time {
	now = now.UTC()
	for t := r.nominal(now).Add(-r.spacing); ; t = t.Add(r.spacing) {
		if ready := t.Add(r.latency); ready.After(now) {
			return ready
		}
	}
}

func (r *Resolver) nominal(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return day.Add(now.Sub(day).Truncate(r.spacing))
}

// Latest returns the most recent usable cycle or ErrNoCycle.
func (r *Resolver) Latest(now time.Time) (Run, error) {
	runs := r.Resolve(now)
	if len(runs) == 0 {
		return Run{}, ErrNoCycle
	}
	return runs[0], nil
}

// Tracker remembers the last primary cycle seen and reports when a newer one appears.
type Tracker struct {
	mu      sync.Mutex
	primary Run
}

// Observe records runs[0] as the primary cycle. It returns true when the primary
// differs from the previously observed one.
func (t *Tracker) Observe(runs []Run) bool {
	if len(runs) == 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.primary == runs[0] {
		return false
	}
	t.primary = runs[0]
	return true
}

// Primary returns the last observed primary cycle.
func (t *Tracker) Primary() Run {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.primary
}
