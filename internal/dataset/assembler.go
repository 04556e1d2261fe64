// Package dataset assembles basin grid files from one or more model runs into a
// single time-ordered dataset and caches it per primary run.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/i474232898/offshore-forecast/internal/acquire"
	"github.com/i474232898/offshore-forecast/internal/grid"
	"github.com/i474232898/offshore-forecast/internal/modelrun"
	"github.com/i474232898/offshore-forecast/internal/nomads"
)

// ErrNoData is returned when no slice could be loaded and nothing was cached.
var ErrNoData = errors.New("no forecast data available")

// Dataset is an immutable, strictly time-ordered set of slices on one grid.
type Dataset struct {
	Target string
	Run    modelrun.Run   // primary run
	Runs   []modelrun.Run // contributing runs in resolver order
	Slices []*grid.Slice

	Requested int // forecast-hour files asked for across all runs
	Loaded    int // files acquired and decoded
	Built     time.Time
}

// Complete reports whether every requested file was loaded.
func (d *Dataset) Complete() bool { return d.Loaded >= d.Requested }

// Times returns the timestamp of every slice.
func (d *Dataset) Times() []time.Time {
	out := make([]time.Time, len(d.Slices))
	for i, s := range d.Slices {
		out[i] = s.Time
	}
	return out
}

// Plan is the set of hours to fetch from one run.
type Plan struct {
	Run   modelrun.Run
	Hours []int
}

// Assembler builds basin datasets.
type Assembler struct {
	acq         *acquire.Acquirer
	src         acquire.Source
	target      nomads.Target
	hours       []int
	fallbackMax int
	now         func() time.Time
}

// NewAssembler creates an Assembler fetching hours from the primary run and the
// hours up to fallbackMax from every older run.
func NewAssembler(acq *acquire.Acquirer, src acquire.Source, target nomads.Target, hours []int, fallbackMax int) *Assembler {
	return &Assembler{
		acq:         acq,
		src:         src,
		target:      target,
		hours:       hours,
		fallbackMax: fallbackMax,
		now:         time.Now,
	}
}

// Target is the basin this assembler covers.
func (a *Assembler) Target() nomads.Target { return a.target }

// Plans splits the hour set across runs. runs must be in resolver order.
func (a *Assembler) Plans(runs []modelrun.Run) []Plan {
	plans := make([]Plan, 0, len(runs))
	for i, run := range runs {
		p := Plan{Run: run}
		for _, h := range a.hours {
			if i == 0 || h <= a.fallbackMax {
				p.Hours = append(p.Hours, h)
			}
		}
		plans = append(plans, p)
	}
	return plans
}

// Assemble acquires and decodes every planned file and merges the result.
func (a *Assembler) Assemble(ctx context.Context, runs []modelrun.Run) (*Dataset, error) {
	if len(runs) == 0 {
		return nil, modelrun.ErrNoCycle
	}

	start := a.now()
	ds := &Dataset{Target: a.target.ID, Run: runs[0], Runs: runs}
	groups := make([][]*grid.Slice, 0, len(runs))

	for _, p := range a.Plans(runs) {
		res, err := a.acq.AcquireAll(ctx, a.src, a.target, p.Run, p.Hours)
		if err != nil {
			return nil, err
		}
		ds.Requested += res.Requested()

		var group []*grid.Slice
		for _, f := range res.Files {
			slices, err := grid.Load(f.Run, f.Path)
			if err != nil {
				log.Printf("ERROR: dataset: %v", err)
				if rmErr := a.acq.Cache().Remove(f.Path); rmErr != nil {
					log.Printf("ERROR: dataset: removing %s: %v", f.Path, rmErr)
				}
				continue
			}
			ds.Loaded++
			group = append(group, slices...)
		}
		if len(group) == 0 {
			log.Printf("WARN: dataset: no files loaded for %s run %s", a.target.ID, p.Run)
		}
		groups = append(groups, group)
	}

	merged := Merge(groups...)
	if len(merged) == 0 {
		return nil, fmt.Errorf("%s runs %v: %w", a.target.ID, runs, ErrNoData)
	}

	ds.Slices = append(make([]*grid.Slice, 0, len(merged)), merged[0])
	for _, s := range merged[1:] {
		if !s.SameGrid(merged[0]) {
			log.Printf("WARN: dataset: dropping %s slice at %s on a different grid", a.target.ID, s.Time.Format(time.RFC3339))
			continue
		}
		ds.Slices = append(ds.Slices, s)
	}
	ds.Built = a.now()

	first, last := ds.Slices[0].Time, ds.Slices[len(ds.Slices)-1].Time
	log.Printf("INFO: dataset: %s processed %d forecasts from %d of %d files in %s (%s to %s)",
		a.target.ID, len(ds.Slices), ds.Loaded, ds.Requested, ds.Built.Sub(start).Round(time.Millisecond),
		first.Format(time.RFC3339), last.Format(time.RFC3339))
	return ds, nil
}
