package dataset

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/i474232898/offshore-forecast/internal/metrics"
	"github.com/i474232898/offshore-forecast/internal/modelrun"
)

// Builder assembles a dataset for runs (resolver order).
type Builder interface {
	Assemble(ctx context.Context, runs []modelrun.Run) (*Dataset, error)
}

// Cache holds the most recent dataset built for a target. Readers always get a
// complete Dataset: a new one replaces the old pointer only once fully built.
// Concurrent misses for the same primary run share one build.
type Cache struct {
	target       string
	builder      Builder
	rebuildAfter time.Duration
	metrics      *metrics.Collector
	now          func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	current *Dataset
}

// NewCache creates a Cache. An incomplete dataset is rebuilt once it is older
// than rebuildAfter; zero means never.
func NewCache(target string, b Builder, rebuildAfter time.Duration, m *metrics.Collector) *Cache {
	return &Cache{
		target:       target,
		builder:      b,
		rebuildAfter: rebuildAfter,
		metrics:      m,
		now:          time.Now,
	}
}

// Current returns the cached dataset, or nil.
func (c *Cache) Current() *Dataset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Get returns the dataset for the primary run runs[0], building it if needed.
// When the build fails, the last successfully built dataset is returned instead
// if there is one; its Run tells the caller whether it is from an older cycle.
func (c *Cache) Get(ctx context.Context, runs []modelrun.Run) (*Dataset, error) {
	if len(runs) == 0 {
		return nil, modelrun.ErrNoCycle
	}
	if ds := c.fresh(runs[0]); ds != nil {
		return ds, nil
	}

	v, err, shared := c.group.Do(runs[0].Key(), func() (interface{}, error) {
		if ds := c.fresh(runs[0]); ds != nil {
			return ds, nil
		}
		return c.build(context.WithoutCancel(ctx), runs)
	})
	if shared {
		log.Printf("DEBUG: dataset: %s request joined build for %s", c.target, runs[0])
	}
	if err != nil {
		return nil, err
	}
	return v.(*Dataset), nil
}

func (c *Cache) fresh(primary modelrun.Run) *Dataset {
	ds := c.Current()
	if ds == nil || ds.Run != primary {
		return nil
	}
	if ds.Complete() || c.rebuildAfter <= 0 || c.now().Sub(ds.Built) < c.rebuildAfter {
		return ds
	}
	return nil
}

func (c *Cache) build(ctx context.Context, runs []modelrun.Run) (*Dataset, error) {
	log.Printf("INFO: dataset: loading %s for model run %s", c.target, runs[0])
	timer := c.metrics.BuildTimer()
	ds, err := c.builder.Assemble(ctx, runs)
	timer.ObserveDuration()

	if err != nil {
		last := c.Current()
		if last == nil {
			c.metrics.RecordBuild(c.target, "failed", -1)
			if errors.Is(err, ErrNoData) || errors.Is(err, modelrun.ErrNoCycle) {
				log.Printf("WARN: dataset: %v", err)
			} else {
				log.Printf("ERROR: dataset: building %s: %v", c.target, err)
			}
			return nil, err
		}
		c.metrics.RecordBuild(c.target, "last_known_good", len(last.Slices))
		log.Printf("WARN: dataset: building %s for %s failed (%v); serving dataset of run %s", c.target, runs[0], err, last.Run)
		return last, nil
	}

	c.mu.Lock()
	c.current = ds
	c.mu.Unlock()

	outcome := "complete"
	if !ds.Complete() {
		outcome = "partial"
	}
	c.metrics.RecordBuild(c.target, outcome, len(ds.Slices))
	return ds, nil
}
