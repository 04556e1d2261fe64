// Package acquire downloads forecast-hour grid files from NOMADS into the grid
// file cache.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/i474232898/offshore-forecast/internal/gridcache"
	"github.com/i474232898/offshore-forecast/internal/metrics"
	"github.com/i474232898/offshore-forecast/internal/modelrun"
	"github.com/i474232898/offshore-forecast/internal/nomads"
)

var (
	// ErrNotPublished is returned when the provider has no file for the hour yet.
	ErrNotPublished = errors.New("forecast hour not published yet")
	// ErrAcquisition wraps every other reason a file could not be obtained.
	ErrAcquisition = errors.New("grid file acquisition failed")
)

// Source builds provider requests for one product.
type Source interface {
	Product() string
	URL(t nomads.Target, run modelrun.Run, hour int) string
}

// Config bundles HTTP client and pacing settings.
type Config struct {
	Client     *http.Client
	Timeout    time.Duration // per forecast hour
	MinPayload int           // bytes
	Workers    int           // concurrent downloads per AcquireAll call
	Rate       float64       // requests per second, 0 for unlimited
	Burst      int
}

// Defaults used for zero Config fields.
const (
	DefaultTimeout    = 5 * time.Minute
	DefaultMinPayload = 100
	DefaultWorkers    = 8
)

// Acquirer fetches grid files, serving cached copies when present.
type Acquirer struct {
	cfg     Config
	cache   *gridcache.Cache
	circuit *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	metrics *metrics.Collector
}

// New creates an Acquirer writing into cache. m may be nil.
func New(cache *gridcache.Cache, cfg Config, m *metrics.Collector) *Acquirer {
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MinPayload <= 0 {
		cfg.MinPayload = DefaultMinPayload
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nomads",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 10
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("WARN: acquire: circuit %s changed from %s to %s", name, from, to)
		},
	})

	return &Acquirer{
		cfg:     cfg,
		cache:   cache,
		circuit: cb,
		limiter: limiter,
		metrics: m,
	}
}

// Cache is the grid file cache the acquirer writes into.
func (a *Acquirer) Cache() *gridcache.Cache { return a.cache }

// Acquire returns the grid file for one forecast hour. A cached file is returned
// without network activity. Otherwise the file is downloaded and saved; any
// failure leaves nothing in the cache and is reported as ErrNotPublished or
// ErrAcquisition.
func (a *Acquirer) Acquire(ctx context.Context, src Source, t nomads.Target, run modelrun.Run, hour int) (gridcache.GridFile, error) {
	product := src.Product()
	path := a.cache.PathFor(product, t.ID, run, hour)
	gf := gridcache.GridFile{Product: product, Target: t.ID, Run: run, Hour: hour, Path: path}

	if a.cache.Valid(path) {
		a.metrics.RecordFetch(product, metrics.FetchCached, 0)
		return gf, nil
	}

	url := src.URL(t, run, hour)
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	timer := a.metrics.FetchTimer(product)
	body, err := fetch(ctx, a.cfg.Client, a.circuit, a.limiter, url, a.cfg.MinPayload)
	timer.ObserveDuration()
	if err != nil {
		if errors.Is(err, ErrNotPublished) {
			log.Printf("WARN: acquire: %s %s %s f%03d not published yet", product, t.ID, run, hour)
			a.metrics.RecordFetch(product, metrics.FetchNotPublished, 0)
		} else {
			log.Printf("ERROR: acquire: %s %s %s f%03d: %v (%s)", product, t.ID, run, hour, err, url)
			a.metrics.RecordFetch(product, metrics.FetchFailed, 0)
		}
		return gridcache.GridFile{}, err
	}

	if err := a.cache.Save(path, body); err != nil {
		log.Printf("ERROR: acquire: saving %s: %v", path, err)
		a.metrics.RecordFetch(product, metrics.FetchFailed, 0)
		return gridcache.GridFile{}, fmt.Errorf("%w: %v", ErrAcquisition, err)
	}

	log.Printf("INFO: acquire: saved %s %s %s f%03d (%d bytes)", product, t.ID, run, hour, len(body))
	a.metrics.RecordFetch(product, metrics.FetchDownloaded, len(body))
	return gf, nil
}

// Result collects the outcome of acquiring a set of hours.
type Result struct {
	Files   []gridcache.GridFile // ordered by hour
	Missing map[int]error        // hour -> reason
}

// Requested is the number of hours asked for.
func (r Result) Requested() int { return len(r.Files) + len(r.Missing) }

// AcquireAll fetches every hour concurrently with at most Config.Workers
// downloads in flight. A failed hour never stops the others; it is recorded in
// Result.Missing. Only cancellation of ctx aborts the call.
func (a *Acquirer) AcquireAll(ctx context.Context, src Source, t nomads.Target, run modelrun.Run, hours []int) (Result, error) {
	var (
		mu  sync.Mutex
		res = Result{Missing: make(map[int]error)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for _, hour := range hours {
		hour := hour
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			gf, err := a.Acquire(gctx, src, t, run, hour)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Missing[hour] = err
				return nil
			}
			res.Files = append(res.Files, gf)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].Hour < res.Files[j].Hour })
	if len(res.Missing) > 0 {
		log.Printf("INFO: acquire: %s %s %s: %d of %d hours available", src.Product(), t.ID, run, len(res.Files), len(hours))
	}
	return res, nil
}
