// Package forecast turns cached model datasets into per-station forecasts.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/i474232898/offshore-forecast/internal/acquire"
	"github.com/i474232898/offshore-forecast/internal/dataset"
	"github.com/i474232898/offshore-forecast/internal/grid"
	"github.com/i474232898/offshore-forecast/internal/metrics"
	"github.com/i474232898/offshore-forecast/internal/modelrun"
	"github.com/i474232898/offshore-forecast/internal/nomads"
	"github.com/i474232898/offshore-forecast/internal/stations"
)

// Products served by the Service.
const (
	ProductWave = "wave"
	ProductWind = "wind"
)

// DefaultRetryAfter is suggested to callers when no forecast hour could be loaded.
const DefaultRetryAfter = 5 * time.Minute

// Options wires a Service.
type Options struct {
	Stations *stations.Registry
	Resolver *modelrun.Resolver

	// Waves caches the basin wave dataset.
	Waves *dataset.Cache

	// Acquirer, Wind and WindHours serve point-subset wind forecasts.
	Acquirer  *acquire.Acquirer
	Wind      acquire.Source
	WindHours []int

	Location   *time.Location
	RetryAfter time.Duration
	Metrics    *metrics.Collector

	// OnTransition, when set, sees every request state change.
	OnTransition TransitionFunc
}

// Service answers station forecast requests.
type Service struct {
	stations  *stations.Registry
	resolver  *modelrun.Resolver
	waves     *dataset.Cache
	acq       *acquire.Acquirer
	wind      acquire.Source
	windHours []int

	loc        *time.Location
	retryAfter time.Duration
	metrics    *metrics.Collector
	transition TransitionFunc
	now        func() time.Time

	tracker modelrun.Tracker

	mu       sync.Mutex
	onNewRun []func(runs []modelrun.Run)
}

// NewService creates a new Service.
func NewService(opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	retry := opts.RetryAfter
	if retry <= 0 {
		retry = DefaultRetryAfter
	}
	return &Service{
		stations:   opts.Stations,
		resolver:   opts.Resolver,
		waves:      opts.Waves,
		acq:        opts.Acquirer,
		wind:       opts.Wind,
		windHours:  opts.WindHours,
		loc:        loc,
		retryAfter: retry,
		metrics:    opts.Metrics,
		transition: opts.OnTransition,
		now:        time.Now,
	}
}

// OnNewRun registers fn to be called whenever Refresh or a forecast request
// first resolves a newer primary cycle.
func (s *Service) OnNewRun(fn func(runs []modelrun.Run)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onNewRun = append(s.onNewRun, fn)
}

// AllStationsGeo returns every registered station.
func (s *Service) AllStationsGeo() []stations.Station {
	return s.stations.All()
}

// StationForecast returns the wave forecast for a station, sampled from the
// basin dataset of the current cycle merged with the previous one.
func (s *Service) StationForecast(ctx context.Context, stationID string) (*Response, error) {
	st, ok := s.stations.Get(stationID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStationNotFound, stationID)
	}
	req := s.begin(ProductWave, st.ID)

	req.to(ResolvingCycle)
	runs := s.resolver.Resolve(s.now())
	if len(runs) == 0 {
		return nil, s.unavailable(req, modelrun.ErrNoCycle, s.resolver.NextUsable(s.now()).Sub(s.now()))
	}
	s.observe(runs)

	req.to(AcquiringFiles)
	ds, err := s.waves.Get(ctx, runs)
	req.to(Assembling)
	if err != nil {
		if errors.Is(err, dataset.ErrNoData) {
			return nil, s.unavailable(req, err, s.retryAfter)
		}
		return nil, s.fail(req, err)
	}

	req.to(Extracting)
	row, col := ds.Slices[0].Locate(st.Lat(), st.Lon())
	points := BuildPoints(grid.SampleAll(ds.Slices, row, col), WavePoint, s.loc)

	status := StatusOK
	switch {
	case ds.Run != runs[0]:
		status = StatusStale
	case !ds.Complete():
		status = StatusPartial
	}
	resp := s.response(st, ds.Run, status, ds.Requested, ds.Loaded, points)
	s.done(req, resp)
	return resp, nil
}

// StationWindForecast returns the wind forecast for a station from GFS files
// cropped around it. Only the primary cycle is used.
func (s *Service) StationWindForecast(ctx context.Context, stationID string) (*Response, error) {
	st, ok := s.stations.Get(stationID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStationNotFound, stationID)
	}
	req := s.begin(ProductWind, st.ID)

	req.to(ResolvingCycle)
	runs := s.resolver.Resolve(s.now())
	if len(runs) == 0 {
		return nil, s.unavailable(req, modelrun.ErrNoCycle, s.resolver.NextUsable(s.now()).Sub(s.now()))
	}
	s.observe(runs)
	run := runs[0]
	target := nomads.Target{ID: st.ID, Lat: st.Lat(), Lon: st.Lon()}

	req.to(AcquiringFiles)
	res, err := s.acq.AcquireAll(ctx, s.wind, target, run, s.windHours)
	if err != nil {
		return nil, s.fail(req, err)
	}

	req.to(Assembling)
	var (
		slices []*grid.Slice
		loaded int
	)
	for _, f := range res.Files {
		fs, err := grid.Load(f.Run, f.Path)
		if err != nil {
			log.Printf("ERROR: forecast: %v", err)
			if rmErr := s.acq.Cache().Remove(f.Path); rmErr != nil {
				log.Printf("ERROR: forecast: removing %s: %v", f.Path, rmErr)
			}
			continue
		}
		loaded++
		slices = append(slices, fs...)
	}
	slices = dataset.Merge(slices)
	if len(slices) == 0 {
		return nil, s.unavailable(req, fmt.Errorf("%s run %s: %w", st.ID, run, dataset.ErrNoData), s.retryAfter)
	}

	req.to(Extracting)
	samples := make([]grid.Point, 0, len(slices))
	for _, sl := range slices {
		samples = append(samples, grid.SamplePoint(sl, st.Lat(), st.Lon()))
	}
	points := BuildPoints(samples, WindPoint, s.loc)

	status := StatusOK
	if loaded < res.Requested() {
		status = StatusPartial
	}
	resp := s.response(st, run, status, res.Requested(), loaded, points)
	s.done(req, resp)
	return resp, nil
}

// Refresh resolves the current cycles, observes a new primary cycle and then
// builds the basin wave dataset, or reuses it if already cached.
func (s *Service) Refresh(ctx context.Context) error {
	runs := s.resolver.Resolve(s.now())
	if len(runs) == 0 {
		return modelrun.ErrNoCycle
	}

	s.observe(runs)

	ds, err := s.waves.Get(ctx, runs)
	if err != nil {
		return err
	}
	log.Printf("INFO: forecast: wave dataset for %s ready with %d forecasts", ds.Run, len(ds.Slices))
	return nil
}

// observe runs the new-primary work once per cycle change: grid files of runs
// no longer usable are deleted and OnNewRun hooks run.
func (s *Service) observe(runs []modelrun.Run) {
	if !s.tracker.Observe(runs) {
		return
	}
	log.Printf("INFO: forecast: new model run %s", runs[0])
	s.metrics.RecordCleanup(s.acq.Cache().Cleanup(runs...))
	s.metrics.SetPrimaryRun(runs[0].Label(), runs[0].Time())

	s.mu.Lock()
	hooks := append([]func([]modelrun.Run){}, s.onNewRun...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(runs)
	}
}

func (s *Service) begin(product, stationID string) *request {
	return &request{product: product, station: stationID, hook: s.transition}
}

func (s *Service) unavailable(req *request, reason error, retry time.Duration) error {
	req.to(Unavailable)
	s.metrics.RecordForecast(req.product, string(StatusNoData))
	if retry <= 0 {
		retry = s.retryAfter
	}
	log.Printf("WARN: forecast: %s %s unavailable: %v", req.product, req.station, reason)
	return &UnavailableError{StationID: req.station, Reason: reason, RetryAfter: retry}
}

func (s *Service) fail(req *request, err error) error {
	req.to(Error)
	s.metrics.RecordForecast(req.product, "error")
	log.Printf("ERROR: forecast: %s %s: %v", req.product, req.station, err)
	return fmt.Errorf("%s forecast for %s: %w", req.product, req.station, err)
}

func (s *Service) done(req *request, resp *Response) {
	req.to(Done)
	s.metrics.RecordForecast(req.product, string(resp.Status))
	log.Printf("DEBUG: forecast: %s %s run %s: %d points (%s)", req.product, req.station, resp.ModelRun, len(resp.Forecasts), resp.Status)
}

func (s *Service) response(st stations.Station, run modelrun.Run, status Status, requested, acquired int, points []Point) *Response {
	return &Response{
		StationID:      st.ID,
		Name:           st.Name,
		Location:       st.Location,
		ModelRun:       run.Label(),
		Status:         status,
		HoursRequested: requested,
		HoursAcquired:  acquired,
		Forecasts:      points,
	}
}
