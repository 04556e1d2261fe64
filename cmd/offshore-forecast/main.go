package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/offshore-forecast/internal/acquire"
	httpapi "github.com/i474232898/offshore-forecast/internal/api/http"
	"github.com/i474232898/offshore-forecast/internal/config"
	"github.com/i474232898/offshore-forecast/internal/dataset"
	"github.com/i474232898/offshore-forecast/internal/forecast"
	"github.com/i474232898/offshore-forecast/internal/gridcache"
	"github.com/i474232898/offshore-forecast/internal/metrics"
	"github.com/i474232898/offshore-forecast/internal/modelrun"
	"github.com/i474232898/offshore-forecast/internal/nomads"
	"github.com/i474232898/offshore-forecast/internal/scheduler"
	"github.com/i474232898/offshore-forecast/internal/stations"
	"github.com/i474232898/offshore-forecast/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	registry, err := stations.Load(cfg.StationsFile)
	if err != nil {
		log.Fatalf("failed to load stations: %v", err)
	}
	log.Printf("INFO: loaded %d stations from %s", registry.Len(), cfg.StationsFile)

	resolver, err := modelrun.NewResolver(cfg.PublishLatency, cfg.CycleSpacing)
	if err != nil {
		log.Fatalf("invalid cycle schedule: %v", err)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector("offshore_forecast", promReg)

	grids, err := gridcache.New(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to open grid cache: %v", err)
	}

	// Shared HTTP client for NOMADS; each fetch is bounded by FETCH_TIMEOUT.
	acq := acquire.New(grids, acquire.Config{
		Client:     &http.Client{},
		Timeout:    cfg.FetchTimeout,
		MinPayload: cfg.MinPayloadBytes,
		Workers:    cfg.FetchWorkers,
		Rate:       cfg.FetchRate,
		Burst:      cfg.FetchBurst,
	}, m)

	waveSrc := nomads.Wave{BaseURL: cfg.WaveBaseURL, Grid: cfg.WaveGrid, BBox: cfg.WaveBBox}
	basin := dataset.NewAssembler(acq, waveSrc, nomads.Target{ID: cfg.WaveBasin}, cfg.WaveHours, cfg.FallbackMaxHour)
	waves := dataset.NewCache(cfg.WaveBasin, basin, cfg.DatasetRebuildAfter, m)

	// Core service answering station forecasts.
	service := forecast.NewService(forecast.Options{
		Stations:   registry,
		Resolver:   resolver,
		Waves:      waves,
		Acquirer:   acq,
		Wind:       nomads.Wind{BaseURL: cfg.WindBaseURL, Buffer: cfg.PointBuffer},
		WindHours:  cfg.WindHours,
		Location:   cfg.Location,
		RetryAfter: cfg.NegativeTTL,
		Metrics:    m,
		OnTransition: func(product, stationID string, from, to forecast.State) {
			log.Printf("DEBUG: forecast: %s %s %s -> %s", product, stationID, from, to)
		},
	})

	responses := store.NewMemoryStore[*forecast.Response](cfg.ResponseTTL, cfg.NegativeTTL)
	service.OnNewRun(func(runs []modelrun.Run) {
		n := responses.Purge()
		log.Printf("INFO: dropped %d cached responses after model run %s", n, runs[0])
	})

	// Scheduler that resolves new cycles, cleans up and preloads the basin.
	sched := scheduler.New(service, cfg.RefreshInterval, 0)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "offshore-forecast",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.FetchTimeout + time.Minute, // cold forecasts download inside the request
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "offshore-forecast",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))

	// API routes.
	httpapi.RegisterRoutes(app, service, responses)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
