package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // OUTPUT_TIMEZONE on hosts without a zoneinfo database

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/offshore-forecast/internal/nomads"
)

var validate = validator.New()

type AppConfig struct {
	Port string `validate:"required,numeric"`

	// Local state.
	DataDir      string `validate:"required"`
	StationsFile string `validate:"required"`

	// Provider endpoints and products.
	WindBaseURL string       `validate:"required,url"`
	WaveBaseURL string       `validate:"required,url"`
	WaveBasin   string       `validate:"required,alphanum"`
	WaveGrid    string       `validate:"required"`
	WaveBBox    *nomads.BBox `validate:"-"`

	// Forecast hour offsets.
	WindHours       []int `validate:"required,dive,min=0,max=384"`
	WaveHours       []int `validate:"required,dive,min=0,max=384"`
	FallbackMaxHour int   `validate:"min=0,max=384"`

	// Cycle schedule.
	PublishLatency time.Duration `validate:"gt=0"`
	CycleSpacing   time.Duration `validate:"gt=0"`

	// Acquisition.
	PointBuffer     float64       `validate:"gt=0,lte=5"`
	FetchTimeout    time.Duration `validate:"gt=0"`
	MinPayloadBytes int           `validate:"min=1"`
	FetchWorkers    int           `validate:"min=1,max=64"`
	FetchRate       float64       `validate:"gte=0"`
	FetchBurst      int           `validate:"min=1"`

	// RefreshInterval controls how often the current cycle is resolved.
	RefreshInterval     time.Duration `validate:"gt=0"`
	DatasetRebuildAfter time.Duration `validate:"gte=0"`

	// Response cache.
	ResponseTTL time.Duration `validate:"gte=0"`
	NegativeTTL time.Duration `validate:"gte=0"`

	OutputTimezone string         `validate:"required"`
	Location       *time.Location `validate:"-"`
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	var e env
	cfg := &AppConfig{
		Port:         getenvDefault("PORT", "8080"),
		DataDir:      getenvDefault("DATA_DIR", "downloaded_data/gfs"),
		StationsFile: getenvDefault("STATIONS_FILE", "ndbcStations.json"),

		WindBaseURL: getenvDefault("WIND_BASE_URL", nomads.DefaultWindURL),
		WaveBaseURL: getenvDefault("WAVE_BASE_URL", nomads.DefaultWaveURL),
		WaveBasin:   getenvDefault("WAVE_BASIN", "atlantic"),
		WaveGrid:    getenvDefault("WAVE_GRID", nomads.DefaultWaveGrid),
		WaveBBox:    e.bbox("WAVE_BBOX"),

		WindHours:       e.hours("WIND_FORECAST_HOURS", "0-168/3"),
		WaveHours:       e.hours("WAVE_FORECAST_HOURS", "0-120/3"),
		FallbackMaxHour: e.integer("FALLBACK_MAX_HOUR", 24),

		PublishLatency: e.duration("PUBLISH_LATENCY", "3h30m"),
		CycleSpacing:   e.duration("CYCLE_SPACING", "6h"),

		PointBuffer:     e.float("POINT_BUFFER_DEG", nomads.DefaultBuffer),
		FetchTimeout:    e.duration("FETCH_TIMEOUT", "5m"),
		MinPayloadBytes: e.integer("MIN_PAYLOAD_BYTES", 100),
		FetchWorkers:    e.integer("FETCH_WORKERS", 8),
		FetchRate:       e.float("FETCH_RATE", 10),
		FetchBurst:      e.integer("FETCH_BURST", 5),

		RefreshInterval:     e.duration("REFRESH_INTERVAL", "10m"),
		DatasetRebuildAfter: e.duration("DATASET_REBUILD_AFTER", "15m"),

		ResponseTTL: e.duration("RESPONSE_TTL", "4h"), // max time between cycles
		NegativeTTL: e.duration("NEGATIVE_TTL", "5m"),

		OutputTimezone: getenvDefault("OUTPUT_TIMEZONE", "UTC"),
	}
	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	loc, err := time.LoadLocation(cfg.OutputTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid OUTPUT_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	return cfg, nil
}

// ParseHours parses forecast hour offsets: a comma separated list of single
// hours and "from-to/step" ranges, e.g. "0-120/3,126,132". The step defaults to
// one. The result is sorted without duplicates.
func ParseHours(s string) ([]int, error) {
	seen := make(map[int]bool)
	var hours []int
	add := func(h int) {
		if !seen[h] {
			seen[h] = true
			hours = append(hours, h)
		}
	}

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		rng, stepStr, hasStep := strings.Cut(part, "/")
		fromStr, toStr, isRange := strings.Cut(rng, "-")

		from, err := strconv.Atoi(strings.TrimSpace(fromStr))
		if err != nil {
			return nil, fmt.Errorf("hour %q: %w", part, err)
		}
		if !isRange {
			if hasStep {
				return nil, fmt.Errorf("hour %q: step without range", part)
			}
			add(from)
			continue
		}

		to, err := strconv.Atoi(strings.TrimSpace(toStr))
		if err != nil {
			return nil, fmt.Errorf("hour range %q: %w", part, err)
		}
		step := 1
		if hasStep {
			if step, err = strconv.Atoi(strings.TrimSpace(stepStr)); err != nil {
				return nil, fmt.Errorf("hour range %q: %w", part, err)
			}
		}
		if step <= 0 || to < from {
			return nil, fmt.Errorf("hour range %q is empty", part)
		}
		for h := from; h <= to; h += step {
			add(h)
		}
	}
	if len(hours) == 0 {
		return nil, errors.New("no forecast hours")
	}
	sort.Ints(hours)
	return hours, nil
}

// ParseBBox parses "top,bottom,left,right" in degrees.
func ParseBBox(s string) (*nomads.BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bounding box %q: want top,bottom,left,right", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bounding box %q: %w", s, err)
		}
		v[i] = f
	}
	box := &nomads.BBox{Top: v[0], Bottom: v[1], Left: v[2], Right: v[3]}
	if box.Top <= box.Bottom || box.Top > 90 || box.Bottom < -90 {
		return nil, fmt.Errorf("bounding box %q: bad latitudes", s)
	}
	return box, nil
}

// env collects parse errors so every malformed variable is reported at once.
type env struct {
	errs []error
}

func (e *env) fail(key, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("invalid %s %q: %w", key, value, err))
}

func (e *env) duration(key, def string) time.Duration {
	v := getenvDefault(key, def)
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
	}
	return d
}

func (e *env) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
	}
	return n
}

func (e *env) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
	}
	return f
}

func (e *env) hours(key, def string) []int {
	v := getenvDefault(key, def)
	hours, err := ParseHours(v)
	if err != nil {
		e.fail(key, v, err)
	}
	return hours
}

func (e *env) bbox(key string) *nomads.BBox {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	box, err := ParseBBox(v)
	if err != nil {
		e.fail(key, v, err)
	}
	return box
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
