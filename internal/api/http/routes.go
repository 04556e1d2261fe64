package httpapi

import (
	"context"
	"errors"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/offshore-forecast/internal/forecast"
	"github.com/i474232898/offshore-forecast/internal/stations"
	"github.com/i474232898/offshore-forecast/internal/store"
)

var validate = validator.New()

// Response cache namespaces.
const (
	WaveNamespace = "wave_forecast"
	WindNamespace = "wind_forecast"
)

// ForecastService is the core the routes call into.
type ForecastService interface {
	StationForecast(ctx context.Context, stationID string) (*forecast.Response, error)
	StationWindForecast(ctx context.Context, stationID string) (*forecast.Response, error)
	AllStationsGeo() []stations.Station
}

// ResponseCache stores forecasts per namespace:station.
type ResponseCache = store.MemoryStore[*forecast.Response]

// RegisterRoutes wires the HTTP handlers into the Fiber app. cache may be nil.
func RegisterRoutes(app *fiber.App, service ForecastService, cache *ResponseCache) {
	v1 := app.Group("/api/v1")

	v1.Get("/stations/geojson", func(c *fiber.Ctx) error {
		return c.JSON(stations.GeoJSON(service.AllStationsGeo()))
	})

	v1.Get("/waves/:stationId/forecast", forecastHandler(WaveNamespace, service.StationForecast, cache))
	v1.Get("/wind/:stationId/forecast", forecastHandler(WindNamespace, service.StationWindForecast, cache))
}

type loadFunc func(ctx context.Context, stationID string) (*forecast.Response, error)

// stationParam holds the path parameter identifying a station.
type stationParam struct {
	StationID string `validate:"required,alphanum,max=16"`
}

func forecastHandler(namespace string, load loadFunc, cache *ResponseCache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := stationParam{StationID: c.Params("stationId")}
		if err := validate.Struct(p); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		get := func() (*forecast.Response, error) { return load(c.UserContext(), p.StationID) }
		var (
			resp *forecast.Response
			left time.Duration
			err  error
		)
		if cache != nil {
			resp, left, err = cache.Remember(store.Key(namespace, p.StationID), get, cachePolicy(cache))
		} else {
			resp, err = get()
		}
		if err != nil {
			return writeError(c, p.StationID, err, left)
		}
		return c.JSON(resp)
	}
}

// cachePolicy keeps complete forecasts for the cache TTL. Partial and stale
// ones only live as long as a negative entry, so a rebuilt dataset shows up.
func cachePolicy(cache *ResponseCache) store.Policy[*forecast.Response] {
	return store.Policy[*forecast.Response]{
		TTL: func(resp *forecast.Response) time.Duration {
			if resp.Status == forecast.StatusOK {
				return 0
			}
			if short := cache.NegativeTTL(); short > 0 {
				return short
			}
			return -1
		},
		Negative: isUnavailable,
	}
}

func isUnavailable(err error) bool {
	return errors.Is(err, forecast.ErrUnavailable)
}

// writeError maps err onto a status. cached is the remaining lifetime of a
// cached failure, which caps Retry-After.
func writeError(c *fiber.Ctx, stationID string, err error, cached time.Duration) error {
	var ue *forecast.UnavailableError
	switch {
	case errors.Is(err, forecast.ErrStationNotFound):
		return fiber.NewError(fiber.StatusNotFound, "station not found")
	case errors.As(err, &ue):
		wait := ue.RetryAfter
		if cached > 0 && (wait <= 0 || cached < wait) {
			wait = cached
		}
		retry := int(math.Ceil(wait.Seconds()))
		if retry < 1 {
			retry = 1
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"station_id": stationID,
			"status":     forecast.StatusNoData,
			"message":    err.Error(),
			"forecasts":  []forecast.Point{},
		})
	default:
		log.Printf("ERROR: http: forecast for %s: %v", stationID, err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to build forecast")
	}
}
