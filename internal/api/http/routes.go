package httpapi

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/auth"
	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/measurements"
	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/metrics"
	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/weather"
)

var validate = validator.New()

var (
	deviceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9:_-]{0,63}$`)
	metricPattern   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9:_-]{0,63}$`)
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
	maxReadings      = 32
)

// Pinger is the liveness contract the health endpoint checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// API bundles the collaborators the HTTP handlers need.
type API struct {
	Auth         *auth.Manager
	Measurements *measurements.Service
	Weather      *weather.Service
	Health       Pinger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, api API) {
	v1 := app.Group("/api/v1")

	v1.Post("/auth/token", api.handleToken)
	v1.Get("/auth/me", api.Auth.RequireScopes(), api.handleMe)

	v1.Get("/health", api.handleHealth)

	v1.Post("/measurements", api.Auth.RequireScopes(auth.ScopeMetricsWrite), api.handleCreateMeasurement)
	v1.Get("/measurements", api.Auth.RequireScopes(auth.ScopeMetricsRead), api.handleListMeasurements)
	v1.Get("/measurements/summary", api.Auth.RequireScopes(auth.ScopeMetricsRead), api.handleMeasurementSummary)

	v1.Post("/weather/refresh", api.Auth.RequireScopes(auth.ScopeWeatherWrite), api.handleWeatherRefresh)
	v1.Get("/weather/latest", api.Auth.RequireScopes(auth.ScopeWeatherRead), api.handleWeatherLatest)
	v1.Get("/weather/temperature/summary", api.Auth.RequireScopes(auth.ScopeWeatherRead), api.handleTemperatureSummary)
	v1.Get("/weather/temperature/trend", api.Auth.RequireScopes(auth.ScopeWeatherRead), api.handleTemperatureTrend)
}

func (api API) handleToken(c *fiber.Ctx) error {
	username := c.FormValue("username")
	password := c.FormValue("password")
	if username == "" || password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "username and password are required")
	}

	user, ok := api.Auth.Authenticate(username, password)
	if !ok {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return fiber.NewError(fiber.StatusUnauthorized, "incorrect username or password")
	}

	token, err := api.Auth.CreateToken(user)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to issue token")
	}

	return c.JSON(fiber.Map{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   int(api.Auth.TokenTTL().Seconds()),
	})
}

func (api API) handleMe(c *fiber.Ctx) error {
	user, ok := auth.UserFromCtx(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "could not validate credentials")
	}
	return c.JSON(user)
}

func (api API) handleHealth(c *fiber.Ctx) error {
	if err := api.Health.Ping(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"store":  "unreachable",
		})
	}
	return c.JSON(fiber.Map{
		"status": "ok",
		"store":  "reachable",
	})
}

// createMeasurementRequest is the POST /measurements body.
type createMeasurementRequest struct {
	DeviceID  string             `json:"device_id" validate:"required"`
	Timestamp *time.Time         `json:"timestamp"`
	Readings  map[string]float64 `json:"readings" validate:"required,min=1"`
}

func (api API) handleCreateMeasurement(c *fiber.Ctx) error {
	var req createMeasurementRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if !deviceIDPattern.MatchString(req.DeviceID) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid device_id")
	}
	if len(req.Readings) > maxReadings {
		return fiber.NewError(fiber.StatusBadRequest, "too many readings in one batch")
	}
	for metric, value := range req.Readings {
		if !metricPattern.MatchString(metric) {
			return fiber.NewError(fiber.StatusBadRequest, "invalid metric name: "+metric)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fiber.NewError(fiber.StatusBadRequest, "non-finite value for metric: "+metric)
		}
	}

	writtenAt, err := api.Measurements.Write(c.Context(), req.DeviceID, req.Readings, req.Timestamp)
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "failed to store measurement")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"device_id":  req.DeviceID,
		"written_at": writtenAt,
		"metrics":    len(req.Readings),
	})
}

// rangeQuery holds the shared device/metric/time-window parameters of the
// measurement read endpoints.
type rangeQuery struct {
	DeviceID string
	Metric   string
	Start    time.Time
	Stop     time.Time
}

func (q *rangeQuery) bind(c *fiber.Ctx, now time.Time) error {
	q.DeviceID = c.Query("device_id")
	q.Metric = c.Query("metric")
	if !deviceIDPattern.MatchString(q.DeviceID) {
		return errors.New("invalid or missing device_id")
	}
	if !metricPattern.MatchString(q.Metric) {
		return errors.New("invalid or missing metric")
	}

	q.Stop = now
	q.Start = now.Add(-time.Hour)
	if s := c.Query("start"); s != "" {
		start, err := parseTime(s)
		if err != nil {
			return err
		}
		q.Start = start
	}
	if s := c.Query("stop"); s != "" {
		stop, err := parseTime(s)
		if err != nil {
			return err
		}
		q.Stop = stop
	}
	if q.Start.After(q.Stop) {
		return errors.New("start must not be after stop")
	}
	return nil
}

func (api API) handleListMeasurements(c *fiber.Ctx) error {
	var q rangeQuery
	if err := q.bind(c, time.Now().UTC()); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	limit := defaultListLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxListLimit {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 1000")
		}
		limit = n
	}

	records, err := api.Measurements.List(c.Context(), q.DeviceID, q.Metric, q.Start, q.Stop, limit)
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "failed to query measurements")
	}
	if records == nil {
		records = []measurements.Record{}
	}

	return c.JSON(fiber.Map{
		"device_id": q.DeviceID,
		"metric":    q.Metric,
		"start":     q.Start,
		"stop":      q.Stop,
		"records":   records,
	})
}

func (api API) handleMeasurementSummary(c *fiber.Ctx) error {
	var q rangeQuery
	if err := q.bind(c, time.Now().UTC()); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	summary, err := api.Measurements.Summarize(c.Context(), q.DeviceID, q.Metric, q.Start, q.Stop)
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "failed to query measurement summary")
	}
	return c.JSON(summary)
}

func (api API) handleWeatherRefresh(c *fiber.Ctx) error {
	force := c.QueryBool("force", false)

	result := api.Weather.Refresh(c.Context(), force)
	metrics.RecordRefresh(result.Skipped, result.Stored, result.Failed)

	// A rate-limited attempt is a valid outcome, not an error; the
	// result body carries skipped and the retry hint.
	return c.JSON(result)
}

func (api API) handleWeatherLatest(c *fiber.Ctx) error {
	observations, err := api.Weather.Latest(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "failed to query latest observations")
	}
	if observations == nil {
		observations = []weather.Observation{}
	}
	return c.JSON(fiber.Map{"observations": observations})
}

// hoursQuery validates the trailing-window parameter of the aggregate
// endpoints.
type hoursQuery struct {
	Hours int `validate:"min=1,max=336"`
}

func parseHours(c *fiber.Ctx, def int) (int, error) {
	hours := def
	if s := c.Query("hours"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, errors.New("hours must be an integer")
		}
		hours = n
	}
	if err := validate.Struct(hoursQuery{Hours: hours}); err != nil {
		return 0, errors.New("hours must be between 1 and 336")
	}
	return hours, nil
}

func (api API) handleTemperatureSummary(c *fiber.Ctx) error {
	hours, err := parseHours(c, 24)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	rows, err := api.Weather.TemperatureSummary(c.Context(), hours)
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "failed to query temperature summary")
	}
	if rows == nil {
		rows = []weather.TemperatureSummary{}
	}
	return c.JSON(fiber.Map{"hours": hours, "cities": rows})
}

func (api API) handleTemperatureTrend(c *fiber.Ctx) error {
	hours, err := parseHours(c, 24)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if hours > 48 {
		return fiber.NewError(fiber.StatusBadRequest, "hours must be between 1 and 48")
	}

	windowSeconds := 300
	if s := c.Query("window_seconds"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 3600 {
			return fiber.NewError(fiber.StatusBadRequest, "window_seconds must be between 1 and 3600")
		}
		windowSeconds = n
	}

	points, err := api.Weather.TemperatureTrend(c.Context(), hours, windowSeconds)
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "failed to query temperature trend")
	}
	if points == nil {
		points = []weather.TemperaturePoint{}
	}
	return c.JSON(fiber.Map{
		"hours":          hours,
		"window_seconds": windowSeconds,
		"points":         points,
	})
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
