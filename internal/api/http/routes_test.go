package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/auth"
	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/measurements"
	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/weather"
)

// fakeMeasurementRepo keeps written readings in memory so the handler
// tests can roundtrip without a store.
type fakeMeasurementRepo struct {
	records []measurements.Record
	pingErr error
}

func (r *fakeMeasurementRepo) Ping(ctx context.Context) error { return r.pingErr }

func (r *fakeMeasurementRepo) WriteMeasurement(ctx context.Context, deviceID string, readings map[string]float64, ts time.Time) error {
	for metric, value := range readings {
		r.records = append(r.records, measurements.Record{
			DeviceID:  deviceID,
			Metric:    metric,
			Value:     value,
			Timestamp: ts,
		})
	}
	return nil
}

func (r *fakeMeasurementRepo) QueryMeasurements(ctx context.Context, deviceID, metric string, start, stop time.Time, limit int) ([]measurements.Record, error) {
	var out []measurements.Record
	for _, rec := range r.records {
		if rec.DeviceID == deviceID && rec.Metric == metric && len(out) < limit {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeMeasurementRepo) QuerySummary(ctx context.Context, deviceID, metric string, start, stop time.Time) (measurements.Summary, error) {
	summary := measurements.Summary{DeviceID: deviceID, Metric: metric, Start: start, Stop: stop}
	for _, rec := range r.records {
		if rec.DeviceID != deviceID || rec.Metric != metric {
			continue
		}
		summary.Count++
		if summary.Min == nil || rec.Value < *summary.Min {
			v := rec.Value
			summary.Min = &v
		}
		if summary.Max == nil || rec.Value > *summary.Max {
			v := rec.Value
			summary.Max = &v
		}
	}
	return summary, nil
}

// fakeWeatherRepo records observations; queries answer from what was
// written.
type fakeWeatherRepo struct {
	written []weather.Observation
}

func (r *fakeWeatherRepo) Ping(ctx context.Context) error { return nil }

func (r *fakeWeatherRepo) WriteObservation(ctx context.Context, obs weather.Observation) error {
	r.written = append(r.written, obs)
	return nil
}

func (r *fakeWeatherRepo) QueryLatest(ctx context.Context, cities []string, start, stop time.Time) ([]weather.Observation, error) {
	return r.written, nil
}

func (r *fakeWeatherRepo) QueryTemperatureSummary(ctx context.Context, cities []string, start, stop time.Time) ([]weather.TemperatureSummary, error) {
	return nil, nil
}

func (r *fakeWeatherRepo) QueryTemperatureSeries(ctx context.Context, cities []string, start, stop time.Time, window time.Duration) ([]weather.TemperaturePoint, error) {
	return nil, nil
}

type fakeWeatherProvider struct{}

func (p fakeWeatherProvider) FetchCurrent(ctx context.Context, loc weather.Location) (weather.Observation, error) {
	temp := 4.5
	return weather.Observation{
		City:           loc.Name,
		Lat:            loc.Lat,
		Lon:            loc.Lon,
		AirTemperature: &temp,
	}, nil
}

type testEnv struct {
	app     *fiber.App
	manager *auth.Manager
	token   string
	weather *fakeWeatherRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hash, err := auth.HashPassword("password")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	manager := auth.NewManager("test_secret_key_must_be_32_chars_min", 30*time.Minute, "admin", hash)

	measRepo := &fakeMeasurementRepo{}
	weatherRepo := &fakeWeatherRepo{}
	locations := []weather.Location{{Name: "Oslo", Lat: 59.9139, Lon: 10.7522}}
	weatherSvc := weather.NewService(weatherRepo, fakeWeatherProvider{}, locations, nil, weather.NewCache())

	app := fiber.New()
	RegisterRoutes(app, API{
		Auth:         manager,
		Measurements: measurements.NewService(measRepo),
		Weather:      weatherSvc,
		Health:       measRepo,
	})

	token, err := manager.CreateToken(auth.User{Username: "admin", Scopes: auth.AllScopes})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	return &testEnv{app: app, manager: manager, token: token, weather: weatherRepo}
}

func (e *testEnv) do(t *testing.T, method, target, body, contentType, token string) *http.Response {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if contentType != "" {
		req.Header.Set(fiber.HeaderContentType, contentType)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := e.app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestTokenEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/auth/token",
		"username=admin&password=password", fiber.MIMEApplicationForm, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	decodeJSON(t, resp, &body)
	if body.AccessToken == "" {
		t.Fatal("expected a non-empty access token")
	}
	if body.TokenType != "bearer" {
		t.Fatalf("expected token type bearer, got %q", body.TokenType)
	}
	if body.ExpiresIn != 1800 {
		t.Fatalf("expected expires_in 1800, got %d", body.ExpiresIn)
	}

	// The minted token must be usable against a protected endpoint.
	resp = env.do(t, http.MethodGet, "/api/v1/auth/me", "", "", body.AccessToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	var me auth.User
	decodeJSON(t, resp, &me)
	if me.Username != "admin" {
		t.Fatalf("expected username admin, got %q", me.Username)
	}
}

func TestTokenEndpointRejectsBadPassword(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/auth/token",
		"username=admin&password=wrong", fiber.MIMEApplicationForm, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestProtectedEndpointsRequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{
		"/api/v1/auth/me",
		"/api/v1/measurements?device_id=sensor-1&metric=temperature",
		"/api/v1/weather/latest",
	} {
		resp := env.do(t, http.MethodGet, target, "", "", "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected status %d, got %d", target, http.StatusUnauthorized, resp.StatusCode)
		}
	}
}

func TestScopeEnforcement(t *testing.T) {
	env := newTestEnv(t)

	readOnly, err := env.manager.CreateToken(auth.User{
		Username: "admin",
		Scopes:   []string{auth.ScopeMetricsRead},
	})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	resp := env.do(t, http.MethodPost, "/api/v1/measurements",
		`{"device_id":"sensor-1","readings":{"temperature":21.5}}`,
		fiber.MIMEApplicationJSON, readOnly)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, resp.StatusCode)
	}
}

func TestMeasurementWriteAndList(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/measurements",
		`{"device_id":"sensor-1","readings":{"temperature":21.5,"humidity":40}}`,
		fiber.MIMEApplicationJSON, env.token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	var created struct {
		DeviceID  string    `json:"device_id"`
		WrittenAt time.Time `json:"written_at"`
		Metrics   int       `json:"metrics"`
	}
	decodeJSON(t, resp, &created)
	if created.Metrics != 2 {
		t.Fatalf("expected 2 metrics written, got %d", created.Metrics)
	}
	if created.WrittenAt.IsZero() {
		t.Fatal("expected a non-zero written_at timestamp")
	}

	resp = env.do(t, http.MethodGet, "/api/v1/measurements?device_id=sensor-1&metric=temperature", "", "", env.token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	var listed struct {
		Records []measurements.Record `json:"records"`
	}
	decodeJSON(t, resp, &listed)
	if len(listed.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(listed.Records))
	}
	if listed.Records[0].Value != 21.5 {
		t.Fatalf("expected value 21.5, got %v", listed.Records[0].Value)
	}
}

func TestMeasurementValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing readings", `{"device_id":"sensor-1"}`},
		{"empty readings", `{"device_id":"sensor-1","readings":{}}`},
		{"bad device id", `{"device_id":"!!bad!!","readings":{"temperature":1}}`},
		{"bad metric name", `{"device_id":"sensor-1","readings":{"9temp":1}}`},
	}
	for _, tc := range cases {
		resp := env.do(t, http.MethodPost, "/api/v1/measurements", tc.body, fiber.MIMEApplicationJSON, env.token)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", tc.name, http.StatusBadRequest, resp.StatusCode)
		}
	}

	// start after stop is rejected on the read path.
	resp := env.do(t, http.MethodGet,
		"/api/v1/measurements?device_id=sensor-1&metric=temperature&start=2026-01-02T00:00:00Z&stop=2026-01-01T00:00:00Z",
		"", "", env.token)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestWeatherRefreshThenLatest(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/weather/refresh", "", "", env.token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	var result weather.RefreshResult
	decodeJSON(t, resp, &result)
	if result.Skipped {
		t.Fatal("expected refresh not to be skipped")
	}
	if result.Stored != 1 {
		t.Fatalf("expected 1 stored observation, got %d", result.Stored)
	}
	if len(env.weather.written) != 1 {
		t.Fatalf("expected 1 observation in the store, got %d", len(env.weather.written))
	}

	resp = env.do(t, http.MethodGet, "/api/v1/weather/latest", "", "", env.token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	var latest struct {
		Observations []weather.Observation `json:"observations"`
	}
	decodeJSON(t, resp, &latest)
	if len(latest.Observations) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(latest.Observations))
	}
	if latest.Observations[0].City != "Oslo" {
		t.Fatalf("expected Oslo, got %q", latest.Observations[0].City)
	}
}

func TestTemperatureQueryValidation(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{
		"/api/v1/weather/temperature/summary?hours=0",
		"/api/v1/weather/temperature/summary?hours=337",
		"/api/v1/weather/temperature/trend?hours=49",
		"/api/v1/weather/temperature/trend?window_seconds=0",
		fmt.Sprintf("/api/v1/weather/temperature/trend?window_seconds=%d", 3601),
	} {
		resp := env.do(t, http.MethodGet, target, "", "", env.token)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", target, http.StatusBadRequest, resp.StatusCode)
		}
	}

	resp := env.do(t, http.MethodGet, "/api/v1/weather/temperature/summary?hours=48", "", "", env.token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/v1/health", "", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	var body struct {
		Status string `json:"status"`
	}
	decodeJSON(t, resp, &body)
	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %q", body.Status)
	}
}
