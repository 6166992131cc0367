// Package metno implements the weather.Provider contract against the MET
// Norway locationforecast API.
package metno

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/weather"
)

const locationforecastCompactURL = "https://api.met.no/weatherapi/locationforecast/2.0/compact"

var (
	errRateLimited = errors.New("met.no: rate limited")
	errServerError = errors.New("met.no: server error")
	errUnexpected  = errors.New("met.no: unexpected status code")
	errEmptySeries = errors.New("met.no: response contained no timeseries")
)

// Client fetches current observations from api.met.no. MET Norway's terms
// require an identifying User-Agent on every request. A circuit breaker
// wraps the outbound call so a flapping upstream is shed quickly; failed
// fetches are never retried within a call.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	circuit    *gobreaker.CircuitBreaker
}

// NewClient creates a Client using the given HTTP client and User-Agent.
func NewClient(httpClient *http.Client, userAgent string) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "metno",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		baseURL:    locationforecastCompactURL,
		userAgent:  userAgent,
		httpClient: httpClient,
		circuit:    cb,
	}
}

// compactPayload mirrors the subset of the locationforecast compact
// response this client consumes. Detail maps keep absence distinguishable
// from zero.
type compactPayload struct {
	Properties struct {
		Timeseries []struct {
			Time time.Time `json:"time"`
			Data struct {
				Instant struct {
					Details map[string]float64 `json:"details"`
				} `json:"instant"`
				Next1Hours struct {
					Summary struct {
						SymbolCode string `json:"symbol_code"`
					} `json:"summary"`
					Details map[string]float64 `json:"details"`
				} `json:"next_1_hours"`
			} `json:"data"`
		} `json:"timeseries"`
	} `json:"properties"`
}

// FetchCurrent returns the first (current) timeseries entry for the
// location. The returned observation carries the provider's timestamp;
// the ingestion service replaces it with its own cycle clock.
func (c *Client) FetchCurrent(ctx context.Context, loc weather.Location) (weather.Observation, error) {
	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(loc.Lon, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?%s", c.baseURL, values.Encode()), nil)
	if err != nil {
		return weather.Observation{}, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	result, err := c.circuit.Execute(func() (interface{}, error) {
		resp, execErr := c.httpClient.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, errRateLimited
		case resp.StatusCode >= 500:
			return nil, errServerError
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
		}

		var payload compactPayload
		if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr != nil {
			return nil, decodeErr
		}
		return &payload, nil
	})
	if err != nil {
		return weather.Observation{}, err
	}

	payload, ok := result.(*compactPayload)
	if !ok {
		return weather.Observation{}, fmt.Errorf("met.no: unexpected result type from circuit breaker")
	}

	series := payload.Properties.Timeseries
	if len(series) == 0 {
		return weather.Observation{}, errEmptySeries
	}
	entry := series[0]

	instant := entry.Data.Instant.Details
	next1h := entry.Data.Next1Hours

	obs := weather.Observation{
		City:               loc.Name,
		Lat:                loc.Lat,
		Lon:                loc.Lon,
		Timestamp:          entry.Time.UTC(),
		AirTemperature:     detail(instant, "air_temperature"),
		RelativeHumidity:   detail(instant, "relative_humidity"),
		PressureAtSeaLevel: detail(instant, "air_pressure_at_sea_level"),
		WindSpeed:          detail(instant, "wind_speed"),
		WindFromDirection:  detail(instant, "wind_from_direction"),
		CloudAreaFraction:  detail(instant, "cloud_area_fraction"),
		Precipitation1h:    detail(next1h.Details, "precipitation_amount"),
	}
	if next1h.Summary.SymbolCode != "" {
		code := next1h.Summary.SymbolCode
		obs.SymbolCode = &code
	}
	return obs, nil
}

func detail(details map[string]float64, key string) *float64 {
	if details == nil {
		return nil
	}
	v, ok := details[key]
	if !ok {
		return nil
	}
	return &v
}
