package weather

import (
	"time"
)

// Location is a named geographic point tracked for weather. The set of
// locations is fixed at startup and never mutated afterwards.
type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// DefaultLocations is the built-in set of tracked Norwegian cities, used
// when no WEATHER_LOCATIONS override is configured.
var DefaultLocations = []Location{
	{Name: "Oslo", Lat: 59.9139, Lon: 10.7522},
	{Name: "Bergen", Lat: 60.39299, Lon: 5.32415},
	{Name: "Trondheim", Lat: 63.4305, Lon: 10.3951},
	{Name: "Tromsø", Lat: 69.6492, Lon: 18.9553},
	{Name: "Stavanger", Lat: 58.969975, Lon: 5.733107},
}

// Observation is one weather reading for a location at a point in time.
// Optional fields use pointers: nil means the upstream did not report the
// value, which is distinct from a reported zero. Observations are treated
// as immutable; a new one replaces, never mutates, prior state.
type Observation struct {
	City      string    `json:"city"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"` // always UTC

	AirTemperature     *float64 `json:"air_temperature,omitempty"`
	RelativeHumidity   *float64 `json:"relative_humidity,omitempty"`
	PressureAtSeaLevel *float64 `json:"air_pressure_at_sea_level,omitempty"`
	WindSpeed          *float64 `json:"wind_speed,omitempty"`
	WindFromDirection  *float64 `json:"wind_from_direction,omitempty"`
	CloudAreaFraction  *float64 `json:"cloud_area_fraction,omitempty"`
	Precipitation1h    *float64 `json:"precipitation_amount_1h,omitempty"`
	SymbolCode         *string  `json:"symbol_code,omitempty"`
}

// WithTimestamp returns a copy of the observation stamped with ts. Used
// when an ingestion cycle re-stamps provider or cached data with its own
// clock reading.
func (o Observation) WithTimestamp(ts time.Time) Observation {
	o.Timestamp = ts.UTC()
	return o
}

// RefreshResult describes the outcome of one refresh attempt.
//
// When Skipped is true the attempt was rejected by the rate limiter
// before any provider call: Requested is 0 and RetryAfterSeconds carries
// the wait hint. Locations always lists the configured location names,
// even on a skipped attempt (display only in that case).
type RefreshResult struct {
	Requested         int      `json:"requested"`
	Stored            int      `json:"stored"`
	Failed            int      `json:"failed"`
	Skipped           bool     `json:"skipped"`
	RetryAfterSeconds *int     `json:"retry_after_seconds,omitempty"`
	Locations         []string `json:"locations"`
}

// TemperatureSummary aggregates air temperature for one location over a
// query window.
type TemperatureSummary struct {
	City  string    `json:"city"`
	Start time.Time `json:"start"`
	Stop  time.Time `json:"stop"`
	Count int       `json:"count"`
	Min   float64   `json:"min"`
	Max   float64   `json:"max"`
	Avg   float64   `json:"avg"`
	First float64   `json:"first"`
	Last  float64   `json:"last"`
}

// TemperaturePoint is one windowed air temperature sample for a location.
type TemperaturePoint struct {
	City      string    `json:"city"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
