package influx

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/weather"
)

// weatherFields is the full set of observation field names as stored, in
// the order used for pivot/keep projections.
var weatherFields = []string{
	"lat",
	"lon",
	"air_temperature",
	"relative_humidity",
	"air_pressure_at_sea_level",
	"wind_speed",
	"wind_from_direction",
	"cloud_area_fraction",
	"precipitation_amount_1h",
	"symbol_code",
}

// WeatherRepository persists observations and answers latest/aggregate
// queries over one Influx measurement.
type WeatherRepository struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	queryAPI    api.QueryAPI
	org         string
	bucket      string
	measurement string
}

// NewWeatherRepository creates a repository over the given client.
func NewWeatherRepository(client influxdb2.Client, org, bucket, measurement string) *WeatherRepository {
	return &WeatherRepository{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(org, bucket),
		queryAPI:    client.QueryAPI(org),
		org:         org,
		bucket:      bucket,
		measurement: measurement,
	}
}

// Ping checks store reachability.
func (r *WeatherRepository) Ping(ctx context.Context) error {
	return ping(ctx, r.client)
}

// WriteObservation stores one observation as a point tagged with its
// city. Only present (non-nil) fields are written so absence survives in
// the stored series.
func (r *WeatherRepository) WriteObservation(ctx context.Context, obs weather.Observation) error {
	fields := map[string]interface{}{
		"lat": obs.Lat,
		"lon": obs.Lon,
	}
	for name, value := range map[string]*float64{
		"air_temperature":           obs.AirTemperature,
		"relative_humidity":         obs.RelativeHumidity,
		"air_pressure_at_sea_level": obs.PressureAtSeaLevel,
		"wind_speed":                obs.WindSpeed,
		"wind_from_direction":       obs.WindFromDirection,
		"cloud_area_fraction":       obs.CloudAreaFraction,
		"precipitation_amount_1h":   obs.Precipitation1h,
	} {
		if value != nil {
			fields[name] = *value
		}
	}
	if obs.SymbolCode != nil {
		fields["symbol_code"] = *obs.SymbolCode
	}

	point := write.NewPoint(r.measurement, map[string]string{"city": obs.City, "country": "NO"}, fields, obs.Timestamp.UTC())
	return r.writeAPI.WritePoint(ctx, point)
}

// QueryLatest returns the newest observation per requested city inside
// [start, stop], sorted by city name.
func (r *WeatherRepository) QueryLatest(ctx context.Context, cities []string, start, stop time.Time) ([]weather.Observation, error) {
	if len(cities) == 0 {
		return nil, nil
	}

	keep := make([]string, 0, len(weatherFields)+2)
	keep = append(keep, fluxString("_time"), fluxString("city"))
	for _, f := range weatherFields {
		keep = append(keep, fluxString(f))
	}

	query := fmt.Sprintf(`
from(bucket: %s)
  |> range(start: time(v: %s), stop: time(v: %s))
  |> filter(fn: (r) => r["_measurement"] == %s)
  |> filter(fn: (r) => %s)
  |> filter(fn: (r) => %s)
  |> group(columns: ["city", "_field"])
  |> last()
  |> pivot(rowKey: ["_time", "city"], columnKey: ["_field"], valueColumn: "_value")
  |> keep(columns: [%s])
  |> sort(columns: ["city"])
`,
		fluxString(r.bucket), fluxTime(start), fluxTime(stop),
		fluxString(r.measurement),
		orPredicate("city", cities),
		orPredicate("_field", weatherFields),
		strings.Join(keep, ", "),
	)

	result, err := r.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	var rows []weather.Observation
	for result.Next() {
		rec := result.Record()
		city, ok := rec.ValueByKey("city").(string)
		if !ok {
			continue
		}
		rows = append(rows, weather.Observation{
			City:               city,
			Lat:                floatOrDefault(rec.ValueByKey("lat"), 0),
			Lon:                floatOrDefault(rec.ValueByKey("lon"), 0),
			Timestamp:          rec.Time(),
			AirTemperature:     floatOrNil(rec.ValueByKey("air_temperature")),
			RelativeHumidity:   floatOrNil(rec.ValueByKey("relative_humidity")),
			PressureAtSeaLevel: floatOrNil(rec.ValueByKey("air_pressure_at_sea_level")),
			WindSpeed:          floatOrNil(rec.ValueByKey("wind_speed")),
			WindFromDirection:  floatOrNil(rec.ValueByKey("wind_from_direction")),
			CloudAreaFraction:  floatOrNil(rec.ValueByKey("cloud_area_fraction")),
			Precipitation1h:    floatOrNil(rec.ValueByKey("precipitation_amount_1h")),
			SymbolCode:         strOrNil(rec.ValueByKey("symbol_code")),
		})
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// QueryTemperatureSummary aggregates air temperature per city over
// [start, stop].
func (r *WeatherRepository) QueryTemperatureSummary(ctx context.Context, cities []string, start, stop time.Time) ([]weather.TemperatureSummary, error) {
	if len(cities) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
from(bucket: %s)
  |> range(start: time(v: %s), stop: time(v: %s))
  |> filter(fn: (r) => r["_measurement"] == %s)
  |> filter(fn: (r) => %s)
  |> filter(fn: (r) => r["_field"] == "air_temperature")
  |> group(columns: ["city"])
  |> sort(columns: ["_time"])
  |> reduce(
    identity: {count: 0, sum: 0.0, min: 0.0, max: 0.0, first: 0.0, last: 0.0},
    fn: (r, accumulator) => ({
      count: accumulator.count + 1,
      sum: accumulator.sum + float(v: r._value),
      min: if accumulator.count == 0 or float(v: r._value) < accumulator.min then float(v: r._value) else accumulator.min,
      max: if accumulator.count == 0 or float(v: r._value) > accumulator.max then float(v: r._value) else accumulator.max,
      first: if accumulator.count == 0 then float(v: r._value) else accumulator.first,
      last: float(v: r._value),
    }),
  )
  |> map(fn: (r) => ({ r with avg: if r.count == 0 then 0.0 else r.sum / float(v: r.count) }))
  |> sort(columns: ["city"])
`,
		fluxString(r.bucket), fluxTime(start), fluxTime(stop),
		fluxString(r.measurement),
		orPredicate("city", cities),
	)

	result, err := r.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	var rows []weather.TemperatureSummary
	for result.Next() {
		rec := result.Record()
		city, ok := rec.ValueByKey("city").(string)
		if !ok {
			continue
		}
		count := intOrDefault(rec.ValueByKey("count"), 0)
		if count <= 0 {
			continue
		}
		rows = append(rows, weather.TemperatureSummary{
			City:  city,
			Start: start.UTC(),
			Stop:  stop.UTC(),
			Count: count,
			Min:   floatOrDefault(rec.ValueByKey("min"), 0),
			Max:   floatOrDefault(rec.ValueByKey("max"), 0),
			Avg:   floatOrDefault(rec.ValueByKey("avg"), 0),
			First: floatOrDefault(rec.ValueByKey("first"), 0),
			Last:  floatOrDefault(rec.ValueByKey("last"), 0),
		})
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// QueryTemperatureSeries returns windowed mean air temperature per city.
func (r *WeatherRepository) QueryTemperatureSeries(ctx context.Context, cities []string, start, stop time.Time, window time.Duration) ([]weather.TemperaturePoint, error) {
	if len(cities) == 0 {
		return nil, nil
	}
	windowSeconds := int(window / time.Second)
	if windowSeconds < 1 {
		windowSeconds = 1
	}

	query := fmt.Sprintf(`
from(bucket: %s)
  |> range(start: time(v: %s), stop: time(v: %s))
  |> filter(fn: (r) => r["_measurement"] == %s)
  |> filter(fn: (r) => %s)
  |> filter(fn: (r) => r["_field"] == "air_temperature")
  |> group(columns: ["city"])
  |> aggregateWindow(every: %ds, fn: mean, createEmpty: false)
  |> sort(columns: ["_time"])
`,
		fluxString(r.bucket), fluxTime(start), fluxTime(stop),
		fluxString(r.measurement),
		orPredicate("city", cities),
		windowSeconds,
	)

	result, err := r.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	var rows []weather.TemperaturePoint
	for result.Next() {
		rec := result.Record()
		city, ok := rec.ValueByKey("city").(string)
		if !ok {
			continue
		}
		value := floatOrNil(rec.Value())
		if value == nil {
			continue
		}
		rows = append(rows, weather.TemperaturePoint{
			City:      city,
			Timestamp: rec.Time(),
			Value:     *value,
		})
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func floatOrNil(v interface{}) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case float32:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	default:
		return nil
	}
}

func floatOrDefault(v interface{}, def float64) float64 {
	if f := floatOrNil(v); f != nil {
		return *f
	}
	return def
}

func intOrDefault(v interface{}, def int) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return def
	}
}

func strOrNil(v interface{}) *string {
	if s, ok := v.(string); ok && s != "" {
		return &s
	}
	return nil
}
