package influx

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/measurements"
)

// MeasurementRepository persists device readings and answers range and
// summary queries over one Influx measurement.
type MeasurementRepository struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	queryAPI    api.QueryAPI
	org         string
	bucket      string
	measurement string
}

// NewMeasurementRepository creates a repository over the given client.
func NewMeasurementRepository(client influxdb2.Client, org, bucket, measurement string) *MeasurementRepository {
	return &MeasurementRepository{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(org, bucket),
		queryAPI:    client.QueryAPI(org),
		org:         org,
		bucket:      bucket,
		measurement: measurement,
	}
}

// Ping checks store reachability.
func (r *MeasurementRepository) Ping(ctx context.Context) error {
	return ping(ctx, r.client)
}

// WriteMeasurement stores one point per device with a field per metric.
func (r *MeasurementRepository) WriteMeasurement(ctx context.Context, deviceID string, readings map[string]float64, ts time.Time) error {
	fields := make(map[string]interface{}, len(readings))
	for metric, value := range readings {
		fields[metric] = value
	}
	point := write.NewPoint(r.measurement, map[string]string{"device_id": deviceID}, fields, ts.UTC())
	return r.writeAPI.WritePoint(ctx, point)
}

// QueryMeasurements returns up to limit readings for one device metric,
// newest first.
func (r *MeasurementRepository) QueryMeasurements(ctx context.Context, deviceID, metric string, start, stop time.Time, limit int) ([]measurements.Record, error) {
	query := fmt.Sprintf(`
from(bucket: %s)
  |> range(start: time(v: %s), stop: time(v: %s))
  |> filter(fn: (r) => r["_measurement"] == %s)
  |> filter(fn: (r) => r["device_id"] == %s)
  |> filter(fn: (r) => r["_field"] == %s)
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: %d)
`,
		fluxString(r.bucket), fluxTime(start), fluxTime(stop),
		fluxString(r.measurement),
		fluxString(deviceID),
		fluxString(metric),
		limit,
	)

	result, err := r.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	var rows []measurements.Record
	for result.Next() {
		rec := result.Record()
		value := floatOrNil(rec.Value())
		if value == nil {
			continue
		}
		rows = append(rows, measurements.Record{
			DeviceID:  deviceID,
			Metric:    metric,
			Value:     *value,
			Timestamp: rec.Time(),
		})
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// QuerySummary aggregates one device metric over [start, stop].
func (r *MeasurementRepository) QuerySummary(ctx context.Context, deviceID, metric string, start, stop time.Time) (measurements.Summary, error) {
	summary := measurements.Summary{
		DeviceID: deviceID,
		Metric:   metric,
		Start:    start.UTC(),
		Stop:     stop.UTC(),
	}

	query := fmt.Sprintf(`
from(bucket: %s)
  |> range(start: time(v: %s), stop: time(v: %s))
  |> filter(fn: (r) => r["_measurement"] == %s)
  |> filter(fn: (r) => r["device_id"] == %s)
  |> filter(fn: (r) => r["_field"] == %s)
  |> keep(columns: ["_value"])
  |> reduce(
    identity: {count: 0, sum: 0.0, min: 0.0, max: 0.0},
    fn: (r, accumulator) => ({
      count: accumulator.count + 1,
      sum: accumulator.sum + float(v: r._value),
      min: if accumulator.count == 0 or float(v: r._value) < accumulator.min then float(v: r._value) else accumulator.min,
      max: if accumulator.count == 0 or float(v: r._value) > accumulator.max then float(v: r._value) else accumulator.max,
    }),
  )
  |> map(fn: (r) => ({ r with avg: if r.count == 0 then 0.0 else r.sum / float(v: r.count) }))
`,
		fluxString(r.bucket), fluxTime(start), fluxTime(stop),
		fluxString(r.measurement),
		fluxString(deviceID),
		fluxString(metric),
	)

	result, err := r.queryAPI.Query(ctx, query)
	if err != nil {
		return measurements.Summary{}, err
	}

	for result.Next() {
		rec := result.Record()
		count := intOrDefault(rec.ValueByKey("count"), 0)
		if count <= 0 {
			continue
		}
		summary.Count = count
		summary.Min = floatOrNil(rec.ValueByKey("min"))
		summary.Max = floatOrNil(rec.ValueByKey("max"))
		summary.Avg = floatOrNil(rec.ValueByKey("avg"))
	}
	if err := result.Err(); err != nil {
		return measurements.Summary{}, err
	}
	return summary, nil
}
