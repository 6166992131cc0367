package measurements

import (
	"context"
	"time"
)

// Record is one stored device reading.
type Record struct {
	DeviceID  string    `json:"device_id"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary aggregates one device metric over a query window. Min/Max/Avg
// are nil when the window holds no records.
type Summary struct {
	DeviceID string    `json:"device_id"`
	Metric   string    `json:"metric"`
	Start    time.Time `json:"start"`
	Stop     time.Time `json:"stop"`
	Count    int       `json:"count"`
	Min      *float64  `json:"min"`
	Max      *float64  `json:"max"`
	Avg      *float64  `json:"avg"`
}

// Repository is the contract the time-series store must satisfy for
// device measurements.
type Repository interface {
	Ping(ctx context.Context) error
	WriteMeasurement(ctx context.Context, deviceID string, readings map[string]float64, ts time.Time) error
	QueryMeasurements(ctx context.Context, deviceID, metric string, start, stop time.Time, limit int) ([]Record, error)
	QuerySummary(ctx context.Context, deviceID, metric string, start, stop time.Time) (Summary, error)
}
