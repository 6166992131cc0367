// Package influx implements the weather and measurement repositories on
// InfluxDB 2.x.
package influx

import (
	"context"
	"errors"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

var errPingFailed = errors.New("influxdb ping failed")

// NewClient creates an InfluxDB client with the given request timeout.
func NewClient(url, token string, timeout time.Duration) influxdb2.Client {
	seconds := uint(timeout / time.Second)
	if seconds == 0 {
		seconds = 10
	}
	opts := influxdb2.DefaultOptions().SetHTTPRequestTimeout(seconds)
	return influxdb2.NewClientWithOptions(url, token, opts)
}

func ping(ctx context.Context, client influxdb2.Client) error {
	ok, err := client.Ping(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errPingFailed
	}
	return nil
}
