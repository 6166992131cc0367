package weather

import (
	"context"
	"time"
)

// Provider abstracts the upstream weather API (MET Norway in production).
// FetchCurrent returns one current observation for the location; the
// observation carries the provider's own timestamp, which ingestion
// replaces with its cycle clock.
type Provider interface {
	FetchCurrent(ctx context.Context, loc Location) (Observation, error)
}

// Repository is the contract the time-series store must satisfy. Writes
// are at-least-once best effort; failures surface as errors and are
// counted or swallowed by the ingestion service per operation.
type Repository interface {
	Ping(ctx context.Context) error
	WriteObservation(ctx context.Context, obs Observation) error

	// QueryLatest returns the most recent observation per requested city
	// within [start, stop], sorted by city name.
	QueryLatest(ctx context.Context, cities []string, start, stop time.Time) ([]Observation, error)

	// QueryTemperatureSummary aggregates air temperature per city over
	// [start, stop].
	QueryTemperatureSummary(ctx context.Context, cities []string, start, stop time.Time) ([]TemperatureSummary, error)

	// QueryTemperatureSeries returns mean air temperature per city bucketed
	// into windows of the given width.
	QueryTemperatureSeries(ctx context.Context, cities []string, start, stop time.Time, window time.Duration) ([]TemperaturePoint, error)
}
