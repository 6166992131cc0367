// Package metrics exposes prometheus counters for the ingestion paths.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weather_refresh_total",
		Help: "Refresh attempts by outcome (ok, partial, skipped).",
	}, []string{"outcome"})

	observationsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weather_observations_stored_total",
		Help: "Observations successfully written to the store by refresh.",
	})

	fetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weather_fetch_failures_total",
		Help: "Per-location fetch or persist failures during refresh.",
	})

	backgroundTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weather_background_ticks_total",
		Help: "Background ingestion cycles run.",
	})
)

// RecordRefresh counts one refresh outcome.
func RecordRefresh(skipped bool, stored, failed int) {
	switch {
	case skipped:
		refreshTotal.WithLabelValues("skipped").Inc()
	case failed > 0:
		refreshTotal.WithLabelValues("partial").Inc()
	default:
		refreshTotal.WithLabelValues("ok").Inc()
	}
	observationsStored.Add(float64(stored))
	fetchFailures.Add(float64(failed))
}

// RecordTick counts one background cycle.
func RecordTick() {
	backgroundTicks.Inc()
}

// Handler returns the prometheus exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
