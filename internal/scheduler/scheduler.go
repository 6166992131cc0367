// Package scheduler runs the periodic background weather ingestion loop.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/metrics"
	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/weather"
)

const (
	defaultInterval = 60 * time.Second
	tickTimeout     = 30 * time.Second
	stopGracePeriod = 3 * time.Second
)

// Scheduler drives the ingestion service's Tick on a fixed cadence,
// independent of any request. Tick failures never escape the loop.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *weather.Service
	interval  time.Duration
}

// New creates a Scheduler ticking the service at the given interval.
func New(service *weather.Service, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		interval:  interval,
	}
}

// Start schedules the periodic tick and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	seconds := int(s.interval.Seconds())
	if seconds < 1 {
		seconds = 1
	}

	_, err := s.scheduler.Every(seconds).Seconds().Do(func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("scheduler: tick panicked: %v", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
		defer cancel()

		s.service.Tick(ctx)
		metrics.RecordTick()
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop halts the loop. An in-flight tick runs to completion, but Stop
// waits no longer than the grace period so process shutdown is never
// blocked indefinitely.
func (s *Scheduler) Stop() {
	done := make(chan struct{})
	go func() {
		s.scheduler.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(stopGracePeriod):
		log.Println("scheduler: stop grace period elapsed; continuing shutdown")
	}
}
