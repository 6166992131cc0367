package measurements

import (
	"context"
	"time"
)

// Service wraps the measurement repository with timestamp defaulting.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a Service over the given repository.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Write persists one batch of readings for a device. A nil timestamp
// defaults to the current time; the effective timestamp is returned.
func (s *Service) Write(ctx context.Context, deviceID string, readings map[string]float64, ts *time.Time) (time.Time, error) {
	effective := s.now()
	if ts != nil {
		effective = ts.UTC()
	}
	if err := s.repo.WriteMeasurement(ctx, deviceID, readings, effective); err != nil {
		return time.Time{}, err
	}
	return effective, nil
}

// List returns stored readings for one device metric, newest first.
func (s *Service) List(ctx context.Context, deviceID, metric string, start, stop time.Time, limit int) ([]Record, error) {
	return s.repo.QueryMeasurements(ctx, deviceID, metric, start, stop, limit)
}

// Summarize aggregates one device metric over [start, stop].
func (s *Service) Summarize(ctx context.Context, deviceID, metric string, start, stop time.Time) (Summary, error) {
	return s.repo.QuerySummary(ctx, deviceID, metric, start, stop)
}
