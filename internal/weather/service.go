package weather

import (
	"context"
	"time"
)

// latestWindow bounds the store lookup on the cache-miss read path.
const latestWindow = 24 * time.Hour

// Service orchestrates weather ingestion: on-demand refresh, the
// periodic background tick, and read paths that prefer the cache over a
// store round-trip.
//
// The limiter and cache are optional; a nil limiter disables rate
// limiting and a nil cache disables caching (and tick's fallback path).
type Service struct {
	locations []Location
	provider  Provider
	repo      Repository
	limiter   *RefreshLimiter
	cache     *Cache

	now func() time.Time
}

// NewService creates a Service over the given collaborators. An empty
// locations slice falls back to DefaultLocations. limiter and cache may
// be nil.
func NewService(repo Repository, provider Provider, locations []Location, limiter *RefreshLimiter, cache *Cache) *Service {
	if len(locations) == 0 {
		locations = DefaultLocations
	}
	return &Service{
		locations: locations,
		provider:  provider,
		repo:      repo,
		limiter:   limiter,
		cache:     cache,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) locationNames() []string {
	names := make([]string, 0, len(s.locations))
	for _, loc := range s.locations {
		names = append(names, loc.Name)
	}
	return names
}

// Refresh fetches a current observation for every configured location in
// order, writes each to the store, and updates the cache. Per-location
// provider or store failures are counted, never propagated; a single
// location's failure does not abort the batch.
//
// Unless force is set, the attempt first passes through the rate
// limiter; a rejected attempt returns immediately with Skipped set and
// no locations contacted.
func (s *Service) Refresh(ctx context.Context, force bool) RefreshResult {
	now := s.now()
	names := s.locationNames()

	if !force && s.limiter != nil {
		allowed, retryAfter := s.limiter.TryAcquire(now)
		if !allowed {
			return RefreshResult{
				Skipped:           true,
				RetryAfterSeconds: &retryAfter,
				Locations:         names,
			}
		}
	}

	var stored, failed int
	for _, loc := range s.locations {
		fetched, err := s.provider.FetchCurrent(ctx, loc)
		if err != nil {
			failed++
			continue
		}
		// All observations of one refresh share the cycle's clock reading;
		// the provider's own timestamp is discarded.
		obs := fetched.WithTimestamp(now)
		if err := s.repo.WriteObservation(ctx, obs); err != nil {
			failed++
			continue
		}
		if s.cache != nil {
			s.cache.Update(obs)
		}
		stored++
	}

	return RefreshResult{
		Requested: len(s.locations),
		Stored:    stored,
		Failed:    failed,
		Locations: names,
	}
}

// Tick runs one background ingestion cycle. When the limiter rejects
// provider calls, or a fetch fails, the location falls back to its cached
// observation re-stamped with the cycle's clock so the store keeps
// receiving heartbeats while the provider is down or rate limited.
// Locations with neither a fresh fetch nor a cached entry are skipped.
//
// Note: the fallback deliberately writes cached measurement values under
// a fresh timestamp. This keeps the stored series alive during provider
// outages, at the cost of masking them in the history.
//
// Tick never returns an error; store failures are swallowed.
func (s *Service) Tick(ctx context.Context) {
	now := s.now()

	providerAllowed := true
	if s.limiter != nil {
		providerAllowed, _ = s.limiter.TryAcquire(now)
	}

	for _, loc := range s.locations {
		var obs *Observation
		if providerAllowed {
			if fetched, err := s.provider.FetchCurrent(ctx, loc); err == nil {
				o := fetched.WithTimestamp(now)
				obs = &o
			}
		}
		if obs == nil && s.cache != nil {
			if cached, ok := s.cache.Get(loc.Name); ok {
				o := cached.WithTimestamp(now)
				obs = &o
			}
		}
		if obs == nil {
			continue
		}

		if err := s.repo.WriteObservation(ctx, *obs); err != nil {
			continue
		}
		if s.cache != nil {
			s.cache.Update(*obs)
		}
	}
}

// Latest returns the newest observation per configured location, sorted
// by city name. A non-empty cache answers without touching the store;
// otherwise the store is queried over a trailing 24h window and its
// errors propagate to the caller.
func (s *Service) Latest(ctx context.Context) ([]Observation, error) {
	names := s.locationNames()
	if s.cache != nil && s.cache.HasAny() {
		return s.cache.Snapshot(names), nil
	}

	stop := s.now()
	start := stop.Add(-latestWindow)
	return s.repo.QueryLatest(ctx, names, start, stop)
}

// TemperatureSummary aggregates air temperature per configured location
// over the trailing number of hours. Store errors propagate.
func (s *Service) TemperatureSummary(ctx context.Context, hours int) ([]TemperatureSummary, error) {
	stop := s.now()
	start := stop.Add(-time.Duration(hours) * time.Hour)
	return s.repo.QueryTemperatureSummary(ctx, s.locationNames(), start, stop)
}

// TemperatureTrend returns windowed mean air temperature per configured
// location over the trailing number of hours. Store errors propagate.
func (s *Service) TemperatureTrend(ctx context.Context, hours, windowSeconds int) ([]TemperaturePoint, error) {
	if windowSeconds < 1 {
		windowSeconds = 1
	}
	stop := s.now()
	start := stop.Add(-time.Duration(hours) * time.Hour)
	window := time.Duration(windowSeconds) * time.Second
	return s.repo.QueryTemperatureSeries(ctx, s.locationNames(), start, stop, window)
}
