package weather

import (
	"math"
	"sync"
	"time"
)

// RefreshLimiter enforces a minimum interval between refresh attempts.
// One shared last-attempt timestamp covers all callers and all locations;
// acquisition is a single check-and-update critical section so two
// concurrent callers cannot both succeed inside one interval.
type RefreshLimiter struct {
	minInterval time.Duration

	mu          sync.Mutex
	lastAttempt time.Time
}

// NewRefreshLimiter creates a limiter with the given minimum interval in
// seconds. A non-positive interval disables limiting.
func NewRefreshLimiter(minIntervalSeconds int) *RefreshLimiter {
	if minIntervalSeconds < 0 {
		minIntervalSeconds = 0
	}
	return &RefreshLimiter{minInterval: time.Duration(minIntervalSeconds) * time.Second}
}

// MinIntervalSeconds returns the configured minimum interval.
func (l *RefreshLimiter) MinIntervalSeconds() int {
	return int(l.minInterval / time.Second)
}

// TryAcquire reports whether a refresh attempt at now is allowed. The
// first call always succeeds. A successful acquire records now as the
// last attempt; a rejected one leaves the timestamp untouched and returns
// the number of seconds until the next attempt is allowed (at least 1).
func (l *RefreshLimiter) TryAcquire(now time.Time) (allowed bool, retryAfterSeconds int) {
	if l.minInterval <= 0 {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lastAttempt.IsZero() {
		l.lastAttempt = now
		return true, 0
	}

	elapsed := now.Sub(l.lastAttempt)
	if elapsed >= l.minInterval {
		l.lastAttempt = now
		return true, 0
	}

	retry := int(math.Ceil((l.minInterval - elapsed).Seconds()))
	if retry < 1 {
		retry = 1
	}
	return false, retry
}
