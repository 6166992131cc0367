package weather

import (
	"sort"
	"sync"
)

// Cache holds the latest observation per city. It is safe for concurrent
// use by request handlers and the background refresh loop; every
// operation is a self-contained critical section. Last write wins by call
// order, not by the embedded observation timestamp.
type Cache struct {
	mu     sync.Mutex
	byCity map[string]Observation
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{byCity: make(map[string]Observation)}
}

// Update replaces any existing entry for the observation's city.
func (c *Cache) Update(obs Observation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byCity[obs.City] = obs
}

// Get returns the cached observation for city, if any.
func (c *Cache) Get(city string) (Observation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	obs, ok := c.byCity[city]
	return obs, ok
}

// Snapshot returns cached observations sorted by city name ascending.
// A nil filter returns all entries; otherwise only entries whose city is
// in the filter are included.
func (c *Cache) Snapshot(cities []string) []Observation {
	c.mu.Lock()
	rows := make([]Observation, 0, len(c.byCity))
	if cities == nil {
		for _, obs := range c.byCity {
			rows = append(rows, obs)
		}
	} else {
		for _, city := range cities {
			if obs, ok := c.byCity[city]; ok {
				rows = append(rows, obs)
			}
		}
	}
	c.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].City < rows[j].City })
	return rows
}

// HasAny reports whether the cache holds at least one observation.
func (c *Cache) HasAny() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byCity) > 0
}
