// Package stats computes availability figures for display: uptime percentage
// over a trailing window and the duration the node has held its current
// status. Uptime reads walk the status-change timeline in the store, so
// results are cached with a short freshness horizon to keep dashboard
// refreshes off the database.
package stats

import (
	"fmt"
	"sync"
	"time"

	"github.com/maypok86/otter"
)

// DefaultFreshness bounds how stale a cached uptime figure may be.
const DefaultFreshness = 30 * time.Second

// Store is the read side the calculator needs.
type Store interface {
	UptimePercentage(nodeID int64, start, end time.Time) (float64, error)
	CurrentStatusDuration(nodeID int64) (*int64, error)
}

type uptimeKey struct {
	nodeID int64
	window time.Duration
}

type uptimeEntry struct {
	percent    float64
	computedAt time.Time
}

// Calculator serves uptime and status-duration queries over a store, with a
// bounded cache in front of the uptime timeline walk.
type Calculator struct {
	store     Store
	freshness time.Duration
	now       func() time.Time

	mu    sync.Mutex
	cache otter.Cache[uptimeKey, uptimeEntry]
}

// NewCalculator creates a Calculator bounded to maxEntries cached windows.
// freshness <= 0 selects DefaultFreshness.
func NewCalculator(store Store, maxEntries int, freshness time.Duration) *Calculator {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	cache, err := otter.MustBuilder[uptimeKey, uptimeEntry](maxEntries).
		Cost(func(_ uptimeKey, _ uptimeEntry) uint32 { return 1 }).
		Build()
	if err != nil {
		panic("stats: failed to create uptime cache: " + err.Error())
	}
	return &Calculator{
		store:     store,
		freshness: freshness,
		now:       time.Now,
		cache:     cache,
	}
}

// Uptime returns the percentage of the trailing window the node spent
// Online. Cached results are reused within the freshness horizon.
func (c *Calculator) Uptime(nodeID int64, window time.Duration) (float64, error) {
	if window <= 0 {
		return 0, fmt.Errorf("stats: non-positive window %v", window)
	}

	key := uptimeKey{nodeID: nodeID, window: window}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, found := c.cache.Get(key); found {
		if now.Sub(entry.computedAt) < c.freshness {
			return entry.percent, nil
		}
	}

	percent, err := c.store.UptimePercentage(nodeID, now.Add(-window), now)
	if err != nil {
		return 0, fmt.Errorf("stats: uptime for node %d: %w", nodeID, err)
	}
	c.cache.Set(key, uptimeEntry{percent: percent, computedAt: now})
	return percent, nil
}

// StatusDuration returns how long the node has held its current status, or
// nil when it has no recorded history. Never cached: the figure grows every
// second by definition.
func (c *Calculator) StatusDuration(nodeID int64) (*time.Duration, error) {
	ms, err := c.store.CurrentStatusDuration(nodeID)
	if err != nil {
		return nil, fmt.Errorf("stats: status duration for node %d: %w", nodeID, err)
	}
	if ms == nil {
		return nil, nil
	}
	d := time.Duration(*ms) * time.Millisecond
	return &d, nil
}

// Invalidate drops all cached windows for a node. Called on status
// transitions so the next read reflects the change immediately.
func (c *Calculator) Invalidate(nodeID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var stale []uptimeKey
	c.cache.Range(func(key uptimeKey, _ uptimeEntry) bool {
		if key.nodeID == nodeID {
			stale = append(stale, key)
		}
		return true
	})
	for _, key := range stale {
		c.cache.Delete(key)
	}
}

// Close releases the underlying cache.
func (c *Calculator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Close()
}
