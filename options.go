package cachecore

import (
	"time"

	"go.uber.org/zap"

	"github.com/tempuscache/cachecore/internal/ordermap"
)

// Policy selects which entry an eviction pass removes when the cache
// is over capacity. It is a thin alias over ordermap's tagged-variant
// policy type (spec.md §9 "eviction policies as a tagged variant").
type Policy = ordermap.Policy

const (
	// FIFO evicts the oldest inserted entry.
	FIFO = ordermap.FIFO
	// SecondChance gives a key accessed since the last eviction scan
	// one reprieve before it is evicted.
	SecondChance = ordermap.SecondChance
	// LRU evicts the least recently accessed entry.
	LRU = ordermap.LRU
)

// Option configures a Cache at construction time. This is the
// teacher's functional-options pattern (options.go), generalized from
// a single cleanup-interval knob to the full Configuration surface of
// spec.md §6: capacity, memory capacity, eviction policy, logger, and
// scavenger schedule.
//
//	cache := New(
//	    WithCapacity(10000),
//	    WithPolicy(LRU),
//	)
type Option func(*cacheConfig)

type cacheConfig struct {
	maxItems         int64
	maxBytes         int64
	policy           Policy
	logger           *zap.Logger
	scavengeDelay    time.Duration
	scavengeInterval time.Duration
}

// WithCapacity bounds the cache by item count.
func WithCapacity(maxItems int64) Option {
	return func(c *cacheConfig) { c.maxItems = maxItems }
}

// WithMemoryCapacity bounds the cache by total payload bytes.
func WithMemoryCapacity(maxBytes int64) Option {
	return func(c *cacheConfig) { c.maxBytes = maxBytes }
}

// WithPolicy selects the eviction policy.
func WithPolicy(p Policy) Option {
	return func(c *cacheConfig) { c.policy = p }
}

// WithLogger installs a structured logger for eviction and scavenger
// events. A nil logger is ignored, leaving the default in place.
func WithLogger(l *zap.Logger) Option {
	return func(c *cacheConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithScavengeSchedule overrides the scavenger's initial delay and
// repeat interval (spec.md §4.D: 10s delay, 2s period by default).
func WithScavengeSchedule(delay, interval time.Duration) Option {
	return func(c *cacheConfig) {
		c.scavengeDelay = delay
		c.scavengeInterval = interval
	}
}
