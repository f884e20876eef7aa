package store

import "time"

const defaultTickInterval = time.Millisecond

// Config holds Batcher initialization parameters.
type Config struct {
	// TickInterval is the coalescing window: operations enqueued within the
	// same tick are dispatched as one batch. Zero means the 1ms default.
	TickInterval time.Duration `json:"tick_interval,omitempty"`

	// DispatchRate caps backend Batch calls per second. Zero disables pacing.
	DispatchRate int `json:"dispatch_rate,omitempty"`

	// Observer names a registered observer ("slog", "noop", or custom).
	Observer string `json:"observer,omitempty"`
}

// DefaultConfig returns the default Batcher configuration.
func DefaultConfig() Config {
	return Config{
		TickInterval: defaultTickInterval,
		Observer:     "slog",
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.TickInterval > 0 {
		c.TickInterval = source.TickInterval
	}
	if source.DispatchRate > 0 {
		c.DispatchRate = source.DispatchRate
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
}
