package call

import "time"

type options struct {
	size   int
	ttl    time.Duration
	policy Policy
	now    func() time.Time
}

// Option defines a functional configuration type for the Tracker.
type Option func(*options)

// WithRetention bounds how many calls are kept and for how long after their last update.
func WithRetention(size int, ttl time.Duration) Option {
	return func(o *options) {
		if size > 0 {
			o.size = size
		}
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithPolicy selects strict or permissive transition handling.
func WithPolicy(p Policy) Option {
	return func(o *options) {
		if p != "" {
			o.policy = p
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
