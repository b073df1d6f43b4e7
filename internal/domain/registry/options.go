package registry

import "time"

// Option defines a functional configuration type for the Hub.
type Option func(*Hub)

// WithMailboxSize sets the [BACKPRESSURE] threshold.
// It defines the outbound buffer capacity of each individual connection.
func WithMailboxSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.config.mailboxSize = size
		}
	}
}

// WithSendTimeout defines how long a fan-out waits on a saturated mailbox
// before priority eviction kicks in.
func WithSendTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d >= 0 {
			h.config.sendTimeout = d
		}
	}
}
