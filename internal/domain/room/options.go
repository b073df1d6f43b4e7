package room

// Option defines a functional configuration type for the Directory.
type Option func(*Directory)

// WithReadyThreshold sets the member count that makes a room ready.
func WithReadyThreshold(n int) Option {
	return func(d *Directory) {
		if n > 0 {
			d.threshold = n
		}
	}
}
