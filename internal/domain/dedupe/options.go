package dedupe

// defaultMaxSize bounds the seen set; one entry per webhook delivery.
const defaultMaxSize = 10000

// Option applies a configuration option to the Deduper.
type Option func(*seenSet)

// WithMaxSize sets the maximum number of ids kept before eviction.
func WithMaxSize(size int) Option {
	return func(s *seenSet) {
		if size > 0 {
			s.maxSize = size
		}
	}
}
