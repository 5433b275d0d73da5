package queue

// Option applies a configuration option to the queue.
type Option func(*InMemory)

// WithCapacity bounds the number of buffered jobs.
func WithCapacity(n int) Option {
	return func(q *InMemory) {
		if n > 0 {
			q.capacity = n
		}
	}
}
