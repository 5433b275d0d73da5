package worker

// Option applies a configuration option to a Worker.
type Option func(*Worker)

// WithName labels the worker in logs.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
			w.log = w.log.Named(name)
		}
	}
}
