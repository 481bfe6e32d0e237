package staging

import (
	"log/slog"
	"time"
)

// stagerConfig holds the options of NewStager. It is not generic so that options can be shared
// between stagers of different element types.
type stagerConfig struct {
	logger  *slog.Logger
	workers int
	queue   int
	idle    time.Duration
}

// StagerBuilderOption is a functional option applied to a stager during construction via NewStager.
type StagerBuilderOption func(*stagerConfig)

// WithWorkers sets the maximum number of producer goroutines. Defaults to one less than the number
// of CPUs, at least 1.
//
// Parameters:
//   - n: the worker count, values below 1 are ignored
//
// Returns:
//   - StagerBuilderOption: a function that applies the worker count option to a stager
func WithWorkers(n int) StagerBuilderOption {
	return func(c *stagerConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithQueueSize sets how many submitted producers may wait for a worker before Submit blocks.
//
// Parameters:
//   - n: the queue size, values below 1 are ignored
//
// Returns:
//   - StagerBuilderOption: a function that applies the queue size option to a stager
func WithQueueSize(n int) StagerBuilderOption {
	return func(c *stagerConfig) {
		if n > 0 {
			c.queue = n
		}
	}
}

// WithIdleTimeout sets how long an idle worker waits for work before exiting.
func WithIdleTimeout(d time.Duration) StagerBuilderOption {
	return func(c *stagerConfig) {
		if d > 0 {
			c.idle = d
		}
	}
}

// WithLogger sets the logger of the stager. When not specified common.Logger() is used.
func WithLogger(l *slog.Logger) StagerBuilderOption {
	return func(c *stagerConfig) {
		c.logger = l
	}
}
