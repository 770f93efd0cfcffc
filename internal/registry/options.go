package registry

import (
	"log/slog"
	"runtime"

	"github.com/klauern/rulebook/internal/cache"
	"github.com/klauern/rulebook/internal/logging"
)

// ProgressFunc receives the number of files parsed so far and the total for
// the current phase. Calls are serialized.
type ProgressFunc func(phase string, done, total int)

// Option configures a load.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	workers  int
	cache    *cache.Cache
	progress ProgressFunc
}

func defaultOptions() options {
	return options{
		logger:  logging.Default(),
		workers: runtime.GOMAXPROCS(0),
	}
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithWorkers bounds the number of files parsed concurrently. Values below 1
// mean sequential parsing.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.workers = n
	}
}

// WithCache reuses parse results for unchanged files and records clean
// parses. The caller owns saving the cache.
func WithCache(c *cache.Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithProgress reports parse progress.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}
