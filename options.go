package ragfuse

import (
	"log/slog"

	"golang.org/x/time/rate"
)

type options struct {
	fusionK          int
	perCorpusK       int
	cacheDir         string
	downloadLimiter  *rate.Limiter
	freshnessProbe   bool
	loadConcurrency  int
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Retriever constructor behavior.
type Option func(*options)

// WithFusionK sets the RRF smoothing constant. There is no universally
// right value; deployments tune it, so it lives in configuration rather
// than in the algorithm.
func WithFusionK(k int) Option {
	return func(o *options) {
		o.fusionK = k
	}
}

// WithPerCorpusK sets how many candidates each corpus contributes before
// fusion. If unset, the per-search topK is used.
func WithPerCorpusK(k int) Option {
	return func(o *options) {
		o.perCorpusK = k
	}
}

// WithCacheDir stages downloaded artifacts in a local directory so
// restarts skip re-downloading unchanged corpus versions.
func WithCacheDir(dir string) Option {
	return func(o *options) {
		o.cacheDir = dir
	}
}

// WithDownloadLimiter throttles artifact downloads.
func WithDownloadLimiter(limiter *rate.Limiter) Option {
	return func(o *options) {
		o.downloadLimiter = limiter
	}
}

// WithDownloadRate is a convenience for WithDownloadLimiter with the given
// fetches-per-second budget.
func WithDownloadRate(perSecond float64) Option {
	return func(o *options) {
		o.downloadLimiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithoutFreshnessProbe disables the per-search manifest version check.
// Reloads then only happen through explicit Reload calls.
func WithoutFreshnessProbe() Option {
	return func(o *options) {
		o.freshnessProbe = false
	}
}

// WithLoadConcurrency bounds how many corpora load in parallel during
// Initialize and reload. Zero means unbounded.
func WithLoadConcurrency(n int) Option {
	return func(o *options) {
		o.loadConcurrency = n
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		fusionK:          60,
		freshnessProbe:   true,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
