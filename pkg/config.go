package engine

// config.go defines the internal configuration object and the functional
// options New accepts. This generalises the teacher's config[K,V] /
// Option[K,V] (pkg/config.go in arena-cache): since GuestPC and host code
// are concrete types in this domain, the generic type parameters drop out,
// but the shape — an unexported config struct, a slice of functional
// options applied in applyOptions, validation before use — is unchanged.
//
// © 2025 rvjit authors. MIT License.

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Tunable constants from spec.md §6. Each has the reference's default.
const (
	// DefaultCacheSize is CACHE_SIZE: total Code Arena bytes.
	DefaultCacheSize uint64 = 64 << 20 // 64 MiB
	// DefaultEntrySize is CACHE_ENTRY_SIZE: Directory slot count N.
	DefaultEntrySize uint64 = 1 << 16
	// DefaultHotCount is CACHE_HOT_COUNT: the promotion threshold H.
	DefaultHotCount uint16 = 16
	// DefaultQueueMaxSize is QUEUE_MAX_SIZE: the Residency Queue bound Q.
	DefaultQueueMaxSize int = 16
	// DefaultMaxSearchCount is MAX_SEARCH_COUNT: the directory probe bound P.
	DefaultMaxSearchCount uint64 = 32
	// DefaultBackingFile is the Code Arena's placeholder backing file name.
	DefaultBackingFile = "cache_file"
	// DefaultTraceLog is the PC-trace log's filename.
	DefaultTraceLog = "log.txt"
)

// config bundles every knob that influences Engine behaviour. Immutable
// once the Engine is constructed, exactly like the teacher's config[K,V].
type config struct {
	cacheSize      uint64
	entrySize      uint64
	hotCount       uint16
	queueMax       int
	maxSearchCount uint64
	alpha          float64

	backingFile string
	traceLog    string

	logger   *zap.Logger
	registry *prometheus.Registry

	useHeapResidency bool
	verboseResidency bool
	attenuationEpoch uint64 // 0 disables automatic attenuation
}

// Option is the functional option passed to New.
type Option func(*config)

func defaultConfig() *config {
	return &config{
		cacheSize:      DefaultCacheSize,
		entrySize:      DefaultEntrySize,
		hotCount:       DefaultHotCount,
		queueMax:       DefaultQueueMaxSize,
		maxSearchCount: DefaultMaxSearchCount,
		alpha:          0.95,
		backingFile:    DefaultBackingFile,
		traceLog:       DefaultTraceLog,
		logger:         zap.NewNop(),
	}
}

// WithCacheSize overrides CACHE_SIZE.
func WithCacheSize(bytes uint64) Option {
	return func(c *config) { c.cacheSize = bytes }
}

// WithEntrySize overrides CACHE_ENTRY_SIZE (the Directory's fixed slot
// count N). Must stay well above the expected distinct-block count so the
// arena cannot overflow before the directory fills, per spec.md §3.
func WithEntrySize(n uint64) Option {
	return func(c *config) { c.entrySize = n }
}

// WithHotCount overrides CACHE_HOT_COUNT (H).
func WithHotCount(h uint16) Option {
	return func(c *config) { c.hotCount = h }
}

// WithQueueMaxSize overrides QUEUE_MAX_SIZE (Q).
func WithQueueMaxSize(q int) Option {
	return func(c *config) { c.queueMax = q }
}

// WithMaxSearchCount overrides MAX_SEARCH_COUNT (P).
func WithMaxSearchCount(p uint64) Option {
	return func(c *config) { c.maxSearchCount = p }
}

// WithAlpha overrides the attenuation blend factor α.
func WithAlpha(alpha float64) Option {
	return func(c *config) { c.alpha = alpha }
}

// WithBackingFile overrides the Code Arena's placeholder backing file path.
func WithBackingFile(path string) Option {
	return func(c *config) { c.backingFile = path }
}

// WithTraceLog overrides the PC-trace log's file path.
func WithTraceLog(path string) Option {
	return func(c *config) { c.traceLog = path }
}

// WithLogger plugs an external zap.Logger. The engine's only log call is the
// Debug line WithVerboseResidency enables; startup failures and fatal
// conditions are returned as errors, not logged.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection. Passing nil disables
// metrics (the default).
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) { c.registry = reg }
}

// WithHeapResidency selects the container/heap-backed Residency Manager
// (O(log Q) insert/evict) instead of the reference O(Q²) re-sort
// implementation. Both have identical observable semantics (spec.md §9).
func WithHeapResidency() Option {
	return func(c *config) { c.useHeapResidency = true }
}

// WithVerboseResidency enables a zap.Logger.Debug call on every residency
// eviction, the idiomatic equivalent of original_source/src/cache.c's
// pq_print diagnostic dump (SPEC_FULL.md §8) — gated behind this flag
// because the engine must never log on the hot path by default.
func WithVerboseResidency() Option {
	return func(c *config) { c.verboseResidency = true }
}

// WithAttenuationEpoch makes the Engine call Attenuate automatically every
// n logical ticks. n == 0 (the default) disables automatic attenuation;
// callers that want a wall-clock schedule instead should call
// Engine.Attenuate from their own ticker (spec.md §9).
func WithAttenuationEpoch(n uint64) Option {
	return func(c *config) { c.attenuationEpoch = n }
}

func applyOptions(cfg *config, opts []Option) error {
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.cacheSize == 0 {
		return errConfig("cache size must be > 0")
	}
	if cfg.entrySize == 0 {
		return errConfig("entry size must be > 0")
	}
	if cfg.hotCount == 0 {
		return errConfig("hot count must be > 0")
	}
	if cfg.queueMax <= 0 {
		return errConfig("queue max size must be > 0")
	}
	if cfg.maxSearchCount == 0 {
		return errConfig("max search count must be > 0")
	}
	return nil
}

func errConfig(msg string) error {
	return &configError{msg: msg}
}

type configError struct{ msg string }

func (e *configError) Error() string { return "rvjit: invalid config: " + e.msg }
