package omnio

import (
	"log/slog"
	"time"
)

// config collects the Open-time knobs.
type config struct {
	bucket   string
	partSize int64
	logger   *slog.Logger
	codec    JSONCodec
	tsearch  TextSearch
	nowFn    func() time.Time
	inMemory bool
}

func defaultConfig() config {
	return config{
		bucket:   "main",
		partSize: DefaultPartSize,
		logger:   slog.Default(),
		codec:    StdJSONCodec(),
		tsearch:  IdentityTextSearch(),
		nowFn:    time.Now,
	}
}

// Option configures Open.
type Option func(*config)

// WithBucket names the bucket this store serves. Default "main".
func WithBucket(name string) Option {
	return func(c *config) { c.bucket = name }
}

// WithPartSize sets the part size for new objects, in bytes. Appends to
// an existing non-empty object keep its original part size.
func WithPartSize(n int64) Option {
	return func(c *config) { c.partSize = n }
}

// WithLogger sets the structured logger. Default slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithJSONCodec replaces the user-metadata codec.
func WithJSONCodec(codec JSONCodec) Option {
	return func(c *config) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// WithTextSearch replaces the description normaliser.
func WithTextSearch(ts TextSearch) Option {
	return func(c *config) {
		if ts != nil {
			c.tsearch = ts
		}
	}
}

// WithClock injects the timestamp source. Intended for deterministic
// tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.nowFn = now
		}
	}
}

// WithInMemory keeps both the entity tree and the catalog database in
// memory. The root path is ignored. Nothing survives Close.
func WithInMemory() Option {
	return func(c *config) { c.inMemory = true }
}
