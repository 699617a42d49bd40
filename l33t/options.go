package l33t

import "github.com/klauspost/compress/flate"

// DefaultMaxSize bounds the declared length accepted by Decompress.
const DefaultMaxSize = 1 << 30

// ProgressFunc receives the number of uncompressed bytes processed and the
// declared total. Reports are advisory and arrive once per buffer chunk.
type ProgressFunc func(done, total int64)

// Option configures encoding and decoding.
type Option func(*config)

type config struct {
	level    int
	progress ProgressFunc
	maxSize  int64
}

func newConfig(opts []Option) config {
	cfg := config{
		level:   flate.BestCompression,
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithLevel sets the deflate compression level.
// Values outside the flate package's range fall back to BestCompression.
func WithLevel(level int) Option {
	return func(c *config) {
		if level < flate.HuffmanOnly || level > flate.BestCompression {
			level = flate.BestCompression
		}
		c.level = level
	}
}

// WithProgress sets a callback for progress updates.
func WithProgress(fn ProgressFunc) Option {
	return func(c *config) {
		c.progress = fn
	}
}

// WithMaxSize caps the declared length Decompress will allocate for.
// Zero or negative values remove the cap.
func WithMaxSize(n int64) Option {
	return func(c *config) {
		c.maxSize = n
	}
}
