package gamefiles

import "log/slog"

// DefaultMemoryBudget caps the bytes held by concurrent in-memory XMB
// conversions during extraction.
const DefaultMemoryBudget = 512 << 20

// ExtractOption configures ExtractAll and ExtractFile.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	convert        bool
	workers        int
	keepCompressed []string
	memoryBudget   int64
	progress       ProgressFunc
	logger         *slog.Logger
}

func newExtractConfig(opts []ExtractOption) extractConfig {
	cfg := extractConfig{
		convert:        true,
		keepCompressed: DefaultKeepCompressed,
		memoryBudget:   DefaultMemoryBudget,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.keepCompressed = normalizeExts(cfg.keepCompressed)
	return cfg
}

// ExtractWithConvert controls whether .xmb entries are installed as XML
// (default: true). Entries that fail to convert are installed raw.
func ExtractWithConvert(enabled bool) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.convert = enabled
	}
}

// ExtractWithWorkers sets the number of entries extracted concurrently.
// Values < 0 force serial extraction. Zero uses GOMAXPROCS.
func ExtractWithWorkers(n int) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.workers = n
	}
}

// ExtractWithKeepCompressed replaces the extensions whose entries are
// installed as l33t containers (default: .age4scn). Such entries are never
// decompressed, and raw ones are compressed.
func ExtractWithKeepCompressed(exts ...string) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.keepCompressed = exts
	}
}

// ExtractWithMemoryBudget caps the bytes held by concurrent in-memory XMB
// conversions. Use a value <= 0 to disable the cap.
func ExtractWithMemoryBudget(limit int64) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.memoryBudget = limit
	}
}

// ExtractWithProgress sets a callback for progress updates.
// The callback may be invoked from several goroutines at once.
func ExtractWithProgress(fn ProgressFunc) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.progress = fn
	}
}

// ExtractWithLogger sets the logger for extraction.
// If not set, logging is disabled.
func ExtractWithLogger(logger *slog.Logger) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.logger = logger
	}
}
