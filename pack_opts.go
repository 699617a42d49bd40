package gamefiles

import "log/slog"

// PackOption configures Pack.
type PackOption func(*packConfig)

type packConfig struct {
	fileTimes    bool
	convert      bool
	keep         []string
	markup       []string
	templatePath string
	separator    rune
	progress     ProgressFunc
	logger       *slog.Logger
}

func newPackConfig(opts []PackOption) packConfig {
	cfg := packConfig{
		convert:   true,
		keep:      DefaultKeepCompressed,
		markup:    DefaultMarkupExtensions,
		separator: '\\',
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.keep = normalizeExts(cfg.keep)
	cfg.markup = normalizeExts(cfg.markup)
	return cfg
}

// PackWithFileTimes records each file's modification time in the table
// instead of the fixed 2011-01-01 timestamp that keeps archives
// reproducible.
func PackWithFileTimes(enabled bool) PackOption {
	return func(cfg *packConfig) {
		cfg.fileTimes = enabled
	}
}

// PackWithConvert controls whether markup files are stored as XMB
// (default: true).
func PackWithConvert(enabled bool) PackOption {
	return func(cfg *packConfig) {
		cfg.convert = enabled
	}
}

// PackWithKeepCompressed replaces the extensions stored as l33t containers
// (default: .age4scn). Files that are not containers already are
// compressed while packing.
func PackWithKeepCompressed(exts ...string) PackOption {
	return func(cfg *packConfig) {
		cfg.keep = exts
	}
}

// PackWithMarkupExtensions replaces the extensions converted to XMB
// (default: .xml).
func PackWithMarkupExtensions(exts ...string) PackOption {
	return func(cfg *packConfig) {
		cfg.markup = exts
	}
}

// PackWithTemplate copies the version, format, reserved and checksum
// header fields from the archive at path. Use it when repacking an archive
// shipped with the game.
func PackWithTemplate(path string) PackOption {
	return func(cfg *packConfig) {
		cfg.templatePath = path
	}
}

// PackWithSeparator sets the separator used in stored entry names
// (default: '\').
func PackWithSeparator(sep rune) PackOption {
	return func(cfg *packConfig) {
		cfg.separator = sep
	}
}

// PackWithProgress sets a callback for progress updates.
func PackWithProgress(fn ProgressFunc) PackOption {
	return func(cfg *packConfig) {
		cfg.progress = fn
	}
}

// PackWithLogger sets the logger for packing.
// If not set, logging is disabled.
func PackWithLogger(logger *slog.Logger) PackOption {
	return func(cfg *packConfig) {
		cfg.logger = logger
	}
}
