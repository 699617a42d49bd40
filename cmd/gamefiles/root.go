package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// app holds state shared by all commands, filled in before any command runs.
type app struct {
	configPath string
	verbose    bool
	quiet      bool

	cfg    *fileConfig
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "gamefiles",
		Short:         "Work with BAR archives, l33t containers and XMB documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = newLogger(a.verbose || cfg.Verbose)
			return nil
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML config file")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log every step")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "hide progress bars")

	cmd.AddCommand(
		newExtractCmd(a),
		newExtractFileCmd(a),
		newPackCmd(a),
		newListCmd(a),
		newNullCmd(a),
		newL33tCmd(a),
		newXMBCmd(a),
	)
	return cmd
}

// newLogger logs text to a terminal and JSON otherwise.
func newLogger(verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelWarn}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) { //nolint:gosec // fd fits int
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// showProgress reports whether progress bars should be drawn.
func (a *app) showProgress() bool {
	return !a.quiet && term.IsTerminal(int(os.Stdout.Fd())) //nolint:gosec // fd fits int
}

// workers returns the --workers flag when set, else the config value.
func (a *app) workers(cmd *cobra.Command, flag int) int {
	if cmd.Flags().Changed("workers") {
		return flag
	}
	return a.cfg.Workers
}

// convert returns the --no-convert flag when set, else the config value.
func (a *app) convert(cmd *cobra.Command, noConvert bool) bool {
	if cmd.Flags().Changed("no-convert") {
		return !noConvert
	}
	return a.cfg.convert()
}

// keepCompressed returns the --keep-compressed flag when set, else the
// config value. Nil means the library default.
func (a *app) keepCompressed(cmd *cobra.Command, flag []string) []string {
	if cmd.Flags().Changed("keep-compressed") {
		return flag
	}
	return a.cfg.KeepCompressed
}
