package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meigma/gamefiles"
)

type extractFlags struct {
	workers        int
	noConvert      bool
	keepCompressed []string
}

func (f *extractFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.IntVarP(&f.workers, "workers", "w", 0, "concurrent entries (0 picks a default)")
	flags.BoolVar(&f.noConvert, "no-convert", false, "install .xmb entries without converting them to XML")
	flags.StringSliceVar(&f.keepCompressed, "keep-compressed", nil,
		"extensions kept in l33t containers (default .age4scn)")
}

func (f *extractFlags) options(a *app, cmd *cobra.Command) []gamefiles.ExtractOption {
	opts := []gamefiles.ExtractOption{
		gamefiles.ExtractWithConvert(a.convert(cmd, f.noConvert)),
		gamefiles.ExtractWithWorkers(a.workers(cmd, f.workers)),
		gamefiles.ExtractWithLogger(a.logger),
	}
	if exts := a.keepCompressed(cmd, f.keepCompressed); exts != nil {
		opts = append(opts, gamefiles.ExtractWithKeepCompressed(exts...))
	}
	return opts
}

func newExtractCmd(a *app) *cobra.Command {
	var f extractFlags
	cmd := &cobra.Command{
		Use:   "extract ARCHIVE OUTPUT_DIR",
		Short: "Extract every entry of an archive",
		Long: `Extract every entry of ARCHIVE into OUTPUT_DIR/<root path>.

Compressed entries are unwrapped, .xmb entries are converted to XML and
each file gets the timestamp recorded in the archive. A failed entry does
not stop the others; all failures are reported at the end.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			progress, stop := a.progress()
			opts := append(f.options(a, cmd), gamefiles.ExtractWithProgress(progress))
			stats, err := gamefiles.ExtractAll(cmd.Context(), args[0], args[1], opts...)
			stop()
			if stats != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "extracted %d of %d entries (%d converted, %d kept as xmb)\n",
					stats.Installed, len(stats.Entries), stats.Converted, stats.Fallbacks)
			}
			return err
		},
	}
	f.register(cmd)
	return cmd
}

func newExtractFileCmd(a *app) *cobra.Command {
	var f extractFlags
	cmd := &cobra.Command{
		Use:   "extract-file ARCHIVE NAME OUTPUT_DIR",
		Short: "Extract one entry of an archive",
		Long: `Extract the entry NAME of ARCHIVE into OUTPUT_DIR/<root path>.

NAME matches case-insensitively and either path separator may be used.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := gamefiles.ExtractFile(cmd.Context(), args[0], args[1], args[2], f.options(a, cmd)...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Path)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}
