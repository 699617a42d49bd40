package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/meigma/gamefiles"
)

func newPackCmd(a *app) *cobra.Command {
	var (
		root           string
		template       string
		fileTimes      bool
		noConvert      bool
		slash          bool
		keepCompressed []string
		markup         []string
	)
	cmd := &cobra.Command{
		Use:   "pack INPUT_DIR OUTPUT_FILE",
		Short: "Build an archive from a directory",
		Long: `Build the archive OUTPUT_FILE from every regular file under INPUT_DIR.

Markup files that parse are stored as XMB, and .age4scn files are stored
compressed. INPUT_DIR is never modified.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			progress, stop := a.progress()
			defer stop()

			opts := []gamefiles.PackOption{
				gamefiles.PackWithConvert(a.convert(cmd, noConvert)),
				gamefiles.PackWithFileTimes(fileTimes || (!cmd.Flags().Changed("file-times") && a.cfg.FileTimes)),
				gamefiles.PackWithProgress(progress),
				gamefiles.PackWithLogger(a.logger),
			}
			if template != "" {
				opts = append(opts, gamefiles.PackWithTemplate(template))
			}
			if slash {
				opts = append(opts, gamefiles.PackWithSeparator('/'))
			}
			if exts := a.keepCompressed(cmd, keepCompressed); exts != nil {
				opts = append(opts, gamefiles.PackWithKeepCompressed(exts...))
			}
			if cmd.Flags().Changed("markup") {
				opts = append(opts, gamefiles.PackWithMarkupExtensions(markup...))
			} else if a.cfg.MarkupExtensions != nil {
				opts = append(opts, gamefiles.PackWithMarkupExtensions(a.cfg.MarkupExtensions...))
			}

			stats, err := gamefiles.Pack(cmd.Context(), args[0], args[1], root, opts...)
			stop()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "packed %d files (%d converted, %d compressed)\n",
				stats.Files, stats.Converted, stats.Compressed)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&root, "root", "", `archive root path, e.g. "Data\"`)
	flags.StringVar(&template, "template", "", "copy version and format fields from this archive")
	flags.BoolVar(&fileTimes, "file-times", false, "record file modification times")
	flags.BoolVar(&noConvert, "no-convert", false, "store markup files without converting them")
	flags.BoolVar(&slash, "slash", false, "store names with '/' instead of '\\'")
	flags.StringSliceVar(&keepCompressed, "keep-compressed", nil, "extensions stored compressed (default .age4scn)")
	flags.StringSliceVar(&markup, "markup", nil, "extensions converted to XMB (default .xml)")
	return cmd
}

func newNullCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "null TEMPLATE OUTPUT_DIR [FILE_NAME]",
		Short: "Write an archive with a single empty entry",
		Long: `Write an archive holding one empty entry, keeping the root path of
TEMPLATE, to OUTPUT_DIR/<root path>/FILE_NAME. FILE_NAME defaults to the
base name of TEMPLATE.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := filepath.Base(args[0])
			if len(args) == 3 {
				name = args[2]
			}
			path, err := gamefiles.CreateNullArchive(cmd.Context(), args[0], args[1], name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
