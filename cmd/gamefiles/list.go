package main

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/meigma/gamefiles"
)

func newListCmd(_ *app) *cobra.Command {
	var digests bool
	cmd := &cobra.Command{
		Use:     "list ARCHIVE",
		Aliases: []string{"inspect", "ls"},
		Short:   "Show the header and entries of an archive",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := gamefiles.Inspect(cmd.Context(), args[0], gamefiles.InspectWithDigests(digests))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "root: %q  entries: %d  version: %d  hash: %#08x  size: %d\n",
				info.RootPath, len(info.Entries), info.Header.Version, info.Header.FileNameHash, info.Size)

			rows := [][]string{{"Name", "Offset", "Size", "Modified", "Kind"}}
			if digests {
				rows[0] = append(rows[0], "Digest")
			}
			for _, e := range info.Entries {
				row := []string{
					e.Name,
					strconv.FormatUint(uint64(e.Offset), 10),
					strconv.FormatUint(uint64(e.Size), 10),
					e.ModTime.Time().Format("2006-01-02 15:04:05"),
					e.Kind,
				}
				if digests {
					row = append(row, e.Digest.String())
				}
				rows = append(rows, row)
			}
			table, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, table)
			return nil
		},
	}
	cmd.Flags().BoolVar(&digests, "digests", false, "compute a sha256 digest of every entry")
	return cmd
}
