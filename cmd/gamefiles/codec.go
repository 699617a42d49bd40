package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/meigma/gamefiles"
	"github.com/meigma/gamefiles/l33t"
)

func newL33tCmd(_ *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "l33t",
		Short: "Compress or decompress l33t containers",
	}
	var level int
	compress := &cobra.Command{
		Use:   "compress INPUT OUTPUT",
		Short: "Wrap a file in a l33t container",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return l33t.CompressFile(cmd.Context(), args[0], args[1], l33t.WithLevel(level))
		},
	}
	compress.Flags().IntVar(&level, "level", 9, "deflate level (1-9)")

	decompress := &cobra.Command{
		Use:   "decompress INPUT OUTPUT",
		Short: "Unwrap a l33t container",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return l33t.DecompressFile(cmd.Context(), args[0], args[1])
		},
	}
	cmd.AddCommand(compress, decompress)
	return cmd
}

func newXMBCmd(_ *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xmb",
		Short: "Convert between XMB and XML",
	}
	toXML := &cobra.Command{
		Use:   "to-xml INPUT [OUTPUT]",
		Short: "Render an XMB document as XML",
		Long:  "Render INPUT as XML. OUTPUT defaults to INPUT without its .xmb extension.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := strings.TrimSuffix(args[0], ".xmb")
			if len(args) == 2 {
				out = args[1]
			} else if out == args[0] {
				out += ".xml"
			}
			return gamefiles.XMBFileToXML(cmd.Context(), args[0], out)
		},
	}
	fromXML := &cobra.Command{
		Use:   "from-xml INPUT [OUTPUT]",
		Short: "Encode an XML document as XMB",
		Long:  "Encode INPUT as XMB. OUTPUT defaults to INPUT with .xmb appended.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := args[0] + ".xmb"
			if len(args) == 2 {
				out = args[1]
			}
			return gamefiles.XMLFileToXMB(cmd.Context(), args[0], out)
		},
	}
	cmd.AddCommand(toXML, fromXML)
	return cmd
}
