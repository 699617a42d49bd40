// Package gamefiles extracts and builds the asset archives of the game.
//
// Three formats are involved, each with its own package:
//   - [bar]: the archive container, a header, concatenated file contents
//     and a trailing table of entries
//   - [l33t]: a length-prefixed deflate wrapper around a single file
//   - [xmb]: a compact binary encoding of an XML document with interned
//     element and attribute names
//
// This package chains them. [ExtractAll] unpacks every entry of an archive,
// unwrapping l33t containers and rendering XMB documents as XML along the
// way; [Pack] does the reverse for a directory tree.
//
// # Quick Start
//
// Extract an archive:
//
//	stats, err := gamefiles.ExtractAll(ctx, "Data.bar", "./out",
//	    gamefiles.ExtractWithWorkers(8),
//	)
//	if err != nil {
//	    for _, ee := range gamefiles.EntryErrors(err) {
//	        log.Printf("%s: %v", ee.Path, ee.Err)
//	    }
//	}
//
// Rebuild it:
//
//	_, err = gamefiles.Pack(ctx, "./out/Data", "Data.bar", `Data\`,
//	    gamefiles.PackWithTemplate("Data.bar.orig"),
//	)
//
// # Failures
//
// Extraction is per entry: one bad entry never stops the rest, and every
// failure is reported as an [*EntryError] joined into the returned error.
// Converting XMB to XML is best effort. An entry whose XMB fails to decode
// is installed with its raw bytes and counted as a fallback.
package gamefiles
