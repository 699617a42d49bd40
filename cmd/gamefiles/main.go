// Command gamefiles extracts, packs and converts game archive files.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/meigma/gamefiles"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	if failures := gamefiles.EntryErrors(err); len(failures) > 0 {
		for _, f := range failures {
			fmt.Fprintf(os.Stderr, "failed: %v\n", f)
		}
		fmt.Fprintf(os.Stderr, "%d entries failed\n", len(failures))
	} else if !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(1)
}
