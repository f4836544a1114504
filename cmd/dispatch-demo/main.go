// Command dispatch-demo drives a dispatch queue through a scripted scenario:
// staggered timers, plain dispatch, a sync wait, nested dispatch and two
// counters checked with Flush.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
