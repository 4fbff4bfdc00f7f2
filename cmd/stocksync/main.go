// Command stocksync records stock movements and replays the ones captured
// offline once the stock service is reachable again.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/stocksync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
