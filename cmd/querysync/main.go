// Command querysync computes query keys, runs conformance scenarios against
// the query engine, and inspects the persisted result cache.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/querysync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
