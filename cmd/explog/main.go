// Command explog manages experiment ledger databases.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/explog/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
