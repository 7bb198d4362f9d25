// Command fedq evaluates federated query plans.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/fedq/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
