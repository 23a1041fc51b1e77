// Command mera runs and maintains learner progress sessions.
package main

import (
	"fmt"
	"os"

	"github.com/mera-platform/mera/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
