// Command harberger runs the Harberger-tax escrow settlement engine.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/harberger/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
