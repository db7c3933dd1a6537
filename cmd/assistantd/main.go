// Command assistantd is the CLI entry point for the local capability-server
// assistant daemon.
package main

import (
	"fmt"
	"os"

	"github.com/localmind/cortex/cmd/assistantd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
