// Command calculator-mcp runs a reference capability server over stdio,
// speaking the same hand-rolled line-delimited JSON-RPC 2.0 protocol
// internal/rpctransport dials out to. It is meant to be dropped into a
// Config.Servers entry (command: ["calculator-mcp"]) as a working example
// of a third-party capability-server binary, and as a manual end-to-end
// smoke test for the Supervisor/Transport/Registry chain.
package main

import (
	"log"
	"os"

	"github.com/localmind/cortex/pkg/mcpserver/calculator"
)

func main() {
	if err := calculator.Serve(os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}
