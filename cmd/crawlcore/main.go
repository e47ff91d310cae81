// Command crawlcore is the local-only documentation crawler's entry
// point: it wires os.Args into the Cobra command tree and runs one
// crawl to completion.
package main

import (
	cmd "github.com/rohmanhakim/docs-crawler/internal/cli"
)

func main() {
	cmd.Execute()
}
