// Command podgenctl is the operator CLI for the podcast-assembly system:
// run the daemon in the foreground, apply migrations, trigger an ingestion
// cycle, or inspect a workflow. Grounded on five82-spindle's
// cmd/spindle/main.go entrypoint and one-file-per-command layout.
package main

import (
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
