// Command reldb is the CLI front end for the relstore engine: a cobra
// command tree that either runs every statement in a file (--file) or
// starts a line-oriented REPL against a data directory.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "reldb:", err)
		os.Exit(1)
	}
}
