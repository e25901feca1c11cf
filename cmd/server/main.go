// Package main is the entry point of the apiserver binary: it serves the
// annotated resources over HTTP and ships a few maintenance commands.
package main

import (
	"os"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
