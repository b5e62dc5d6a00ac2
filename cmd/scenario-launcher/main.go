// Package main provides the scenario-launcher CLI entry point.
//
// scenario-launcher starts the Java scenario editor and player as detached
// processes, scores test sessions from the answers the player publishes, and
// maintains the settings, course and history documents.
package main

import (
	"os"

	"github.com/randomizedcoder/scenario-launcher/internal/cli"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/scenario-launcher
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	return cli.Execute(version)
}
