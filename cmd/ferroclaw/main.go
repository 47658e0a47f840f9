// Package main is the entry point for the ferroclaw CLI.
package main

import (
	"os"

	"github.com/ferroclaw/ferroclaw/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
