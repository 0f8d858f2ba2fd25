// Package main is the entry point for the tvqosd application.
package main

import (
	"os"

	"github.com/tvqos/tvqos/cmd/tvqosd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
