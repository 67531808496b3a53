// Package main provides the entry point for the rigqa CLI.
package main

import (
	"os"

	"github.com/rigdocs/rigqa/cmd/rigqa/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
