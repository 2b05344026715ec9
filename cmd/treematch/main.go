// Package main provides the entry point for the treematch CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/treematch/cmd/treematch/commands"
	"github.com/Sumatoshi-tech/treematch/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	err := commands.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
