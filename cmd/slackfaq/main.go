// Package main provides the entry point for the slackfaq CLI.
package main

import (
	"os"

	"github.com/sfarag/slackfaq/cmd/slackfaq/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
