package main

import (
	"log/slog"
	"os"

	"github.com/sematext/imap-email-extractor/cmd"
)

func main() {
	// Logs go to stderr until the root command configures the level
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	// Run the command-line interface
	if err := cmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
