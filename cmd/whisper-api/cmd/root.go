package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "whisper-api",
	Short: "HTTP API around a local whisper.cpp transcription pipeline",
	Long: `whisper-api accepts audio uploads over HTTP, normalizes them with
ffmpeg, and transcribes them with a local whisper.cpp binary. Jobs are
serialized through a single worker so the engine never runs twice at once.`,
}

// Execute runs the CLI. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
