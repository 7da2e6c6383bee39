package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "anyvidow",
	Short: "Media download service",
	Long: `AnyviDow resolves media URLs, downloads single items or playlist ranges
with yt-dlp, merges separate video and audio tracks with ffmpeg and streams
progress to the browser.

Configuration is read from ANYVIDOW_* environment variables, an optional
.env file and an optional config.{yaml,toml,json} in the working directory.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
