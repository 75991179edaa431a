package main

import (
	"github.com/spf13/cobra"

	"satchel/internal/api"
	"satchel/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "satchel",
	Short: "Book content indexing and search for digitized school libraries",
	Long: `Satchel turns scanned book pages into searchable content.

The pipeline includes:
  - Page classification (printed page number and page type detection)
  - Per-page metadata extraction (topics, keywords, chapter titles, summaries)
  - Full-text search grouped by book and ranked by relevance
  - PDF ingestion into per-page images and records`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.satchel/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "satchel home directory (default: ~/.satchel)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
