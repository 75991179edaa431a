package main

import (
	"github.com/spf13/cobra"

	"satchel/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Satchel server via HTTP.

These commands require a running server (satchel serve).
Use --server to specify a custom server URL.

Examples:
  satchel api health                    # Check server health
  satchel api books                     # List all books
  satchel api index <book-id>           # Start indexing a book
  satchel api search "photosynthesis"   # Search indexed content`,
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Persistent so all subcommands inherit it
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	for _, ep := range endpoints.All(endpoints.Config{}) {
		apiCmd.AddCommand(ep.Command(getServerURL))
	}

	rootCmd.AddCommand(apiCmd)
}
