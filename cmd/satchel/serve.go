package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"satchel/internal/config"
	"satchel/internal/home"
	"satchel/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Satchel server",
	Long: `Start the Satchel HTTP server.

The server opens the SQLite content store in the home directory and hosts
the page classifier, the indexing orchestrator, and the search engine.

The server provides:
  - /health - Basic server health check
  - /ready  - Readiness check (includes the content store)

Examples:
  satchel serve                    # Start on default port 8080
  satchel serve --port 3000        # Start on custom port
  satchel serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		cfgMgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfgMgr.WatchConfig()

		host := serveHost
		port := servePort
		if !cmd.Flags().Changed("host") {
			host = cfgMgr.Get().Server.Host
		}
		if !cmd.Flags().Changed("port") {
			port = cfgMgr.Get().Server.Port
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			Home:          h,
			ConfigManager: cfgMgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
