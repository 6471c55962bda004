package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptpal/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the PromptPal server",
	Long: `Start the PromptPal HTTP server.

The server opens the local database in the promptpal home directory and
closes it on shutdown (Ctrl+C or SIGTERM). Config file changes are picked
up while running.

The server provides:
  - /health - Basic server health check
  - /ready  - Readiness check (includes storage status)
  - /api/*  - Optimization, prompt library, settings and history

Examples:
  promptpal serve                    # Start on the configured port (default 8080)
  promptpal serve --port 3000        # Start on custom port
  promptpal serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, mgr, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		mgr.WatchConfig()

		cfg := mgr.Get()
		host, port := cfg.Server.Host, cfg.Server.Port
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			Home:          h,
			ConfigManager: mgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to (default: from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on (default: from config)")

	rootCmd.AddCommand(serveCmd)
}
