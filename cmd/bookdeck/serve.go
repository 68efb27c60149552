package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/bookdeck/internal/server"
)

var (
	serveHost      string
	servePort      string
	serveRateLimit int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bookdeck web wizard",
	Long: `Start the bookdeck HTTP server.

The server hosts a three-step wizard (configure, processing, results) that
uploads a book, runs the pipeline in the background and offers the
resulting PDFs for download. The config file is watched; provider
changes take effect without a restart.

Endpoints:
  /              - The wizard
  /health        - Basic server health check
  /status        - Providers and run counts
  /api/runs      - Create and inspect runs
  /api/prompts   - Inspect prompts and per-book overrides

Examples:
  bookdeck serve                    # Start on default port 8080
  bookdeck serve --port 3000        # Start on custom port
  bookdeck serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		e.config.WatchConfig()

		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			ConfigManager: e.config,
			Registry:      e.registry,
			Executor:      e.executor(),
			Home:          e.home,
			Cache:         e.cache,
			Prompts:       e.prompts,
			PromptStore:   e.store,
			Defaults:      e.defaults(),
			RunsPerMinute: serveRateLimit,
			Logger:        e.logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")
	serveCmd.Flags().IntVar(&serveRateLimit, "runs-per-minute", 10, "Run submissions allowed per client IP per minute (0 disables)")

	rootCmd.AddCommand(serveCmd)
}
