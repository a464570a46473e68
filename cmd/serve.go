package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/dmask/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the masking pipeline over HTTP",
	Long: `Start an HTTP server that masks request bodies with the configured rules.

Endpoints:
  POST /v1/mask?format=json|yaml|ndjson   mask the request body
  GET  /v1/maskers                        list maskers and selectors
  GET  /healthz                           health check
  GET  /metrics                           Prometheus metrics

Examples:
  dmask serve
  dmask serve --addr 127.0.0.1:9000
  curl -s --data-binary @payload.json localhost:8080/v1/mask`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(serveCmd)
}

// newServer builds the masking server from the current configuration.
func newServer(cmd *cobra.Command) (*server.Server, error) {
	cfg, logger, setup, err := setupFromConfig(cmd)
	if err != nil {
		return nil, err
	}
	pipeline, err := setup.pipeline()
	if err != nil {
		return nil, err
	}
	if pipeline == nil {
		logger.Warn("masking is disabled, request bodies are returned unchanged")
	}

	if !cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	return server.New(server.Options{
		Pipeline: pipeline,
		Maskers:  setup.maskers(),
		Config:   cfg.Server,
		Indent:   cfg.Masking.Indent,
		Logger:   logger,
	}), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	srv, err := newServer(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
