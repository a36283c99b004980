package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/doc-qa/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts the question-answering HTTP API. Documents are fetched and indexed
on demand by POST /api/v1/hackrx/run; the index and document registry
persist under the configured data directory.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "listen host (overrides config)")
	serveCmd.Flags().Int("port", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup(appOptions{requireLLM: true})
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}

	srv := server.New(server.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		APIPrefix:         cfg.Server.APIPrefix,
		APIToken:          cfg.APIToken,
		AllowAll:          cfg.Server.AllowAllOrigins,
		RateLimitRequests: cfg.Server.RateLimitRequests,
		RateLimitWindow:   time.Duration(cfg.Server.RateLimitWindowSecs) * time.Second,
		RequestTimeout:    time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second,
		Version:           Version,
	}, a.svc, a.logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats := a.svc.Retriever().Stats()
	a.logger.Info("index loaded",
		"backend", cfg.IndexBackend,
		"passages", stats.TotalEmbeddings,
		"embedder", a.embedder.Name(),
		"provider", cfg.Provider,
	)
	return srv.Run(ctx)
}
