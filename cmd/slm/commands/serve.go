package commands

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xupit3r/slm/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve text generation over HTTP",
	Long: `Serve text generation over HTTP.

Endpoints:
  POST /api/v1/generate   generate text (requires X-API-Key)
  GET  /api/health        liveness check`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveAddr   string
	serveModel  string
	serveCorpus string
	serveDev    bool
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().StringVarP(&serveModel, "model", "m", "", "trained model ID to serve")
	serveCmd.Flags().StringVarP(&serveCorpus, "corpus", "c", "", "corpus file to build the vocabulary from")
	serveCmd.Flags().BoolVar(&serveDev, "dev", false, "development mode (skip API key checks)")
	serveCmd.RegisterFlagCompletionFunc("model", modelFlagCompletion)

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	manager, err := newManager(serveModel, serveCorpus)
	if err != nil {
		return err
	}
	defer manager.Close()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	hist := openHistory()
	if hist != nil {
		defer hist.Close()
	}

	srv := server.New(manager, hist, server.Options{
		APIKey:      cfg.Server.APIKey,
		Development: cfg.Server.Development || serveDev,
		CacheTTL:    cfg.Server.CacheTTL,
		Version:     Version,
		Defaults:    generationDefaults(),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "Serving %s mode on %s\n", manager.Mode(), addr)
	if err := srv.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
