package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/claimlink/internal/api"
)

var listenAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the claim assessment HTTP API",
	Long: `Serve exposes claim assessment over HTTP:
  POST /v1/claims/assess   assess a submission
  GET  /v1/claims          list stored claims (?status=&limit=)
  GET  /v1/claims/{id}     fetch a claim by ID or reference number
  GET  /healthz            liveness
  GET  /metrics            Prometheus metrics

Set server.jwt_secret (CLAIMLINK_SERVER_JWT_SECRET) to require HS256 bearer
tokens on /v1 routes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (default: server.addr)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	logger := slog.Default()

	a, err := newApp(ctx, cfg, logger, uploadsServer)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	opts := []api.Option{
		api.WithGatherer(a.registry),
		api.WithTimeout(cfg.Server.WriteTimeout),
	}
	if cfg.Server.JWTSecret != "" {
		opts = append(opts, api.WithAuth(api.NewTokenValidator(cfg.Server.JWTSecret, tokenIssuer)))
	} else {
		logger.Warn("bearer auth disabled; set server.jwt_secret to enable it")
	}
	handler := api.New(a.pipeline, a.store, logger, opts...)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.Router(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting claimlink API", "addr", cfg.Server.Addr, "store", cfg.Store.Driver, "ledger", cfg.Ledger.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
