package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-arena/internal/config"
	"github.com/ahrav/go-arena/internal/export"
	"github.com/ahrav/go-arena/internal/server"
	"github.com/ahrav/go-arena/internal/store"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the arena HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().Bool("temporal", false, "Run pipelines as Temporal workflows")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logCloser, err := loadConfig(cmd, "")
	if err != nil {
		return err
	}
	defer logCloser.Close()

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	useTemporal, _ := cmd.Flags().GetBool("temporal")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, cleanup, err := buildPipeline(cfg, useTemporal)
	if err != nil {
		return err
	}
	defer cleanup()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, closeSessions, err := openSessions(ctx, cfg.Server.Sessions)
	if err != nil {
		return err
	}
	defer closeSessions()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(p, export.NewExporter(st), sessions).Handler(server.Config{CORSOrigins: cfg.Server.CORSOrigins}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("arena API listening", "addr", cfg.Server.Addr, "temporal", useTemporal)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down arena API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openSessions(ctx context.Context, cfg config.SessionConfig) (server.SessionStore, func(), error) {
	if cfg.Backend != "redis" {
		return server.NewMemorySessionStore(), func() {}, nil
	}
	client, err := server.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, fmt.Errorf("session store: %w", err)
	}
	return server.NewRedisSessionStore(client, cfg.TTL), func() { _ = client.Close() }, nil
}
