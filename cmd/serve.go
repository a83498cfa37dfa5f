package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/transitkit/gtfs"
	"github.com/transitkit/gtfs/api"
	"github.com/transitkit/gtfs/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the configured feed over HTTP",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

var configPath string

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "gtfs.yml", "Configuration file")
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer log.Sync()

	s, err := openStorage(cfg.Storage.Backend, cfg.Storage.SQLiteDirectory, cfg.Storage.PostgresConnStr, false)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}

	manager := gtfs.NewManager(s)
	manager.Timeout = time.Duration(cfg.Feed.Timeout)
	manager.MaxSize = cfg.Feed.MaxSize
	manager.Options = gtfs.Options{
		Logger:                 log,
		CaseInsensitiveHeaders: cfg.Feed.CaseInsensitiveHeaders,
	}

	// Loads are serialized so a stale feed is refreshed once.
	var mu sync.Mutex
	feed := func(ctx context.Context) (*gtfs.Feed, error) {
		mu.Lock()
		defer mu.Unlock()
		return manager.Load(ctx, cfg.Feed.Source, cfg.Feed.Headers, time.Now())
	}

	if _, err := feed(cmd.Context()); err != nil {
		log.Warn("initial feed load failed", zap.String("source", cfg.Feed.Source), zap.Error(err))
	}

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(feed, api.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Logger:         log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("serving", zap.String("addr", server.Addr), zap.String("source", cfg.Feed.Source))
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
