package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"naskahlokal/config"
	"naskahlokal/config/database"
	docHandler "naskahlokal/internal/document"
	"naskahlokal/internal/document/catalog"
	"naskahlokal/internal/document/repository"
	"naskahlokal/internal/document/service"
	"naskahlokal/pkg/logger"
	"naskahlokal/router"
	"naskahlokal/socket"
)

const shutdownTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:           "naskah",
	Short:         "Local rich-text document editor backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the editor bridge and document API",
	Long: `Start the HTTP server. The editor page connects to /ws, the document
API lives under /api/documents and Prometheus metrics under /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, recentCmd, exportCmd, importCmd)
	exportCmd.Flags().StringP("output", "o", "", "write to this file instead of <slug>.json")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration, starts logging and opens the document store.
func setup(ctx context.Context) (config.Config, repository.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, err
	}
	logger.Init(cfg.LogLevel)
	store, err := database.OpenStore(ctx, cfg)
	if err != nil {
		return cfg, nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	return cfg, store, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, store, err := setup(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer store.Close()

	hub := socket.NewHub()
	cat := catalog.New(store)
	svc := service.NewSessionService(store, cat, hub,
		service.WithAutosaveInterval(cfg.AutosaveInterval),
		service.WithOnClosed(func() { hub.Notify(service.NoticeInfo, "Document closed") }),
	)
	defer svc.Shutdown()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router.Setup(hub, docHandler.NewDocumentHandler(svc, cat)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Sugar.Infof("Backend listening on %s (store: %s)", cfg.Addr, cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Sugar.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
