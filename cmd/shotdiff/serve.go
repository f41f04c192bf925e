package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hairizuanbinnoorazman/shotdiff/cmd/shotdiff/handlers"
	"github.com/hairizuanbinnoorazman/shotdiff/storage"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		dir       string
		published bool
	)

	cmd := &cobra.Command{
		Use:   "serve [config.yaml]",
		Short: "Serve the gallery and the run history over HTTP",
		Long: `Serve the output directory (gallery.html, shots and diffs) and a JSON API
over recorded runs. With a capture config the config's directory is served.
With --published the files uploaded by publish are served from the
configured storage under /published/.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(args, dir, published)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory to serve (overrides the config's directory)")
	cmd.Flags().BoolVar(&published, "published", false, "also serve published output from the configured storage")
	return cmd
}

func runServer(args []string, dir string, published bool) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := loadApp()
	if err != nil {
		return err
	}
	log := a.logger

	if dir == "" && len(args) == 1 {
		cfg, err := a.loadConfig(args[0])
		if err != nil {
			return err
		}
		dir = cfg.Directory
	}

	store, closeStore, err := a.runStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var blobs storage.BlobStorage
	if published {
		blobs, err = storage.New(ctx, a.settings.StorageConfig())
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
	}

	router := handlers.NewRouter(store, blobs, dir, log)

	addr := fmt.Sprintf("%s:%d", a.settings.Server.Host, a.settings.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  a.settings.Server.ReadTimeout,
		WriteTimeout: a.settings.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "server listening", map[string]interface{}{
			"address":   addr,
			"directory": dir,
			"version":   Version,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down server", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info(context.Background(), "server stopped", nil)
	return nil
}
