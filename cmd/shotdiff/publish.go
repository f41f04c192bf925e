package main

import (
	"fmt"

	"github.com/hairizuanbinnoorazman/shotdiff/storage"
	"github.com/spf13/cobra"
)

func newPublishCmd() *cobra.Command {
	var (
		prefix string
		prune  bool
	)

	cmd := &cobra.Command{
		Use:   "publish <config.yaml>",
		Short: "Upload the output directory to the configured storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := loadApp()
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig(args[0])
			if err != nil {
				return err
			}

			store, err := storage.New(ctx, a.settings.StorageConfig())
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}

			out, err := storage.Publish(ctx, store, cfg.Directory, prefix, a.settings.Capture.Workers, a.logger)
			if err != nil {
				return err
			}
			if prune {
				out.Pruned, err = storage.Prune(ctx, store, prefix, out.Keys, a.logger)
				if err != nil {
					return err
				}
			}

			if flagJSON {
				printJSON(out)
				return nil
			}
			printMessage("published %d files (%d bytes)", out.Files, out.Bytes)
			if prune {
				printMessage("pruned %d stale files", out.Pruned)
			}
			if out.GalleryURL != "" {
				printMessage("gallery: %s", out.GalleryURL)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "directory inside the storage root, e.g. a build number")
	cmd.Flags().BoolVar(&prune, "prune", false, "delete files under the prefix that this publish did not upload")
	return cmd
}
