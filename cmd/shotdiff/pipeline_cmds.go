package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/hairizuanbinnoorazman/shotdiff/compare"
	"github.com/hairizuanbinnoorazman/shotdiff/config"
	"github.com/hairizuanbinnoorazman/shotdiff/pipeline"
	"github.com/spf13/cobra"
)

// signalContext is cancelled on SIGINT or SIGTERM so workers stop early.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// withPipeline loads settings and config and hands a pipeline to fn.
func withPipeline(path string, record, forceSpider bool, fn func(ctx context.Context, a *app, cfg *config.Config, p *pipeline.Pipeline) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := loadApp()
	if err != nil {
		return err
	}
	cfg, err := a.loadConfig(path)
	if err != nil {
		return err
	}

	if !record {
		return fn(ctx, a, cfg, a.pipeline(cfg, nil, forceSpider))
	}
	store, closeStore, err := a.runStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(ctx, a, cfg, a.pipeline(cfg, store, forceSpider))
}

func printReport(r *pipeline.Report) {
	if r == nil {
		return
	}
	if flagJSON {
		printJSON(r)
		return
	}

	rows := make([][]string, 0, len(r.Results))
	for _, res := range r.Results {
		rows = append(rows, []string{res.Label, res.Size, compare.FormatDiff(res.Diff) + "%"})
	}
	if len(rows) > 0 {
		printTable([]string{"LABEL", "SIZE", "DIFF"}, rows)
	}
	printMessage("paths: %d  captured: %d  failed: %d  max diff: %s%%",
		r.Paths, r.Capture.Captured, r.Capture.Failed, compare.FormatDiff(r.MaxDiff))
	if r.GalleryFile != "" {
		printMessage("gallery: %s", r.GalleryFile)
	}
	if r.RunID != uuid.Nil {
		printMessage("run: %s", r.RunID)
	}
}

func newCaptureCmd() *cobra.Command {
	var forceSpider bool

	cmd := &cobra.Command{
		Use:   "capture <config.yaml>",
		Short: "Capture, compare and build the gallery for both domains",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(args[0], true, forceSpider, func(ctx context.Context, a *app, cfg *config.Config, p *pipeline.Pipeline) error {
				report, err := p.Run(ctx)
				printReport(report)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&forceSpider, "spider", false, "crawl for paths even when a fresh spider file exists")
	return cmd
}

func newSpiderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "spider <config.yaml>",
		Short: "Crawl the base domain and write the spider file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(args[0], false, true, func(ctx context.Context, a *app, cfg *config.Config, p *pipeline.Pipeline) error {
				paths, err := p.Paths(ctx)
				if err != nil {
					return err
				}
				if flagJSON {
					printJSON(paths)
					return nil
				}
				rows := make([][]string, 0, len(paths))
				for _, path := range paths {
					rows = append(rows, []string{path.Label, path.Path})
				}
				printTable([]string{"LABEL", "PATH"}, rows)
				printMessage("%d paths written to %s", len(paths), cfg.SpiderFile)
				return nil
			})
		},
	}
}

func newCaptureImagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capture-images <config.yaml>",
		Short: "Only take screenshots of every domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(args[0], false, false, func(ctx context.Context, a *app, cfg *config.Config, p *pipeline.Pipeline) error {
				paths, err := p.Paths(ctx)
				if err != nil {
					return err
				}
				if err := pipeline.ResetDir(cfg.Directory); err != nil {
					return err
				}
				summary, err := p.Capture(ctx, cfg.Directory, paths, cfg.Domains)
				printMessage("captured: %d  failed: %d", summary.Captured, summary.Failed)
				return err
			})
		},
	}
}

// comparedDomains returns the labels compared in directory: the two
// configured domains, or history against the base domain with --latest.
func comparedDomains(cfg *config.Config, latest bool) (string, string, error) {
	base, ok := cfg.BaseDomain()
	if !ok {
		return "", "", config.ErrInvalid
	}
	if latest {
		return pipeline.HistoryLabel, base.Label, nil
	}
	other, err := cfg.CompareDomain()
	if err != nil {
		return "", "", err
	}
	return base.Label, other.Label, nil
}

func newCompareImagesCmd() *cobra.Command {
	var latest bool

	cmd := &cobra.Command{
		Use:   "compare-images <config.yaml>",
		Short: "Diff the shots already in the output directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(args[0], false, false, func(ctx context.Context, a *app, cfg *config.Config, p *pipeline.Pipeline) error {
				base, other, err := comparedDomains(cfg, latest)
				if err != nil {
					return err
				}
				results, err := p.Compare(ctx, cfg.Directory, base, other)
				printReport(&pipeline.Report{Directory: cfg.Directory, Results: results})
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&latest, "latest", false, "compare against history shots")
	return cmd
}

func newThumbnailsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-thumbnails <config.yaml>",
		Short: "Write gallery thumbnails for every shot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(args[0], false, false, func(ctx context.Context, a *app, cfg *config.Config, p *pipeline.Pipeline) error {
				n, err := p.Thumbnails(ctx, cfg.Directory)
				if err != nil {
					return err
				}
				printMessage("%d thumbnails written", n)
				return nil
			})
		},
	}
}

func newGalleryCmd() *cobra.Command {
	var latest bool

	cmd := &cobra.Command{
		Use:   "generate-gallery <config.yaml>",
		Short: "Render gallery.html and check the threshold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(args[0], false, false, func(ctx context.Context, a *app, cfg *config.Config, p *pipeline.Pipeline) error {
				base, other, err := comparedDomains(cfg, latest)
				if err != nil {
					return err
				}
				g, file, err := p.Gallery(ctx, cfg.Directory, base, other)
				if err != nil {
					return err
				}
				printMessage("gallery: %s", file)
				return g.CheckThreshold()
			})
		},
	}

	cmd.Flags().BoolVar(&latest, "latest", false, "label the comparison as history against the base domain")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <config.yaml>",
		Short: "Capture the base domain into history_dir as the reference set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(args[0], false, false, func(ctx context.Context, a *app, cfg *config.Config, p *pipeline.Pipeline) error {
				report, err := p.History(ctx)
				printReport(report)
				return err
			})
		},
	}
}

func newLatestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest <config.yaml>",
		Short: "Capture the base domain and compare it with history_dir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(args[0], true, false, func(ctx context.Context, a *app, cfg *config.Config, p *pipeline.Pipeline) error {
				report, err := p.Latest(ctx)
				printReport(report)
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("%w (run `shotdiff history %s` first)", err, args[0])
				}
				return err
			})
		},
	}
}
