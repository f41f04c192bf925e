// Package pipeline chains discovery, capture, comparison, thumbnails and
// gallery rendering into the runs the CLI exposes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hairizuanbinnoorazman/shotdiff/capture"
	"github.com/hairizuanbinnoorazman/shotdiff/compare"
	"github.com/hairizuanbinnoorazman/shotdiff/config"
	"github.com/hairizuanbinnoorazman/shotdiff/gallery"
	"github.com/hairizuanbinnoorazman/shotdiff/logger"
	"github.com/hairizuanbinnoorazman/shotdiff/run"
	"github.com/hairizuanbinnoorazman/shotdiff/spider"
	"github.com/hairizuanbinnoorazman/shotdiff/thumbnail"
)

var (
	// ErrUnsafeDirectory is returned when asked to reset "", "." or "/".
	ErrUnsafeDirectory = errors.New("refusing to reset directory")

	// ErrIncomplete is returned when a planned shot was not captured or a
	// planned pair was not compared.
	ErrIncomplete = errors.New("run incomplete")
)

// Options holds settings that come from the application rather than the
// capture config.
type Options struct {
	Engine  capture.EngineOptions
	Workers int
	Retries int
	Spider  spider.Options
	// ForceSpider crawls even when paths or a fresh spider file exist.
	ForceSpider bool
}

// Report describes what a pipeline run produced.
type Report struct {
	RunID       uuid.UUID
	Directory   string
	Paths       int
	Capture     capture.Summary
	Results     []compare.PairResult
	MaxDiff     float64
	Thumbnails  int
	GalleryFile string
	Failures    []string
}

// EngineFactory builds the capture engine for a config.
type EngineFactory func(ctx context.Context, cfg *config.Config, opts capture.EngineOptions) (capture.Engine, error)

// Pipeline runs the stages for one capture config.
type Pipeline struct {
	cfg       *config.Config
	opts      Options
	runs      run.Store
	newEngine EngineFactory
	logger    logger.Logger
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithRunStore records every run in store.
func WithRunStore(store run.Store) Option {
	return func(p *Pipeline) { p.runs = store }
}

// WithEngineFactory replaces the engine chosen from the config's browser.
func WithEngineFactory(f EngineFactory) Option {
	return func(p *Pipeline) { p.newEngine = f }
}

// New creates a pipeline for cfg.
func New(cfg *config.Config, opts Options, log logger.Logger, options ...Option) *Pipeline {
	if cfg.NumThreads > 0 {
		opts.Workers = cfg.NumThreads
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	p := &Pipeline{
		cfg:       cfg,
		opts:      opts,
		newEngine: capture.NewEngine,
		logger:    log.WithField("config", cfg.Source()),
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// Paths returns the paths to capture, spidering the base domain if needed.
func (p *Pipeline) Paths(ctx context.Context) (config.Paths, error) {
	s := spider.New(p.opts.Spider, p.logger)
	paths, err := s.Discover(ctx, p.cfg, p.opts.ForceSpider)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no paths to capture")
	}
	return paths, nil
}

// Capture shoots paths on domains into dir.
func (p *Pipeline) Capture(ctx context.Context, dir string, paths config.Paths, domains config.Domains) (capture.Summary, error) {
	engine, err := p.newEngine(ctx, p.cfg, p.opts.Engine)
	if err != nil {
		return capture.Summary{}, err
	}
	defer engine.Close()

	shots := capture.Plan(dir, paths, domains, p.cfg.ScreenWidths, p.cfg.BeforeCapture)
	batches := capture.Batch(shots, p.cfg.ResizeOrReload != "reload")
	return capture.NewPool(engine, p.opts.Workers, p.opts.Retries, p.logger).Run(ctx, batches)
}

// Compare diffs every base/other pair in dir.
func (p *Pipeline) Compare(ctx context.Context, dir, base, other string) ([]compare.PairResult, error) {
	opts, err := p.compareOptions()
	if err != nil {
		return nil, err
	}
	pairs, err := compare.Pairs(dir, base, other)
	if err != nil {
		return nil, err
	}
	return compare.NewComparer(opts, p.opts.Workers, p.logger).Run(ctx, pairs)
}

func (p *Pipeline) compareOptions() (compare.Options, error) {
	fuzz, err := p.cfg.FuzzPercent()
	if err != nil {
		return compare.Options{}, err
	}
	highlight, err := config.ParseColor(p.cfg.HighlightColor)
	if err != nil {
		return compare.Options{}, err
	}
	return compare.Options{Fuzz: fuzz, Highlight: highlight}, nil
}

// Thumbnails writes gallery thumbnails for every shot in dir.
func (p *Pipeline) Thumbnails(ctx context.Context, dir string) (int, error) {
	g := thumbnail.NewGenerator(p.cfg.Gallery.ThumbWidth, p.cfg.Gallery.ThumbHeight, p.opts.Workers, p.logger)
	return g.Run(ctx, dir)
}

// Gallery renders gallery.html for the base/other pairs in dir.
func (p *Pipeline) Gallery(ctx context.Context, dir, base, other string) (*gallery.Gallery, string, error) {
	g, err := gallery.Build(dir, base, other, p.cfg.Threshold, p.cfg.Mode)
	if err != nil {
		return nil, "", err
	}
	file, err := g.Write(dir, p.cfg.Gallery.Template)
	if err != nil {
		return nil, "", err
	}
	p.logger.Info(ctx, "gallery generated", map[string]interface{}{
		"file":    file,
		"entries": len(g.Entries),
	})
	return g, file, nil
}

// Run captures both domains, compares them and renders the gallery. It
// returns an error wrapping gallery.ErrThresholdExceeded when a shot
// differs by more than the threshold and ErrIncomplete when shots or pairs
// are missing. The report is filled in either way.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	base, ok := p.cfg.BaseDomain()
	if !ok {
		return nil, config.ErrInvalid
	}
	other, err := p.cfg.CompareDomain()
	if err != nil {
		return nil, err
	}

	rec := p.begin(ctx, base.Label, other.Label)
	report, err := p.compareRun(ctx, p.cfg.Directory, base.Label, other.Label, func(paths config.Paths) (capture.Summary, error) {
		return p.Capture(ctx, p.cfg.Directory, paths, config.Domains{base, other})
	})
	rec.finish(ctx, report, err)
	return report, err
}

// compareRun resets dir, discovers paths, captures via shoot and then runs
// the comparison stages for base against other. Shots that failed still
// leave a gallery of the rest, but the run fails with ErrIncomplete.
func (p *Pipeline) compareRun(ctx context.Context, dir, base, other string, shoot func(config.Paths) (capture.Summary, error)) (*Report, error) {
	report := &Report{Directory: dir}

	paths, err := p.Paths(ctx)
	if err != nil {
		return report, err
	}
	report.Paths = len(paths)

	if err := ResetDir(dir); err != nil {
		return report, err
	}

	summary, shootErr := shoot(paths)
	report.Capture = summary
	if shootErr != nil {
		p.logger.Warn(ctx, "some shots failed", map[string]interface{}{
			"error":  shootErr.Error(),
			"failed": summary.Failed,
		})
	}
	if summary.Captured == 0 {
		if shootErr == nil {
			shootErr = errors.New("no shots planned")
		}
		return report, fmt.Errorf("nothing captured: %w", shootErr)
	}

	compareErr := p.compareInto(ctx, report, dir, base, other)
	galleryErr := p.render(ctx, report, dir, base, other)
	if galleryErr != nil && !errors.Is(galleryErr, gallery.ErrThresholdExceeded) {
		return report, galleryErr
	}

	planned := len(paths) * len(p.cfg.ScreenWidths)
	if summary.Failed > 0 || shootErr != nil || compareErr != nil || len(report.Results) < planned {
		incomplete := fmt.Errorf("%w: %d of %d pairs compared", ErrIncomplete, len(report.Results), planned)
		return report, errors.Join(incomplete, shootErr, compareErr, galleryErr)
	}
	return report, galleryErr
}

// compareInto diffs the pairs in dir and records the results in report.
// Pairs that fail are left out of the results and reported in the error.
func (p *Pipeline) compareInto(ctx context.Context, report *Report, dir, base, other string) error {
	results, err := p.Compare(ctx, dir, base, other)
	report.Results = results
	for _, r := range results {
		report.MaxDiff = max(report.MaxDiff, r.Diff)
	}
	if err != nil {
		p.logger.Warn(ctx, "some pairs could not be compared", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return err
}

// render writes thumbnails and the gallery for dir, then applies the
// threshold check.
func (p *Pipeline) render(ctx context.Context, report *Report, dir, base, other string) error {
	var err error
	if report.Thumbnails, err = p.Thumbnails(ctx, dir); err != nil {
		return err
	}

	g, file, err := p.Gallery(ctx, dir, base, other)
	if err != nil {
		return err
	}
	report.GalleryFile = file
	report.Failures = g.Failures()
	return g.CheckThreshold()
}

// ResetDir empties dir, creating it if needed.
func ResetDir(dir string) error {
	clean := filepath.Clean(dir)
	if dir == "" || clean == "." || clean == string(filepath.Separator) {
		return fmt.Errorf("%w %q", ErrUnsafeDirectory, dir)
	}
	if err := os.RemoveAll(clean); err != nil {
		return fmt.Errorf("reset %s: %w", dir, err)
	}
	return os.MkdirAll(clean, 0755)
}
