// Package capture takes screenshots of every path on every domain at every
// configured screen size.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hairizuanbinnoorazman/shotdiff/config"
)

var (
	// ErrNoSnapScript is returned when a command engine has no capture script configured.
	ErrNoSnapScript = errors.New("snap script is required for command engines")

	// ErrNoOutput is returned when an engine exits cleanly without writing the shot.
	ErrNoOutput = errors.New("engine produced no screenshot")
)

// DefaultHeight is the viewport height used when a screen width has no height.
const DefaultHeight = 1500

// Shot is a single screenshot to take.
type Shot struct {
	Label         string
	Domain        string
	URL           string
	Size          config.ScreenSize
	Selector      string
	BeforeCapture string
	File          string
}

// Engine captures screenshots.
type Engine interface {
	Capture(ctx context.Context, shot Shot) error
	Close() error
}

// Resizer is implemented by engines that can load a page once and shoot it
// at several sizes. All shots passed to CaptureSizes share a URL.
type Resizer interface {
	CaptureSizes(ctx context.Context, shots []Shot) error
}

// EngineOptions carries settings that do not live in the capture config.
type EngineOptions struct {
	// SnapScript is the script handed to command engines such as phantomjs.
	SnapScript string
	// Timeout bounds a single capture.
	Timeout time.Duration
	// ChromePath overrides the Chrome binary chromedp starts.
	ChromePath string
}

// NewEngine picks an engine for cfg.Browser. Chrome variants use chromedp;
// anything else is run as an external command.
func NewEngine(ctx context.Context, cfg *config.Config, opts EngineOptions) (Engine, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	args := strings.Fields(cfg.PhantomJSOptions)

	switch strings.ToLower(cfg.Browser) {
	case "chrome", "chromium", "headless_chrome":
		return NewChromeEngine(ctx, ChromeOptions{
			Flags:    args,
			Timeout:  opts.Timeout,
			ExecPath: opts.ChromePath,
		}), nil
	case "":
		return nil, fmt.Errorf("no browser configured")
	default:
		if opts.SnapScript == "" {
			return nil, ErrNoSnapScript
		}
		return NewCommandEngine(cfg.Browser, args, opts.SnapScript, opts.Timeout), nil
	}
}
