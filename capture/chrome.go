package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/google/renameio/v2"
)

// ChromeOptions configures a ChromeEngine.
type ChromeOptions struct {
	// Flags are command-line switches such as --ignore-certificate-errors.
	Flags    []string
	Timeout  time.Duration
	ExecPath string
}

// ChromeEngine drives headless Chrome through the DevTools protocol. One
// browser process is shared; every page gets its own tab.
type ChromeEngine struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
}

// NewChromeEngine starts an allocator for headless Chrome. The browser is
// launched lazily on the first capture.
func NewChromeEngine(ctx context.Context, opts ChromeOptions) *ChromeEngine {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("hide-scrollbars", true))
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	for _, f := range opts.Flags {
		name, value := parseFlag(f)
		allocOpts = append(allocOpts, chromedp.Flag(name, value))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	return &ChromeEngine{
		allocCtx: allocCtx,
		cancel:   cancel,
		timeout:  opts.Timeout,
	}
}

// parseFlag turns "--name=value" into ("name", "value") and "--name" into ("name", true).
func parseFlag(f string) (string, interface{}) {
	f = strings.TrimLeft(f, "-")
	if name, value, ok := strings.Cut(f, "="); ok {
		return name, value
	}
	return f, true
}

// Capture loads shot.URL in a fresh tab and writes a PNG to shot.File.
func (e *ChromeEngine) Capture(ctx context.Context, shot Shot) error {
	return e.CaptureSizes(ctx, []Shot{shot})
}

// CaptureSizes loads the page once and resizes the viewport for each shot.
func (e *ChromeEngine) CaptureSizes(ctx context.Context, shots []Shot) error {
	if len(shots) == 0 {
		return nil
	}

	tabCtx, cancelTab := chromedp.NewContext(e.allocCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, e.timeout*time.Duration(len(shots)))
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	first := shots[0]
	tasks := chromedp.Tasks{
		viewport(first),
		chromedp.Navigate(first.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if first.BeforeCapture != "" {
		script, err := os.ReadFile(first.BeforeCapture)
		if err != nil {
			return fmt.Errorf("read before_capture script: %w", err)
		}
		tasks = append(tasks, chromedp.Evaluate(string(script), nil))
	}
	if err := chromedp.Run(tabCtx, tasks); err != nil {
		return fmt.Errorf("load %s: %w", first.URL, err)
	}

	for _, shot := range shots {
		var buf []byte
		var shoot chromedp.Action = chromedp.FullScreenshot(&buf, 100)
		if shot.Selector != "" {
			shoot = chromedp.Screenshot(shot.Selector, &buf, chromedp.NodeVisible, chromedp.ByQuery)
		}
		if err := chromedp.Run(tabCtx, viewport(shot), shoot); err != nil {
			return fmt.Errorf("screenshot %s at %s: %w", shot.URL, shot.Size, err)
		}
		if err := writeShot(shot.File, buf); err != nil {
			return err
		}
	}
	return nil
}

func viewport(shot Shot) chromedp.Action {
	height := shot.Size.Height
	if height == 0 {
		height = DefaultHeight
	}
	return emulation.SetDeviceMetricsOverride(int64(shot.Size.Width), int64(height), 1, false)
}

// Close shuts the browser down.
func (e *ChromeEngine) Close() error {
	e.cancel()
	return nil
}

func writeShot(file string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: %s", ErrNoOutput, file)
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return fmt.Errorf("failed to create shot directory: %w", err)
	}
	if err := renameio.WriteFile(file, data, 0644); err != nil {
		return fmt.Errorf("failed to write shot: %w", err)
	}
	return nil
}
