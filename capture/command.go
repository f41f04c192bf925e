package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// CommandEngine shells out to an external capture tool such as phantomjs:
//
//	<binary> <options...> <script> <url> <size> <file> <selector> <before_capture>
type CommandEngine struct {
	binary  string
	options []string
	script  string
	timeout time.Duration

	// run is swapped in tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewCommandEngine creates an engine that runs binary for every shot.
func NewCommandEngine(binary string, options []string, script string, timeout time.Duration) *CommandEngine {
	return &CommandEngine{
		binary:  binary,
		options: options,
		script:  script,
		timeout: timeout,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

// Args returns the argument list passed to the binary for shot.
func (e *CommandEngine) Args(shot Shot) []string {
	args := append([]string{}, e.options...)
	return append(args, e.script, shot.URL, shot.Size.String(), shot.File, shot.Selector, shot.BeforeCapture)
}

// Capture runs the external tool and checks that it wrote shot.File.
func (e *CommandEngine) Capture(ctx context.Context, shot Shot) error {
	if err := os.MkdirAll(filepath.Dir(shot.File), 0755); err != nil {
		return fmt.Errorf("failed to create shot directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := e.run(ctx, e.binary, e.Args(shot)...)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", e.binary, shot.URL, err, strings.TrimSpace(string(out)))
	}
	if info, err := os.Stat(shot.File); err != nil || info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrNoOutput, shot.File)
	}
	return nil
}

// Close is a no-op; each capture is its own process.
func (e *CommandEngine) Close() error {
	return nil
}
