package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hairizuanbinnoorazman/shotdiff/gallery"
	"github.com/hairizuanbinnoorazman/shotdiff/pipeline"
	"github.com/spf13/cobra"
)

var (
	// Version is the application version (set during build).
	Version = "dev"

	// Commit is the git commit hash (set during build).
	Commit = "unknown"

	// BuildDate is the build date (set during build).
	BuildDate = "unknown"
)

// Exit codes. A run that completes but exceeds the threshold is told apart
// from one that could not run at all.
const (
	exitError     = 1
	exitThreshold = 2
)

var (
	flagSettings string
	flagLogLevel string
	flagJSON     bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "shotdiff",
		Short: "Visual regression testing by screenshot comparison",
		Long: `shotdiff captures screenshots of the same paths on two domains at several
screen sizes, compares them pixel by pixel and renders an HTML gallery of
the differences.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flagSettings, "settings", "s", "", "application settings file (default ./shotdiff.yaml)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override the configured log level")
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "print command output as JSON")

	root.AddCommand(newValidateCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newInfoCmd())
	root.AddCommand(newSpiderCmd())
	root.AddCommand(newCaptureCmd())
	root.AddCommand(newCaptureImagesCmd())
	root.AddCommand(newCompareImagesCmd())
	root.AddCommand(newThumbnailsCmd())
	root.AddCommand(newGalleryCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newLatestCmd())
	root.AddCommand(newPublishCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newRunsCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func exitCode(err error) int {
	if errors.Is(err, pipeline.ErrIncomplete) {
		return exitError
	}
	if errors.Is(err, gallery.ErrThresholdExceeded) {
		return exitThreshold
	}
	return exitError
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
