package main

import (
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if flagJSON {
				printJSON(map[string]string{
					"version": Version,
					"commit":  Commit,
					"date":    BuildDate,
					"go":      runtime.Version(),
				})
				return
			}
			printMessage("shotdiff %s (commit %s, built %s, %s)", Version, Commit, BuildDate, runtime.Version())
		},
	}
}
