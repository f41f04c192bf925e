package main

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/hairizuanbinnoorazman/shotdiff/compare"
	"github.com/hairizuanbinnoorazman/shotdiff/run"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded comparison runs",
	}
	cmd.AddCommand(newRunsListCmd())
	cmd.AddCommand(newRunsShowCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := loadApp()
			if err != nil {
				return err
			}
			db, closeDB, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			runs, err := run.NewSQLStore(db, a.logger).List(ctx, limit, offset)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if flagJSON {
				printJSON(runs)
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.ID.String(),
					string(r.Status),
					r.BaseDomain + " / " + r.CompareDomain,
					compare.FormatDiff(r.MaxDiff) + "%",
					formatTime(r.StartedAt),
					r.ConfigPath,
				})
			}
			printTable([]string{"ID", "STATUS", "DOMAINS", "MAX DIFF", "STARTED", "CONFIG"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and its per-shot results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run ID %q: %w", args[0], err)
			}

			ctx, cancel := signalContext()
			defer cancel()

			a, err := loadApp()
			if err != nil {
				return err
			}
			db, closeDB, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			store := run.NewSQLStore(db, a.logger)
			r, err := store.GetByID(ctx, id)
			if err != nil {
				return err
			}
			results, err := store.ListResults(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to list results: %w", err)
			}

			if flagJSON {
				printJSON(struct {
					*run.Run
					Results []*run.Result `json:"results"`
				}{r, results})
				return nil
			}

			printTable([]string{"FIELD", "VALUE"}, [][]string{
				{"id", r.ID.String()},
				{"status", string(r.Status)},
				{"config", r.ConfigPath},
				{"domains", r.BaseDomain + " / " + r.CompareDomain},
				{"directory", r.Directory},
				{"mode", r.Mode},
				{"threshold", compare.FormatDiff(r.Threshold) + "%"},
				{"max diff", compare.FormatDiff(r.MaxDiff) + "%"},
				{"started", formatTime(r.StartedAt)},
				{"completed", formatTime(r.CompletedAt)},
				{"duration", r.Duration().String()},
				{"message", r.Message},
			})

			if len(results) == 0 {
				return nil
			}
			fmt.Println()
			rows := make([][]string, 0, len(results))
			for _, res := range results {
				rows = append(rows, []string{res.Label, res.Size, compare.FormatDiff(res.Diff) + "%", strconv.FormatBool(res.Passed)})
			}
			printTable([]string{"LABEL", "SIZE", "DIFF", "PASSED"}, rows)
			return nil
		},
	}
}
