package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"modelboot/internal/config"
	"modelboot/internal/journal"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past startup runs from the journal",
		Example: "  modelboot history --journal ~/.local/state/modelboot.db\n" +
			"  modelboot history --run 2f1c... ",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("journal")
			if path == "" {
				return fmt.Errorf("--journal is required (or set MODELBOOT_JOURNAL)")
			}
			path, err := config.ExpandHome(path)
			if err != nil {
				return err
			}
			jnl, err := journal.Open(path)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer jnl.Close()

			if runID, _ := cmd.Flags().GetString("run"); runID != "" {
				steps, err := jnl.Steps(cmd.Context(), runID)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "STEP\tOUTCOME\tEXIT\tDURATION\tERROR")
				for _, s := range steps {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
						s.Name, s.Outcome, s.ExitCode,
						(time.Duration(s.DurationMS) * time.Millisecond).String(), s.Error)
				}
				return w.Flush()
			}

			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := jnl.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMODEL\tSTATE\tEXIT\tSTARTED\tFINISHED")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					r.ID, r.Model, r.State, r.ExitCode,
					r.StartedAt.Local().Format(time.RFC3339),
					r.FinishedAt.Local().Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("journal", os.Getenv("MODELBOOT_JOURNAL"), "Path to the SQLite run journal")
	cmd.Flags().String("run", "", "Show the step outcomes of one run id")
	cmd.Flags().Int("limit", 20, "Maximum number of runs to list")
	return cmd
}
