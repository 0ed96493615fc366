package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"icpscout/internal/domain"
	"icpscout/internal/repository/history"
)

func newRunsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs from the history database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.History.Enabled {
				return eris.New("run history is disabled (ICPSCOUT_HISTORY_ENABLED=false)")
			}
			db, err := history.Open(&a.cfg.History)
			if err != nil {
				return eris.Wrap(err, "opening run history")
			}
			defer db.Close()

			runs, err := history.NewRunRepo(db).ListRuns(cmd.Context(), limit)
			if err != nil {
				return eris.Wrap(err, "listing runs")
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}

func printRuns(out io.Writer, runs []domain.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs recorded")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tMODE\tCOMPANIES\tRESEARCHED\tFAILED\tHIGH")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.ResearchMode,
			r.Identities, r.Researched, r.Failed, r.HighFit)
	}
	_ = tw.Flush()
}
