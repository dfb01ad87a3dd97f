package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func buildRankCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "List open tasks by priority",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			p, cl, err := a.buildPipeline(ctx, cmd.ErrOrStderr(), buildOptions{})
			defer cl.Close()
			if err != nil {
				return err
			}
			ranked, err := p.Rank(ctx)
			if err != nil {
				return err
			}
			if limit > 0 && len(ranked) > limit {
				ranked = ranked[:limit]
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for i, r := range ranked {
				due := "-"
				if r.Task.HasDeadline() {
					due = r.Task.Deadline.Format("Mon Jan 02 15:04")
				}
				fmt.Fprintf(tw, "%d\t%.3f\t%s\t%s\t%dm\n", i+1, r.Score, r.Task.Title, due, r.Task.EstimatedMinutes)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n tasks")
	return cmd
}
