package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/harrisonrobin/studyplan/pkg/config"
	"github.com/harrisonrobin/studyplan/pkg/estimate"
	"github.com/harrisonrobin/studyplan/pkg/history"
	"github.com/harrisonrobin/studyplan/pkg/metrics"
	"github.com/harrisonrobin/studyplan/pkg/model"
	"github.com/harrisonrobin/studyplan/pkg/overdue"
	"github.com/spf13/cobra"
)

func buildSessionCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Record and list finished focus sessions",
	}
	cmd.AddCommand(buildSessionAddCommand(a))
	cmd.AddCommand(buildSessionListCommand(a))
	return cmd
}

func buildSessionAddCommand(a *app) *cobra.Command {
	var (
		course   string
		category string
		minutes  int
		blockID  string
		ended    string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a finished session and update the learned estimate",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cat, err := model.ParseCategory(category)
			if err != nil {
				return err
			}
			sess := history.Session{CourseID: course, Category: cat, Minutes: minutes}
			if ended != "" {
				if sess.EndedAt, err = time.Parse(time.RFC3339, ended); err != nil {
					return fmt.Errorf("--ended must be RFC 3339: %w", err)
				}
			}

			store, err := a.historyStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			stored, learned, err := store.Record(ctx, sess, a.cfg.Learner.Alpha)
			if err != nil {
				return err
			}
			if blockID != "" {
				if err := completeBlock(blockID); err != nil {
					return err
				}
			}

			m := metrics.NewCollector()
			m.RecordSession()
			if err := m.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
				a.log.Warn().Err(err).Msg("could not write metrics textfile")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "recorded %d min of %s; estimate for %s is now %.0f min\n",
				stored.Minutes, stored.Category, stored.Key(), learned[stored.Key()])
			return nil
		},
	}
	cmd.Flags().StringVar(&course, "course", "", "course the session belonged to")
	cmd.Flags().StringVar(&category, "category", "", fmt.Sprintf("work category %v", model.Categories))
	cmd.Flags().IntVar(&minutes, "minutes", 0, "focused minutes")
	cmd.Flags().StringVar(&blockID, "block", "", "planned block this session completed")
	cmd.Flags().StringVar(&ended, "ended", "", "end time in RFC 3339 (default now)")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("minutes")
	return cmd
}

func completeBlock(blockID string) error {
	path, err := config.StatePath(overdue.FileName())
	if err != nil {
		return err
	}
	table, err := overdue.NewTable(path)
	if err != nil {
		return err
	}
	if err := table.Complete(blockID); err != nil {
		if errors.Is(err, overdue.ErrUnknownBlock) {
			return fmt.Errorf("block %s is not in the current plan", blockID)
		}
		return err
	}
	return table.Save()
}

func buildSessionListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			store, err := a.historyStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.Sessions(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, s := range sessions {
				fmt.Fprintf(tw, "%s\t%s\t%dm\n", s.EndedAt.Local().Format("2006-01-02 15:04"), s.Key(), s.Minutes)
			}
			return tw.Flush()
		},
	}
}

func buildEstimatesCommand(a *app) *cobra.Command {
	var relearn bool
	cmd := &cobra.Command{
		Use:   "estimates",
		Short: "Show learned time estimates per course and category",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			store, err := a.historyStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			var learned map[model.EstimateKey]float64
			if relearn {
				learned, err = store.Relearn(ctx, a.cfg.Learner.Alpha)
			} else {
				learned, err = store.LoadEstimates(ctx)
			}
			if err != nil {
				return err
			}

			keys := make([]model.EstimateKey, 0, len(learned))
			for k := range learned {
				keys = append(keys, k)
			}
			sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, k := range keys {
				fmt.Fprintf(tw, "%s\t%.1f min\n", k, learned[k])
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&relearn, "relearn", false, "rebuild the estimates from every recorded session")
	return cmd
}

func buildTemplatesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "templates [category]",
		Short: "Show the default step breakdown per category",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cats := model.Categories
			if len(args) == 1 {
				c, err := model.ParseCategory(args[0])
				if err != nil {
					return err
				}
				cats = []model.Category{c}
			}
			out := cmd.OutOrStdout()
			for _, c := range cats {
				fmt.Fprintf(out, "%s (%d min)\n", c, estimate.TemplateMinutes(c))
				for _, s := range estimate.Steps(c) {
					fmt.Fprintf(out, "  - %s: %d min\n", s.Title, s.Minutes)
				}
			}
			return nil
		},
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
