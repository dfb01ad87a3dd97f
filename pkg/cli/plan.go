package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/harrisonrobin/studyplan/pkg/model"
	"github.com/harrisonrobin/studyplan/pkg/pipeline"
	"github.com/harrisonrobin/studyplan/pkg/planner"
	"github.com/spf13/cobra"
)

type planFlags struct {
	recover bool
	export  bool
	json    bool
	stdin   bool
}

func buildPlanCommand(a *app) *cobra.Command {
	var f planFlags
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan study blocks for every open task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, a, f)
		},
	}
	cmd.Flags().BoolVar(&f.recover, "recover", false, "add the minutes of missed blocks back before planning")
	cmd.Flags().BoolVar(&f.export, "export", false, "write the plan to Google Calendar (default from config)")
	cmd.Flags().BoolVar(&f.json, "json", false, "print the plan as JSON")
	cmd.Flags().BoolVar(&f.stdin, "stdin", false, "read a Taskwarrior JSON export from stdin instead of the configured source")
	return cmd
}

func buildRecoverCommand(a *app) *cobra.Command {
	var f planFlags
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Re-plan after missed blocks (same as plan --recover)",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.recover = true
			return runPlan(cmd, a, f)
		},
	}
	cmd.Flags().BoolVar(&f.export, "export", false, "write the plan to Google Calendar (default from config)")
	cmd.Flags().BoolVar(&f.json, "json", false, "print the plan as JSON")
	cmd.Flags().BoolVar(&f.stdin, "stdin", false, "read a Taskwarrior JSON export from stdin instead of the configured source")
	return cmd
}

func runPlan(cmd *cobra.Command, a *app, f planFlags) error {
	export := f.export || a.cfg.Export.Enabled
	opts := buildOptions{export: export}
	if f.stdin {
		opts.stdin = cmd.InOrStdin()
	}
	out, err := planOnce(commandContext(cmd), a, cmd.ErrOrStderr(), opts, f.recover)
	if err != nil {
		return err
	}
	if f.json {
		return writePlanJSON(cmd.OutOrStdout(), out)
	}
	return writePlan(cmd.OutOrStdout(), out)
}

func planOnce(ctx context.Context, a *app, prompt io.Writer, opts buildOptions, recovering bool) (pipeline.Outcome, error) {
	p, cl, err := a.buildPipeline(ctx, prompt, opts)
	defer func() {
		if cerr := cl.Close(); cerr != nil {
			a.log.Warn().Err(cerr).Msg("close failed")
		}
	}()
	if err != nil {
		return pipeline.Outcome{}, err
	}

	out, err := p.Run(ctx, pipeline.Request{Recover: recovering, Export: opts.export})
	if err != nil {
		return pipeline.Outcome{}, err
	}
	if out.ExportErr != nil {
		a.log.Warn().Err(out.ExportErr).Msg("some blocks were not exported")
	}
	return out, nil
}

type planJSON struct {
	Blocks     []blockJSON         `json:"blocks"`
	Shortfalls []planner.Shortfall `json:"shortfalls"`
	Missed     []model.Block       `json:"missed,omitempty"`
}

type blockJSON struct {
	model.Block
	Title    string `json:"title"`
	CourseID string `json:"course_id,omitempty"`
	Minutes  int    `json:"minutes"`
}

func writePlanJSON(w io.Writer, out pipeline.Outcome) error {
	titles := taskIndex(out.Tasks)
	doc := planJSON{
		Blocks:     make([]blockJSON, 0, len(out.Blocks)),
		Shortfalls: out.Shortfalls,
		Missed:     out.Missed,
	}
	if doc.Shortfalls == nil {
		doc.Shortfalls = []planner.Shortfall{}
	}
	for _, b := range out.Blocks {
		t := titles[b.TaskID]
		doc.Blocks = append(doc.Blocks, blockJSON{Block: b, Title: t.Title, CourseID: t.CourseID, Minutes: b.Minutes()})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func writePlan(w io.Writer, out pipeline.Outcome) error {
	tasks := taskIndex(out.Tasks)
	blocks := append([]model.Block(nil), out.Blocks...)
	sortByStart(blocks)

	fmt.Fprintf(w, "%d blocks, %d min planned for %d tasks\n", len(blocks), out.TotalMinutes(), len(out.Tasks))
	if len(out.Missed) > 0 {
		fmt.Fprintf(w, "%d missed blocks re-planned\n", len(out.Missed))
	}
	if len(blocks) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, b := range blocks {
			t := tasks[b.TaskID]
			course := t.CourseID
			if course == "" {
				course = "-"
			}
			fmt.Fprintf(tw, "%s\t%s-%s\t%s\t%s\t%dm\n",
				b.Start.Format("Mon Jan 02"), b.Start.Format("15:04"), b.End.Format("15:04"),
				t.Title, course, b.Minutes())
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	for _, s := range out.Shortfalls {
		fmt.Fprintf(w, "! %s: %d of %d min could not be placed\n", tasks[s.TaskID].Title, s.MissingMinutes(), s.RequestedMinutes)
	}
	if out.Export != nil {
		fmt.Fprintf(w, "calendar: %d created, %d updated, %d deleted, %d failed\n",
			out.Export.Created, out.Export.Updated, out.Export.Deleted, out.Export.Failed)
	}
	return nil
}

func taskIndex(tasks []model.Task) map[string]model.Task {
	m := make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		m[t.ID] = t
	}
	return m
}
