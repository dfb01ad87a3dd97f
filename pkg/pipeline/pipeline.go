// Package pipeline runs a complete planning pass: it gathers tasks and busy
// time from the configured collaborators, plans, and records the result.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/harrisonrobin/studyplan/pkg/estimate"
	"github.com/harrisonrobin/studyplan/pkg/google"
	"github.com/harrisonrobin/studyplan/pkg/metrics"
	"github.com/harrisonrobin/studyplan/pkg/model"
	"github.com/harrisonrobin/studyplan/pkg/overdue"
	"github.com/harrisonrobin/studyplan/pkg/planner"
	"github.com/harrisonrobin/studyplan/pkg/priority"
	"github.com/rs/zerolog"
)

// DefaultLookahead bounds the busy query when no task has a future deadline.
const DefaultLookahead = 14 * 24 * time.Hour

type TaskSource interface {
	Tasks(ctx context.Context) ([]model.Task, error)
}

type BusyProvider interface {
	Name() string
	Busy(ctx context.Context, from, to time.Time) ([]model.Interval, error)
}

type EstimateStore interface {
	LoadEstimates(ctx context.Context) (map[model.EstimateKey]float64, error)
}

type Exporter interface {
	Export(ctx context.Context, blocks []model.Block, tasks []model.Task, stale map[string]string) (google.ExportReport, error)
	MarkMissed(ctx context.Context, eventID, summary string) error
}

// Pipeline wires the collaborators. Only Tasks and Constraints are required.
type Pipeline struct {
	Tasks       TaskSource
	Busy        []BusyProvider
	Estimates   EstimateStore
	Table       *overdue.Table
	Exporter    Exporter
	Metrics     *metrics.Collector
	MetricsPath string
	Engine      *planner.Engine
	// Constraints turns the fetched busy intervals into planner constraints.
	Constraints func(busy []model.Interval) (model.Constraints, error)
	Weights     model.PriorityWeights
	Now         func() time.Time
	Log         zerolog.Logger
}

type Request struct {
	// Recover adds the minutes of missed blocks back before planning.
	Recover bool
	// Export writes the plan to the calendar when an Exporter is set.
	Export bool
}

// Outcome is the result of Run.
type Outcome struct {
	planner.Result
	// Tasks are the active tasks as planned, with blended efforts.
	Tasks []model.Task
	// Missed are the blocks whose minutes were re-planned.
	Missed []model.Block
	// NewlyMissed are blocks detected as missed during this run.
	NewlyMissed []model.Block
	BusyCount   int
	Export      *google.ExportReport
	// ExportErr is set when some blocks could not be exported; the plan
	// itself is still valid.
	ExportErr error
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p *Pipeline) engine() *planner.Engine {
	if p.Engine == nil {
		return &planner.Engine{Now: p.now}
	}
	return p.Engine
}

// ActiveTasks loads tasks, drops completed ones and blends their efforts with
// learned estimates.
func (p *Pipeline) ActiveTasks(ctx context.Context) ([]model.Task, error) {
	if p.Tasks == nil {
		return nil, fmt.Errorf("no task source configured")
	}
	all, err := p.Tasks.Tasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	var learned map[model.EstimateKey]float64
	if p.Estimates != nil {
		learned, err = p.Estimates.LoadEstimates(ctx)
		if err != nil {
			p.Log.Warn().Err(err).Msg("could not load learned estimates, using nominal efforts")
			learned = nil
		}
	}

	active := make([]model.Task, 0, len(all))
	for _, t := range all {
		if t.Status == model.StatusCompleted {
			continue
		}
		t.EstimatedMinutes = estimate.EffortFor(t.EstimatedMinutes, learned, t.Key())
		active = append(active, t)
	}
	return active, nil
}

// Rank orders the active tasks by priority.
func (p *Pipeline) Rank(ctx context.Context) ([]priority.Ranked, error) {
	tasks, err := p.ActiveTasks(ctx)
	if err != nil {
		return nil, err
	}
	return priority.Rank(tasks, p.Weights, p.now()), nil
}

// BusyWindow is the span busy intervals are fetched for: from now to the
// latest deadline, or DefaultLookahead when no deadline lies ahead.
func BusyWindow(tasks []model.Task, now time.Time) (time.Time, time.Time) {
	to := now.Add(DefaultLookahead)
	var latest time.Time
	for _, t := range tasks {
		if t.HasDeadline() && t.Deadline.After(latest) {
			latest = *t.Deadline
		}
	}
	if latest.After(now) {
		to = latest
	}
	return now, to
}

func (p *Pipeline) fetchBusy(ctx context.Context, from, to time.Time) []model.Interval {
	var busy []model.Interval
	for _, provider := range p.Busy {
		intervals, err := provider.Busy(ctx, from, to)
		if err != nil {
			p.Log.Warn().Err(err).Str("provider", provider.Name()).Msg("busy intervals unavailable, planning without them")
			if p.Metrics != nil {
				p.Metrics.RecordBusyFailure(provider.Name())
			}
			continue
		}
		p.Log.Debug().Str("provider", provider.Name()).Int("intervals", len(intervals)).Msg("busy intervals loaded")
		busy = append(busy, intervals...)
	}
	return busy
}

// Run performs one planning pass.
func (p *Pipeline) Run(ctx context.Context, req Request) (Outcome, error) {
	started := time.Now()
	out, err := p.run(ctx, req)
	if err != nil {
		if p.Metrics != nil {
			p.Metrics.RecordPlanFailure()
			p.writeMetrics()
		}
		return Outcome{}, err
	}

	if p.Metrics != nil {
		missingTotal := 0
		for _, s := range out.Shortfalls {
			missingTotal += s.MissingMinutes()
		}
		p.Metrics.RecordPlan(metrics.PlanSummary{
			Recover:          req.Recover,
			Blocks:           len(out.Blocks),
			Minutes:          out.TotalMinutes(),
			ShortfallTasks:   len(out.Shortfalls),
			ShortfallMinutes: missingTotal,
			Missed:           len(out.NewlyMissed),
			Duration:         time.Since(started),
			FinishedAt:       p.now(),
		})
		if out.Export != nil {
			r := out.Export
			p.Metrics.RecordExport(r.Created, r.Updated, r.Unchanged, r.Deleted, r.Failed)
		}
		p.writeMetrics()
	}
	return out, nil
}

func (p *Pipeline) writeMetrics() {
	if err := p.Metrics.WriteTextfile(p.MetricsPath); err != nil {
		p.Log.Warn().Err(err).Str("path", p.MetricsPath).Msg("could not write metrics textfile")
	}
}

func (p *Pipeline) run(ctx context.Context, req Request) (Outcome, error) {
	if p.Constraints == nil {
		return Outcome{}, fmt.Errorf("no constraints configured")
	}
	now := p.now()

	tasks, err := p.ActiveTasks(ctx)
	if err != nil {
		return Outcome{}, err
	}

	from, to := BusyWindow(tasks, now)
	busy := p.fetchBusy(ctx, from, to)

	c, err := p.Constraints(busy)
	if err != nil {
		return Outcome{}, err
	}
	c.NotBefore = now

	out := Outcome{Tasks: tasks, BusyCount: len(busy)}
	if p.Table != nil {
		out.NewlyMissed = p.Table.Sweep(now)
		if req.Recover {
			out.Missed = p.Table.Missed()
		}
	}

	var res planner.Result
	if req.Recover {
		res, err = p.engine().Recover(out.Missed, tasks, c)
	} else {
		res, err = p.engine().Plan(tasks, c)
	}
	if err != nil {
		return Outcome{}, err
	}
	out.Result = res
	p.Log.Info().
		Bool("recover", req.Recover).
		Int("tasks", len(tasks)).
		Int("busy", len(busy)).
		Int("blocks", len(res.Blocks)).
		Int("shortfalls", len(res.Shortfalls)).
		Msg("plan computed")

	if p.Table != nil {
		p.Table.ReplacePlanned(now)
		if req.Recover {
			p.Table.Forget(out.Missed)
		}
		titles := make(map[string]string, len(tasks))
		for _, t := range tasks {
			titles[t.ID] = t.Title
		}
		for _, b := range res.Blocks {
			p.Table.Update(b, "", titles[b.TaskID])
		}
	}

	// Stale and missed entries wait in the table until a run exports.
	if req.Export && p.Exporter != nil {
		var stale map[string]string
		if p.Table != nil {
			p.flagMissed(ctx)
			stale = p.Table.Stale()
		}
		report, err := p.Exporter.Export(ctx, res.Blocks, tasks, stale)
		out.Export = &report
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
			out.ExportErr = err
		}
		if p.Table != nil {
			for blockID, eventID := range report.EventIDs {
				p.Table.SetEvent(blockID, eventID)
			}
			for _, blockID := range report.Removed {
				p.Table.Remove(blockID)
			}
		}
	}

	if p.Table != nil {
		if err := p.Table.Save(); err != nil {
			return Outcome{}, fmt.Errorf("save planned blocks: %w", err)
		}
	}
	return out, nil
}

// flagMissed marks the calendar events of missed blocks that are not flagged
// yet. Failures are retried on the next exporting run.
func (p *Pipeline) flagMissed(ctx context.Context) {
	for _, b := range p.Table.Unflagged() {
		e := p.Table.Entries[b.ID]
		if err := p.Exporter.MarkMissed(ctx, e.EventID, e.Summary); err != nil {
			p.Log.Warn().Err(err).Str("block", b.ID).Msg("could not flag missed event")
			continue
		}
		p.Table.MarkFlagged(b.ID)
	}
}
