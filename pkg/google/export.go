package google

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/harrisonrobin/studyplan/pkg/colors"
	"github.com/harrisonrobin/studyplan/pkg/index"
	"github.com/harrisonrobin/studyplan/pkg/model"
	"github.com/rs/zerolog"
)

// ExportReport summarises one export run.
type ExportReport struct {
	// EventIDs maps block IDs to the calendar events they were written to.
	EventIDs map[string]string
	// Removed lists the stale block IDs, sorted, whose events are gone.
	Removed   []string
	Created   int
	Updated   int
	Unchanged int
	Deleted   int
	Failed    int
}

// Exporter writes a plan to the study calendar.
type Exporter struct {
	Client *CalendarClient
	Index  *index.EventIndex
	Colors *colors.ColorCache
	Log    zerolog.Logger
}

// Export syncs every block and deletes the events of stale blocks that are
// no longer part of the plan. stale maps block IDs to their event IDs; an
// empty event ID is looked up in the index. Individual failures are logged
// and joined into the returned error; the report covers everything that
// succeeded.
func (e *Exporter) Export(ctx context.Context, blocks []model.Block, tasks []model.Task, stale map[string]string) (ExportReport, error) {
	report := ExportReport{EventIDs: make(map[string]string, len(blocks))}
	byID := make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	var errs []error
	keep := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		keep[b.ID] = true
		task := byID[b.TaskID]
		colorID := ""
		if e.Colors != nil {
			colorID = e.Colors.ColorFor(task.CourseID)
		}

		event, outcome, err := e.Client.SyncBlock(ctx, b, task, colorID)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed++
			e.Log.Warn().Err(err).Str("block", b.ID).Str("task", b.TaskID).Msg("export failed")
			errs = append(errs, fmt.Errorf("block %s: %w", b.ID, err))
			continue
		}
		report.EventIDs[b.ID] = event.Id
		switch outcome {
		case Created:
			report.Created++
		case Updated:
			report.Updated++
		default:
			report.Unchanged++
		}
	}

	staleIDs := make([]string, 0, len(stale))
	for blockID := range stale {
		staleIDs = append(staleIDs, blockID)
	}
	sort.Strings(staleIDs)
	for _, blockID := range staleIDs {
		if keep[blockID] {
			continue
		}
		eventID := stale[blockID]
		if eventID == "" && e.Index != nil {
			eventID = e.Index.Get(blockID)
		}
		if eventID != "" {
			if err := e.Client.DeleteEvent(ctx, eventID); err != nil {
				if ctx.Err() != nil {
					return report, ctx.Err()
				}
				report.Failed++
				e.Log.Warn().Err(err).Str("block", blockID).Msg("could not delete stale event")
				errs = append(errs, fmt.Errorf("stale block %s: %w", blockID, err))
				continue
			}
			report.Deleted++
		}
		if e.Index != nil {
			e.Index.Remove(blockID)
		}
		report.Removed = append(report.Removed, blockID)
	}

	if e.Index != nil {
		if err := e.Index.Save(); err != nil {
			errs = append(errs, fmt.Errorf("save event index: %w", err))
		}
	}
	if e.Colors != nil {
		if err := e.Colors.Save(); err != nil {
			errs = append(errs, fmt.Errorf("save color cache: %w", err))
		}
	}

	e.Log.Info().
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("unchanged", report.Unchanged).
		Int("deleted", report.Deleted).
		Int("failed", report.Failed).
		Msg("calendar export finished")
	return report, errors.Join(errs...)
}

// MarkMissed flags the event of a missed block.
func (e *Exporter) MarkMissed(ctx context.Context, eventID, summary string) error {
	return e.Client.MarkMissed(ctx, eventID, summary)
}
