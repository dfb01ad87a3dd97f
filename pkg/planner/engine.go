// Package planner places task effort into available time by walking backwards
// from each task's deadline.
//
// The engine is a pure computation over its arguments: it performs no I/O,
// keeps no state between calls and may be used from any number of goroutines.
package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/harrisonrobin/studyplan/pkg/model"
)

// noDeadlineOffset is where the walk starts for tasks without a deadline.
const noDeadlineOffset = 7 * 24 * time.Hour

// Shortfall describes a task that could not be fully placed within the horizon.
type Shortfall struct {
	TaskID           string `json:"task_id"`
	RequestedMinutes int    `json:"requested_minutes"`
	ScheduledMinutes int    `json:"scheduled_minutes"`
}

// MissingMinutes is the unscheduled remainder.
func (s Shortfall) MissingMinutes() int {
	return s.RequestedMinutes - s.ScheduledMinutes
}

// Result is the output of a planning run. Blocks are grouped per task in
// deadline order; within a task they appear in the order they were placed.
type Result struct {
	Blocks     []model.Block `json:"blocks"`
	Shortfalls []Shortfall   `json:"shortfalls,omitempty"`
}

// ScheduledMinutes sums the blocks placed for one task.
func (r Result) ScheduledMinutes(taskID string) int {
	total := 0
	for _, b := range r.Blocks {
		if b.TaskID == taskID {
			total += b.Minutes()
		}
	}
	return total
}

// TotalMinutes sums every block.
func (r Result) TotalMinutes() int {
	total := 0
	for _, b := range r.Blocks {
		total += b.Minutes()
	}
	return total
}

// Engine is the backward-fill scheduler.
type Engine struct {
	// Now anchors tasks without a deadline. Defaults to time.Now.
	Now func() time.Time
	// NewID names emitted blocks. Defaults to BlockID.
	NewID func(taskID string, start time.Time) string
}

// blockNamespace scopes the name-based block UUIDs.
var blockNamespace = uuid.MustParse("8f2c7a4e-3d1b-5c6a-9e0f-1a2b3c4d5e6f")

// BlockID derives a stable identifier from the owning task and start time, so
// re-planning an unchanged block yields the same ID.
func BlockID(taskID string, start time.Time) string {
	return uuid.NewSHA1(blockNamespace, []byte(taskID+"|"+start.UTC().Format(time.RFC3339))).String()
}

// New returns an Engine using the wall clock and BlockID.
func New() *Engine {
	return &Engine{}
}

func (e *Engine) now() time.Time {
	if e == nil || e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Engine) newID(taskID string, start time.Time) string {
	if e == nil || e.NewID == nil {
		return BlockID(taskID, start)
	}
	return e.NewID(taskID, start)
}

// Plan schedules every task and returns the placed blocks. It fails with
// ErrInvalidConstraints, before doing any work, when the daily cap is not
// positive. Tasks that do not fit within the horizon are reported in
// Result.Shortfalls rather than as an error.
func (e *Engine) Plan(tasks []model.Task, c model.Constraints) (Result, error) {
	if c.DailyCapMinutes <= 0 {
		return Result{}, fmt.Errorf("%w: daily cap must be positive, got %d minutes", ErrInvalidConstraints, c.DailyCapMinutes)
	}

	var ledger *dayLedger
	if c.SharedCapacity {
		ledger = newDayLedger()
	}

	now := e.now()
	var res Result
	for _, task := range byDeadline(tasks) {
		blocks, remaining, err := e.planTask(task, c, now, ledger)
		if err != nil {
			return Result{}, err
		}
		res.Blocks = append(res.Blocks, blocks...)
		if remaining > 0 {
			res.Shortfalls = append(res.Shortfalls, Shortfall{
				TaskID:           task.ID,
				RequestedMinutes: task.EstimatedMinutes,
				ScheduledMinutes: task.EstimatedMinutes - remaining,
			})
		}
	}
	return res, nil
}

func (e *Engine) planTask(task model.Task, c model.Constraints, now time.Time, ledger *dayLedger) ([]model.Block, int, error) {
	loc := c.Loc()
	remaining := task.EstimatedMinutes

	var deadline time.Time
	anchor := now.Add(noDeadlineOffset)
	if task.HasDeadline() {
		deadline = *task.Deadline
		anchor = deadline
	}

	var blocks []model.Block
	day := startOfDay(anchor, loc)
	for step := 0; step < c.EffectiveHorizon() && remaining > 0; step++ {
		if !c.AllowWeekends && isWeekend(day, loc) {
			day = previousDay(day, loc)
			continue
		}
		if !c.NotBefore.IsZero() && !day.AddDate(0, 0, 1).After(c.NotBefore) {
			// every earlier day lies entirely before NotBefore
			break
		}

		slots := clip(availability(day, c), c.NotBefore, deadline)
		capLeft := c.DailyCapMinutes
		if ledger != nil {
			slots = ledger.free(day, slots)
			capLeft -= ledger.used(day)
		}

		scheduledToday := 0
		for _, slot := range slots {
			if remaining <= 0 || scheduledToday >= capLeft {
				break
			}
			minutes := min(int(slot.Duration()/time.Minute), capLeft-scheduledToday, remaining)
			if minutes <= 0 {
				continue
			}
			b := model.Block{
				ID:     e.newID(task.ID, slot.Start),
				TaskID: task.ID,
				Start:  slot.Start,
				End:    slot.Start.Add(time.Duration(minutes) * time.Minute),
			}
			if !b.End.After(b.Start) {
				return nil, remaining, fmt.Errorf("%w: empty block for task %s", ErrSchedulingFailed, task.ID)
			}
			blocks = append(blocks, b)
			remaining -= minutes
			scheduledToday += minutes
			if ledger != nil {
				ledger.add(day, b)
			}
		}
		day = previousDay(day, loc)
	}
	return blocks, remaining, nil
}

// Recover re-plans after missed blocks. Each missed block's minutes are added
// back to the task it belonged to before planning again. Blocks for unknown
// tasks are ignored.
func (e *Engine) Recover(missed []model.Block, tasks []model.Task, c model.Constraints) (Result, error) {
	adjusted := make([]model.Task, len(tasks))
	copy(adjusted, tasks)

	index := make(map[string]int, len(adjusted))
	for i, t := range adjusted {
		if _, dup := index[t.ID]; !dup {
			index[t.ID] = i
		}
	}
	for _, b := range missed {
		if i, ok := index[b.TaskID]; ok {
			adjusted[i].EstimatedMinutes += b.Minutes()
		}
	}
	return e.Plan(adjusted, c)
}

// byDeadline returns a copy ordered by ascending deadline; tasks without one go last.
func byDeadline(tasks []model.Task) []model.Task {
	sorted := make([]model.Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		switch {
		case !a.HasDeadline():
			return false
		case !b.HasDeadline():
			return true
		}
		return a.Deadline.Before(*b.Deadline)
	})
	return sorted
}

// dayLedger tracks blocks already placed per calendar day when tasks share capacity.
type dayLedger struct {
	occupied map[string][]model.Interval
	minutes  map[string]int
}

func newDayLedger() *dayLedger {
	return &dayLedger{
		occupied: make(map[string][]model.Interval),
		minutes:  make(map[string]int),
	}
}

func dayKey(day time.Time) string {
	return day.Format("2006-01-02")
}

func (l *dayLedger) add(day time.Time, b model.Block) {
	k := dayKey(day)
	l.occupied[k] = append(l.occupied[k], model.Interval{Start: b.Start, End: b.End})
	l.minutes[k] += b.Minutes()
}

func (l *dayLedger) used(day time.Time) int {
	return l.minutes[dayKey(day)]
}

func (l *dayLedger) free(day time.Time, slots []model.Interval) []model.Interval {
	for _, o := range l.occupied[dayKey(day)] {
		slots = subtractAll(slots, o)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots
}
