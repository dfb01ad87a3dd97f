package planner

import (
	"fmt"
	"testing"
	"time"

	"github.com/harrisonrobin/studyplan/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Monday 2025-03-03 08:00 UTC.
var monday = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

func testEngine() *Engine {
	n := 0
	return &Engine{
		Now: func() time.Time { return monday },
		NewID: func(string, time.Time) string {
			n++
			return fmt.Sprintf("b%d", n)
		},
	}
}

func at(day, hour, minute int) time.Time {
	return time.Date(2025, 3, day, hour, minute, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func constraints(maxHours, startHour, endHour int) model.Constraints {
	return model.Constraints{
		DailyCapMinutes: model.CapFromHours(maxHours),
		Preferred:       model.MustHourWindow(startHour, endHour),
		AllowWeekends:   true,
		Location:        time.UTC,
	}
}

func TestPlanEssayBeforeDeadline(t *testing.T) {
	due := monday.Add(3 * 24 * time.Hour)
	task := model.Task{ID: "essay", Title: "Essay", Deadline: ptr(due), EstimatedMinutes: 90, Category: model.CategoryWriting}

	res, err := testEngine().Plan([]model.Task{task}, constraints(2, 9, 18))
	require.NoError(t, err)
	require.NotEmpty(t, res.Blocks)

	for _, b := range res.Blocks {
		assert.False(t, b.End.After(due), "block %v ends after deadline", b)
		assert.True(t, b.End.After(b.Start))
	}
	assert.Equal(t, 90, res.ScheduledMinutes("essay"))
	assert.Empty(t, res.Shortfalls)

	// Deadline day is empty before 08:00, so the whole effort lands on Wednesday morning.
	assert.Equal(t, at(5, 9, 0), res.Blocks[0].Start)
	assert.Equal(t, at(5, 10, 30), res.Blocks[0].End)
}

func TestPlanRejectsNonPositiveCap(t *testing.T) {
	task := model.Task{ID: "t", Deadline: ptr(at(5, 12, 0)), EstimatedMinutes: 60}

	res, err := testEngine().Plan([]model.Task{task}, constraints(0, 9, 18))
	require.ErrorIs(t, err, ErrInvalidConstraints)
	assert.Empty(t, res.Blocks)
}

func TestPlanAvoidsWeekendsWhenDisabled(t *testing.T) {
	c := constraints(1, 9, 17)
	c.AllowWeekends = false
	task := model.Task{ID: "pset", Title: "Problem Set", Deadline: ptr(at(8, 12, 0)), EstimatedMinutes: 60}

	res, err := testEngine().Plan([]model.Task{task}, c)
	require.NoError(t, err)
	require.NotEmpty(t, res.Blocks)
	for _, b := range res.Blocks {
		wd := b.Start.Weekday()
		assert.NotEqual(t, time.Saturday, wd)
		assert.NotEqual(t, time.Sunday, wd)
	}
	assert.Equal(t, at(7, 9, 0), res.Blocks[0].Start)
}

func TestPlanNeverEndsAfterDeadline(t *testing.T) {
	tasks := []model.Task{
		{ID: "a", Deadline: ptr(at(6, 11, 30)), EstimatedMinutes: 300},
		{ID: "b", Deadline: ptr(at(4, 9, 15)), EstimatedMinutes: 45},
		{ID: "c", Deadline: ptr(at(10, 17, 59)), EstimatedMinutes: 500},
	}
	res, err := testEngine().Plan(tasks, constraints(3, 9, 18))
	require.NoError(t, err)

	deadlines := map[string]time.Time{}
	for _, task := range tasks {
		deadlines[task.ID] = *task.Deadline
	}
	for _, b := range res.Blocks {
		assert.False(t, b.End.After(deadlines[b.TaskID]), "block %s for %s ends at %v", b.ID, b.TaskID, b.End)
	}
}

func TestPlanOrdersByDeadlineWithUndatedLast(t *testing.T) {
	tasks := []model.Task{
		{ID: "undated", EstimatedMinutes: 30},
		{ID: "late", Deadline: ptr(at(7, 18, 0)), EstimatedMinutes: 30},
		{ID: "early", Deadline: ptr(at(4, 18, 0)), EstimatedMinutes: 30},
	}
	res, err := testEngine().Plan(tasks, constraints(2, 9, 18))
	require.NoError(t, err)
	require.Len(t, res.Blocks, 3)

	assert.Equal(t, "early", res.Blocks[0].TaskID)
	assert.Equal(t, "late", res.Blocks[1].TaskID)
	assert.Equal(t, "undated", res.Blocks[2].TaskID)
	// undated tasks are anchored a week after now
	assert.Equal(t, at(10, 9, 0), res.Blocks[2].Start)
}

func TestPlanCapsEachTaskPerDay(t *testing.T) {
	task := model.Task{ID: "big", Deadline: ptr(at(7, 20, 0)), EstimatedMinutes: 150}

	res, err := testEngine().Plan([]model.Task{task}, constraints(1, 9, 18))
	require.NoError(t, err)
	require.Len(t, res.Blocks, 3)

	assert.Equal(t, at(7, 9, 0), res.Blocks[0].Start)
	assert.Equal(t, 60, res.Blocks[0].Minutes())
	assert.Equal(t, at(6, 9, 0), res.Blocks[1].Start)
	assert.Equal(t, 60, res.Blocks[1].Minutes())
	assert.Equal(t, at(5, 9, 0), res.Blocks[2].Start)
	assert.Equal(t, 30, res.Blocks[2].Minutes())
}

func TestPlanSubtractsBusyAndBlackouts(t *testing.T) {
	c := constraints(8, 9, 24)
	c.Blackouts = []model.TimeWindow{model.MustHourWindow(22, 7), model.MustHourWindow(12, 13)}
	c.Busy = []model.Interval{{Start: at(6, 9, 0), End: at(6, 10, 30)}}
	task := model.Task{ID: "t", Deadline: ptr(at(6, 23, 0)), EstimatedMinutes: 240}

	res, err := testEngine().Plan([]model.Task{task}, c)
	require.NoError(t, err)
	require.Len(t, res.Blocks, 2)

	assert.Equal(t, at(6, 10, 30), res.Blocks[0].Start)
	assert.Equal(t, at(6, 12, 0), res.Blocks[0].End)
	assert.Equal(t, at(6, 13, 0), res.Blocks[1].Start)
	assert.Equal(t, at(6, 15, 30), res.Blocks[1].End)
	for _, b := range res.Blocks {
		assert.True(t, b.End.Hour() <= 22 || b.End.Equal(at(6, 22, 0)))
	}
}

func TestPlanReportsShortfallAtHorizon(t *testing.T) {
	c := constraints(1, 9, 18)
	c.Horizon = 3
	task := model.Task{ID: "huge", Deadline: ptr(at(20, 18, 0)), EstimatedMinutes: 1000}

	res, err := testEngine().Plan([]model.Task{task}, c)
	require.NoError(t, err)
	assert.Equal(t, 180, res.ScheduledMinutes("huge"))
	require.Len(t, res.Shortfalls, 1)
	assert.Equal(t, "huge", res.Shortfalls[0].TaskID)
	assert.Equal(t, 820, res.Shortfalls[0].MissingMinutes())
}

func TestPlanWeekendSkipsCountTowardHorizon(t *testing.T) {
	c := constraints(1, 9, 18)
	c.AllowWeekends = false
	c.Horizon = 2
	// Sunday deadline: both steps are spent on Sunday and Saturday.
	task := model.Task{ID: "t", Deadline: ptr(at(9, 18, 0)), EstimatedMinutes: 60}

	res, err := testEngine().Plan([]model.Task{task}, c)
	require.NoError(t, err)
	assert.Empty(t, res.Blocks)
	require.Len(t, res.Shortfalls, 1)
}

func TestPlanNotBeforeClipsThePast(t *testing.T) {
	c := constraints(4, 9, 18)
	c.NotBefore = at(3, 10, 30)
	task := model.Task{ID: "t", Deadline: ptr(at(3, 17, 0)), EstimatedMinutes: 600}

	res, err := testEngine().Plan([]model.Task{task}, c)
	require.NoError(t, err)
	require.Len(t, res.Blocks, 1)
	assert.Equal(t, at(3, 10, 30), res.Blocks[0].Start)
	assert.Equal(t, 240, res.Blocks[0].Minutes())
	require.Len(t, res.Shortfalls, 1)
	assert.Equal(t, 360, res.Shortfalls[0].MissingMinutes())
}

func TestPlanPerTaskQuotaAllowsOverlap(t *testing.T) {
	tasks := []model.Task{
		{ID: "a", Deadline: ptr(at(5, 18, 0)), EstimatedMinutes: 60},
		{ID: "b", Deadline: ptr(at(5, 18, 0)), EstimatedMinutes: 60},
	}
	res, err := testEngine().Plan(tasks, constraints(2, 9, 18))
	require.NoError(t, err)
	require.Len(t, res.Blocks, 2)
	assert.Equal(t, res.Blocks[0].Start, res.Blocks[1].Start)
}

func TestPlanSharedCapacityAvoidsOverlap(t *testing.T) {
	c := constraints(2, 9, 18)
	c.SharedCapacity = true
	tasks := []model.Task{
		{ID: "a", Deadline: ptr(at(5, 18, 0)), EstimatedMinutes: 90},
		{ID: "b", Deadline: ptr(at(5, 18, 0)), EstimatedMinutes: 60},
	}
	res, err := testEngine().Plan(tasks, c)
	require.NoError(t, err)

	for i := range res.Blocks {
		for j := i + 1; j < len(res.Blocks); j++ {
			a := model.Interval{Start: res.Blocks[i].Start, End: res.Blocks[i].End}
			b := model.Interval{Start: res.Blocks[j].Start, End: res.Blocks[j].End}
			assert.False(t, a.Overlaps(b), "blocks %d and %d overlap", i, j)
		}
	}
	perDay := map[string]int{}
	for _, b := range res.Blocks {
		perDay[b.Start.Format("2006-01-02")] += b.Minutes()
	}
	for day, m := range perDay {
		assert.LessOrEqual(t, m, 120, "day %s over shared cap", day)
	}
	assert.Equal(t, 90, res.ScheduledMinutes("a"))
	assert.Equal(t, 60, res.ScheduledMinutes("b"))
}

func TestRecoverAddsMissedMinutes(t *testing.T) {
	c := constraints(2, 10, 18)
	task := model.Task{ID: "project", Title: "Project", Deadline: ptr(monday.Add(5 * 24 * time.Hour)), EstimatedMinutes: 60, Category: model.CategoryProject}
	missed := model.Block{TaskID: "project", Start: monday, End: monday.Add(30 * time.Minute)}
	orphan := model.Block{TaskID: "gone", Start: monday, End: monday.Add(time.Hour)}

	planned, err := testEngine().Plan([]model.Task{task}, c)
	require.NoError(t, err)
	recovered, err := testEngine().Recover([]model.Block{missed, orphan}, []model.Task{task}, c)
	require.NoError(t, err)

	assert.NotEmpty(t, recovered.Blocks)
	assert.GreaterOrEqual(t, recovered.ScheduledMinutes("project"), planned.ScheduledMinutes("project"))
	assert.Equal(t, 90, recovered.ScheduledMinutes("project"))
	assert.Equal(t, 60, task.EstimatedMinutes, "input task must not be mutated")
}

func TestBlockIDIsStable(t *testing.T) {
	start := at(4, 9, 0)
	assert.Equal(t, BlockID("essay", start), BlockID("essay", start))
	assert.NotEqual(t, BlockID("essay", start), BlockID("essay", start.Add(time.Minute)))
	assert.NotEqual(t, BlockID("essay", start), BlockID("lab", start))

	task := model.Task{ID: "essay", Deadline: ptr(at(5, 18, 0)), EstimatedMinutes: 30}
	first, err := New().Plan([]model.Task{task}, constraints(2, 9, 18))
	require.NoError(t, err)
	second, err := New().Plan([]model.Task{task}, constraints(2, 9, 18))
	require.NoError(t, err)
	assert.Equal(t, first.Blocks[0].ID, second.Blocks[0].ID)
}

func TestRecoverWithInvalidConstraints(t *testing.T) {
	_, err := testEngine().Recover(nil, nil, model.Constraints{})
	assert.ErrorIs(t, err, ErrInvalidConstraints)
}
