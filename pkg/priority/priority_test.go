package priority

import (
	"math"
	"testing"
	"time"

	"github.com/harrisonrobin/studyplan/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

func due(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestDueSoonScoresHigher(t *testing.T) {
	weights := model.PriorityWeights{DueSoon: 0.5, Effort: 0.2, Weight: 0.2, Status: 0.05, CourseImportance: 0.05}
	soon := model.Task{Title: "Soon", Deadline: due(time.Hour), EstimatedMinutes: 60, Category: model.CategoryReading}
	later := model.Task{Title: "Later", Deadline: due(10 * 24 * time.Hour), EstimatedMinutes: 60, Category: model.CategoryReading}

	assert.Greater(t, Score(soon, weights, now), Score(later, weights, now))
}

func TestCompletedTaskScoresLower(t *testing.T) {
	weights := model.PriorityWeights{DueSoon: 0.4, Effort: 0.2, Weight: 0.2, Status: 0.2}
	active := model.Task{Deadline: due(time.Hour), EstimatedMinutes: 60, Status: model.StatusInProgress}
	done := active
	done.Status = model.StatusCompleted

	assert.Greater(t, Score(active, weights, now), Score(done, weights, now))
}

func TestDueSoonTiers(t *testing.T) {
	weights := model.PriorityWeights{DueSoon: 1}
	cases := []struct {
		deadline *time.Time
		want     float64
	}{
		{nil, 0.2},
		{due(-48 * time.Hour), 1},
		{due(24 * time.Hour), 1},
		{due(48 * time.Hour), 0.8},
		{due(72 * time.Hour), 0.8},
		{due(5 * 24 * time.Hour), 0.6},
		{due(7 * 24 * time.Hour), 0.6},
		{due(8 * 24 * time.Hour), 0.3},
	}
	for _, tc := range cases {
		got := Score(model.Task{Deadline: tc.deadline}, weights, now)
		assert.InDelta(t, tc.want, got, 1e-9, "deadline %v", tc.deadline)
	}
}

func TestSubScoresSaturate(t *testing.T) {
	task := model.Task{EstimatedMinutes: 600, Weight: 250, CourseImportance: 3, Status: model.StatusNotStarted}
	weights := model.PriorityWeights{Effort: 1, Weight: 1, Status: 1, CourseImportance: 1}
	assert.InDelta(t, 4.0, Score(task, weights, now), 1e-9)

	task.CourseImportance = -1
	task.EstimatedMinutes = 90
	task.Weight = 50
	task.Status = model.StatusInProgress
	assert.InDelta(t, 0.5+0.5+0.7, Score(task, weights, now), 1e-9)
}

func TestScoreIsFinite(t *testing.T) {
	task := model.Task{CourseImportance: math.NaN()}
	s := Score(task, model.DefaultWeights(), now)
	assert.False(t, math.IsNaN(s))
}

func TestRankOrdersByScore(t *testing.T) {
	tasks := []model.Task{
		{ID: "later", Deadline: due(10 * 24 * time.Hour)},
		{ID: "soon", Deadline: due(time.Hour)},
		{ID: "tie", Deadline: due(10 * 24 * time.Hour)},
	}
	ranked := Rank(tasks, model.DefaultWeights(), now)
	require.Len(t, ranked, 3)
	assert.Equal(t, "soon", ranked[0].Task.ID)
	assert.Equal(t, "later", ranked[1].Task.ID)
	assert.Equal(t, "tie", ranked[2].Task.ID)
}
