// Package priority scores tasks by urgency for presentation order.
package priority

import (
	"math"
	"sort"
	"time"

	"github.com/harrisonrobin/studyplan/pkg/model"
)

const (
	effortSaturationMinutes = 180.0
	weightSaturation        = 100.0
	noDeadlineScore         = 0.2
)

// Score maps a task to a single urgency value. Each sub-score lies in [0,1]
// before it is multiplied by its coefficient.
func Score(task model.Task, weights model.PriorityWeights, now time.Time) float64 {
	due := dueSoonScore(task.Deadline, now)
	effort := math.Min(float64(task.EstimatedMinutes)/effortSaturationMinutes, 1)
	weight := math.Min(task.Weight/weightSaturation, 1)
	course := clamp01(task.CourseImportance)

	total := due*weights.DueSoon +
		effort*weights.Effort +
		weight*weights.Weight +
		statusScore(task.Status)*weights.Status +
		course*weights.CourseImportance
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return 0
	}
	return total
}

func dueSoonScore(deadline *time.Time, now time.Time) float64 {
	if deadline == nil || deadline.IsZero() {
		return noDeadlineScore
	}
	days := math.Max(deadline.Sub(now).Hours()/24, 0)
	switch {
	case days <= 1:
		return 1
	case days <= 3:
		return 0.8
	case days <= 7:
		return 0.6
	}
	return 0.3
}

func statusScore(s model.Status) float64 {
	switch s {
	case model.StatusInProgress:
		return 0.7
	case model.StatusCompleted:
		return 0
	}
	return 1
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), 1)
}

// Ranked pairs a task with its score.
type Ranked struct {
	Task  model.Task
	Score float64
}

// Rank orders tasks by descending score. Equal scores keep their input order.
func Rank(tasks []model.Task, weights model.PriorityWeights, now time.Time) []Ranked {
	out := make([]Ranked, len(tasks))
	for i, t := range tasks {
		out[i] = Ranked{Task: t, Score: Score(t, weights, now)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
