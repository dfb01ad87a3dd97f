package model

import (
	"fmt"
	"strings"
	"time"
)

// Category is the kind of work a task represents. Learned estimates are
// bucketed by category.
type Category string

const (
	CategoryReading    Category = "reading"
	CategoryWriting    Category = "writing"
	CategoryCoding     Category = "coding"
	CategoryProblemSet Category = "problem-set"
	CategoryProject    Category = "project"
	CategoryExam       Category = "exam"
	CategoryQuiz       Category = "quiz"
	CategoryOther      Category = "other"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryReading,
	CategoryWriting,
	CategoryCoding,
	CategoryProblemSet,
	CategoryProject,
	CategoryExam,
	CategoryQuiz,
	CategoryOther,
}

// ParseCategory accepts the canonical names plus a few spellings seen in
// task exports ("problemset", "problem_set", "pset").
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reading":
		return CategoryReading, nil
	case "writing":
		return CategoryWriting, nil
	case "coding":
		return CategoryCoding, nil
	case "problem-set", "problemset", "problem_set", "pset":
		return CategoryProblemSet, nil
	case "project":
		return CategoryProject, nil
	case "exam":
		return CategoryExam, nil
	case "quiz":
		return CategoryQuiz, nil
	case "other", "":
		return CategoryOther, nil
	}
	return CategoryOther, fmt.Errorf("unknown category %q", s)
}

// GuessCategory derives a category from a task title when the source does not
// carry one.
func GuessCategory(title string) Category {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "exam"):
		return CategoryExam
	case strings.Contains(t, "quiz"):
		return CategoryQuiz
	case strings.Contains(t, "project"):
		return CategoryProject
	case strings.Contains(t, "essay"), strings.Contains(t, "paper"):
		return CategoryWriting
	case strings.Contains(t, "lab"), strings.Contains(t, "problem"):
		return CategoryProblemSet
	}
	return CategoryOther
}

// Status is the progress state of a task.
type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Task is a unit of work to be scheduled. Tasks are built fresh for every
// planning run and never mutated by the planner.
type Task struct {
	ID               string
	Title            string
	Deadline         *time.Time // nil when the task has no deadline
	EstimatedMinutes int
	Category         Category
	CourseID         string // "" when the task belongs to no course
	Weight           float64
	Status           Status
	CourseImportance float64
}

// HasDeadline reports whether the task carries a deadline.
func (t Task) HasDeadline() bool {
	return t.Deadline != nil && !t.Deadline.IsZero()
}

// Key returns the estimate bucket the task belongs to.
func (t Task) Key() EstimateKey {
	return EstimateKey{CourseID: t.CourseID, Category: t.Category}
}

// Block is a concrete interval allocated to one task. End is always after Start.
type Block struct {
	ID     string    `json:"id"`
	TaskID string    `json:"task_id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// Minutes returns the whole-minute length of the block.
func (b Block) Minutes() int {
	return int(b.End.Sub(b.Start) / time.Minute)
}

// EstimateKey buckets historical durations.
type EstimateKey struct {
	CourseID string
	Category Category
}

func (k EstimateKey) String() string {
	if k.CourseID == "" {
		return string(k.Category)
	}
	return k.CourseID + "/" + string(k.Category)
}

// Observation is one historical session duration for a bucket.
type Observation struct {
	Key     EstimateKey
	Minutes int
}
