package taskwarrior

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/studyplan/pkg/estimate"
	"github.com/harrisonrobin/studyplan/pkg/model"
	"github.com/harrisonrobin/studyplan/pkg/util"
)

const (
	PENDING   = "pending"
	COMPLETED = "completed"
	WAITING   = "waiting"
	DELETED   = "deleted"
)

// defaultCourseImportance is used when a task has no "importance" UDA.
const defaultCourseImportance = 0.5

type CustomTime struct {
	time.Time
}

const taskwarriorTimeLayout = "20060102T150405Z" // YYYYMMDDTHHMMSSZ, 'Z' indicates UTC

// UnmarshalJSON implements the json.Unmarshaler interface for CustomTime.
func (ct *CustomTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "0" {
		ct.Time = time.Time{}
		return nil
	}

	t, err := time.Parse(taskwarriorTimeLayout, s)
	if err != nil {
		return fmt.Errorf("failed to parse Taskwarrior time string '%s': %w", s, err)
	}
	ct.Time = t
	return nil
}

// MarshalJSON implements the json.Marshaler interface for CustomTime.
func (ct CustomTime) MarshalJSON() ([]byte, error) {
	if ct.Time.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + ct.Time.Format(taskwarriorTimeLayout) + `"`), nil
}

func (ct *CustomTime) set() bool {
	return ct != nil && !ct.IsZero()
}

// Task is one record of `task export`. The study-planning UDAs are
// est (ISO 8601 duration), category, weight and importance.
type Task struct {
	UUID        string       `json:"uuid"`
	Description string       `json:"description"`
	Due         *CustomTime  `json:"due,omitempty"`
	Scheduled   *CustomTime  `json:"scheduled,omitempty"`
	Status      string       `json:"status"`
	Project     string       `json:"project,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
	Start       *CustomTime  `json:"start,omitempty"`
	End         *CustomTime  `json:"end,omitempty"`

	Est        string   `json:"est,omitempty"`
	Act        string   `json:"act,omitempty"`
	Category   string   `json:"category,omitempty"`
	Weight     float64  `json:"weight,omitempty"`
	Importance *float64 `json:"importance,omitempty"`

	// Raw is the record exactly as read, including attributes this struct
	// does not know. Hooks must echo it unchanged.
	Raw json.RawMessage `json:"-"`
}

type Annotation struct {
	Description string      `json:"description"`
	Entry       *CustomTime `json:"entry"`
}

// Schedulable reports whether the task should be handed to the planner.
func (t Task) Schedulable() bool {
	switch t.Status {
	case COMPLETED, DELETED, WAITING:
		return false
	}
	for _, tag := range t.Tags {
		if tag == "BLOCKED" {
			return false
		}
	}
	return true
}

// ToModel converts an exported task. A missing or unparsable estimate falls
// back to the category template total.
func (t Task) ToModel() model.Task {
	category, err := model.ParseCategory(t.Category)
	if err != nil || t.Category == "" {
		category = model.GuessCategory(t.Description)
	}

	minutes := 0
	if est, err := util.ParseDuration(t.Est); err == nil && est > 0 {
		minutes = int(est / time.Minute)
	}
	if minutes == 0 {
		minutes = estimate.TemplateMinutes(category)
	}

	status := model.StatusNotStarted
	switch {
	case t.Status == COMPLETED:
		status = model.StatusCompleted
	case t.Start.set():
		status = model.StatusInProgress
	}

	importance := defaultCourseImportance
	if t.Importance != nil {
		importance = *t.Importance
	}

	mt := model.Task{
		ID:               t.UUID,
		Title:            t.Description,
		EstimatedMinutes: minutes,
		Category:         category,
		CourseID:         t.Project,
		Weight:           t.Weight,
		Status:           status,
		CourseImportance: importance,
	}
	if t.Due.set() {
		due := t.Due.Time
		mt.Deadline = &due
	}
	return mt
}
