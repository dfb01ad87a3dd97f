package model

import "time"

// DefaultHorizon is the number of backward day steps attempted per task.
const DefaultHorizon = 45

// Constraints govern where blocks may be placed.
type Constraints struct {
	// DailyCapMinutes bounds the minutes of a single task planned on one day
	// (or of all tasks together when SharedCapacity is set).
	DailyCapMinutes int
	Preferred       TimeWindow
	Blackouts       []TimeWindow
	AllowWeekends   bool
	Busy            []Interval

	// Horizon is the maximum number of day steps walked per task. Zero means DefaultHorizon.
	Horizon int
	// SharedCapacity makes tasks compete for one calendar: blocks already
	// placed are subtracted from later tasks and the daily cap is shared.
	SharedCapacity bool
	// NotBefore, when set, clips availability so no block starts before it.
	NotBefore time.Time
	// Location is used for all calendar-day arithmetic. Nil means time.Local.
	Location *time.Location
}

// CapFromHours converts the user-facing hours-per-day setting.
func CapFromHours(maxHoursPerDay int) int {
	return maxHoursPerDay * 60
}

// EffectiveHorizon returns Horizon or DefaultHorizon.
func (c Constraints) EffectiveHorizon() int {
	if c.Horizon <= 0 {
		return DefaultHorizon
	}
	return c.Horizon
}

// Loc returns Location or time.Local.
func (c Constraints) Loc() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// PriorityWeights are linear coefficients for each urgency sub-score. They
// need not sum to one.
type PriorityWeights struct {
	DueSoon          float64 `yaml:"due_soon" json:"due_soon"`
	Effort           float64 `yaml:"effort" json:"effort"`
	Weight           float64 `yaml:"weight" json:"weight"`
	Status           float64 `yaml:"status" json:"status"`
	CourseImportance float64 `yaml:"course_importance" json:"course_importance"`
}

// DefaultWeights mirrors the settings screen defaults.
func DefaultWeights() PriorityWeights {
	return PriorityWeights{
		DueSoon:          0.35,
		Effort:           0.2,
		Weight:           0.25,
		Status:           0.1,
		CourseImportance: 0.1,
	}
}
