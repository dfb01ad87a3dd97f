package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harrisonrobin/studyplan/pkg/estimate"
	"github.com/harrisonrobin/studyplan/pkg/logx"
	"github.com/harrisonrobin/studyplan/pkg/model"
	"gopkg.in/yaml.v3"
)

const (
	xdgAppName = "studyplan"
	configFile = "config.yaml"

	defaultCalendar       = "Study"
	defaultMaxHoursPerDay = 4
	defaultStartHour      = 9
	defaultEndHour        = 20
	defaultNoStudyStart   = 22
	defaultNoStudyEnd     = 7
	defaultWatchCron      = "0 6 * * *"
)

type Config struct {
	Calendar string          `yaml:"calendar"`
	Planner  PlannerSettings `yaml:"planner"`
	Priority WeightSettings  `yaml:"priority"`
	Learner  LearnerSettings `yaml:"learner"`
	Sources  SourceSettings  `yaml:"sources"`
	Export   ExportSettings  `yaml:"export"`
	History  HistorySettings `yaml:"history"`
	Log      logx.Config     `yaml:"log"`
	Metrics  MetricsSettings `yaml:"metrics"`
	Watch    WatchSettings   `yaml:"watch"`
}

// PlannerSettings are the user-facing knobs translated into model.Constraints.
// Zero values fall back to defaults.
type PlannerSettings struct {
	MaxHoursPerDay int             `yaml:"max_hours_per_day"`
	StartHour      int             `yaml:"start_hour"`
	EndHour        int             `yaml:"end_hour"`
	AllowWeekends  *bool           `yaml:"allow_weekends,omitempty"`
	NoStudy        NoStudySettings `yaml:"no_study"`
	HorizonDays    int             `yaml:"horizon_days"`
	SharedCapacity bool            `yaml:"shared_capacity"`
	Timezone       string          `yaml:"timezone,omitempty"`
}

type NoStudySettings struct {
	Enabled bool `yaml:"enabled"`
	Start   int  `yaml:"start"`
	End     int  `yaml:"end"`
}

// WeightSettings leaves unset coefficients nil so they can take defaults
// while an explicit zero is kept.
type WeightSettings struct {
	DueSoon          *float64 `yaml:"due_soon,omitempty"`
	Effort           *float64 `yaml:"effort,omitempty"`
	Weight           *float64 `yaml:"weight,omitempty"`
	Status           *float64 `yaml:"status,omitempty"`
	CourseImportance *float64 `yaml:"course_importance,omitempty"`
}

type LearnerSettings struct {
	Alpha float64 `yaml:"alpha"`
}

// SourceSettings select where tasks and busy intervals come from.
type SourceSettings struct {
	Tasks      string   `yaml:"tasks"` // "taskwarrior" or "orgmode"
	TaskFilter []string `yaml:"task_filter,omitempty"`
	OrgFiles   []string `yaml:"org_files,omitempty"`
	ICSFiles   []string `yaml:"ics_files,omitempty"`
	// BusyCalendars are Google calendar names queried for free/busy.
	BusyCalendars []string `yaml:"busy_calendars,omitempty"`
}

type ExportSettings struct {
	Enabled       bool    `yaml:"enabled"`
	RatePerSecond float64 `yaml:"rate_per_second"`
}

type HistorySettings struct {
	Path string `yaml:"path"`
}

type MetricsSettings struct {
	Textfile string `yaml:"textfile"`
}

type WatchSettings struct {
	Cron string `yaml:"cron"`
}

// Dir is the per-user directory holding configuration and state files.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

// StatePath joins name onto Dir.
func StatePath(name string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func GetConfigPath() (string, error) {
	return StatePath(configFile)
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads path, returning defaults when it does not exist.
func LoadFrom(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

func SaveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, b, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Calendar == "" {
		c.Calendar = defaultCalendar
	}
	if c.Sources.Tasks == "" {
		c.Sources.Tasks = "taskwarrior"
	}
	if c.Learner.Alpha <= 0 || c.Learner.Alpha > 1 {
		c.Learner.Alpha = estimate.DefaultAlpha
	}
	if c.Export.RatePerSecond <= 0 {
		c.Export.RatePerSecond = 5
	}
	if c.Watch.Cron == "" {
		c.Watch.Cron = defaultWatchCron
	}
	if c.Planner.NoStudy.Start == 0 && c.Planner.NoStudy.End == 0 {
		c.Planner.NoStudy.Start = defaultNoStudyStart
		c.Planner.NoStudy.End = defaultNoStudyEnd
	}
}

// Constraints translates the planner settings plus the supplied busy
// intervals into planner constraints.
func (c *Config) Constraints(busy []model.Interval) (model.Constraints, error) {
	p := c.Planner
	maxHours := p.MaxHoursPerDay
	if maxHours == 0 {
		maxHours = defaultMaxHoursPerDay
	}
	start := p.StartHour
	if start == 0 {
		start = defaultStartHour
	}
	end := p.EndHour
	if end == 0 {
		end = defaultEndHour
	}
	allowWeekends := true
	if p.AllowWeekends != nil {
		allowWeekends = *p.AllowWeekends
	}

	preferred, err := model.NewHourWindow(start, end)
	if err != nil {
		return model.Constraints{}, fmt.Errorf("preferred window: %w", err)
	}
	blackouts, err := c.NoStudyWindows()
	if err != nil {
		return model.Constraints{}, err
	}

	loc := time.Local
	if p.Timezone != "" {
		loc, err = time.LoadLocation(p.Timezone)
		if err != nil {
			return model.Constraints{}, fmt.Errorf("planner timezone: %w", err)
		}
	}

	return model.Constraints{
		DailyCapMinutes: model.CapFromHours(maxHours),
		Preferred:       preferred,
		Blackouts:       blackouts,
		AllowWeekends:   allowWeekends,
		Busy:            busy,
		Horizon:         p.HorizonDays,
		SharedCapacity:  p.SharedCapacity,
		Location:        loc,
	}, nil
}

// NoStudyWindows returns the blackout windows. A window crossing midnight is
// kept as a single wrapping window.
func (c *Config) NoStudyWindows() ([]model.TimeWindow, error) {
	ns := c.Planner.NoStudy
	if !ns.Enabled {
		return nil, nil
	}
	w, err := model.NewHourWindow(ns.Start, ns.End)
	if err != nil {
		return nil, fmt.Errorf("no-study window: %w", err)
	}
	return []model.TimeWindow{w}, nil
}

// LegacyNoStudyWindows splits a window crossing midnight into [start,24) and
// [0,end), the form older settings files were written in.
func (c *Config) LegacyNoStudyWindows() ([]model.TimeWindow, error) {
	ns := c.Planner.NoStudy
	if !ns.Enabled {
		return nil, nil
	}
	if ns.Start < ns.End {
		w, err := model.NewHourWindow(ns.Start, ns.End)
		if err != nil {
			return nil, err
		}
		return []model.TimeWindow{w}, nil
	}
	late, err := model.NewHourWindow(ns.Start, 24)
	if err != nil {
		return nil, err
	}
	out := []model.TimeWindow{late}
	if ns.End > 0 {
		early, err := model.NewHourWindow(0, ns.End)
		if err != nil {
			return nil, err
		}
		out = append(out, early)
	}
	return out, nil
}

// Weights resolves the priority coefficients.
func (c *Config) Weights() model.PriorityWeights {
	w := model.DefaultWeights()
	p := c.Priority
	if p.DueSoon != nil {
		w.DueSoon = *p.DueSoon
	}
	if p.Effort != nil {
		w.Effort = *p.Effort
	}
	if p.Weight != nil {
		w.Weight = *p.Weight
	}
	if p.Status != nil {
		w.Status = *p.Status
	}
	if p.CourseImportance != nil {
		w.CourseImportance = *p.CourseImportance
	}
	return w
}
