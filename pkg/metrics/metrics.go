// Package metrics records planning runs for the Prometheus node exporter
// textfile collector.
package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "studyplan"

// Collector holds the planning metrics on its own registry.
type Collector struct {
	Registry *prometheus.Registry

	planRuns         *prometheus.CounterVec
	planFailures     prometheus.Counter
	planDuration     prometheus.Histogram
	plannedBlocks    prometheus.Gauge
	plannedMinutes   prometheus.Gauge
	shortfallTasks   prometheus.Gauge
	shortfallMinutes prometheus.Gauge
	missedBlocks     prometheus.Counter
	busyFailures     *prometheus.CounterVec
	exportEvents     *prometheus.CounterVec
	sessions         prometheus.Counter
	lastRun          prometheus.Gauge
}

// NewCollector creates and registers every metric.
func NewCollector() *Collector {
	c := &Collector{
		Registry: prometheus.NewRegistry(),
		planRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_runs_total",
			Help:      "Planning runs by mode (plan or recover)",
		}, []string{"mode"}),
		planFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_failures_total",
			Help:      "Planning runs that returned an error",
		}),
		planDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_duration_seconds",
			Help:      "Wall time of a full planning run including I/O",
			Buckets:   prometheus.DefBuckets,
		}),
		plannedBlocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "planned_blocks",
			Help:      "Blocks in the latest plan",
		}),
		plannedMinutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "planned_minutes",
			Help:      "Minutes scheduled by the latest plan",
		}),
		shortfallTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "shortfall_tasks",
			Help:      "Tasks the latest plan could not fully place",
		}),
		shortfallMinutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "shortfall_minutes",
			Help:      "Minutes the latest plan could not place",
		}),
		missedBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missed_blocks_total",
			Help:      "Planned blocks detected as missed",
		}),
		busyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "busy_fetch_failures_total",
			Help:      "Busy interval fetches that failed, by provider",
		}, []string{"provider"}),
		exportEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_events_total",
			Help:      "Calendar export results by outcome",
		}, []string{"outcome"}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_recorded_total",
			Help:      "Focus sessions recorded",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the latest successful planning run",
		}),
	}

	c.Registry.MustRegister(
		c.planRuns,
		c.planFailures,
		c.planDuration,
		c.plannedBlocks,
		c.plannedMinutes,
		c.shortfallTasks,
		c.shortfallMinutes,
		c.missedBlocks,
		c.busyFailures,
		c.exportEvents,
		c.sessions,
		c.lastRun,
	)
	return c
}

// PlanSummary is what a finished run reports.
type PlanSummary struct {
	Recover          bool
	Blocks           int
	Minutes          int
	ShortfallTasks   int
	ShortfallMinutes int
	Missed           int
	Duration         time.Duration
	FinishedAt       time.Time
}

// RecordPlan updates the run counters and the latest-plan gauges.
func (c *Collector) RecordPlan(s PlanSummary) {
	mode := "plan"
	if s.Recover {
		mode = "recover"
	}
	c.planRuns.WithLabelValues(mode).Inc()
	c.planDuration.Observe(s.Duration.Seconds())
	c.plannedBlocks.Set(float64(s.Blocks))
	c.plannedMinutes.Set(float64(s.Minutes))
	c.shortfallTasks.Set(float64(s.ShortfallTasks))
	c.shortfallMinutes.Set(float64(s.ShortfallMinutes))
	c.missedBlocks.Add(float64(s.Missed))
	c.lastRun.Set(float64(s.FinishedAt.Unix()))
}

func (c *Collector) RecordPlanFailure() {
	c.planFailures.Inc()
}

func (c *Collector) RecordBusyFailure(provider string) {
	c.busyFailures.WithLabelValues(provider).Inc()
}

// RecordExport adds export outcome counts.
func (c *Collector) RecordExport(created, updated, unchanged, deleted, failed int) {
	c.exportEvents.WithLabelValues("created").Add(float64(created))
	c.exportEvents.WithLabelValues("updated").Add(float64(updated))
	c.exportEvents.WithLabelValues("unchanged").Add(float64(unchanged))
	c.exportEvents.WithLabelValues("deleted").Add(float64(deleted))
	c.exportEvents.WithLabelValues("failed").Add(float64(failed))
}

func (c *Collector) RecordSession() {
	c.sessions.Inc()
}

// WriteTextfile writes the registry in text exposition format. An empty path
// is a no-op.
func (c *Collector) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, c.Registry)
}
