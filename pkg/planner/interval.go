package planner

import (
	"sort"
	"time"

	"github.com/harrisonrobin/studyplan/pkg/model"
)

// Subtract removes blocked from a. The result is a, untouched, when they do not
// overlap; nothing when blocked covers a; otherwise the parts of a before and
// after blocked. Zero-length pieces are dropped.
func Subtract(a, blocked model.Interval) []model.Interval {
	if !a.Overlaps(blocked) {
		if a.Empty() {
			return nil
		}
		return []model.Interval{a}
	}
	var out []model.Interval
	if a.Start.Before(blocked.Start) {
		out = append(out, model.Interval{Start: a.Start, End: blocked.Start})
	}
	if a.End.After(blocked.End) {
		out = append(out, model.Interval{Start: blocked.End, End: a.End})
	}
	return dropEmpty(out)
}

// subtractAll applies Subtract to every candidate.
func subtractAll(candidates []model.Interval, blocked model.Interval) []model.Interval {
	var out []model.Interval
	for _, c := range candidates {
		out = append(out, Subtract(c, blocked)...)
	}
	return out
}

func dropEmpty(in []model.Interval) []model.Interval {
	out := in[:0]
	for _, i := range in {
		if !i.Empty() {
			out = append(out, i)
		}
	}
	return out
}

// clip keeps only the parts of candidates inside [from, to). Zero bounds are open.
func clip(candidates []model.Interval, from, to time.Time) []model.Interval {
	var out []model.Interval
	for _, c := range candidates {
		if !from.IsZero() && c.Start.Before(from) {
			c.Start = from
		}
		if !to.IsZero() && c.End.After(to) {
			c.End = to
		}
		if !c.Empty() {
			out = append(out, c)
		}
	}
	return out
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func previousDay(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d-1, 0, 0, 0, 0, loc)
}

func isWeekend(day time.Time, loc *time.Location) bool {
	switch day.In(loc).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}

// availability realizes the preferred window on day and removes blackout
// windows and busy intervals from it.
func availability(day time.Time, c model.Constraints) []model.Interval {
	loc := c.Loc()
	dayStart := startOfDay(day, loc)
	dayEnd := startOfDay(dayStart.AddDate(0, 0, 1), loc)
	dayRange := model.Interval{Start: dayStart, End: dayEnd}

	intervals := c.Preferred.On(dayStart, loc)
	for _, w := range c.Blackouts {
		for _, b := range w.On(dayStart, loc) {
			intervals = subtractAll(intervals, b)
		}
	}
	for _, busy := range c.Busy {
		if busy.Overlaps(dayRange) {
			intervals = subtractAll(intervals, busy)
		}
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].Start.Before(intervals[j].Start) })
	return intervals
}
