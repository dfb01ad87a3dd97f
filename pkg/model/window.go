package model

import (
	"fmt"
	"time"
)

const MinutesPerDay = 24 * 60

// TimeWindow is a recurring half-open minute-of-day range [StartMinute, EndMinute).
// When WrapsMidnight is set the window runs from StartMinute to the end of the
// day and resumes at midnight until EndMinute.
type TimeWindow struct {
	StartMinute   int  `json:"start_minute" yaml:"start_minute"`
	EndMinute     int  `json:"end_minute" yaml:"end_minute"`
	WrapsMidnight bool `json:"wraps_midnight" yaml:"wraps_midnight"`
}

// NewHourWindow builds a window from whole hours in [0,24]. An end hour of 24
// means the end of the day. An end at or before the start wraps past midnight.
func NewHourWindow(startHour, endHour int) (TimeWindow, error) {
	if startHour < 0 || startHour > 24 || endHour < 0 || endHour > 24 {
		return TimeWindow{}, fmt.Errorf("window hours out of range: %d-%d", startHour, endHour)
	}
	return NewMinuteWindow(startHour*60, endHour*60)
}

// NewMinuteWindow builds a window from minutes of the day.
func NewMinuteWindow(startMinute, endMinute int) (TimeWindow, error) {
	if startMinute < 0 || startMinute > MinutesPerDay || endMinute < 0 || endMinute > MinutesPerDay {
		return TimeWindow{}, fmt.Errorf("window minutes out of range: %d-%d", startMinute, endMinute)
	}
	if startMinute == MinutesPerDay {
		startMinute = 0
	}
	w := TimeWindow{StartMinute: startMinute, EndMinute: endMinute}
	if endMinute <= startMinute && endMinute != MinutesPerDay {
		if endMinute == startMinute {
			return TimeWindow{}, fmt.Errorf("empty window at minute %d", startMinute)
		}
		w.WrapsMidnight = true
	}
	return w, nil
}

// MustHourWindow is NewHourWindow for constants and tests.
func MustHourWindow(startHour, endHour int) TimeWindow {
	w, err := NewHourWindow(startHour, endHour)
	if err != nil {
		panic(err)
	}
	return w
}

// On realizes the window on the calendar day containing day, in loc. Only the
// portions that fall inside that calendar day are returned, in chronological order.
func (w TimeWindow) On(day time.Time, loc *time.Location) []Interval {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := day.In(loc).Date()
	at := func(minute int) time.Time {
		return time.Date(y, m, d, 0, minute, 0, 0, loc)
	}
	if !w.WrapsMidnight {
		if w.EndMinute <= w.StartMinute {
			return nil
		}
		return []Interval{{Start: at(w.StartMinute), End: at(w.EndMinute)}}
	}
	var out []Interval
	if w.EndMinute > 0 {
		out = append(out, Interval{Start: at(0), End: at(w.EndMinute)})
	}
	if w.StartMinute < MinutesPerDay {
		out = append(out, Interval{Start: at(w.StartMinute), End: at(MinutesPerDay)})
	}
	return out
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.StartMinute/60, w.StartMinute%60, w.EndMinute/60, w.EndMinute%60)
}

// Interval is an absolute half-open time range.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End-Start.
func (i Interval) Duration() time.Duration { return i.End.Sub(i.Start) }

// Empty reports a zero or negative length interval.
func (i Interval) Empty() bool { return !i.End.After(i.Start) }

// Overlaps reports whether the two half-open intervals share any instant.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}
