// Package ics reads VEVENTs from iCalendar files and turns them into busy intervals.
package ics

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/emersion/go-ical"
	"github.com/harrisonrobin/studyplan/pkg/model"
	"github.com/teambition/rrule-go"
)

type Event struct {
	UID         string
	Summary     string
	Description string
	Location    string
	// Start and End bound the first occurrence.
	Start time.Time
	End   time.Time

	// recurrence expands RRULE, RDATE and EXDATE; nil for single events.
	recurrence *rrule.Set
}

// Recurring reports whether the event repeats.
func (e Event) Recurring() bool { return e.recurrence != nil }

// Occurrences returns the intervals of every occurrence overlapping [from, to).
func (e Event) Occurrences(from, to time.Time) []model.Interval {
	window := model.Interval{Start: from, End: to}
	dur := e.End.Sub(e.Start)
	if e.recurrence == nil {
		iv := model.Interval{Start: e.Start, End: e.End}
		if iv.Empty() || !iv.Overlaps(window) {
			return nil
		}
		return []model.Interval{iv}
	}
	if dur <= 0 {
		return nil
	}

	var out []model.Interval
	for _, start := range e.recurrence.Between(from.Add(-dur), to, true) {
		iv := model.Interval{Start: start, End: start.Add(dur)}
		if iv.Overlaps(window) {
			out = append(out, iv)
		}
	}
	return out
}

// Parse returns every VEVENT with a usable DTSTART. Events without DTEND or
// DURATION end when they start; all-day events last the whole day. Times
// without a zone are read in loc.
func Parse(r io.Reader, loc *time.Location) ([]Event, error) {
	if loc == nil {
		loc = time.Local
	}
	normalized, err := normalize(r)
	if err != nil {
		return nil, err
	}

	var events []Event
	dec := ical.NewDecoder(normalized)
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode calendar: %w", err)
		}
		for _, ev := range cal.Events() {
			if e, ok := makeEvent(ev, loc); ok {
				events = append(events, e)
			}
		}
	}
	return events, nil
}

func makeEvent(ev ical.Event, loc *time.Location) (Event, bool) {
	startProp := ev.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return Event{}, false
	}
	start, err := ev.DateTimeStart(loc)
	if err != nil || start.IsZero() {
		return Event{}, false
	}
	end, err := ev.DateTimeEnd(loc)
	if err != nil || end.Before(start) {
		end = start
	}
	if end.Equal(start) && startProp.ValueType() == ical.ValueDate {
		end = start.AddDate(0, 0, 1)
	}

	recurrence, err := ev.RecurrenceSet(loc)
	if err != nil {
		return Event{}, false
	}

	summary, _ := ev.Props.Text(ical.PropSummary)
	if summary == "" {
		summary = "Untitled"
	}
	uid, _ := ev.Props.Text(ical.PropUID)
	desc, _ := ev.Props.Text(ical.PropDescription)
	where, _ := ev.Props.Text(ical.PropLocation)
	return Event{
		UID:         uid,
		Summary:     summary,
		Description: desc,
		Location:    where,
		Start:       start,
		End:         end,
		recurrence:  recurrence,
	}, true
}

// normalize rewrites line endings to CRLF and drops blank lines, which some
// exporters emit and the decoder rejects.
func normalize(r io.Reader) (io.Reader, error) {
	var buf bytes.Buffer
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimRight(scanner.Bytes(), "\r")
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		buf.Write(line)
		buf.WriteString("\r\n")
	}
	return &buf, scanner.Err()
}

// Busy converts the occurrences overlapping [from, to) into busy intervals.
// Zero-length events are dropped.
func Busy(events []Event, from, to time.Time) []model.Interval {
	var out []model.Interval
	for _, ev := range events {
		out = append(out, ev.Occurrences(from, to)...)
	}
	return out
}

// FileSource serves busy intervals from .ics files on disk.
type FileSource struct {
	Paths    []string
	Location *time.Location
}

func (s FileSource) Name() string { return "ics" }

// Busy reads every file and returns the intervals overlapping [from, to).
func (s FileSource) Busy(ctx context.Context, from, to time.Time) ([]model.Interval, error) {
	var out []model.Interval
	for _, path := range s.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		events, err := Parse(f, s.Location)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		out = append(out, Busy(events, from, to)...)
	}
	return out, nil
}
