package google

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harrisonrobin/studyplan/pkg/model"
	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"
)

// FreeBusy reads busy intervals from a set of calendars.
type FreeBusy struct {
	srv         *calendar.Service
	calendarIDs []string
	limiter     *rate.Limiter
}

func NewFreeBusy(srv *calendar.Service, calendarIDs []string, limiter *rate.Limiter) *FreeBusy {
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	return &FreeBusy{srv: srv, calendarIDs: calendarIDs, limiter: limiter}
}

func (f *FreeBusy) Name() string { return "google" }

// Busy queries free/busy for [from, to). Per-calendar errors reported by the
// API fail the whole query.
func (f *FreeBusy) Busy(ctx context.Context, from, to time.Time) ([]model.Interval, error) {
	if len(f.calendarIDs) == 0 || !to.After(from) {
		return nil, nil
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	items := make([]*calendar.FreeBusyRequestItem, 0, len(f.calendarIDs))
	for _, id := range f.calendarIDs {
		items = append(items, &calendar.FreeBusyRequestItem{Id: id})
	}
	resp, err := f.srv.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   items,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("free/busy query failed: %w", err)
	}

	var busy []model.Interval
	for _, id := range f.calendarIDs {
		cal, ok := resp.Calendars[id]
		if !ok {
			continue
		}
		if len(cal.Errors) > 0 {
			reasons := make([]string, 0, len(cal.Errors))
			for _, e := range cal.Errors {
				reasons = append(reasons, e.Reason)
			}
			return nil, fmt.Errorf("free/busy for %s: %s", id, strings.Join(reasons, ", "))
		}
		for _, p := range cal.Busy {
			iv, err := parsePeriod(p)
			if err != nil {
				return nil, fmt.Errorf("free/busy for %s: %w", id, err)
			}
			if !iv.Empty() {
				busy = append(busy, iv)
			}
		}
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
	return busy, nil
}

func parsePeriod(p *calendar.TimePeriod) (model.Interval, error) {
	start, err := time.Parse(time.RFC3339, p.Start)
	if err != nil {
		return model.Interval{}, err
	}
	end, err := time.Parse(time.RFC3339, p.End)
	if err != nil {
		return model.Interval{}, err
	}
	return model.Interval{Start: start, End: end}, nil
}
