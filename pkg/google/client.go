package google

import (
	"context"
	"fmt"

	"github.com/harrisonrobin/studyplan/pkg/index"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"
)

// NewLimiter paces calendar API calls to rps requests per second.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
}

// NewClient resolves calendarName on the authenticated service and returns a
// client bound to it. With create set, a missing calendar is created.
func NewClient(ctx context.Context, srv *calendar.Service, calendarName string, create bool, idx *index.EventIndex, limiter *rate.Limiter, log zerolog.Logger) (*CalendarClient, error) {
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}
	calendarList, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendar list: %w", err)
	}

	var calendarID string
	for _, item := range calendarList.Items {
		if item.Summary == calendarName {
			calendarID = item.Id
			break
		}
	}

	if calendarID == "" {
		if !create {
			return nil, fmt.Errorf("calendar '%s' not found", calendarName)
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
		created, err := srv.Calendars.Insert(&calendar.Calendar{Summary: calendarName}).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("unable to create calendar '%s': %w", calendarName, err)
		}
		log.Info().Str("calendar", calendarName).Str("id", created.Id).Msg("created calendar")
		calendarID = created.Id
	}

	return NewCalendarClient(srv, calendarID, idx, limiter, log), nil
}

// ResolveCalendarIDs maps calendar names to IDs. "primary" and names that
// match no calendar summary are passed through unchanged, so IDs may be
// configured directly.
func ResolveCalendarIDs(ctx context.Context, srv *calendar.Service, names []string, limiter *rate.Limiter) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}
	calendarList, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendar list: %w", err)
	}
	bySummary := make(map[string]string, len(calendarList.Items))
	for _, item := range calendarList.Items {
		bySummary[item.Summary] = item.Id
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		if id, ok := bySummary[name]; ok {
			ids = append(ids, id)
			continue
		}
		ids = append(ids, name)
	}
	return ids, nil
}
