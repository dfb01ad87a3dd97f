// Package google talks to Google Calendar: it exports planned blocks as
// events and reads free/busy information for the planner.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/harrisonrobin/studyplan/pkg/index"
	"github.com/harrisonrobin/studyplan/pkg/model"
	"github.com/harrisonrobin/studyplan/pkg/util"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

// missedPrefix is prepended to the summary of events whose block was missed.
const missedPrefix = "! "

// SyncOutcome says what SyncBlock did.
type SyncOutcome int

const (
	Unchanged SyncOutcome = iota
	Created
	Updated
)

// CalendarClient is a Google Calendar API client bound to one calendar.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewCalendarClient creates a client for calendarID. idx may be nil.
func NewCalendarClient(srv *calendar.Service, calendarID string, idx *index.EventIndex, limiter *rate.Limiter, log zerolog.Logger) *CalendarClient {
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	return &CalendarClient{srv: srv, calendarID: calendarID, index: idx, limiter: limiter, log: log}
}

func (c *CalendarClient) CalendarID() string { return c.calendarID }

func (c *CalendarClient) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// SyncBlock creates the event for a block or patches the existing one.
func (c *CalendarClient) SyncBlock(ctx context.Context, block model.Block, task model.Task, colorID string) (*calendar.Event, SyncOutcome, error) {
	event, err := util.BlockEvent(block, task, colorID)
	if err != nil {
		return nil, Unchanged, err
	}

	var existing *calendar.Event
	if c.index != nil {
		if eventID := c.index.Get(block.ID); eventID != "" {
			existing, err = c.GetEvent(ctx, eventID)
			if err != nil {
				c.log.Debug().Err(err).Str("block", block.ID).Msg("indexed event not found, searching")
				existing = nil
			}
		}
	}

	if existing == nil {
		existing, err = c.GetEventByBlockID(ctx, block.ID)
		if err != nil {
			return nil, Unchanged, fmt.Errorf("error searching for event: %w", err)
		}
	}

	if existing != nil {
		patch, err := util.EventNeedsUpdate(existing, event)
		if err != nil {
			return nil, Unchanged, fmt.Errorf("could not compare block with its calendar event: %w", err)
		}
		if patch == nil {
			c.remember(block.ID, existing.Id)
			return existing, Unchanged, nil
		}
		updated, err := c.PatchEvent(ctx, existing.Id, patch)
		if err != nil {
			return nil, Unchanged, err
		}
		c.remember(block.ID, updated.Id)
		return updated, Updated, nil
	}

	if err := c.wait(ctx); err != nil {
		return nil, Unchanged, err
	}
	created, err := c.srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, Unchanged, err
	}
	c.remember(block.ID, created.Id)
	return created, Created, nil
}

func (c *CalendarClient) remember(blockID, eventID string) {
	if c.index != nil {
		c.index.Set(blockID, eventID)
	}
}

// GetEvent fetches a single event.
func (c *CalendarClient) GetEvent(ctx context.Context, eventID string) (*calendar.Event, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	event, err := c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if event.Status == "cancelled" {
		return nil, fmt.Errorf("event %s was cancelled", eventID)
	}
	return event, nil
}

// PatchEvent performs a partial update on an event.
func (c *CalendarClient) PatchEvent(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
}

// DeleteEvent deletes an event. An event that is already gone is not an error.
func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	err := c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
	if isGone(err) {
		return nil
	}
	return err
}

// MarkMissed flags the event of a missed block in its summary.
func (c *CalendarClient) MarkMissed(ctx context.Context, eventID, summary string) error {
	_, err := c.PatchEvent(ctx, eventID, &calendar.Event{Summary: missedPrefix + summary})
	return err
}

// ListEvents fetches events starting from timeMin.
func (c *CalendarClient) ListEvents(ctx context.Context, timeMin time.Time) ([]*calendar.Event, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	events, err := c.srv.Events.List(c.calendarID).TimeMin(timeMin.Format(time.RFC3339)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve events from calendar: %w", err)
	}
	return events.Items, nil
}

// GetEventByBlockID searches for the event carrying the block's private
// extended property.
func (c *CalendarClient) GetEventByBlockID(ctx context.Context, blockID string) (*calendar.Event, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", util.BlockIDProperty, blockID)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}

func isGone(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
	}
	return false
}
