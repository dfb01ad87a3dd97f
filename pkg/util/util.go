package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/studyplan/pkg/model"
	"google.golang.org/api/calendar/v3"
)

const (
	// BlockIDProperty and TaskIDProperty are private extended properties set
	// on exported events.
	BlockIDProperty = "studyplan_block"
	TaskIDProperty  = "studyplan_task"
)

var durationRe = regexp.MustCompile(`(\d+)([HMS])`)

// ParseDuration parses ISO 8601 duration format (PT1H30M) from Taskwarrior JSON export
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	if len(s) < 2 || s[0] != 'P' {
		return 0, fmt.Errorf("invalid ISO 8601 duration format: %s", s)
	}

	s = s[1:]
	if len(s) == 0 || s[0] != 'T' {
		return 0, fmt.Errorf("invalid ISO 8601 duration (missing T): P%s", s)
	}
	s = s[1:]

	var total time.Duration
	for _, match := range durationRe.FindAllStringSubmatch(s, -1) {
		value, _ := strconv.Atoi(match[1])
		switch match[2] {
		case "H":
			total += time.Duration(value) * time.Hour
		case "M":
			total += time.Duration(value) * time.Minute
		case "S":
			total += time.Duration(value) * time.Second
		}
	}

	if total == 0 {
		return 0, fmt.Errorf("invalid ISO 8601 duration: PT%s", s)
	}

	return total, nil
}

// BlockEvent converts a planned block into a calendar event. task may be the
// zero value when the owning task is unknown.
func BlockEvent(block model.Block, task model.Task, colorID string) (*calendar.Event, error) {
	if !block.End.After(block.Start) {
		return nil, fmt.Errorf("block %s has no duration", block.ID)
	}

	summary := task.Title
	if summary == "" {
		summary = "Study block"
	}

	var desc strings.Builder
	desc.WriteString("Planned study block\n")
	if task.CourseID != "" {
		desc.WriteString(fmt.Sprintf("Course: %s\n", task.CourseID))
	}
	if task.Category != "" {
		desc.WriteString(fmt.Sprintf("Category: %s\n", task.Category))
	}
	desc.WriteString(fmt.Sprintf("Block: %d min\n", block.Minutes()))
	if task.EstimatedMinutes > 0 {
		desc.WriteString(fmt.Sprintf("• estimated: %s\n", time.Duration(task.EstimatedMinutes)*time.Minute))
	}
	if task.HasDeadline() {
		desc.WriteString(fmt.Sprintf("• due: %s\n", task.Deadline.Format("Mon Jan 2 15:04")))
	}
	desc.WriteString(fmt.Sprintf("UUID: %s\n", block.TaskID))

	return &calendar.Event{
		Summary:     summary,
		ColorId:     colorID,
		Description: desc.String(),
		Start: &calendar.EventDateTime{
			DateTime: block.Start.UTC().Format(time.RFC3339),
		},
		End: &calendar.EventDateTime{
			DateTime: block.End.UTC().Format(time.RFC3339),
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				BlockIDProperty: block.ID,
				TaskIDProperty:  block.TaskID,
			},
		},
	}, nil
}

// EventNeedsUpdate returns a patch when the shared fields of the existing and
// target events differ, or nil when they match.
func EventNeedsUpdate(existingEvent *calendar.Event, targetEvent *calendar.Event) (*calendar.Event, error) {
	patch := &calendar.Event{}
	needsUpdate := false

	if existingEvent.Summary != targetEvent.Summary {
		patch.Summary = targetEvent.Summary
		needsUpdate = true
	}
	if existingEvent.Description != targetEvent.Description {
		patch.Description = targetEvent.Description
		needsUpdate = true
	}
	if existingEvent.ColorId != targetEvent.ColorId {
		patch.ColorId = targetEvent.ColorId
		needsUpdate = true
	}

	if existingEvent.Start == nil || existingEvent.End == nil {
		patch.Start = targetEvent.Start
		patch.End = targetEvent.End
		return patch, nil
	}
	existingStart, err := time.Parse(time.RFC3339, existingEvent.Start.DateTime)
	if err != nil {
		return nil, err
	}
	targetStart, err := time.Parse(time.RFC3339, targetEvent.Start.DateTime)
	if err != nil {
		return nil, err
	}
	existingEnd, err := time.Parse(time.RFC3339, existingEvent.End.DateTime)
	if err != nil {
		return nil, err
	}
	targetEnd, err := time.Parse(time.RFC3339, targetEvent.End.DateTime)
	if err != nil {
		return nil, err
	}

	if !existingStart.Equal(targetStart) || !existingEnd.Equal(targetEnd) {
		patch.Start = targetEvent.Start
		patch.End = targetEvent.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch, nil
	}
	return nil, nil
}

var uuidLineRe = regexp.MustCompile(`UUID: ([a-zA-Z0-9\-]+)`)

// GetTaskIDFromEventDescription parses the task ID from the event description.
func GetTaskIDFromEventDescription(description string) (string, bool) {
	matches := uuidLineRe.FindStringSubmatch(description)
	if len(matches) > 1 {
		return matches[1], true
	}
	return "", false
}
