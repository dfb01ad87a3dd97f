package util

import (
	"strings"
	"testing"
	"time"

	"github.com/harrisonrobin/studyplan/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("PT1H30M")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	d, err = ParseDuration("")
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = ParseDuration("1h")
	assert.Error(t, err)
	_, err = ParseDuration("P1D")
	assert.Error(t, err)
}

func TestBlockEvent(t *testing.T) {
	start := time.Date(2023, 1, 1, 9, 0, 0, 0, time.UTC)
	due := start.Add(48 * time.Hour)
	block := model.Block{ID: "blk-1", TaskID: "12345678-1234-1234-1234-123456789012", Start: start, End: start.Add(45 * time.Minute)}
	task := model.Task{ID: block.TaskID, Title: "Essay", CourseID: "ENG", Category: model.CategoryWriting, EstimatedMinutes: 90, Deadline: &due}

	event, err := BlockEvent(block, task, "5")
	require.NoError(t, err)

	require.NotNil(t, event.ExtendedProperties)
	assert.Equal(t, "blk-1", event.ExtendedProperties.Private[BlockIDProperty])
	assert.Equal(t, task.ID, event.ExtendedProperties.Private[TaskIDProperty])
	assert.Equal(t, "Essay", event.Summary)
	assert.Equal(t, "5", event.ColorId)
	assert.Equal(t, "2023-01-01T09:00:00Z", event.Start.DateTime)
	assert.Equal(t, "2023-01-01T09:45:00Z", event.End.DateTime)
	assert.True(t, strings.Contains(event.Description, "Course: ENG"))

	id, ok := GetTaskIDFromEventDescription(event.Description)
	assert.True(t, ok)
	assert.Equal(t, task.ID, id)

	_, err = BlockEvent(model.Block{ID: "x", Start: start, End: start}, task, "1")
	assert.Error(t, err)
}

func TestEventNeedsUpdate(t *testing.T) {
	start := time.Date(2023, 1, 1, 9, 0, 0, 0, time.UTC)
	block := model.Block{ID: "b", TaskID: "t", Start: start, End: start.Add(time.Hour)}
	target, err := BlockEvent(block, model.Task{Title: "Read"}, "1")
	require.NoError(t, err)

	patch, err := EventNeedsUpdate(target, target)
	require.NoError(t, err)
	assert.Nil(t, patch)

	moved := block
	moved.Start = start.Add(time.Hour)
	moved.End = start.Add(2 * time.Hour)
	movedEvent, err := BlockEvent(moved, model.Task{Title: "Read"}, "1")
	require.NoError(t, err)

	patch, err = EventNeedsUpdate(target, movedEvent)
	require.NoError(t, err)
	require.NotNil(t, patch)
	assert.Equal(t, movedEvent.Start, patch.Start)
	assert.Empty(t, patch.Summary)
}
