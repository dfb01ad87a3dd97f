package planner

import (
	"testing"

	"github.com/harrisonrobin/studyplan/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func span(startHour, endHour int) model.Interval {
	return model.Interval{Start: at(4, startHour, 0), End: at(4, endHour, 0)}
}

func TestSubtractContainingWindowRemovesInterval(t *testing.T) {
	assert.Empty(t, Subtract(span(10, 12), span(9, 13)))
	assert.Empty(t, Subtract(span(10, 12), span(10, 12)))
}

func TestSubtractDisjointWindowKeepsInterval(t *testing.T) {
	got := Subtract(span(10, 12), span(13, 14))
	require.Len(t, got, 1)
	assert.Equal(t, span(10, 12), got[0])

	// touching edges do not overlap
	got = Subtract(span(10, 12), span(12, 14))
	require.Len(t, got, 1)
	assert.Equal(t, span(10, 12), got[0])
}

func TestSubtractTailOverlapKeepsHead(t *testing.T) {
	got := Subtract(span(9, 12), span(11, 13))
	require.Len(t, got, 1)
	assert.Equal(t, at(4, 9, 0), got[0].Start)
	assert.Equal(t, at(4, 11, 0), got[0].End)
}

func TestSubtractHeadOverlapKeepsTail(t *testing.T) {
	got := Subtract(span(9, 12), span(8, 10))
	require.Len(t, got, 1)
	assert.Equal(t, span(10, 12), got[0])
}

func TestSubtractInnerWindowSplits(t *testing.T) {
	got := Subtract(span(9, 18), span(12, 13))
	require.Len(t, got, 2)
	assert.Equal(t, span(9, 12), got[0])
	assert.Equal(t, span(13, 18), got[1])
}

func TestAvailabilityIsChronological(t *testing.T) {
	c := constraints(4, 20, 2) // wraps midnight
	c.Blackouts = []model.TimeWindow{model.MustHourWindow(23, 24)}

	got := availability(at(4, 15, 0), c)
	require.Len(t, got, 2)
	assert.Equal(t, span(0, 2), got[0])
	assert.Equal(t, span(20, 23), got[1])
}

func TestAvailabilityIgnoresBusyOnOtherDays(t *testing.T) {
	c := constraints(4, 9, 18)
	c.Busy = []model.Interval{{Start: at(5, 9, 0), End: at(5, 18, 0)}}

	got := availability(at(4, 0, 0), c)
	require.Len(t, got, 1)
	assert.Equal(t, span(9, 18), got[0])
}

func TestAvailabilitySubtractsBusySpanningMidnight(t *testing.T) {
	c := constraints(4, 0, 24)
	c.Busy = []model.Interval{{Start: at(3, 22, 0), End: at(4, 3, 0)}}

	got := availability(at(4, 12, 0), c)
	require.Len(t, got, 1)
	assert.Equal(t, at(4, 3, 0), got[0].Start)
}
