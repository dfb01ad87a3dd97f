package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHourWindow(t *testing.T) {
	w, err := NewHourWindow(9, 18)
	require.NoError(t, err)
	assert.Equal(t, TimeWindow{StartMinute: 540, EndMinute: 1080}, w)

	w, err = NewHourWindow(18, 24)
	require.NoError(t, err)
	assert.False(t, w.WrapsMidnight)
	assert.Equal(t, MinutesPerDay, w.EndMinute)

	w, err = NewHourWindow(22, 7)
	require.NoError(t, err)
	assert.True(t, w.WrapsMidnight)

	_, err = NewHourWindow(8, 8)
	assert.Error(t, err)
	_, err = NewHourWindow(-1, 8)
	assert.Error(t, err)
	_, err = NewHourWindow(8, 25)
	assert.Error(t, err)
}

func TestTimeWindowOn(t *testing.T) {
	loc := time.UTC
	day := time.Date(2025, 3, 4, 15, 30, 0, 0, loc)

	got := MustHourWindow(9, 24).On(day, loc)
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2025, 3, 4, 9, 0, 0, 0, loc), got[0].Start)
	assert.Equal(t, time.Date(2025, 3, 5, 0, 0, 0, 0, loc), got[0].End)

	got = MustHourWindow(22, 7).On(day, loc)
	require.Len(t, got, 2)
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, loc), got[0].Start)
	assert.Equal(t, time.Date(2025, 3, 4, 7, 0, 0, 0, loc), got[0].End)
	assert.Equal(t, time.Date(2025, 3, 4, 22, 0, 0, 0, loc), got[1].Start)
	assert.Equal(t, time.Date(2025, 3, 5, 0, 0, 0, 0, loc), got[1].End)

	got = MustHourWindow(22, 0).On(day, loc)
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2025, 3, 4, 22, 0, 0, 0, loc), got[0].Start)
}

func TestGuessCategory(t *testing.T) {
	assert.Equal(t, CategoryExam, GuessCategory("Midterm Exam"))
	assert.Equal(t, CategoryQuiz, GuessCategory("quiz 3"))
	assert.Equal(t, CategoryWriting, GuessCategory("Term paper"))
	assert.Equal(t, CategoryProblemSet, GuessCategory("Lab 4"))
	assert.Equal(t, CategoryOther, GuessCategory("Read chapter 2"))
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("PSet")
	require.NoError(t, err)
	assert.Equal(t, CategoryProblemSet, c)

	_, err = ParseCategory("gardening")
	assert.Error(t, err)
}

func TestBlockMinutes(t *testing.T) {
	start := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	b := Block{Start: start, End: start.Add(95 * time.Minute)}
	assert.Equal(t, 95, b.Minutes())
}
