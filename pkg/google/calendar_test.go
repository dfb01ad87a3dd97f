package google

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harrisonrobin/studyplan/pkg/colors"
	"github.com/harrisonrobin/studyplan/pkg/index"
	"github.com/harrisonrobin/studyplan/pkg/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
)

var monday = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func newExporter(t *testing.T) (*Exporter, *fakeCalendar) {
	t.Helper()
	srv, fake := newFakeService(t)
	dir := t.TempDir()
	idx, err := index.NewEventIndex(filepath.Join(dir, index.FileName()))
	require.NoError(t, err)
	cc, err := colors.NewColorCache(filepath.Join(dir, colors.FileName()))
	require.NoError(t, err)

	client, err := NewClient(context.Background(), srv, "Study", false, idx, NewLimiter(0), zerolog.Nop())
	require.NoError(t, err)
	return &Exporter{Client: client, Index: idx, Colors: cc, Log: zerolog.Nop()}, fake
}

func TestNewClientResolvesOrCreatesCalendar(t *testing.T) {
	srv, _ := newFakeService(t)
	ctx := context.Background()

	client, err := NewClient(ctx, srv, "Study", false, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "cal-study", client.CalendarID())

	_, err = NewClient(ctx, srv, "Missing", false, nil, NewLimiter(0), zerolog.Nop())
	assert.Error(t, err)

	created, err := NewClient(ctx, srv, "Missing", true, nil, NewLimiter(0), zerolog.Nop())
	require.NoError(t, err)
	assert.NotEmpty(t, created.CalendarID())
}

func TestResolveCalendarIDs(t *testing.T) {
	srv, _ := newFakeService(t)
	ids, err := ResolveCalendarIDs(context.Background(), srv, []string{"School", "primary"}, NewLimiter(0))
	require.NoError(t, err)
	assert.Equal(t, []string{"cal-school", "primary"}, ids)
}

func TestExportCreatesThenSkipsUnchanged(t *testing.T) {
	exp, fake := newExporter(t)
	ctx := context.Background()
	task := model.Task{ID: "essay", Title: "Essay", CourseID: "ENG"}
	blocks := []model.Block{
		{ID: "b1", TaskID: "essay", Start: monday, End: monday.Add(time.Hour)},
		{ID: "b2", TaskID: "essay", Start: monday.Add(24 * time.Hour), End: monday.Add(25 * time.Hour)},
	}

	report, err := exp.Export(ctx, blocks, []model.Task{task}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	require.Len(t, report.EventIDs, 2)
	assert.Equal(t, report.EventIDs["b1"], exp.Index.Get("b1"))

	again, err := exp.Export(ctx, blocks, []model.Task{task}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 2, again.Unchanged)
	assert.Len(t, fake.events, 2)
}

func TestExportPatchesChangedAndDeletesStale(t *testing.T) {
	exp, fake := newExporter(t)
	ctx := context.Background()
	task := model.Task{ID: "essay", Title: "Essay"}
	b1 := model.Block{ID: "b1", TaskID: "essay", Start: monday, End: monday.Add(time.Hour)}
	b2 := model.Block{ID: "b2", TaskID: "essay", Start: monday.Add(2 * time.Hour), End: monday.Add(3 * time.Hour)}

	_, err := exp.Export(ctx, []model.Block{b1, b2}, []model.Task{task}, nil)
	require.NoError(t, err)
	staleEvent := exp.Index.Get("b2")

	task.Title = "Essay draft"
	report, err := exp.Export(ctx, []model.Block{b1}, []model.Task{task}, map[string]string{"b1": "", "b2": ""})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, []string{"b2"}, report.Removed)
	assert.Empty(t, exp.Index.Get("b2"))
	assert.NotContains(t, fake.events, staleEvent)
	assert.Equal(t, "Essay draft", fake.events[exp.Index.Get("b1")].Summary)
}

func TestExportDeletesStaleEventsMissingFromIndex(t *testing.T) {
	exp, fake := newExporter(t)
	ctx := context.Background()
	task := model.Task{ID: "essay", Title: "Essay"}
	b := model.Block{ID: "old", TaskID: "essay", Start: monday, End: monday.Add(time.Hour)}

	_, err := exp.Export(ctx, []model.Block{b}, []model.Task{task}, nil)
	require.NoError(t, err)
	eventID := exp.Index.Get("old")
	require.NotEmpty(t, eventID)
	exp.Index.Remove("old")

	report, err := exp.Export(ctx, nil, []model.Task{task}, map[string]string{"old": eventID, "unknown": ""})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, []string{"old", "unknown"}, report.Removed)
	assert.NotContains(t, fake.events, eventID)

	// deleting an event that is already gone still clears the block
	report, err = exp.Export(ctx, nil, nil, map[string]string{"old": eventID})
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, report.Removed)
	assert.Zero(t, report.Failed)
}

func TestSyncBlockFallsBackToSearch(t *testing.T) {
	exp, fake := newExporter(t)
	ctx := context.Background()
	b := model.Block{ID: "b1", TaskID: "t", Start: monday, End: monday.Add(time.Hour)}

	_, outcome, err := exp.Client.SyncBlock(ctx, b, model.Task{ID: "t", Title: "Read"}, "1")
	require.NoError(t, err)
	assert.Equal(t, Created, outcome)

	// losing the local index must not duplicate the event
	exp.Index.Set("b1", "evt-missing")
	_, outcome, err = exp.Client.SyncBlock(ctx, b, model.Task{ID: "t", Title: "Read"}, "1")
	require.NoError(t, err)
	assert.Equal(t, Unchanged, outcome)
	assert.Len(t, fake.events, 1)
	assert.Equal(t, 1, fake.count("GET event"))
	assert.Equal(t, 2, fake.count("GET events"), "searched before create and after the index miss")
}

func TestMarkMissedAndDeleteGone(t *testing.T) {
	exp, fake := newExporter(t)
	ctx := context.Background()
	b := model.Block{ID: "b1", TaskID: "t", Start: monday, End: monday.Add(time.Hour)}
	ev, _, err := exp.Client.SyncBlock(ctx, b, model.Task{ID: "t", Title: "Read"}, "")
	require.NoError(t, err)

	require.NoError(t, exp.MarkMissed(ctx, ev.Id, "Read"))
	assert.True(t, strings.HasPrefix(fake.events[ev.Id].Summary, missedPrefix))

	require.NoError(t, exp.Client.DeleteEvent(ctx, ev.Id))
	require.NoError(t, exp.Client.DeleteEvent(ctx, ev.Id), "deleting twice is fine")
}

func TestFreeBusy(t *testing.T) {
	srv, fake := newFakeService(t)
	fake.busy["cal-school"] = []*calendar.TimePeriod{
		{Start: "2025-03-04T13:00:00Z", End: "2025-03-04T14:30:00Z"},
		{Start: "2025-03-03T10:00:00Z", End: "2025-03-03T11:00:00Z"},
	}
	fb := NewFreeBusy(srv, []string{"cal-school"}, NewLimiter(0))
	assert.Equal(t, "google", fb.Name())

	busy, err := fb.Busy(context.Background(), monday, monday.Add(7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, busy, 2)
	assert.Equal(t, time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC), busy[0].Start.UTC())
	assert.Equal(t, 90*time.Minute, busy[1].Duration())

	_, err = NewFreeBusy(srv, []string{"broken"}, nil).Busy(context.Background(), monday, monday.Add(time.Hour))
	assert.ErrorContains(t, err, "notFound")

	none, err := NewFreeBusy(srv, nil, nil).Busy(context.Background(), monday, monday.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}
