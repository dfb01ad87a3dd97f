package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// fakeCalendar is an in-memory stand-in for the Calendar API endpoints the
// client uses.
type fakeCalendar struct {
	mu        sync.Mutex
	calendars map[string]string // id -> summary
	events    map[string]*calendar.Event
	busy      map[string][]*calendar.TimePeriod
	nextID    int
	calls     map[string]int
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{
		calendars: map[string]string{"cal-study": "Study", "cal-school": "School"},
		events:    map[string]*calendar.Event{},
		busy:      map[string][]*calendar.TimePeriod{},
		calls:     map[string]int{},
	}
}

func (f *fakeCalendar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.Trim(r.URL.Path, "/")
	parts := strings.Split(path, "/")
	key := r.Method + " " + parts[0]
	switch len(parts) {
	case 3:
		key = r.Method + " events"
	case 4:
		key = r.Method + " event"
	}
	f.calls[key]++

	switch {
	case r.Method == http.MethodGet && path == "users/me/calendarList":
		list := &calendar.CalendarList{}
		for id, summary := range f.calendars {
			list.Items = append(list.Items, &calendar.CalendarListEntry{Id: id, Summary: summary})
		}
		writeJSON(w, list)

	case r.Method == http.MethodPost && path == "calendars":
		var cal calendar.Calendar
		_ = json.NewDecoder(r.Body).Decode(&cal)
		f.nextID++
		cal.Id = fmt.Sprintf("cal-%d", f.nextID)
		f.calendars[cal.Id] = cal.Summary
		writeJSON(w, &cal)

	case r.Method == http.MethodPost && path == "freeBusy":
		var req calendar.FreeBusyRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := &calendar.FreeBusyResponse{Calendars: map[string]calendar.FreeBusyCalendar{}}
		for _, item := range req.Items {
			if item.Id == "broken" {
				resp.Calendars[item.Id] = calendar.FreeBusyCalendar{Errors: []*calendar.Error{{Domain: "global", Reason: "notFound"}}}
				continue
			}
			resp.Calendars[item.Id] = calendar.FreeBusyCalendar{Busy: f.busy[item.Id]}
		}
		writeJSON(w, resp)

	case len(parts) == 3 && parts[2] == "events" && r.Method == http.MethodPost:
		var ev calendar.Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		f.nextID++
		ev.Id = fmt.Sprintf("evt-%d", f.nextID)
		f.events[ev.Id] = &ev
		writeJSON(w, &ev)

	case len(parts) == 3 && parts[2] == "events" && r.Method == http.MethodGet:
		out := &calendar.Events{}
		want := r.URL.Query().Get("privateExtendedProperty")
		for _, ev := range f.events {
			if want == "" || matchesProperty(ev, want) {
				out.Items = append(out.Items, ev)
			}
		}
		writeJSON(w, out)

	case len(parts) == 4 && parts[2] == "events":
		ev, ok := f.events[parts[3]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]any{"error": map[string]any{"code": 404, "message": "Not Found"}})
			return
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, ev)
		case http.MethodPatch:
			var patch calendar.Event
			_ = json.NewDecoder(r.Body).Decode(&patch)
			if patch.Summary != "" {
				ev.Summary = patch.Summary
			}
			if patch.Description != "" {
				ev.Description = patch.Description
			}
			if patch.ColorId != "" {
				ev.ColorId = patch.ColorId
			}
			if patch.Start != nil {
				ev.Start = patch.Start
			}
			if patch.End != nil {
				ev.End = patch.End
			}
			writeJSON(w, ev)
		case http.MethodDelete:
			delete(f.events, parts[3])
			w.WriteHeader(http.StatusNoContent)
		}

	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotImplemented)
	}
}

func (f *fakeCalendar) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func matchesProperty(ev *calendar.Event, kv string) bool {
	k, v, _ := strings.Cut(kv, "=")
	return ev.ExtendedProperties != nil && ev.ExtendedProperties.Private[k] == v
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeService(t *testing.T) (*calendar.Service, *fakeCalendar) {
	t.Helper()
	fake := newFakeCalendar()
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	srv, err := calendar.NewService(context.Background(),
		option.WithEndpoint(ts.URL+"/"),
		option.WithHTTPClient(ts.Client()),
	)
	require.NoError(t, err)
	return srv, fake
}
