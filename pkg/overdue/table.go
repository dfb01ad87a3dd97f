// Package overdue tracks planned blocks between runs so blocks whose start
// has passed without being completed can be reported as missed.
package overdue

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/harrisonrobin/studyplan/pkg/model"
)

const tableFile = "planned_blocks.json"

type Status string

const (
	StatusPlanned   Status = "planned"
	StatusCompleted Status = "completed"
	StatusMissed    Status = "missed"
	// StatusStale marks a future block dropped from the plan whose calendar
	// event has not been deleted yet.
	StatusStale Status = "stale"
)

// ErrUnknownBlock is returned when a block ID is not in the table.
var ErrUnknownBlock = errors.New("unknown block")

type Entry struct {
	TaskID  string    `json:"task_id"`
	EventID string    `json:"gcal_id,omitempty"`
	Summary string    `json:"summary"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Status  Status    `json:"status"`
	// Flagged is set once the event of a missed block carries the missed marker.
	Flagged bool `json:"flagged,omitempty"`
	// Recovered is set once a missed block's minutes were planned again.
	Recovered bool `json:"recovered,omitempty"`
}

// Block converts the entry back into a planner block.
func (e Entry) Block(id string) model.Block {
	return model.Block{ID: id, TaskID: e.TaskID, Start: e.Start, End: e.End}
}

type Table struct {
	Entries map[string]Entry `json:"entries"`
	Path    string           `json:"-"`
	dirty   bool
}

// FileName is the default table file name inside the state directory.
func FileName() string { return tableFile }

func NewTable(path string) (*Table, error) {
	t := &Table{
		Path:    path,
		Entries: make(map[string]Entry),
	}

	if _, err := os.Stat(path); err == nil {
		if err := t.Load(); err != nil {
			return nil, err
		}
	}

	return t, nil
}

func (t *Table) Load() error {
	f, err := os.Open(t.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(t); err != nil {
		return err
	}
	if t.Entries == nil {
		t.Entries = make(map[string]Entry)
	}
	return nil
}

func (t *Table) Save() error {
	if !t.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(t.Path), 0700); err != nil {
		return err
	}

	f, err := os.Create(t.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	err = encoder.Encode(t)
	if err == nil {
		t.dirty = false
	}
	return err
}

// Update records a planned block, or refreshes it when any field changed.
// An empty eventID keeps the event already attached to the block.
func (t *Table) Update(block model.Block, eventID, summary string) {
	old, exists := t.Entries[block.ID]
	if eventID == "" && exists {
		eventID = old.EventID
	}
	next := Entry{
		TaskID:  block.TaskID,
		EventID: eventID,
		Summary: summary,
		Start:   block.Start,
		End:     block.End,
		Status:  StatusPlanned,
	}
	if exists && old == next {
		return
	}
	t.Entries[block.ID] = next
	t.dirty = true
}

// SetEvent attaches the exported calendar event to a known block.
func (t *Table) SetEvent(blockID, eventID string) {
	e, ok := t.Entries[blockID]
	if !ok || e.EventID == eventID {
		return
	}
	e.EventID = eventID
	t.Entries[blockID] = e
	t.dirty = true
}

// ReplacePlanned clears every still-planned entry that starts at or after
// from. Entries without an event are dropped; entries with one become stale
// until their event is deleted. Past, completed and missed entries are left
// alone. It is used before recording a fresh plan.
func (t *Table) ReplacePlanned(from time.Time) {
	for id, e := range t.Entries {
		if e.Status != StatusPlanned || e.Start.Before(from) {
			continue
		}
		if e.EventID == "" {
			delete(t.Entries, id)
		} else {
			e.Status = StatusStale
			t.Entries[id] = e
		}
		t.dirty = true
	}
}

// Stale maps the IDs of stale blocks to their calendar events.
func (t *Table) Stale() map[string]string {
	out := make(map[string]string)
	for id, e := range t.Entries {
		if e.Status == StatusStale {
			out[id] = e.EventID
		}
	}
	return out
}

func (t *Table) Remove(blockID string) {
	if _, exists := t.Entries[blockID]; exists {
		delete(t.Entries, blockID)
		t.dirty = true
	}
}

// Complete marks a block as done so the sweep never reports it.
func (t *Table) Complete(blockID string) error {
	e, ok := t.Entries[blockID]
	if !ok {
		return ErrUnknownBlock
	}
	if e.Status != StatusCompleted {
		e.Status = StatusCompleted
		t.Entries[blockID] = e
		t.dirty = true
	}
	return nil
}

// Sweep marks every planned block that started before now as missed and
// returns the newly missed blocks ordered by start.
func (t *Table) Sweep(now time.Time) []model.Block {
	var swept []model.Block
	for id, e := range t.Entries {
		if e.Status == StatusPlanned && e.Start.Before(now) {
			e.Status = StatusMissed
			t.Entries[id] = e
			t.dirty = true
			swept = append(swept, e.Block(id))
		}
	}
	sortBlocks(swept)
	return swept
}

// Missed returns the missed blocks not yet recovered, ordered by start.
func (t *Table) Missed() []model.Block {
	return t.collect(func(e Entry) bool { return e.Status == StatusMissed && !e.Recovered })
}

// Unflagged returns the missed blocks whose events still lack the missed
// marker, ordered by start.
func (t *Table) Unflagged() []model.Block {
	return t.collect(func(e Entry) bool { return e.Status == StatusMissed && e.EventID != "" && !e.Flagged })
}

// Forget records that the given blocks were planned again. An entry is kept
// until its event has been flagged.
func (t *Table) Forget(blocks []model.Block) {
	for _, b := range blocks {
		e, ok := t.Entries[b.ID]
		if !ok {
			continue
		}
		if e.Flagged || e.EventID == "" {
			t.Remove(b.ID)
			continue
		}
		if !e.Recovered {
			e.Recovered = true
			t.Entries[b.ID] = e
			t.dirty = true
		}
	}
}

// MarkFlagged records that a missed block's event carries the missed marker.
// Recovered entries are dropped at that point.
func (t *Table) MarkFlagged(blockID string) {
	e, ok := t.Entries[blockID]
	if !ok {
		return
	}
	if e.Recovered {
		t.Remove(blockID)
		return
	}
	if !e.Flagged {
		e.Flagged = true
		t.Entries[blockID] = e
		t.dirty = true
	}
}

func (t *Table) collect(match func(Entry) bool) []model.Block {
	var out []model.Block
	for id, e := range t.Entries {
		if match(e) {
			out = append(out, e.Block(id))
		}
	}
	sortBlocks(out)
	return out
}

func sortBlocks(blocks []model.Block) {
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].Start.Equal(blocks[j].Start) {
			return blocks[i].ID < blocks[j].ID
		}
		return blocks[i].Start.Before(blocks[j].Start)
	})
}
