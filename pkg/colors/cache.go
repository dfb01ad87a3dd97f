// Package colors gives every course a stable Google Calendar colour, recycling
// the least recently used one once the palette is exhausted.
package colors

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	cacheFile = "course_colors.json"

	// NoCourseColor is used for blocks whose task has no course.
	NoCourseColor = "8"
	paletteSize   = 11
)

type CourseState struct {
	ColorID  string    `json:"color_id"`
	LastUsed time.Time `json:"last_used"`
}

type ColorCache struct {
	Path    string
	Courses map[string]*CourseState `json:"courses"`
	Now     func() time.Time
	dirty   bool
}

// FileName is the default cache file name inside the state directory.
func FileName() string { return cacheFile }

func NewColorCache(path string) (*ColorCache, error) {
	cache := &ColorCache{
		Path:    path,
		Courses: make(map[string]*CourseState),
		Now:     time.Now,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cache.Load(); err != nil {
			return nil, err
		}
	}
	return cache, nil
}

func (c *ColorCache) Load() error {
	f, err := os.Open(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(&c.Courses)
}

func (c *ColorCache) Save() error {
	if !c.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0700); err != nil {
		return err
	}

	f, err := os.Create(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	err = json.NewEncoder(f).Encode(c.Courses)
	if err == nil {
		c.dirty = false
	}
	return err
}

// ColorFor returns the colour ID for a course and refreshes its LRU stamp.
func (c *ColorCache) ColorFor(course string) string {
	if course == "" {
		return NoCourseColor
	}

	if state, exists := c.Courses[course]; exists {
		state.LastUsed = c.now()
		c.dirty = true
		return state.ColorID
	}
	return c.assign(course)
}

func (c *ColorCache) assign(course string) string {
	used := make(map[string]bool, len(c.Courses))
	for _, s := range c.Courses {
		used[s.ColorID] = true
	}

	for i := 1; i <= paletteSize; i++ {
		id := strconv.Itoa(i)
		if id == NoCourseColor || used[id] {
			continue
		}
		return c.claim(course, id)
	}

	// palette full: take the colour of the least recently used course
	var oldest string
	for name, s := range c.Courses {
		if oldest == "" || s.LastUsed.Before(c.Courses[oldest].LastUsed) ||
			(s.LastUsed.Equal(c.Courses[oldest].LastUsed) && name < oldest) {
			oldest = name
		}
	}
	if oldest == "" {
		return "1"
	}
	recycled := c.Courses[oldest].ColorID
	delete(c.Courses, oldest)
	return c.claim(course, recycled)
}

func (c *ColorCache) claim(course, id string) string {
	c.Courses[course] = &CourseState{ColorID: id, LastUsed: c.now()}
	c.dirty = true
	return id
}

func (c *ColorCache) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}
