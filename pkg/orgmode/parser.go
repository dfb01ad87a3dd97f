package orgmode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/studyplan/pkg/estimate"
	"github.com/harrisonrobin/studyplan/pkg/model"
)

var (
	headingRegex  = regexp.MustCompile(`^\*+ (TODO|NEXT|STARTED|DONE)\s*(?:\[#([A-Z])\])?\s*(.*?)(?:\s+(:(\w+(:\w+)*):))?\s*$`)
	deadlineRegex = regexp.MustCompile(`DEADLINE:\s+<(\d{4}-\d{2}-\d{2})(?:\s+[A-Za-z]{2,3})?(?:\s+(\d{2}:\d{2}))?>`)
	propertyRegex = regexp.MustCompile(`^:([A-Za-z_]+):\s+(.+)$`)
	effortRegex   = regexp.MustCompile(`^(?:(\d+):)?(\d+)$`)
)

// priorityWeight maps org priority cookies onto the planner's 0-100 weight scale.
var priorityWeight = map[string]float64{"A": 100, "B": 50, "C": 20}

// Source reads tasks from a fixed set of Org files.
type Source struct {
	Files []string
	// Location interprets deadlines without a zone. Nil means time.Local.
	Location *time.Location
}

// Tasks implements the planning pipeline's task source.
func (s Source) Tasks(ctx context.Context) ([]model.Task, error) {
	return ParseFiles(s.Files, s.Location)
}

func parseFile(filePath string, loc *time.Location) ([]model.Task, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file, loc)
}

// ParseFiles parses multiple Org-mode files and returns a slice of tasks.
func ParseFiles(filePaths []string, loc *time.Location) ([]model.Task, error) {
	var allTasks []model.Task
	for _, filePath := range filePaths {
		tasks, err := parseFile(filePath, loc)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", filePath, err)
		}
		allTasks = append(allTasks, tasks...)
	}
	return allTasks, nil
}

// Parse reads headings with a property drawer carrying an :ID:. Recognized
// properties are EFFORT (minutes or h:mm), CATEGORY, COURSE and IMPORTANCE.
// A task is emitted when its drawer closes.
func Parse(r io.Reader, loc *time.Location) ([]model.Task, error) {
	if loc == nil {
		loc = time.Local
	}
	scanner := bufio.NewScanner(r)
	var tasks []model.Task
	var current *model.Task
	effortSet := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if matches := headingRegex.FindStringSubmatch(line); matches != nil {
			current = &model.Task{
				Title:            strings.TrimSpace(matches[3]),
				Status:           headingStatus(matches[1]),
				Weight:           priorityWeight[matches[2]],
				CourseImportance: 0.5,
			}
			effortSet = false
			if matches[5] != "" {
				current.CourseID = strings.Split(matches[5], ":")[0]
			}
			continue
		}
		if current == nil {
			continue
		}

		if matches := deadlineRegex.FindStringSubmatch(line); matches != nil {
			layout, value := "2006-01-02", matches[1]
			if matches[2] != "" {
				layout, value = "2006-01-02 15:04", matches[1]+" "+matches[2]
			}
			if deadline, err := time.ParseInLocation(layout, value, loc); err == nil {
				current.Deadline = &deadline
			}
			continue
		}

		if line == ":END:" {
			if current.Title != "" && current.ID != "" {
				if current.Category == "" {
					current.Category = model.GuessCategory(current.Title)
				}
				if !effortSet {
					current.EstimatedMinutes = estimate.TemplateMinutes(current.Category)
				}
				tasks = append(tasks, *current)
			}
			current = nil
			continue
		}

		if matches := propertyRegex.FindStringSubmatch(line); matches != nil {
			value := strings.TrimSpace(matches[2])
			switch strings.ToUpper(matches[1]) {
			case "ID":
				current.ID = value
			case "EFFORT":
				if m, ok := parseEffort(value); ok {
					current.EstimatedMinutes = m
					effortSet = true
				}
			case "CATEGORY":
				if c, err := model.ParseCategory(value); err == nil {
					current.Category = c
				}
			case "COURSE":
				current.CourseID = value
			case "IMPORTANCE":
				if f, err := strconv.ParseFloat(value, 64); err == nil {
					current.CourseImportance = f
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return tasks, nil
}

func headingStatus(keyword string) model.Status {
	switch keyword {
	case "DONE":
		return model.StatusCompleted
	case "STARTED", "NEXT":
		return model.StatusInProgress
	}
	return model.StatusNotStarted
}

// parseEffort accepts "90" (minutes) or "1:30" (hours:minutes).
func parseEffort(s string) (int, bool) {
	m := effortRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	minutes, _ := strconv.Atoi(m[2])
	if m[1] != "" {
		hours, _ := strconv.Atoi(m[1])
		minutes += hours * 60
	}
	return minutes, true
}

// FilterTasks filters a slice of tasks by course.
func FilterTasks(tasks []model.Task, course string) []model.Task {
	var filteredTasks []model.Task
	for _, task := range tasks {
		if task.CourseID == course {
			filteredTasks = append(filteredTasks, task)
		}
	}
	return filteredTasks
}
