package taskwarrior

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/harrisonrobin/studyplan/pkg/model"
)

type Client struct {
	// Binary is the taskwarrior executable, "task" by default.
	Binary string
	Filter []string
}

func NewClient(filter []string) *Client {
	return &Client{Binary: "task", Filter: filter}
}

func (c *Client) GetTasks(ctx context.Context) ([]Task, error) {
	args := append(append([]string(nil), c.Filter...), "export", "rc.hooks=0")
	cmd := exec.CommandContext(ctx, c.Binary, args...)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("taskwarrior command failed: exit code %d, %s, stderr: %s",
				exitErr.ExitCode(), err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("taskwarrior command failed: %w", err)
	}

	var tasks []Task
	if err := json.Unmarshal(output, &tasks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal taskwarrior output: %w", err)
	}
	return tasks, nil
}

// Tasks implements the planning pipeline's task source.
func (c *Client) Tasks(ctx context.Context) ([]model.Task, error) {
	tasks, err := c.GetTasks(ctx)
	if err != nil {
		return nil, err
	}
	return Convert(tasks), nil
}

// Convert keeps schedulable tasks and maps them onto the planner model.
func Convert(tasks []Task) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if !t.Schedulable() {
			continue
		}
		out = append(out, t.ToModel())
	}
	return out
}

// ParseTasks parses a JSON array or a stream of JSON objects, as written by
// `task export` and by hooks respectively. Every task keeps its raw record.
func ParseTasks(r io.Reader) ([]Task, error) {
	var tasks []Task
	decoder := json.NewDecoder(r)
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to decode task json: %w", err)
		}
		records := []json.RawMessage{raw}
		if len(raw) > 0 && raw[0] == '[' {
			records = nil
			if err := json.Unmarshal(raw, &records); err != nil {
				return nil, fmt.Errorf("failed to decode task array: %w", err)
			}
		}
		for _, rec := range records {
			task, err := parseTask(rec)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func parseTask(rec json.RawMessage) (Task, error) {
	var task Task
	if err := json.Unmarshal(rec, &task); err != nil {
		return Task{}, fmt.Errorf("failed to decode task json: %w", err)
	}
	task.Raw = rec
	return task, nil
}
