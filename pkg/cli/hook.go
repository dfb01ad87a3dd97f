package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/harrisonrobin/studyplan/pkg/taskwarrior"
	"github.com/spf13/cobra"
)

// buildHookCommand implements the Taskwarrior on-add/on-modify protocol: the
// last task read from stdin is echoed back unchanged and a re-plan is started
// in a detached process so task(1) is not kept waiting.
func buildHookCommand(a *app) *cobra.Command {
	var foreground bool
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Taskwarrior on-add/on-modify hook",
		RunE: func(cmd *cobra.Command, args []string) error {
			changed, err := echoHookTask(cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if !changed {
				return nil
			}
			if foreground {
				out, err := planOnce(commandContext(cmd), a, cmd.ErrOrStderr(), buildOptions{export: a.cfg.Export.Enabled}, true)
				if err != nil {
					return err
				}
				a.log.Info().Int("blocks", len(out.Blocks)).Msg("re-planned from hook")
				return nil
			}
			return spawnReplan(a)
		},
	}
	cmd.Flags().BoolVar(&foreground, "foreground", false, "re-plan before returning instead of in the background")
	return cmd
}

// echoHookTask writes the last task of the hook input back to w as one line,
// from its raw record so attributes studyplan does not model survive. It
// reports false when the input held no task.
func echoHookTask(r io.Reader, w io.Writer) (bool, error) {
	tasks, err := taskwarrior.ParseTasks(r)
	if err != nil {
		return false, fmt.Errorf("error parsing tasks from stdin: %w", err)
	}
	if len(tasks) == 0 {
		return false, nil
	}
	var line bytes.Buffer
	if err := json.Compact(&line, tasks[len(tasks)-1].Raw); err != nil {
		return false, fmt.Errorf("error encoding task to stdout: %w", err)
	}
	line.WriteByte('\n')
	if _, err := line.WriteTo(w); err != nil {
		return false, fmt.Errorf("error writing task to stdout: %w", err)
	}
	return true, nil
}

func spawnReplan(a *app) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("could not find self: %w", err)
	}
	args := []string{"recover", "--config", a.configPath}
	if a.calendar != "" {
		args = append(args, "--calendar", a.calendar)
	}
	c := exec.Command(self, args...)
	c.Stdout = nil
	c.Stderr = nil
	if err := c.Start(); err != nil {
		return fmt.Errorf("could not start background process: %w", err)
	}
	a.log.Debug().Int("pid", c.Process.Pid).Msg("background re-plan started")
	return c.Process.Release()
}
