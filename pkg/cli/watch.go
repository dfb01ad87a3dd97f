package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const defaultDebounce = 2 * time.Second

func buildWatchCommand(a *app) *cobra.Command {
	var (
		spec       string
		export     bool
		recovering bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-plan on a schedule and whenever a task or calendar file changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if spec == "" {
				spec = a.cfg.Watch.Cron
			}
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			loc, err := a.location()
			if err != nil {
				return err
			}
			opts := buildOptions{export: export || a.cfg.Export.Enabled}
			return runWatch(ctx, a.log, spec, loc, watchedPaths(a), func(ctx context.Context) error {
				out, err := planOnce(ctx, a, cmd.ErrOrStderr(), opts, recovering)
				if err != nil {
					return err
				}
				a.log.Info().Int("blocks", len(out.Blocks)).Int("minutes", out.TotalMinutes()).Msg("re-planned")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&spec, "cron", "", "cron schedule for periodic re-planning (default from config)")
	cmd.Flags().BoolVar(&export, "export", false, "write every plan to Google Calendar")
	cmd.Flags().BoolVar(&recovering, "recover", true, "re-plan missed blocks on every run")
	return cmd
}

// watchedPaths lists the files and directories whose changes trigger a run.
func watchedPaths(a *app) []string {
	var paths []string
	switch a.cfg.Sources.Tasks {
	case sourceOrgmode:
		paths = append(paths, a.cfg.Sources.OrgFiles...)
	case sourceTaskwarrior:
		if home, err := os.UserHomeDir(); err == nil {
			dir := filepath.Join(home, ".task")
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				paths = append(paths, dir)
			}
		}
	}
	return append(paths, a.cfg.Sources.ICSFiles...)
}

func newScheduler(loc *time.Location) *cron.Cron {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return cron.New(cron.WithParser(parser), cron.WithLocation(loc))
}

// runWatch runs plan once, then again on every cron tick or file change,
// never concurrently, until ctx is cancelled.
func runWatch(ctx context.Context, log zerolog.Logger, spec string, loc *time.Location, paths []string, plan func(context.Context) error) error {
	triggers := make(chan string, 1)
	trigger := func(reason string) {
		select {
		case triggers <- reason:
		default:
		}
	}

	sched := newScheduler(loc)
	if _, err := sched.AddFunc(spec, func() { trigger("cron") }); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	if len(paths) > 0 {
		fw, err := newFileWatcher(paths, defaultDebounce, func(path string) {
			log.Debug().Str("path", path).Msg("change detected")
			trigger("change")
		})
		if err != nil {
			return err
		}
		go func() {
			if err := fw.Run(ctx); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("file watcher stopped")
			}
		}()
	}

	log.Info().Str("cron", spec).Strs("paths", paths).Msg("watching")
	trigger("startup")
	for {
		select {
		case <-ctx.Done():
			return nil
		case reason := <-triggers:
			log.Debug().Str("reason", reason).Msg("planning")
			if err := plan(ctx); err != nil {
				log.Error().Err(err).Str("reason", reason).Msg("planning failed")
			}
		}
	}
}

// fileWatcher reports debounced changes to a set of files and directories.
// Files are watched through their parent directory so editors that replace
// the file on save are still seen.
type fileWatcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	dirs     map[string]bool
	debounce time.Duration
	onChange func(path string)
}

func newFileWatcher(paths []string, debounce time.Duration, onChange func(string)) (*fileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	fw := &fileWatcher{
		watcher:  w,
		files:    map[string]bool{},
		dirs:     map[string]bool{},
		debounce: debounce,
		onChange: onChange,
	}

	added := map[string]bool{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		dir := abs
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			fw.dirs[abs] = true
		} else {
			fw.files[abs] = true
			dir = filepath.Dir(abs)
		}
		if added[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		added[dir] = true
	}
	return fw, nil
}

func (fw *fileWatcher) relevant(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	return fw.files[abs] || fw.dirs[filepath.Dir(abs)]
}

// Run blocks until ctx is cancelled or the watcher fails.
func (fw *fileWatcher) Run(ctx context.Context) error {
	defer fw.watcher.Close()

	var (
		mu    sync.Mutex
		timer *time.Timer
		last  string
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
				!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if !fw.relevant(event.Name) {
				continue
			}
			mu.Lock()
			last = event.Name
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(fw.debounce, func() {
				mu.Lock()
				path := last
				mu.Unlock()
				fw.onChange(path)
			})
			mu.Unlock()
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}
