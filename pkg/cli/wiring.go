package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/harrisonrobin/studyplan/pkg/auth"
	"github.com/harrisonrobin/studyplan/pkg/colors"
	"github.com/harrisonrobin/studyplan/pkg/config"
	"github.com/harrisonrobin/studyplan/pkg/google"
	"github.com/harrisonrobin/studyplan/pkg/history"
	"github.com/harrisonrobin/studyplan/pkg/ics"
	"github.com/harrisonrobin/studyplan/pkg/index"
	"github.com/harrisonrobin/studyplan/pkg/metrics"
	"github.com/harrisonrobin/studyplan/pkg/model"
	"github.com/harrisonrobin/studyplan/pkg/orgmode"
	"github.com/harrisonrobin/studyplan/pkg/overdue"
	"github.com/harrisonrobin/studyplan/pkg/pipeline"
	"github.com/harrisonrobin/studyplan/pkg/taskwarrior"
	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"
)

const (
	sourceTaskwarrior = "taskwarrior"
	sourceOrgmode     = "orgmode"
)

// stdinTasks reads a Taskwarrior export from a reader, as a hook would
// receive it.
type stdinTasks struct {
	r io.Reader
}

func (s stdinTasks) Tasks(context.Context) ([]model.Task, error) {
	tasks, err := taskwarrior.ParseTasks(s.r)
	if err != nil {
		return nil, err
	}
	return taskwarrior.Convert(tasks), nil
}

type buildOptions struct {
	export bool
	stdin  io.Reader
}

// closers releases what buildPipeline opened.
type closers []func() error

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i]())
	}
	return errors.Join(errs...)
}

func (a *app) taskSource(stdin io.Reader) (pipeline.TaskSource, error) {
	if stdin != nil {
		return stdinTasks{r: stdin}, nil
	}
	switch a.cfg.Sources.Tasks {
	case sourceTaskwarrior:
		return taskwarrior.NewClient(a.cfg.Sources.TaskFilter), nil
	case sourceOrgmode:
		if len(a.cfg.Sources.OrgFiles) == 0 {
			return nil, errors.New("org-mode source selected but sources.org_files is empty")
		}
		loc, err := a.location()
		if err != nil {
			return nil, err
		}
		return orgmode.Source{Files: a.cfg.Sources.OrgFiles, Location: loc}, nil
	default:
		return nil, fmt.Errorf("unknown task source %q", a.cfg.Sources.Tasks)
	}
}

func (a *app) authenticator(out io.Writer) (*auth.Authenticator, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	return &auth.Authenticator{Dir: dir, Log: a.log, Out: out}, nil
}

func (a *app) calendarService(ctx context.Context, out io.Writer) (*calendar.Service, error) {
	au, err := a.authenticator(out)
	if err != nil {
		return nil, err
	}
	return au.CalendarService(ctx)
}

func (a *app) historyStore(ctx context.Context) (*history.Store, error) {
	path := a.cfg.History.Path
	if path == "" {
		var err error
		if path, err = config.StatePath(history.FileName()); err != nil {
			return nil, err
		}
	}
	return history.Open(ctx, path)
}

// buildPipeline wires every configured collaborator. Optional collaborators
// that fail to initialise are logged and left out.
func (a *app) buildPipeline(ctx context.Context, out io.Writer, opts buildOptions) (*pipeline.Pipeline, closers, error) {
	var cl closers
	tasks, err := a.taskSource(opts.stdin)
	if err != nil {
		return nil, cl, err
	}

	p := &pipeline.Pipeline{
		Tasks:       tasks,
		Constraints: a.cfg.Constraints,
		Weights:     a.cfg.Weights(),
		Metrics:     metrics.NewCollector(),
		MetricsPath: a.cfg.Metrics.Textfile,
		Log:         a.log,
	}

	if store, err := a.historyStore(ctx); err != nil {
		a.log.Warn().Err(err).Msg("history unavailable, using nominal efforts")
	} else {
		p.Estimates = store
		cl = append(cl, store.Close)
	}

	tablePath, err := config.StatePath(overdue.FileName())
	if err != nil {
		return nil, cl, err
	}
	if p.Table, err = overdue.NewTable(tablePath); err != nil {
		return nil, cl, fmt.Errorf("load planned blocks: %w", err)
	}

	loc, err := a.location()
	if err != nil {
		return nil, cl, err
	}
	if len(a.cfg.Sources.ICSFiles) > 0 {
		p.Busy = append(p.Busy, ics.FileSource{Paths: a.cfg.Sources.ICSFiles, Location: loc})
	}

	needCalendar := opts.export || len(a.cfg.Sources.BusyCalendars) > 0
	if !needCalendar {
		return p, cl, nil
	}
	srv, err := a.calendarService(ctx, out)
	if err != nil {
		if opts.export {
			return nil, cl, err
		}
		a.log.Warn().Err(err).Msg("google calendar unavailable, skipping free/busy")
		return p, cl, nil
	}
	limiter := google.NewLimiter(a.cfg.Export.RatePerSecond)

	if len(a.cfg.Sources.BusyCalendars) > 0 {
		ids, err := google.ResolveCalendarIDs(ctx, srv, a.cfg.Sources.BusyCalendars, limiter)
		if err != nil {
			a.log.Warn().Err(err).Msg("could not resolve busy calendars")
		} else {
			p.Busy = append(p.Busy, google.NewFreeBusy(srv, ids, limiter))
		}
	}

	if opts.export {
		exp, err := a.exporter(ctx, srv, limiter)
		if err != nil {
			return nil, cl, err
		}
		p.Exporter = exp
	}
	return p, cl, nil
}

func (a *app) exporter(ctx context.Context, srv *calendar.Service, limiter *rate.Limiter) (*google.Exporter, error) {
	indexPath, err := config.StatePath(index.FileName())
	if err != nil {
		return nil, err
	}
	idx, err := index.NewEventIndex(indexPath)
	if err != nil {
		return nil, fmt.Errorf("load event index: %w", err)
	}
	colorPath, err := config.StatePath(colors.FileName())
	if err != nil {
		return nil, err
	}
	cc, err := colors.NewColorCache(colorPath)
	if err != nil {
		return nil, fmt.Errorf("load color cache: %w", err)
	}

	client, err := google.NewClient(ctx, srv, a.cfg.Calendar, true, idx, limiter, a.log)
	if err != nil {
		return nil, err
	}
	return &google.Exporter{Client: client, Index: idx, Colors: cc, Log: a.log}, nil
}
