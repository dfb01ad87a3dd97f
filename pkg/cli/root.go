// Package cli is the studyplan command line.
package cli

import (
	"fmt"
	"time"

	"github.com/harrisonrobin/studyplan/pkg/config"
	"github.com/harrisonrobin/studyplan/pkg/logx"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var Version = "dev"

// app carries the global flags and the state loaded before every command.
type app struct {
	configPath string
	logLevel   string
	calendar   string

	cfg *config.Config
	log zerolog.Logger
}

func (a *app) load(cmd *cobra.Command) error {
	path := a.configPath
	if path == "" {
		var err error
		if path, err = config.GetConfigPath(); err != nil {
			return err
		}
		a.configPath = path
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.calendar != "" {
		cfg.Calendar = a.calendar
	}
	a.cfg = cfg
	a.log = logx.New(cmd.ErrOrStderr(), cfg.Log)
	return nil
}

func (a *app) location() (*time.Location, error) {
	if tz := a.cfg.Planner.Timezone; tz != "" {
		return time.LoadLocation(tz)
	}
	return time.Local, nil
}

// BuildCLI assembles the command tree.
func BuildCLI() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "studyplan",
		Short: "Plan study blocks backwards from your deadlines",
		Long: `studyplan reads tasks from Taskwarrior or org-mode files, learns how long
your work really takes and places study blocks before each deadline,
around your classes and other busy time.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file path (default ~/.config/studyplan/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&a.calendar, "calendar", "", "Google Calendar name to export to (overrides config)")

	rootCmd.AddCommand(buildPlanCommand(a))
	rootCmd.AddCommand(buildRecoverCommand(a))
	rootCmd.AddCommand(buildRankCommand(a))
	rootCmd.AddCommand(buildSessionCommand(a))
	rootCmd.AddCommand(buildEstimatesCommand(a))
	rootCmd.AddCommand(buildTemplatesCommand(a))
	rootCmd.AddCommand(buildAuthCommand(a))
	rootCmd.AddCommand(buildConfigCommand(a))
	rootCmd.AddCommand(buildWatchCommand(a))
	rootCmd.AddCommand(buildHookCommand(a))

	return rootCmd
}
