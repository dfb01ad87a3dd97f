package cli

import (
	"fmt"

	"github.com/harrisonrobin/studyplan/pkg/auth"
	"github.com/spf13/cobra"
)

func buildAuthCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Calendar",
		Long: fmt.Sprintf(`Runs the OAuth flow and caches the token. Place the %s downloaded from the
Google Cloud console in the configuration directory first.`, auth.ClientSecretsFile),
		RunE: func(cmd *cobra.Command, args []string) error {
			au, err := a.authenticator(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := au.Reset(); err != nil {
				return err
			}
			if _, err := au.CalendarService(commandContext(cmd)); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Authentication successful, token saved in %s\n", au.Dir)
			return nil
		},
	}
}
