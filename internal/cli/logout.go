package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored access token",
	Long: `Removes the access token from the session backend. No request is sent to
the API. Running dashboards sharing the session file return to the login
screen.`,
	Args: cobra.NoArgs,
	RunE: runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	was := rt.manager.IsAuthorized()
	if err := rt.manager.Logout(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	if was {
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
	}
	return nil
}
