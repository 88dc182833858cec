package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session and configuration in use",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	session := "not logged in"
	if rt.manager.IsAuthorized() {
		session = "logged in"
	}

	printField(out, "Session", session)
	printField(out, "API", cfg.API.URL)
	printField(out, "Backend", cfg.Session.Backend)
	if cfg.Session.Path != "" {
		printField(out, "Path", cfg.Session.Path)
	}
	printField(out, "Locale", cfg.Locale)
	return nil
}

func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%-10s %s\n", label+":", value)
}
