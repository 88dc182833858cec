package cli

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/thruflo/serverboard/internal/auth"
	"github.com/thruflo/serverboard/internal/config"
	"github.com/thruflo/serverboard/internal/logging"
	"github.com/thruflo/serverboard/internal/router"
	"github.com/thruflo/serverboard/internal/tui"
)

var dashboardLocation string

// runUI shows the terminal UI. It can be overridden in tests.
var runUI = func(ctx context.Context, opts tui.Options) error {
	return tui.Run(ctx, opts)
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the interactive dashboard",
	Long: `Opens the full-screen dashboard. Without a session it starts on the login
form; after logging in the server list is loaded and can be sorted with
n (name) and d (distance). The sort order is kept in the location, so
"--location '/dashboard?sortBy=distance&order=desc'" reopens it.

Logs go to --log-file, or serverboard.log in the config directory, so they
do not disturb the screen.`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardLocation, "location", router.PathDashboard, "location to open, including sort parameters")
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	// loggers capture their writer when created, so redirect before building
	// anything
	if err := logToFile(cfg); err != nil {
		return err
	}

	rt, err := openRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	rtr, err := rt.route(dashboardLocation)
	if err != nil {
		return err
	}
	defer rtr.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	go func() {
		err := rt.manager.Watch(ctx)
		if err != nil && !errors.Is(err, auth.ErrWatchUnsupported) {
			logging.Warn("not following session changes", "error", err)
		}
	}()

	return runUI(ctx, tui.Options{
		Session: rt.manager,
		Router:  rtr,
		Servers: rt.fetcher(),
		Sorter:  rt.sorter,
	})
}

func logToFile(cfg *config.Config) error {
	path := cfg.Log.File
	if path == "" {
		path = filepath.Join(config.DefaultDir(), "serverboard.log")
	}
	if err := closeLog(); err != nil {
		return err
	}
	closer, err := logging.Configure(cfg.Log.Level, path)
	if err != nil {
		return err
	}
	closeLog = closer
	return nil
}
