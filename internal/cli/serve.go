package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thruflo/serverboard/internal/config"
	"github.com/thruflo/serverboard/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local stand-in for the server list API",
	Long: `Serves POST /tokens and GET /servers with the same shapes as the real API,
plus GET /healthz and Prometheus metrics on GET /metrics.

Without --users-file the demo user testuser/testpassword is accepted. A
users file holds a "users" list of username and password_hash entries;
create hashes with "serverboard hash-password". Without --servers-file a
demo list is served.

Point the client at it with --api-url http://localhost:8374.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", config.DefaultServerPort, "port to listen on")
	serveCmd.Flags().String("users-file", "", "YAML file of users and argon2id password hashes")
	serveCmd.Flags().String("servers-file", "", "YAML file of servers to serve")
	serveCmd.Flags().Duration("token-ttl", config.DefaultTokenTTL, "lifetime of issued tokens")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	srv, err := server.NewServerFromConfig(&cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://localhost:%d (ctrl+c to stop)\n", srv.Port())
	return srv.Start(ctx)
}
