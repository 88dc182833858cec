package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thruflo/serverboard/internal/config"
	"github.com/thruflo/serverboard/internal/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	configFile string
	envFile    string

	// cfg is loaded before any command runs.
	cfg      *config.Config
	closeLog = func() error { return nil }
)

// flagKeys maps flag names to the config keys they override. Flags that a
// command does not define are skipped.
var flagKeys = map[string]string{
	"api-url":         "api.url",
	"api-timeout":     "api.timeout",
	"session-backend": "session.backend",
	"session-path":    "session.path",
	"log-level":       "log.level",
	"log-file":        "log.file",
	"locale":          "locale",
	"port":            "server.port",
	"users-file":      "server.users_file",
	"servers-file":    "server.servers_file",
	"token-ttl":       "server.token_ttl",
}

var rootCmd = &cobra.Command{
	Use:   "serverboard",
	Short: "Browse Nord servers from the terminal",
	Long: `Serverboard logs in to the server list API, keeps the session between
runs and shows the servers in a sortable list, either as an interactive
dashboard or as plain command output.

Configuration is read from $XDG_CONFIG_HOME/serverboard/config.yaml, a .env
file, SERVERBOARD_* environment variables and flags, in increasing order of
precedence.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("serverboard version {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default $XDG_CONFIG_HOME/serverboard/config.yaml)")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment")
	pf.String("api-url", config.DefaultAPIURL, "API base URL")
	pf.Duration("api-timeout", config.DefaultAPITimeout, "timeout for each API request")
	pf.String("session-backend", config.SessionBackendFile, "where the token is kept: file, sqlite or memory")
	pf.String("session-path", "", "session file or database (default in the config directory)")
	pf.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	pf.String("log-file", "", "append logs to this file instead of stderr")
	pf.String("locale", config.DefaultLocale, "language used to order server names")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	v := config.NewViper()
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	loaded, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	cfg = loaded

	closer, err := logging.Configure(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	closeLog = closer
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	err := closeLog()
	closeLog = func() error { return nil }
	return err
}
