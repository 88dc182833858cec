package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thruflo/serverboard/internal/auth"
)

var (
	loginUsername string
	loginPassword string
)

// promptCredentials fills in missing credentials. It can be overridden in
// tests.
var promptCredentials = auth.PromptCredentials

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the access token",
	Long: `Exchanges a username and password for an access token and stores it in
the session backend. Missing credentials are prompted for when stdin is a
terminal.

Usernames need at least 4 characters and passwords at least 8; shorter
values are rejected without contacting the API.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password (prompted for when omitted)")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	creds, err := promptCredentials(auth.Credentials{
		Username: loginUsername,
		Password: loginPassword,
	})
	if err != nil {
		return err
	}

	rt, err := openRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	res := rt.manager.Login(cmd.Context(), creds)
	switch {
	case res.Invalid != nil:
		return errors.New(res.Invalid.String())
	case res.Err != nil:
		return res.Err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", creds.Username)
	return nil
}
