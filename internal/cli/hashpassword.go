package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thruflo/serverboard/internal/auth"
)

// promptNewPassword reads and confirms a password. It can be overridden in
// tests.
var promptNewPassword = auth.PromptAndConfirmPassword

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Print an argon2id hash for a serve users file",
	Args:  cobra.NoArgs,
	RunE:  runHashPassword,
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	password, err := promptNewPassword()
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
