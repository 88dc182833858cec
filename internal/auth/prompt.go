package auth

import (
	"errors"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"golang.org/x/term"
)

// ErrEmptyPassword is returned when the user enters an empty password.
var ErrEmptyPassword = errors.New("password cannot be empty")

// ErrPasswordMismatch is returned when password confirmation doesn't match.
var ErrPasswordMismatch = errors.New("passwords do not match")

// ErrNotTerminal is returned when a prompt is needed but stdin is not a
// terminal.
var ErrNotTerminal = errors.New("stdin is not a terminal; pass credentials with flags")

// Wrapper for survey functions to allow mocking in tests
var askOneFunc = survey.AskOne

// isTerminal reports whether stdin is interactive.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// PromptCredentials asks for whichever of username and password are still
// empty in partial.
func PromptCredentials(partial Credentials) (Credentials, error) {
	creds := partial
	if creds.Username != "" && creds.Password != "" {
		return creds, nil
	}
	if !isTerminal() {
		return creds, ErrNotTerminal
	}

	if creds.Username == "" {
		err := askOneFunc(&survey.Input{
			Message: "Username:",
		}, &creds.Username, survey.WithValidator(survey.Required))
		if err != nil {
			return creds, fmt.Errorf("failed to read username: %w", err)
		}
	}

	if creds.Password == "" {
		err := askOneFunc(&survey.Password{
			Message: "Password:",
		}, &creds.Password)
		if err != nil {
			return creds, fmt.Errorf("failed to read password: %w", err)
		}
	}

	return creds, nil
}

// PromptPassword prompts the user for a password (hidden input).
func PromptPassword(prompt string) (string, error) {
	if !isTerminal() {
		return "", ErrNotTerminal
	}
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // Add newline after hidden input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

// PromptAndConfirmPassword prompts for a password with confirmation.
// Returns the password if both entries match.
func PromptAndConfirmPassword() (string, error) {
	return promptAndConfirm(PromptPassword)
}

func promptAndConfirm(read func(string) (string, error)) (string, error) {
	password, err := read("Enter password to hash: ")
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", ErrEmptyPassword
	}

	confirm, err := read("Confirm password: ")
	if err != nil {
		return "", err
	}

	if password != confirm {
		return "", ErrPasswordMismatch
	}

	return password, nil
}
