package auth

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Form field names.
const (
	FieldUsername = "username"
	FieldPassword = "password"
)

// Minimum credential lengths, counted in runes.
const (
	MinUsernameLength = 4
	MinPasswordLength = 8
)

// Validation messages shown next to the offending field.
const (
	MsgUsernameTooShort = "Username must be at least 4 characters long"
	MsgPasswordTooShort = "Password must be at least 8 characters long"
)

// Credentials is what the user types into the login form.
type Credentials struct {
	Username string
	Password string
}

// FieldErrors maps a form field to its validation messages.
type FieldErrors map[string][]string

// Add appends msg to field.
func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// First returns the first message for field, or "".
func (fe FieldErrors) First(field string) string {
	if msgs := fe[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// String renders every message, fields in name order.
func (fe FieldErrors) String() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var parts []string
	for _, f := range fields {
		parts = append(parts, fe[f]...)
	}
	return strings.Join(parts, "; ")
}

// Validate checks the minimum lengths. A nil result means the credentials
// may be sent.
func (c Credentials) Validate() FieldErrors {
	var fe FieldErrors
	add := func(field, msg string) {
		if fe == nil {
			fe = make(FieldErrors)
		}
		fe.Add(field, msg)
	}

	if utf8.RuneCountInString(c.Username) < MinUsernameLength {
		add(FieldUsername, MsgUsernameTooShort)
	}
	if utf8.RuneCountInString(c.Password) < MinPasswordLength {
		add(FieldPassword, MsgPasswordTooShort)
	}
	return fe
}
