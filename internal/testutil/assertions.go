package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thruflo/serverboard/internal/servers"
)

// Names returns the names of list in order.
func Names(list []servers.Server) []string {
	names := make([]string, len(list))
	for i, s := range list {
		names[i] = s.Name
	}
	return names
}

// AssertServerNames checks that actual holds exactly the expected names in
// order.
func AssertServerNames(t *testing.T, expected []string, actual []servers.Server) bool {
	t.Helper()
	return assert.Equal(t, expected, Names(actual))
}

// AssertPermutation checks that output holds the same servers as input,
// ignoring order.
func AssertPermutation(t *testing.T, input, output []servers.Server) bool {
	t.Helper()
	return assert.ElementsMatch(t, input, output)
}
