//go:build e2e

package integration

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thruflo/serverboard/internal/auth"
)

func hashForTest(password string) (string, error) {
	return auth.HashPasswordWith(password, auth.Params{
		Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16,
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}
