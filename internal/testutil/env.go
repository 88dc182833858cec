package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// IsolateConfig points the user config and home directories at a fresh temp
// dir so tests never read the developer's real configuration or session.
// Returns the directory. Tests using it must not call t.Parallel.
func IsolateConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	for _, key := range []string{
		"SERVERBOARD_API_URL",
		"SERVERBOARD_SESSION_BACKEND",
		"SERVERBOARD_SESSION_PATH",
		"SERVERBOARD_LOG_LEVEL",
		"SERVERBOARD_LOCALE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return dir
}

// SetupConfigDir isolates the config directory and writes content as
// serverboard/config.yaml inside it. Returns the path of the config file.
func SetupConfigDir(t *testing.T, content string) string {
	t.Helper()

	dir := IsolateConfig(t)
	path := filepath.Join(dir, "serverboard", "config.yaml")
	WriteTestFile(t, dir, filepath.Join("serverboard", "config.yaml"), []byte(content))
	return path
}

// MustMarshalJSON marshals a value to JSON, failing the test on error.
// Uses indented format for readability.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	return data
}

// MustUnmarshalJSON unmarshals JSON data into v, failing the test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(data, v))
}

// WriteTestFile writes content to a file in the test directory.
// Creates parent directories as needed.
func WriteTestFile(t *testing.T, basePath, relativePath string, content []byte) {
	t.Helper()
	fullPath := filepath.Join(basePath, relativePath)
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0755))
	require.NoError(t, os.WriteFile(fullPath, content, 0644))
}
