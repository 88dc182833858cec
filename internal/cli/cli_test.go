package cli

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/serverboard/internal/auth"
	"github.com/thruflo/serverboard/internal/config"
	"github.com/thruflo/serverboard/internal/nav"
	"github.com/thruflo/serverboard/internal/router"
	"github.com/thruflo/serverboard/internal/servers"
	"github.com/thruflo/serverboard/internal/session"
	"github.com/thruflo/serverboard/internal/testutil"
	"github.com/thruflo/serverboard/internal/tui"
)

type testEnv struct {
	dir         string
	stub        *testutil.StubAPI
	sessionPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := testutil.IsolateConfig(t)
	return &testEnv{
		dir:         dir,
		stub:        testutil.NewStubAPI(t),
		sessionPath: filepath.Join(dir, "session.json"),
	}
}

// run executes the root command with args plus flags pointing at the stub
// API and a temp session file.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	args = append(args,
		"--api-url", e.stub.URL,
		"--session-path", e.sessionPath,
		"--env-file", filepath.Join(e.dir, "missing.env"),
	)
	return execute(t, args...)
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	_, err := e.run(t, "login", "-u", testutil.TestUsername, "-p", testutil.TestPassword)
	require.NoError(t, err)
}

func (e *testEnv) storedToken(t *testing.T) (string, bool) {
	t.Helper()
	store, err := session.NewFileStore(e.sessionPath)
	require.NoError(t, err)
	token, ok, err := store.Get(session.TokenKey)
	require.NoError(t, err)
	return token, ok
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags undoes flag values left by a previous Execute.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)

	out, err := e.run(t, "login", "-u", testutil.TestUsername, "-p", testutil.TestPassword)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as testuser")

	token, ok := e.storedToken(t)
	assert.True(t, ok)
	assert.Equal(t, testutil.TestToken, token)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.run(t, "login", "-u", testutil.TestUsername, "-p", "wrongpassword")
	require.Error(t, err)
	assert.Equal(t, testutil.InvalidCredentialsMessage, err.Error())

	_, ok := e.storedToken(t)
	assert.False(t, ok)
}

func TestLogin_ValidationSkipsNetwork(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.run(t, "login", "-u", "abc", "-p", "short")
	require.Error(t, err)
	assert.Contains(t, err.Error(), auth.MsgUsernameTooShort)
	assert.Contains(t, err.Error(), auth.MsgPasswordTooShort)
	assert.Zero(t, e.stub.LoginCalls())
}

func TestLogin_PromptsForMissing(t *testing.T) {
	e := newTestEnv(t)

	var got auth.Credentials
	promptCredentials = func(partial auth.Credentials) (auth.Credentials, error) {
		got = partial
		partial.Password = testutil.TestPassword
		return partial, nil
	}
	defer func() { promptCredentials = auth.PromptCredentials }()

	_, err := e.run(t, "login", "-u", testutil.TestUsername)
	require.NoError(t, err)
	assert.Equal(t, auth.Credentials{Username: testutil.TestUsername}, got)

	_, ok := e.storedToken(t)
	assert.True(t, ok)
}

func TestLogin_PromptError(t *testing.T) {
	e := newTestEnv(t)

	promptCredentials = func(partial auth.Credentials) (auth.Credentials, error) {
		return partial, auth.ErrNotTerminal
	}
	defer func() { promptCredentials = auth.PromptCredentials }()

	_, err := e.run(t, "login")
	assert.ErrorIs(t, err, auth.ErrNotTerminal)
}

func TestLogout(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	out, err := e.run(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = os.Stat(e.sessionPath)
	assert.True(t, os.IsNotExist(err), "the session file holds nothing else and is removed")

	out, err = e.run(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")
}

func TestStatus(t *testing.T) {
	e := newTestEnv(t)

	out, err := e.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "not logged in")
	assert.Contains(t, out, e.stub.URL)
	assert.Contains(t, out, e.sessionPath)

	e.login(t)
	out, err = e.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Session:   logged in")
}

func TestStatus_EnvAndConfigFile(t *testing.T) {
	testutil.SetupConfigDir(t, "locale: sv\nsession:\n  backend: memory\n")
	t.Setenv("SERVERBOARD_API_URL", "http://env.example:9000")

	out, err := execute(t, "status", "--env-file", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Contains(t, out, "http://env.example:9000")
	assert.Contains(t, out, "Locale:    sv")
	assert.Contains(t, out, "Backend:   memory")
}

func TestStatus_DotEnv(t *testing.T) {
	dir := testutil.IsolateConfig(t)
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("SERVERBOARD_LOCALE=de\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SERVERBOARD_LOCALE") })

	out, err := execute(t, "status", "--env-file", envPath, "--session-backend", "memory")
	require.NoError(t, err)
	assert.Contains(t, out, "Locale:    de")
}

func TestInvalidConfig(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.run(t, "status", "--session-backend", "redis")
	require.Error(t, err)
	assert.True(t, config.IsValidationError(err))
}

func TestServers_RequiresLogin(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.run(t, "servers")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Zero(t, e.stub.ServerCalls())
}

func tableNames(out string) []string {
	var names []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n")[2:] {
		if strings.HasPrefix(line, "/") {
			continue
		}
		fields := strings.Fields(line)
		names = append(names, strings.Join(fields[:len(fields)-1], " "))
	}
	return names
}

func TestServers_Table(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"natural order", nil, []string{"Germany #11", "Germany #2", "France #1", "France #2"}},
		{"name asc", []string{"--sort-by", "name"}, testutil.SampleServersByNameAsc()},
		{"name desc", []string{"--sort-by", "name", "--order", "desc"}, []string{"Germany #11", "Germany #2", "France #2", "France #1"}},
		{"distance asc", []string{"--sort-by", "distance"}, []string{"France #1", "Germany #11", "France #2", "Germany #2"}},
		{"from location", []string{"--location", "/dashboard?sortBy=distance&order=desc"}, []string{"Germany #2", "France #2", "Germany #11", "France #1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.run(t, append([]string{"servers"}, tt.args...)...)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(out, "NAME"))
			assert.Equal(t, tt.want, tableNames(out))
		})
	}
}

func TestServers_JSONAndLink(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	out, err := e.run(t, "servers", "--sort-by", "distance", "--order", "desc", "--json", "--link")
	require.NoError(t, err)

	jsonPart, link, ok := strings.Cut(strings.TrimSpace(out), "\n/")
	require.True(t, ok, "link follows the JSON")
	assert.Equal(t, "dashboard?order=desc&sortBy=distance", link)

	var list []servers.Server
	testutil.MustUnmarshalJSON(t, []byte(jsonPart), &list)
	assert.Equal(t, []float64{20, 15, 10, 5}, []float64{list[0].Distance, list[1].Distance, list[2].Distance, list[3].Distance})
	assert.Equal(t, "Bearer "+testutil.TestToken, e.stub.LastAuthorization())
}

func TestServers_Empty(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)
	e.stub.SetServers(nil)

	out, err := e.run(t, "servers")
	require.NoError(t, err)
	assert.Contains(t, out, "No servers available.")

	out, err = e.run(t, "servers", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestServers_FlagErrors(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"order without field", []string{"--order", "desc"}, "--order requires --sort-by"},
		{"unknown field", []string{"--sort-by", "ping"}, "unknown sort field"},
		{"unknown order", []string{"--sort-by", "name", "--order", "up"}, "unknown sort order"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.run(t, append([]string{"servers"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestServers_LoadError(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)
	e.stub.FailServers(http.StatusServiceUnavailable)

	_, err := e.run(t, "servers")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error loading servers")
}

func TestServers_ExpiredToken(t *testing.T) {
	e := newTestEnv(t)
	store, err := session.NewFileStore(e.sessionPath)
	require.NoError(t, err)
	require.NoError(t, store.Set(session.TokenKey, "stale-token"))

	_, err = e.run(t, "servers")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session expired")
}

func TestDashboard(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)
	logFile := filepath.Join(e.dir, "logs", "ui.log")

	var opts tui.Options
	runUI = func(ctx context.Context, o tui.Options) error {
		opts = o
		return nil
	}
	defer func() { runUI = func(ctx context.Context, o tui.Options) error { return tui.Run(ctx, o) } }()

	_, err := e.run(t, "dashboard", "--location", "/dashboard?sortBy=name&order=desc", "--log-file", logFile)
	require.NoError(t, err)

	require.NotNil(t, opts.Router)
	assert.Equal(t, router.ViewDashboard, opts.Router.View())
	assert.Equal(t, "/dashboard?sortBy=name&order=desc", nav.Link(opts.Router.Location()))
	assert.True(t, opts.Session.IsAuthorized())
	assert.NotNil(t, opts.Servers)
	assert.FileExists(t, logFile)
}

func TestDashboard_LoggedOutOpensLogin(t *testing.T) {
	e := newTestEnv(t)

	var view router.View = -1
	runUI = func(ctx context.Context, o tui.Options) error {
		view = o.Router.View()
		return nil
	}
	defer func() { runUI = func(ctx context.Context, o tui.Options) error { return tui.Run(ctx, o) } }()

	_, err := e.run(t, "dashboard", "--log-file", filepath.Join(e.dir, "ui.log"))
	require.NoError(t, err)
	assert.Equal(t, router.ViewLogin, view)
}

func TestHashPassword(t *testing.T) {
	testutil.IsolateConfig(t)

	promptNewPassword = func() (string, error) { return "s3cret-password", nil }
	defer func() { promptNewPassword = auth.PromptAndConfirmPassword }()

	out, err := execute(t, "hash-password", "--session-backend", "memory")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	ok, err := auth.VerifyPassword("s3cret-password", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashPassword_Mismatch(t *testing.T) {
	testutil.IsolateConfig(t)

	promptNewPassword = func() (string, error) { return "", auth.ErrPasswordMismatch }
	defer func() { promptNewPassword = auth.PromptAndConfirmPassword }()

	_, err := execute(t, "hash-password", "--session-backend", "memory")
	assert.ErrorIs(t, err, auth.ErrPasswordMismatch)
}

func TestServe_BadUsersFile(t *testing.T) {
	dir := testutil.IsolateConfig(t)

	_, err := execute(t, "serve", "--session-backend", "memory", "--users-file", filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create server")
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		cmd  *cobra.Command
		flag string
		def  string
	}{
		{serversCmd, "sort-by", ""},
		{serversCmd, "json", "false"},
		{dashboardCmd, "location", "/dashboard"},
		{serveCmd, "port", "8374"},
		{loginCmd, "username", ""},
	}
	for _, tt := range tests {
		t.Run(tt.cmd.Name()+"/"+tt.flag, func(t *testing.T) {
			f := tt.cmd.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}
