package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/serverboard/internal/api"
	"github.com/thruflo/serverboard/internal/auth"
	"github.com/thruflo/serverboard/internal/config"
	"github.com/thruflo/serverboard/internal/servers"
	"github.com/thruflo/serverboard/internal/session"
)

const (
	testUser     = "testuser"
	testPassword = "testpassword"
)

var fastParams = auth.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8}

// createTestServer creates a server with a known user and the demo servers.
func createTestServer(t *testing.T, rl config.RateLimitConfig) *Server {
	t.Helper()

	hash, err := auth.HashPasswordWith(testPassword, fastParams)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	s, err := NewServer(&Config{
		Port:      0, // random available port
		TokenTTL:  time.Hour,
		Users:     []User{{Username: testUser, PasswordHash: hash}},
		Servers:   DemoServers(),
		RateLimit: rl,
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return s
}

func postTokens(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/tokens", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "198.51.100.1:4000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestNewServer(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{"nil config", nil, "config is required"},
		{"no users", &Config{Port: 8080}, "at least one user is required"},
		{"valid config", &Config{Port: 8080, Users: []User{{Username: "u", PasswordHash: "h"}}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewServer(tt.cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Port() != 8080 {
				t.Errorf("expected port 8080, got %d", s.Port())
			}
			if s.tokenTTL != config.DefaultTokenTTL {
				t.Errorf("expected default TTL, got %v", s.tokenTTL)
			}
		})
	}
}

func TestNewServerFromConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewServerFromConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}

	dir := t.TempDir()
	hash, err := auth.HashPasswordWith("secret-password", fastParams)
	require.NoError(t, err)

	usersPath := filepath.Join(dir, "users.yaml")
	require.NoError(t, os.WriteFile(usersPath, []byte("users:\n  - username: alice\n    password_hash: "+hash+"\n"), 0o644))
	serversPath := filepath.Join(dir, "servers.yaml")
	require.NoError(t, os.WriteFile(serversPath, []byte("servers:\n  - name: \"Latvia #1\"\n    distance: 402\n"), 0o644))

	s, err := NewServerFromConfig(&config.ServerConfig{
		Port:        9000,
		UsersFile:   usersPath,
		ServersFile: serversPath,
	})
	require.NoError(t, err)
	assert.Equal(t, []servers.Server{{Name: "Latvia #1", Distance: 402}}, s.servers)

	ok, err := s.VerifyUser("alice", "secret-password")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyUser(t *testing.T) {
	t.Parallel()

	s := createTestServer(t, config.RateLimitConfig{})

	tests := []struct {
		username, password string
		want               bool
	}{
		{testUser, testPassword, true},
		{testUser, "wrong", false},
		{"nobody", testPassword, false},
		{"", "", false},
	}
	for _, tt := range tests {
		ok, err := s.VerifyUser(tt.username, tt.password)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, "%s/%s", tt.username, tt.password)
	}
}

func TestTokens_GenerateValidateRevoke(t *testing.T) {
	t.Parallel()

	s := createTestServer(t, config.RateLimitConfig{})
	clock := newFakeClock()
	s.now = clock.Now

	token, err := s.GenerateToken()
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.True(t, s.ValidateToken(token))
	assert.False(t, s.ValidateToken(""))
	assert.False(t, s.ValidateToken("unknown"))
	assert.Equal(t, 1, s.ActiveTokens())

	other, err := s.GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
	s.RevokeToken(other)
	assert.False(t, s.ValidateToken(other))

	clock.Advance(time.Hour)
	assert.False(t, s.ValidateToken(token), "token expires after its TTL")
	assert.Equal(t, 0, s.ActiveTokens())

	s.sweep()
	s.mu.RLock()
	assert.Empty(t, s.tokens)
	s.mu.RUnlock()
}

func TestHandleTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantMessage string
		wantToken   bool
	}{
		{"valid", `{"username":"testuser","password":"testpassword"}`, http.StatusOK, "", true},
		{"wrong password", `{"username":"testuser","password":"nope-nope"}`, http.StatusUnauthorized, MsgInvalidCredentials, false},
		{"unknown user", `{"username":"ghost","password":"testpassword"}`, http.StatusUnauthorized, MsgInvalidCredentials, false},
		{"malformed", `{"username":`, http.StatusBadRequest, MsgInvalidRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := createTestServer(t, config.RateLimitConfig{})
			w := postTokens(t, s.Handler(), tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

			body := decodeBody(t, w)
			assert.Equal(t, tt.wantMessage, body["message"])
			if tt.wantToken {
				assert.True(t, s.ValidateToken(body["token"]))
			} else {
				assert.Empty(t, body["token"])
			}
		})
	}
}

func TestHandleTokens_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	s := createTestServer(t, config.RateLimitConfig{})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tokens", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleTokens_RateLimited(t *testing.T) {
	t.Parallel()

	s := createTestServer(t, config.RateLimitConfig{MaxAttempts: 2, Window: time.Minute})

	bad := `{"username":"testuser","password":"wrong-password"}`
	assert.Equal(t, http.StatusUnauthorized, postTokens(t, s.Handler(), bad).Code)
	assert.Equal(t, http.StatusUnauthorized, postTokens(t, s.Handler(), bad).Code)

	w := postTokens(t, s.Handler(), `{"username":"testuser","password":"testpassword"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, MsgTooManyAttempts, decodeBody(t, w)["message"])
}

func TestHandleTokens_BlockAfterFailures(t *testing.T) {
	t.Parallel()

	s := createTestServer(t, config.RateLimitConfig{MaxAttempts: 100, BlockAfter: 2, BlockTime: time.Minute})

	bad := `{"username":"testuser","password":"wrong-password"}`
	postTokens(t, s.Handler(), bad)
	postTokens(t, s.Handler(), bad)

	w := postTokens(t, s.Handler(), `{"username":"testuser","password":"testpassword"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "blocked even with the right password")
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	s := createTestServer(t, config.RateLimitConfig{})
	token, err := s.GenerateToken()
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/servers", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, MsgUnauthorized, decodeBody(t, w)["message"])
			}
		})
	}
}

func TestHandleServers(t *testing.T) {
	t.Parallel()

	s := createTestServer(t, config.RateLimitConfig{})
	token, err := s.GenerateToken()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/servers", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var list []servers.Server
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, DemoServers(), list)
}

func TestRequestIDPassthrough(t *testing.T) {
	t.Parallel()

	s := createTestServer(t, config.RateLimitConfig{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s := createTestServer(t, config.RateLimitConfig{})
	postTokens(t, s.Handler(), `{"username":"testuser","password":"testpassword"}`)
	postTokens(t, s.Handler(), `{"username":"testuser","password":"wrong-password"}`)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `serverboard_logins_total{outcome="success"} 1`)
	assert.Contains(t, body, `serverboard_logins_total{outcome="invalid"} 1`)
	assert.Contains(t, body, `serverboard_active_tokens 1`)
	assert.Contains(t, body, `serverboard_http_requests_total{method="POST",route="/tokens",status="401"} 1`)
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	s := createTestServer(t, config.RateLimitConfig{})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServerStartStop(t *testing.T) {
	s := createTestServer(t, config.RateLimitConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return s.ListenAddr() != "" }, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + s.ListenAddr() + "/healthz")
	require.NoError(t, err)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Error(t, s.Start(ctx), "double start")

	require.NoError(t, s.Stop())
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerStopNotStarted(t *testing.T) {
	s := createTestServer(t, config.RateLimitConfig{})
	assert.NoError(t, s.Stop())
}

func TestEndToEnd_ClientAgainstStubServer(t *testing.T) {
	t.Parallel()

	s := createTestServer(t, config.RateLimitConfig{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	client := api.NewClient(ts.URL)
	store := session.NewMemoryStore()
	m, err := auth.NewManager(store, client)
	require.NoError(t, err)

	res := m.Login(context.Background(), auth.Credentials{Username: testUser, Password: "wrong-password"})
	require.NotNil(t, res.Err)
	assert.Equal(t, MsgInvalidCredentials, res.Err.Message)

	res = m.Login(context.Background(), auth.Credentials{Username: testUser, Password: testPassword})
	require.True(t, res.OK())

	snap := api.NewFetcher(client, m).Load(context.Background())
	require.Equal(t, api.StatusSuccess, snap.Status)
	assert.Len(t, snap.Servers, len(DemoServers()))
}

func TestWriteMessage(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	writeMessage(w, http.StatusTeapot, "short and stout")
	assert.Equal(t, http.StatusTeapot, w.Code)

	var buf bytes.Buffer
	buf.WriteString(`{"message":"short and stout"}`)
	assert.JSONEq(t, buf.String(), w.Body.String())
}
