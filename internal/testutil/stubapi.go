package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thruflo/serverboard/internal/servers"
)

// StubAPI is an in-process stand-in for the playground API. It accepts
// TestUsername/TestPassword and issues TestToken.
type StubAPI struct {
	// URL is the base URL to hand to clients.
	URL string

	srv *httptest.Server

	mu            sync.Mutex
	token         string
	servers       []servers.Server
	serversStatus int
	rawLogin      *rawResponse
	gate          chan struct{}
	loginCalls    int
	serverCalls   int
	lastAuth      string
}

type rawResponse struct {
	status int
	body   string
}

// NewStubAPI starts a stub API that is closed when the test finishes.
func NewStubAPI(t *testing.T) *StubAPI {
	t.Helper()

	s := &StubAPI{
		token:   TestToken,
		servers: SampleServers(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/tokens", s.handleTokens)
	mux.HandleFunc("/servers", s.handleServers)

	s.srv = httptest.NewServer(mux)
	s.URL = s.srv.URL
	t.Cleanup(func() {
		s.mu.Lock()
		if s.gate != nil {
			close(s.gate)
			s.gate = nil
		}
		s.mu.Unlock()
		s.srv.Close()
	})
	return s
}

// SetServers replaces the list served by GET /servers.
func (s *StubAPI) SetServers(list []servers.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers = list
	s.serversStatus = 0
}

// FailServers makes GET /servers answer with status until SetServers is
// called.
func (s *StubAPI) FailServers(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serversStatus = status
}

// SetLoginResponse makes POST /tokens answer every request with status and
// the raw body.
func (s *StubAPI) SetLoginResponse(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawLogin = &rawResponse{status: status, body: body}
}

// HoldLogins parks login requests until release is called. Requests are
// counted before they park, so WaitForLogins sees them.
func (s *StubAPI) HoldLogins() (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	s.gate = gate

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gate == gate {
				s.gate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// WaitForLogins blocks until at least n login requests have arrived.
func (s *StubAPI) WaitForLogins(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.LoginCalls() >= n
	}, 5*time.Second, 5*time.Millisecond, "expected %d login requests", n)
}

// LoginCalls returns the number of POST /tokens requests received.
func (s *StubAPI) LoginCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginCalls
}

// ServerCalls returns the number of GET /servers requests received.
func (s *StubAPI) ServerCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverCalls
}

// LastAuthorization returns the Authorization header of the most recent
// GET /servers request.
func (s *StubAPI) LastAuthorization() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth
}

func (s *StubAPI) handleTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	s.loginCalls++
	gate := s.gate
	raw := s.rawLogin
	token := s.token
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	if raw != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(raw.status)
		w.Write([]byte(raw.body))
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
		return
	}

	if req.Username != TestUsername || req.Password != TestPassword {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": InvalidCredentialsMessage})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *StubAPI) handleServers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	s.serverCalls++
	s.lastAuth = r.Header.Get("Authorization")
	status := s.serversStatus
	list := s.servers
	token := s.token
	s.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+token {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}
	if status != 0 {
		writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
		return
	}
	if list == nil {
		list = []servers.Server{}
	}
	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
