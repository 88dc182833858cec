package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/thruflo/serverboard/internal/auth"
	"github.com/thruflo/serverboard/internal/config"
	"github.com/thruflo/serverboard/internal/logging"
	"github.com/thruflo/serverboard/internal/servers"
)

// Messages returned in {"message"} bodies.
const (
	MsgInvalidCredentials = "Invalid credentials"
	MsgInvalidRequest     = "Invalid request body"
	MsgUnauthorized       = "Unauthorized"
	MsgTooManyAttempts    = "Too many login attempts. Please try again later."
	MsgInternal           = "Internal server error"
)

// RequestIDHeader carries the per-request ID.
const RequestIDHeader = "X-Request-ID"

// maxLoginBody bounds POST /tokens bodies.
const maxLoginBody = 64 << 10

// Server is the stub API server.
type Server struct {
	port     int
	tokenTTL time.Duration

	users   map[string]string // username -> argon2id hash
	servers []servers.Server

	limiter *rateLimiter
	metrics *Metrics
	router  *mux.Router
	log     *logging.Logger
	now     func() time.Time

	// HTTP server
	server   *http.Server
	listener net.Listener

	mu      sync.RWMutex
	tokens  map[string]time.Time // token -> expiry time
	started bool
}

// Config holds server configuration options.
type Config struct {
	Port      int
	TokenTTL  time.Duration
	Users     []User
	Servers   []servers.Server
	RateLimit config.RateLimitConfig
}

// NewServer creates a new Server instance.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if len(cfg.Users) == 0 {
		return nil, errors.New("at least one user is required")
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = config.DefaultTokenTTL
	}

	users := make(map[string]string, len(cfg.Users))
	for _, u := range cfg.Users {
		users[u.Username] = u.PasswordHash
	}

	list := cfg.Servers
	if list == nil {
		list = []servers.Server{}
	}

	s := &Server{
		port:     cfg.Port,
		tokenTTL: ttl,
		users:    users,
		servers:  list,
		limiter:  newRateLimiter(cfg.RateLimit),
		log:      logging.With("component", "server"),
		now:      time.Now,
		tokens:   make(map[string]time.Time),
	}
	s.metrics = newMetrics(func() float64 { return float64(s.ActiveTokens()) })
	s.router = s.routes()
	return s, nil
}

// NewServerFromConfig loads fixtures named by cfg and creates a Server.
func NewServerFromConfig(cfg *config.ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config is required")
	}

	users, err := LoadUsers(cfg.UsersFile)
	if err != nil {
		return nil, err
	}
	list, err := LoadServers(cfg.ServersFile)
	if err != nil {
		return nil, err
	}

	return NewServer(&Config{
		Port:      cfg.Port,
		TokenTTL:  cfg.TokenTTL,
		Users:     users,
		Servers:   list,
		RateLimit: cfg.RateLimit,
	})
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Handler returns the routed handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}

	addr := fmt.Sprintf(":%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.started = true
	s.mu.Unlock()

	go s.cleanupLoop(ctx)
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.log.Info("listening", "addr", listener.Addr().String())
	err = s.server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.started = false
	return nil
}

// ListenAddr returns the address the server is listening on, or "" if not
// started. Useful when port 0 is used.
func (s *Server) ListenAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.withRequestID, s.metrics.middleware)

	// Public endpoints
	r.HandleFunc("/tokens", s.handleTokens).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	// Protected endpoints
	r.HandleFunc("/servers", s.withAuth(s.handleServers)).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

// withRequestID tags each request with an ID, reusing the caller's if sent.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// withAuth wraps a handler with bearer token authentication.
func (s *Server) withAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const bearerPrefix = "Bearer "
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			writeMessage(w, http.StatusUnauthorized, MsgUnauthorized)
			return
		}
		if !s.ValidateToken(strings.TrimPrefix(header, bearerPrefix)) {
			writeMessage(w, http.StatusUnauthorized, MsgUnauthorized)
			return
		}
		handler(w, r)
	}
}

// VerifyUser checks username and password against the user table. Unknown
// users are not distinguishable from wrong passwords.
func (s *Server) VerifyUser(username, password string) (bool, error) {
	hash, ok := s.users[username]
	if !ok {
		return false, nil
	}
	return auth.VerifyPassword(password, hash)
}

// GenerateToken creates a new token valid for the configured TTL.
func (s *Server) GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := hex.EncodeToString(b)

	s.mu.Lock()
	s.tokens[token] = s.now().Add(s.tokenTTL)
	s.mu.Unlock()

	return token, nil
}

// ValidateToken checks if a token is known and not expired.
func (s *Server) ValidateToken(token string) bool {
	if token == "" {
		return false
	}

	s.mu.RLock()
	expiry, ok := s.tokens[token]
	s.mu.RUnlock()

	return ok && s.now().Before(expiry)
}

// RevokeToken removes a token.
func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// ActiveTokens returns the number of unexpired tokens.
func (s *Server) ActiveTokens() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	n := 0
	for _, expiry := range s.tokens {
		if now.Before(expiry) {
			n++
		}
	}
	return n
}

func (s *Server) sweep() {
	s.mu.Lock()
	now := s.now()
	for token, expiry := range s.tokens {
		if !now.Before(expiry) {
			delete(s.tokens, token)
		}
	}
	s.mu.Unlock()

	s.limiter.cleanup()
}

func (s *Server) cleanupLoop(ctx context.Context) {
	interval := min(s.tokenTTL, time.Hour)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTokens handles POST /tokens.
func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	ip := extractIP(r)
	log := s.log.With("request_id", w.Header().Get(RequestIDHeader)).With("ip", ip)

	if res := s.limiter.check(ip); !res.Allowed {
		log.Warn("login rejected", "reason", res.Reason, "retry_after", res.RetryAfter)
		s.metrics.LoginsTotal.WithLabelValues("limited").Inc()
		w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds()+0.5)))
		writeMessage(w, http.StatusTooManyRequests, MsgTooManyAttempts)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxLoginBody))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, MsgInvalidRequest)
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		s.metrics.LoginsTotal.WithLabelValues("bad_request").Inc()
		writeMessage(w, http.StatusBadRequest, MsgInvalidRequest)
		return
	}

	ok, err := s.VerifyUser(req.Username, req.Password)
	if err != nil {
		log.Error("password verification failed", "username", req.Username, "error", err)
		s.metrics.LoginsTotal.WithLabelValues("error").Inc()
		writeMessage(w, http.StatusInternalServerError, MsgInternal)
		return
	}
	if !ok {
		s.limiter.recordFailure(ip)
		s.metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		log.Info("invalid credentials", "username", req.Username)
		writeMessage(w, http.StatusUnauthorized, MsgInvalidCredentials)
		return
	}

	token, err := s.GenerateToken()
	if err != nil {
		log.Error("token generation failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, MsgInternal)
		return
	}

	s.limiter.recordSuccess(ip)
	s.metrics.LoginsTotal.WithLabelValues("success").Inc()
	log.Info("token issued", "username", req.Username)
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// handleServers handles GET /servers.
func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.servers)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
