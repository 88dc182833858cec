// Package api talks to the servers playground API: token issuance and the
// authenticated server list.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/thruflo/serverboard/internal/servers"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// Client issues requests against the API base URL.
type Client struct {
	// baseURL is the API root without a trailing slash (e.g., "https://playground.tesonet.lt/v1")
	baseURL string

	httpClient *http.Client
	userAgent  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a Client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		userAgent:  "serverboard",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// LoginRequest is the body of POST /tokens.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the decoded outcome of POST /tokens. It is either a
// *LoginSuccess or a *LoginFailure.
type LoginResponse interface {
	isLoginResponse()
}

// LoginSuccess carries the issued bearer token.
type LoginSuccess struct {
	Token string
}

// LoginFailure carries the server's explanation. Message may be empty when
// the server gave none.
type LoginFailure struct {
	Status  int
	Message string
}

func (*LoginSuccess) isLoginResponse() {}
func (*LoginFailure) isLoginResponse() {}

type tokenPayload struct {
	Token   *string `json:"token"`
	Message *string `json:"message"`
}

// Login posts the credentials to /tokens. The error is non-nil only when no
// usable response was received: transport failures, timeouts and malformed
// bodies.
func (c *Client) Login(ctx context.Context, creds LoginRequest) (LoginResponse, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tokens", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send login request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read login response: %w", err)
	}

	var payload tokenPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode login response (status %d): %w", resp.StatusCode, err)
	}

	// any message marks a failure, even alongside a token on a 2xx
	if isSuccess(resp.StatusCode) && payload.Message == nil && payload.Token != nil && *payload.Token != "" {
		return &LoginSuccess{Token: *payload.Token}, nil
	}

	failure := &LoginFailure{Status: resp.StatusCode}
	if payload.Message != nil {
		failure.Message = *payload.Message
	}
	return failure, nil
}

// FetchError describes a failed server list request. Status is zero when no
// response was received.
type FetchError struct {
	Status int
	Cause  error
}

func (e *FetchError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("failed to fetch servers: %v", e.Cause)
	}
	if e.Cause == nil {
		return fmt.Sprintf("failed to fetch servers: status %d", e.Status)
	}
	return fmt.Sprintf("failed to fetch servers: status %d: %v", e.Status, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// IsUnauthorized reports whether err is a FetchError for a 401 response.
func IsUnauthorized(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Status == http.StatusUnauthorized
}

// Servers fetches the server list with the given bearer token. An empty token
// sends no Authorization header and lets the server decide.
func (c *Client) Servers(ctx context.Context, token string) ([]servers.Server, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/servers", nil)
	if err != nil {
		return nil, &FetchError{Cause: fmt.Errorf("failed to create request: %w", err)}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &FetchError{Status: resp.StatusCode, Cause: err}
	}

	if !isSuccess(resp.StatusCode) {
		var msg struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &msg) == nil && msg.Message != "" {
			return nil, &FetchError{Status: resp.StatusCode, Cause: errors.New(msg.Message)}
		}
		return nil, &FetchError{Status: resp.StatusCode}
	}

	var list []servers.Server
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, &FetchError{Status: resp.StatusCode, Cause: fmt.Errorf("malformed server list: %w", err)}
	}
	if list == nil {
		// "null" decodes to a nil slice; callers distinguish empty from unloaded
		list = []servers.Server{}
	}
	return list, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
