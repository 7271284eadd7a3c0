// Package bridge is the HTTP client for the command bridge, the local
// service that runs shell commands on the user's machine.
package bridge

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

	"github.com/felixgeelhaar/fortify/circuitbreaker"

	"github.com/felixgeelhaar/orbit/infrastructure/logging"
	"github.com/felixgeelhaar/orbit/infrastructure/resilience"
)

const (
	executePath = "/api/v1/commands/execute"

	// DefaultURL is the bridge address used when none is configured.
	DefaultURL = "http://localhost:3001"

	// DefaultTimeout bounds one bridge request.
	DefaultTimeout = 30 * time.Second

	maxErrorBody = 500
)

// Errors returned by the bridge client.
var (
	// ErrUnavailable indicates the bridge could not be reached.
	ErrUnavailable = errors.New("bridge unavailable")

	// ErrStatus indicates the bridge rejected the request.
	ErrStatus = errors.New("bridge returned an error status")

	// ErrEmptyCommand indicates there was nothing to run.
	ErrEmptyCommand = errors.New("empty command")
)

// CommandRequest is the execute payload.
type CommandRequest struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	// TimeoutMs is enforced by the bridge.
	TimeoutMs int64 `json:"timeout"`
}

// CommandResponse is the bridge's report of a finished command.
type CommandResponse struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int64  `json:"duration_ms"`
}

// Err returns nil for a zero exit code and a descriptive error otherwise.
func (r CommandResponse) Err() error {
	if r.ExitCode == 0 {
		return nil
	}
	msg := fmt.Sprintf("Command failed with exit code %d", r.ExitCode)
	if stderr := strings.TrimSpace(r.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return errors.New(msg)
}

// Config configures a Client.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	Breaker resilience.BreakerConfig

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Client talks to the command bridge.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	breaker circuitbreaker.CircuitBreaker[CommandResponse]
}

// New creates a bridge client.
func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		base = DefaultURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout + 5*time.Second}
	}
	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		timeout: timeout,
		http:    hc,
		breaker: resilience.NewBreaker[CommandResponse](cfg.Breaker),
	}
}

// Execute runs a command with explicit arguments. A non-zero exit code is
// not an error at this level; inspect CommandResponse.Err.
func (c *Client) Execute(ctx context.Context, req CommandRequest) (CommandResponse, error) {
	if strings.TrimSpace(req.Command) == "" {
		return CommandResponse{}, ErrEmptyCommand
	}
	if req.Args == nil {
		req.Args = []string{}
	}
	if req.TimeoutMs <= 0 {
		req.TimeoutMs = c.timeout.Milliseconds()
	}

	start := time.Now()
	resp, err := c.breaker.Execute(ctx, func(ctx context.Context) (CommandResponse, error) {
		return c.post(ctx, req)
	})

	ev := logging.Debug()
	if err != nil {
		ev = logging.Warn().Add(logging.ErrorField(err))
	}
	ev.Add(logging.Component("bridge")).
		Add(logging.Command(req.Command)).
		Add(logging.Count("args", len(req.Args))).
		Add(logging.Count("exit_code", resp.ExitCode)).
		Add(logging.Duration(time.Since(start))).
		Msg("bridge command")
	return resp, err
}

// ExecuteCommand runs cmd with args in cwd.
func (c *Client) ExecuteCommand(ctx context.Context, cmd string, args []string, cwd string) (CommandResponse, error) {
	return c.Execute(ctx, CommandRequest{Command: cmd, Args: args, Cwd: cwd})
}

// Run splits a command line and executes it, returning stdout. A
// non-zero exit code is reported as an error.
func (c *Client) Run(ctx context.Context, line string) (string, error) {
	parts, err := Split(line)
	if err != nil {
		return "", err
	}
	if len(parts) == 0 {
		return "", ErrEmptyCommand
	}
	resp, err := c.ExecuteCommand(ctx, parts[0], parts[1:], "")
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		return "", err
	}
	return resp.Stdout, nil
}

func (c *Client) post(ctx context.Context, req CommandRequest) (CommandResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return CommandResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+executePath, bytes.NewReader(payload))
	if err != nil {
		return CommandResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return CommandResponse{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CommandResponse{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return CommandResponse{}, fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, errorMessage(body))
	}

	var out CommandResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return CommandResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}
	return out, nil
}

// errorMessage extracts {"message": ...} when present.
func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		if e.Code != "" {
			return e.Code + ": " + e.Message
		}
		return e.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
