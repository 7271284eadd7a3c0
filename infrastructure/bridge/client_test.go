package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/felixgeelhaar/orbit/infrastructure/bridge"
	"github.com/felixgeelhaar/orbit/infrastructure/resilience"
)

func newBridge(t *testing.T, handler func(t *testing.T, req bridge.CommandRequest) (int, any)) (*bridge.Client, *[]bridge.CommandRequest) {
	t.Helper()

	var seen []bridge.CommandRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/commands/execute" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		var req bridge.CommandRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		seen = append(seen, req)

		status, body := handler(t, req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)

	return bridge.New(bridge.Config{URL: srv.URL + "/", APIKey: "secret"}), &seen
}

func ok(stdout string) func(*testing.T, bridge.CommandRequest) (int, any) {
	return func(*testing.T, bridge.CommandRequest) (int, any) {
		return http.StatusOK, bridge.CommandResponse{Stdout: stdout, DurationMs: 3}
	}
}

func TestClient_ExecuteCommand(t *testing.T) {
	t.Parallel()

	client, seen := newBridge(t, ok("main.go\n"))

	resp, err := client.ExecuteCommand(context.Background(), "ls", []string{"-la"}, "/work")
	if err != nil {
		t.Fatalf("ExecuteCommand() error = %v", err)
	}
	if resp.Stdout != "main.go\n" || resp.Err() != nil {
		t.Errorf("resp = %+v", resp)
	}

	want := bridge.CommandRequest{Command: "ls", Args: []string{"-la"}, Cwd: "/work", TimeoutMs: 30000}
	if diff := cmp.Diff(want, (*seen)[0]); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_Run(t *testing.T) {
	t.Parallel()

	t.Run("splits and returns stdout", func(t *testing.T) {
		t.Parallel()
		client, seen := newBridge(t, ok("found"))
		out, err := client.Run(context.Background(), `grep -rn "hello world" ./src`)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if out != "found" {
			t.Errorf("Run() = %q", out)
		}
		want := []string{"-rn", "hello world", "./src"}
		if diff := cmp.Diff(want, (*seen)[0].Args); diff != "" {
			t.Errorf("args mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("non-zero exit is an error", func(t *testing.T) {
		t.Parallel()
		client, _ := newBridge(t, func(*testing.T, bridge.CommandRequest) (int, any) {
			return http.StatusOK, bridge.CommandResponse{Stderr: "no such file\n", ExitCode: 2}
		})
		_, err := client.Run(context.Background(), "cat missing.txt")
		if err == nil || err.Error() != "Command failed with exit code 2: no such file" {
			t.Errorf("Run() error = %v", err)
		}
	})

	t.Run("empty command", func(t *testing.T) {
		t.Parallel()
		client, seen := newBridge(t, ok(""))
		if _, err := client.Run(context.Background(), "   "); !errors.Is(err, bridge.ErrEmptyCommand) {
			t.Errorf("Run() error = %v, want ErrEmptyCommand", err)
		}
		if len(*seen) != 0 {
			t.Error("empty command reached the bridge")
		}
	})
}

func TestClient_ErrorStatus(t *testing.T) {
	t.Parallel()

	client, _ := newBridge(t, func(*testing.T, bridge.CommandRequest) (int, any) {
		return http.StatusForbidden, map[string]string{"message": "command not allowed", "code": "FORBIDDEN"}
	})

	_, err := client.ExecuteCommand(context.Background(), "shutdown", nil, "")
	if !errors.Is(err, bridge.ErrStatus) {
		t.Fatalf("error = %v, want ErrStatus", err)
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "FORBIDDEN: command not allowed") {
		t.Errorf("error = %v", err)
	}
}

func TestClient_Unavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := bridge.New(bridge.Config{URL: url})
	if _, err := client.ExecuteCommand(context.Background(), "ls", nil, ""); !errors.Is(err, bridge.ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestClient_BreakerOpens(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client := bridge.New(bridge.Config{URL: srv.URL, Breaker: resilience.BreakerConfig{Threshold: 2}})
	for range 4 {
		_, _ = client.ExecuteCommand(context.Background(), "ls", nil, "")
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("bridge hit %d times, want 2 before the breaker opened", got)
	}
}

func TestClient_FileHelpers(t *testing.T) {
	t.Parallel()

	client, seen := newBridge(t, ok(""))
	ctx := context.Background()

	calls := []func() (bridge.CommandResponse, error){
		func() (bridge.CommandResponse, error) {
			return client.ListFiles(ctx, "", bridge.ListOptions{IncludeHidden: true})
		},
		func() (bridge.CommandResponse, error) { return client.ReadFile(ctx, "go.mod") },
		func() (bridge.CommandResponse, error) { return client.CreateDirectory(ctx, "a/b", true) },
		func() (bridge.CommandResponse, error) { return client.DeletePath(ctx, "a", true) },
		func() (bridge.CommandResponse, error) { return client.WriteFile(ctx, "x.txt", "$(id)", false, false) },
	}
	for _, call := range calls {
		if _, err := call(); err != nil {
			t.Fatal(err)
		}
	}

	got := make([]string, 0, len(*seen))
	for _, req := range (*seen)[:4] {
		got = append(got, req.Command+" "+strings.Join(req.Args, " "))
	}
	want := []string{"ls -la .", "cat go.mod", "mkdir -p a/b", "rm -r a"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}

	write := (*seen)[4]
	if write.Command != "sh" || write.Args[3] != "$(id)" || write.Args[4] != "x.txt" {
		t.Errorf("write request = %+v", write)
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		want []string
	}{
		{"ls -la", []string{"ls", "-la"}},
		{"  echo   'a  b'  ", []string{"echo", "a  b"}},
		{`echo "say \"hi\""`, []string{"echo", `say "hi"`}},
		{`touch my\ file`, []string{"touch", "my file"}},
		{`echo ""`, []string{"echo", ""}},
		{"", nil},
		{"cat\ta.txt\nb.txt", []string{"cat", "a.txt", "b.txt"}},
	}
	for _, tt := range tests {
		got, err := bridge.Split(tt.line)
		if err != nil {
			t.Errorf("Split(%q) error = %v", tt.line, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Split(%q) mismatch (-want +got):\n%s", tt.line, diff)
		}
	}

	for _, line := range []string{`echo "open`, `echo 'open`, `echo open\`} {
		if _, err := bridge.Split(line); !errors.Is(err, bridge.ErrUnterminatedQuote) {
			t.Errorf("Split(%q) error = %v, want ErrUnterminatedQuote", line, err)
		}
	}
}
