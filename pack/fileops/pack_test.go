package fileops

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/orbit/domain/tool"
	"github.com/felixgeelhaar/orbit/infrastructure/bridge"
)

type fakeBridge struct {
	resp bridge.CommandResponse
	err  error
	ops  []string
}

func (f *fakeBridge) record(op string) (bridge.CommandResponse, error) {
	f.ops = append(f.ops, op)
	return f.resp, f.err
}

func (f *fakeBridge) ListFiles(_ context.Context, path string, opts bridge.ListOptions) (bridge.CommandResponse, error) {
	if opts.Recursive {
		path += " -R"
	}
	return f.record("list " + path)
}

func (f *fakeBridge) ReadFile(_ context.Context, path string) (bridge.CommandResponse, error) {
	return f.record("read " + path)
}

func (f *fakeBridge) WriteFile(_ context.Context, path, content string, appendMode, _ bool) (bridge.CommandResponse, error) {
	mode := "write"
	if appendMode {
		mode = "append"
	}
	return f.record(mode + " " + path + " " + content)
}

func (f *fakeBridge) CreateDirectory(_ context.Context, path string, parents bool) (bridge.CommandResponse, error) {
	if parents {
		path += " -p"
	}
	return f.record("mkdir " + path)
}

func (f *fakeBridge) DeletePath(_ context.Context, path string, recursive bool) (bridge.CommandResponse, error) {
	if recursive {
		path += " -r"
	}
	return f.record("delete " + path)
}

func execute(t *testing.T, b *fakeBridge, args map[string]any) (string, error) {
	t.Helper()
	p, err := New(b)
	if err != nil {
		t.Fatal(err)
	}
	ft, ok := p.GetTool(ToolName)
	if !ok {
		t.Fatal("file_ops missing from pack")
	}
	raw, _ := json.Marshal(args)
	res, err := ft.Execute(context.Background(), raw)
	return res.Output, err
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := New(nil); err == nil {
		t.Error("New(nil) should fail")
	}

	p, err := New(&fakeBridge{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "fileops" {
		t.Errorf("Name = %s, want fileops", p.Name)
	}
	ft, _ := p.GetTool(ToolName)
	if ft.Annotations().DangerLevel != tool.DangerMedium {
		t.Errorf("DangerLevel = %v, want medium", ft.Annotations().DangerLevel)
	}
}

func TestOperations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		args   map[string]any
		stdout string
		wantOp string
		want   string
	}{
		{"list default path", map[string]any{"operation": "list"}, "a.go\n", "list .", "Files in '.':\na.go\n"},
		{"list empty", map[string]any{"operation": "list", "path": "empty", "recursive": true}, "", "list empty -R", "No files found in 'empty'"},
		{"read", map[string]any{"operation": "read", "path": "go.mod"}, "module x", "read go.mod", "Contents of 'go.mod':\n\nmodule x"},
		{"write", map[string]any{"operation": "write", "path": "a.txt", "content": "héllo"}, "", "write a.txt héllo", "Successfully wrote 5 characters to 'a.txt'"},
		{"append", map[string]any{"operation": "write", "path": "a.txt", "content": "x", "mode": "append"}, "", "append a.txt x", "Successfully wrote 1 characters to 'a.txt'"},
		{"mkdir", map[string]any{"operation": "mkdir", "path": "a/b"}, "", "mkdir a/b -p", "Successfully created directory: 'a/b'"},
		{"mkdir no parents", map[string]any{"operation": "mkdir", "path": "a", "create_parents": false}, "", "mkdir a", "Successfully created directory: 'a'"},
		{"delete", map[string]any{"operation": "delete", "path": "build", "recursive": true}, "", "delete build -r", "Successfully deleted: 'build'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := &fakeBridge{resp: bridge.CommandResponse{Stdout: tt.stdout}}
			got, err := execute(t, b, tt.args)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
			if len(b.ops) != 1 || b.ops[0] != tt.wantOp {
				t.Errorf("bridge ops = %v, want [%s]", b.ops, tt.wantOp)
			}
		})
	}
}

func TestRead_Truncates(t *testing.T) {
	t.Parallel()

	b := &fakeBridge{resp: bridge.CommandResponse{Stdout: strings.Repeat("a", 20000)}}
	got, err := execute(t, b, map[string]any{"operation": "read", "path": "big.log"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(got, truncatedNote) {
		t.Error("output not marked truncated")
	}
	if n := len([]rune(got)) - len([]rune(truncatedNote)); n != MaxReadChars {
		t.Errorf("kept %d chars, want %d", n, MaxReadChars)
	}
}

func TestErrors(t *testing.T) {
	t.Parallel()

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		for _, args := range []map[string]any{
			{"operation": "chmod", "path": "x"},
			{"operation": "read"},
			{"operation": "write", "path": "x", "mode": "truncate"},
		} {
			_, err := execute(t, &fakeBridge{}, args)
			var toolErr *tool.Error
			if !errors.As(err, &toolErr) || toolErr.Kind != tool.KindValidation {
				t.Errorf("Execute(%v) error = %v, want validation error", args, err)
			}
		}
	})

	t.Run("non-zero exit", func(t *testing.T) {
		t.Parallel()
		b := &fakeBridge{resp: bridge.CommandResponse{ExitCode: 1, Stderr: "rm: build: Directory not empty\n"}}
		_, err := execute(t, b, map[string]any{"operation": "delete", "path": "build"})

		var toolErr *tool.Error
		if !errors.As(err, &toolErr) || toolErr.Kind != tool.KindExecution {
			t.Fatalf("error = %v, want execution error", err)
		}
		if !strings.Contains(toolErr.Message, "Failed to delete path: rm: build: Directory not empty") {
			t.Errorf("Message = %q", toolErr.Message)
		}
		if toolErr.SuggestedFix != "Pass recursive=true to delete non-empty directories" {
			t.Errorf("SuggestedFix = %q", toolErr.SuggestedFix)
		}
	})

	t.Run("bridge unavailable", func(t *testing.T) {
		t.Parallel()
		b := &fakeBridge{err: bridge.ErrUnavailable}
		if _, err := execute(t, b, map[string]any{"operation": "list"}); !errors.Is(err, bridge.ErrUnavailable) {
			t.Errorf("error = %v, want ErrUnavailable", err)
		}
	})
}
