package tool_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/felixgeelhaar/orbit/domain/tool"
)

func echoHandler(_ context.Context, args json.RawMessage) (tool.Result, error) {
	return tool.NewResult(string(args)), nil
}

func TestToolBuilder_Basic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		toolName    string
		description string
		wantErr     error
	}{
		{
			name:        "valid tool",
			toolName:    "test_tool",
			description: "A test tool",
		},
		{
			name:        "empty name fails",
			toolName:    "",
			description: "Should fail",
			wantErr:     tool.ErrEmptyName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			built, err := tool.NewBuilder(tt.toolName).
				WithDescription(tt.description).
				WithHandler(echoHandler).
				Build()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Build() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if built.Name() != tt.toolName {
				t.Errorf("Name() = %v, want %v", built.Name(), tt.toolName)
			}
			if built.Description() != tt.description {
				t.Errorf("Description() = %v, want %v", built.Description(), tt.description)
			}
		})
	}
}

func TestToolBuilder_Annotations(t *testing.T) {
	t.Parallel()

	built := tool.NewBuilder("rm").
		Destructive().
		WithTimeout(5 * time.Second).
		WithCategory(tool.CategoryFileSystem).
		WithTags("fs", "delete").
		MustBuild()

	a := built.Annotations()
	if !a.Destructive || !a.RequiresConfirmation {
		t.Errorf("Destructive() annotations = %+v", a)
	}
	if a.DangerLevel != tool.DangerHigh {
		t.Errorf("DangerLevel = %v, want high", a.DangerLevel)
	}
	if a.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", a.Timeout)
	}
	if !reflect.DeepEqual(a.Tags, []string{"fs", "delete"}) {
		t.Errorf("Tags = %v", a.Tags)
	}

	critical := tool.NewBuilder("sh").WithDangerLevel(tool.DangerCritical).Destructive().MustBuild()
	if critical.Annotations().DangerLevel != tool.DangerCritical {
		t.Error("Destructive() must not lower an existing danger level")
	}
}

func TestAnnotations_IsSafeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		level      tool.DangerLevel
		confirm    bool
		permission int
		wantSafe   bool
		wantAsk    bool
	}{
		{"shell for default user", tool.DangerCritical, true, 1, false, true},
		{"file ops for default user", tool.DangerMedium, false, 1, false, true},
		{"file ops for admin", tool.DangerMedium, false, 5, true, false},
		{"read only", tool.DangerMinimal, false, 1, true, false},
		{"equal level is safe", tool.DangerLow, false, 2, true, false},
		{"confirmation flag wins", tool.DangerNone, true, 10, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := tool.Annotations{DangerLevel: tt.level, RequiresConfirmation: tt.confirm}
			if got := a.IsSafeFor(tt.permission); got != tt.wantSafe {
				t.Errorf("IsSafeFor(%d) = %v, want %v", tt.permission, got, tt.wantSafe)
			}
			if got := a.NeedsConfirmation(tt.permission); got != tt.wantAsk {
				t.Errorf("NeedsConfirmation(%d) = %v, want %v", tt.permission, got, tt.wantAsk)
			}
		})
	}
}

func TestDefinition_ExecuteValidatesArguments(t *testing.T) {
	t.Parallel()

	built := tool.NewBuilder("shell_exec").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"command": {Type: "string"},
			"cwd":     {Type: "string"},
		}, []string{"command"})).
		WithHandler(echoHandler).
		MustBuild()

	tests := []struct {
		name     string
		args     string
		wantKind tool.ErrorKind
	}{
		{"valid", `{"command":"ls"}`, ""},
		{"missing required", `{"cwd":"/tmp"}`, tool.KindValidation},
		{"null required", `{"command":null}`, tool.KindValidation},
		{"empty args", ``, tool.KindValidation},
		{"not an object", `["ls"]`, tool.KindValidation},
		{"invalid json", `{`, tool.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := built.Execute(context.Background(), json.RawMessage(tt.args))
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("Execute() error = %v", err)
				}
				if res.Output != tt.args {
					t.Errorf("Output = %q, want %q", res.Output, tt.args)
				}
				return
			}
			var terr *tool.Error
			if !errors.As(err, &terr) {
				t.Fatalf("Execute() error = %v, want *tool.Error", err)
			}
			if terr.Kind != tt.wantKind || terr.Retryable {
				t.Errorf("error = %+v, want non-retryable %s", terr, tt.wantKind)
			}
			if !errors.Is(err, tool.ErrInvalidInput) {
				t.Errorf("errors.Is(err, ErrInvalidInput) = false")
			}
		})
	}
}

func TestDefinition_ExecuteWithoutHandler(t *testing.T) {
	t.Parallel()

	built := tool.NewBuilder("noop").MustBuild()
	if _, err := built.Execute(context.Background(), nil); !errors.Is(err, tool.ErrNoHandler) {
		t.Errorf("Execute() error = %v, want ErrNoHandler", err)
	}
}

func TestSuggestFix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{errors.New("open /etc/shadow: permission denied"), "Check file permissions or run with elevated privileges"},
		{errors.New("stat x: no such file or directory"), "Ensure the required resource exists"},
		{errors.New("read /tmp: is a directory"), "Use the 'list' operation for directories"},
		{errors.New("rmdir: directory not empty"), "Pass recursive=true to delete non-empty directories"},
		{errors.New("dial tcp: connection refused"), "Check network connectivity and retry"},
		{errors.New("boom"), ""},
		{nil, ""},
	}

	for _, tt := range tests {
		if got := tool.SuggestFix(tt.err); got != tt.want {
			t.Errorf("SuggestFix(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestNewExecutionError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := tool.NewExecutionError("shell_exec", cause)

	if !err.Retryable || err.Kind != tool.KindExecution {
		t.Errorf("error = %+v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("execution error should unwrap to its cause")
	}
	if err.SuggestedFix == "" {
		t.Error("expected a suggested fix for connection errors")
	}
}
