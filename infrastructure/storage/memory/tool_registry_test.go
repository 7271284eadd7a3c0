package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/felixgeelhaar/orbit/domain/tool"
)

func newTestTool(name string) tool.Tool {
	return tool.NewBuilder(name).
		WithDescription("Test " + name).
		WithHandler(func(_ context.Context, _ json.RawMessage) (tool.Result, error) {
			return tool.NewResult(name), nil
		}).
		MustBuild()
}

func newRegistry(t *testing.T, names ...string) *ToolRegistry {
	t.Helper()
	tools := make([]tool.Tool, 0, len(names))
	for _, n := range names {
		tools = append(tools, newTestTool(n))
	}
	r, err := NewToolRegistry(tools...)
	if err != nil {
		t.Fatalf("NewToolRegistry() error = %v", err)
	}
	return r
}

func TestToolRegistry_Register(t *testing.T) {
	t.Parallel()

	registry := newRegistry(t)

	if err := registry.Register(newTestTool("shell_exec")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if registry.Count() != 1 {
		t.Errorf("Count() = %d, want 1", registry.Count())
	}
	if err := registry.Register(newTestTool("shell_exec")); !errors.Is(err, tool.ErrToolExists) {
		t.Errorf("Register() duplicate error = %v, want ErrToolExists", err)
	}
	if err := registry.Register(nil); !errors.Is(err, tool.ErrEmptyName) {
		t.Errorf("Register(nil) error = %v, want ErrEmptyName", err)
	}
}

func TestNewToolRegistry_Duplicate(t *testing.T) {
	t.Parallel()

	if _, err := NewToolRegistry(newTestTool("a"), newTestTool("a")); !errors.Is(err, tool.ErrToolExists) {
		t.Errorf("NewToolRegistry() error = %v, want ErrToolExists", err)
	}
}

func TestToolRegistry_Lookup(t *testing.T) {
	t.Parallel()

	registry := newRegistry(t, "file_ops", "shell_exec")

	got, ok := registry.Get("file_ops")
	if !ok || got.Name() != "file_ops" {
		t.Errorf("Get(file_ops) = %v, %v", got, ok)
	}
	if _, ok := registry.Get("missing"); ok {
		t.Error("Get(missing) returned true")
	}
	if !registry.Has("shell_exec") || registry.Has("missing") {
		t.Error("Has() mismatch")
	}
	if len(registry.List()) != 2 {
		t.Errorf("List() = %d tools, want 2", len(registry.List()))
	}

	names := registry.Names()
	if len(names) != 2 || names[0] != "file_ops" || names[1] != "shell_exec" {
		t.Errorf("Names() = %v, want sorted [file_ops shell_exec]", names)
	}
}

func TestToolRegistry_Unregister(t *testing.T) {
	t.Parallel()

	registry := newRegistry(t, "to_remove")

	if err := registry.Unregister("to_remove"); err != nil {
		t.Errorf("Unregister() error = %v", err)
	}
	if registry.Has("to_remove") {
		t.Error("tool still exists after Unregister()")
	}
	if err := registry.Unregister("to_remove"); !errors.Is(err, tool.ErrToolNotFound) {
		t.Errorf("Unregister() error = %v, want ErrToolNotFound", err)
	}
}

func TestToolRegistry_Catalogue(t *testing.T) {
	t.Parallel()

	registry := newRegistry(t, "b_tool", "a_tool")
	want := "- a_tool: Test a_tool\n- b_tool: Test b_tool"
	if got := tool.FormatCatalogue(registry); got != want {
		t.Errorf("FormatCatalogue() = %q, want %q", got, want)
	}
}

func TestToolRegistry_Filters(t *testing.T) {
	t.Parallel()

	build := func(name string, danger tool.DangerLevel, confirm bool, tags ...string) tool.Tool {
		b := tool.NewBuilder(name).
			WithDescription("Test " + name).
			WithDangerLevel(danger).
			WithTags(tags...).
			WithHandler(func(_ context.Context, _ json.RawMessage) (tool.Result, error) {
				return tool.NewResult(name), nil
			})
		if confirm {
			b = b.RequiresConfirmation()
		}
		return b.MustBuild()
	}
	registry, err := NewToolRegistry(
		build("shell_exec", tool.DangerCritical, true, "shell"),
		build("file_ops", tool.DangerMedium, false, "files"),
		build("clock", tool.DangerNone, false),
	)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		got  []string
		want []string
	}{
		{"safe for 3", tool.SafeFor(registry, 3), []string{"clock", "file_ops"}},
		{"safe for 0", tool.SafeFor(registry, 0), []string{"clock"}},
		{"confirmation at 3", tool.RequiringConfirmation(registry, 3), []string{"shell_exec"}},
		{"confirmation at 1", tool.RequiringConfirmation(registry, 1), []string{"file_ops", "shell_exec"}},
		{"search tag", tool.Search(registry, "FILES"), []string{"file_ops"}},
		{"search description", tool.Search(registry, "test c"), []string{"clock"}},
	}
	for _, tt := range tests {
		if fmt.Sprint(tt.got) != fmt.Sprint(tt.want) {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestToolRegistry_Concurrency(t *testing.T) {
	t.Parallel()

	registry := newRegistry(t)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("tool_%d", i%26)
			_ = registry.Register(newTestTool(name))
			registry.Get(name)
			registry.Has(name)
			registry.List()
			registry.Names()
		}(i)
	}
	wg.Wait()

	if registry.Count() != 26 {
		t.Errorf("Count() = %d, want 26", registry.Count())
	}
}
