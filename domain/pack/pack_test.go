package pack_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/felixgeelhaar/orbit/domain/pack"
	"github.com/felixgeelhaar/orbit/domain/tool"
	"github.com/felixgeelhaar/orbit/infrastructure/storage/memory"
)

type mockTool struct {
	name string
}

func (m mockTool) Name() string                  { return m.name }
func (m mockTool) Description() string           { return "mock tool" }
func (m mockTool) Annotations() tool.Annotations { return tool.Annotations{} }
func (m mockTool) InputSchema() tool.Schema      { return tool.Schema{} }
func (m mockTool) Execute(context.Context, json.RawMessage) (tool.Result, error) {
	return tool.Result{}, nil
}

func TestPack_ToolNames(t *testing.T) {
	t.Parallel()

	if names := (&pack.Pack{}).ToolNames(); len(names) != 0 {
		t.Errorf("ToolNames() len = %d, want 0", len(names))
	}

	p := &pack.Pack{Tools: []tool.Tool{mockTool{"read_file"}, mockTool{"write_file"}}}
	names := p.ToolNames()
	if len(names) != 2 || names[0] != "read_file" || names[1] != "write_file" {
		t.Errorf("ToolNames() = %v", names)
	}
}

func TestPack_GetTool(t *testing.T) {
	t.Parallel()

	p := &pack.Pack{Tools: []tool.Tool{mockTool{"read_file"}, mockTool{"write_file"}}}

	found, ok := p.GetTool("write_file")
	if !ok || found.Name() != "write_file" {
		t.Errorf("GetTool(write_file) = %v, %v", found, ok)
	}
	if _, ok := p.GetTool("missing"); ok {
		t.Error("GetTool(missing) returned true")
	}
}

func TestBuilder(t *testing.T) {
	t.Parallel()

	p := pack.NewBuilder("files").
		WithDescription("file tools").
		WithVersion("1.0.0").
		WithMetadata("bridge", "required").
		AddTools(mockTool{"a"}, mockTool{"b"}).
		Build()

	if p.Name != "files" || p.Description != "file tools" || p.Version != "1.0.0" {
		t.Errorf("pack = %+v", p)
	}
	if len(p.Tools) != 2 || p.Metadata["bridge"] != "required" {
		t.Errorf("pack = %+v", p)
	}
}

func TestInstall(t *testing.T) {
	t.Parallel()

	reg, err := memory.NewToolRegistry()
	if err != nil {
		t.Fatal(err)
	}

	a := pack.NewBuilder("a").AddTools(mockTool{"one"}, mockTool{"two"}).Build()
	if err := pack.Install(reg, a); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if !reg.Has("one") || !reg.Has("two") {
		t.Errorf("Names() = %v", reg.Names())
	}

	dup := pack.NewBuilder("dup").AddTools(mockTool{"one"}).Build()
	if err := pack.Install(reg, dup); !errors.Is(err, tool.ErrToolExists) {
		t.Errorf("Install(dup) error = %v, want ErrToolExists", err)
	}
	if err := pack.Install(reg, &pack.Pack{}); !errors.Is(err, pack.ErrInvalidPack) {
		t.Errorf("Install(unnamed) error = %v, want ErrInvalidPack", err)
	}
}
