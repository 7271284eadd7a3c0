// Package pack provides types for reusable tool collections.
package pack

import (
	"fmt"

	"github.com/felixgeelhaar/orbit/domain/tool"
)

// Pack is a named collection of related tools.
type Pack struct {
	Name        string
	Description string
	Version     string
	Tools       []tool.Tool
	Metadata    map[string]string
}

// ToolNames returns the names of all tools in the pack.
func (p *Pack) ToolNames() []string {
	names := make([]string, len(p.Tools))
	for i, t := range p.Tools {
		names[i] = t.Name()
	}
	return names
}

// GetTool returns a tool by name from the pack.
func (p *Pack) GetTool(name string) (tool.Tool, bool) {
	for _, t := range p.Tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// Install registers every tool of the given packs. It stops at the first
// registration error, leaving earlier tools registered.
func Install(reg tool.Registry, packs ...*Pack) error {
	for _, p := range packs {
		if p == nil || p.Name == "" {
			return ErrInvalidPack
		}
		for _, t := range p.Tools {
			if err := reg.Register(t); err != nil {
				return fmt.Errorf("install pack %s: %w", p.Name, err)
			}
		}
	}
	return nil
}

// Builder provides a fluent API for constructing packs.
type Builder struct {
	pack *Pack
}

// NewBuilder creates a new pack builder.
func NewBuilder(name string) *Builder {
	return &Builder{
		pack: &Pack{
			Name:     name,
			Tools:    make([]tool.Tool, 0),
			Metadata: make(map[string]string),
		},
	}
}

// WithDescription sets the pack description.
func (b *Builder) WithDescription(desc string) *Builder {
	b.pack.Description = desc
	return b
}

// WithVersion sets the pack version.
func (b *Builder) WithVersion(version string) *Builder {
	b.pack.Version = version
	return b
}

// AddTools adds tools to the pack.
func (b *Builder) AddTools(tools ...tool.Tool) *Builder {
	b.pack.Tools = append(b.pack.Tools, tools...)
	return b
}

// WithMetadata adds metadata to the pack.
func (b *Builder) WithMetadata(key, value string) *Builder {
	b.pack.Metadata[key] = value
	return b
}

// Build returns the constructed pack.
func (b *Builder) Build() *Pack {
	return b.pack
}
