package tool

import (
	"context"
	"encoding/json"
	"time"
)

// Tool represents a named capability the executor can invoke.
type Tool interface {
	// Name returns the stable string identifier for the tool.
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// InputSchema returns the JSON Schema for the tool arguments.
	InputSchema() Schema

	// Annotations returns the tool's safety metadata.
	Annotations() Annotations

	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args json.RawMessage) (Result, error)
}

// Handler is the function signature for tool execution.
type Handler func(ctx context.Context, args json.RawMessage) (Result, error)

// Definition is a concrete implementation of Tool.
type Definition struct {
	name        string
	description string
	inputSchema Schema
	annotations Annotations
	handler     Handler
}

// Name returns the tool name.
func (d *Definition) Name() string {
	return d.name
}

// Description returns the tool description.
func (d *Definition) Description() string {
	return d.description
}

// InputSchema returns the input schema.
func (d *Definition) InputSchema() Schema {
	return d.inputSchema
}

// Annotations returns the tool annotations.
func (d *Definition) Annotations() Annotations {
	return d.annotations
}

// Execute validates the arguments and runs the tool handler.
func (d *Definition) Execute(ctx context.Context, args json.RawMessage) (Result, error) {
	if d.handler == nil {
		return Result{}, ErrNoHandler
	}
	if err := d.inputSchema.Validate(args); err != nil {
		return Result{}, NewValidationError(d.name, err.Error())
	}
	return d.handler(ctx, args)
}

// Builder provides a fluent API for constructing tools.
type Builder struct {
	def *Definition
}

// NewBuilder creates a new tool builder with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{
		def: &Definition{
			name:        name,
			annotations: DefaultAnnotations(),
		},
	}
}

// WithDescription sets the tool description.
func (b *Builder) WithDescription(desc string) *Builder {
	b.def.description = desc
	return b
}

// WithInputSchema sets the input schema.
func (b *Builder) WithInputSchema(schema Schema) *Builder {
	b.def.inputSchema = schema
	return b
}

// WithDangerLevel sets the safety tier.
func (b *Builder) WithDangerLevel(level DangerLevel) *Builder {
	b.def.annotations.DangerLevel = level
	return b
}

// RequiresConfirmation marks every call as needing user confirmation.
func (b *Builder) RequiresConfirmation() *Builder {
	b.def.annotations.RequiresConfirmation = true
	return b
}

// ReadOnly marks the tool as side-effect free.
func (b *Builder) ReadOnly() *Builder {
	b.def.annotations.ReadOnly = true
	b.def.annotations.Idempotent = true
	return b
}

// Destructive marks the tool as destructive.
func (b *Builder) Destructive() *Builder {
	b.def.annotations.Destructive = true
	b.def.annotations.RequiresConfirmation = true
	if b.def.annotations.DangerLevel < DangerHigh {
		b.def.annotations.DangerLevel = DangerHigh
	}
	return b
}

// Idempotent marks the tool as idempotent.
func (b *Builder) Idempotent() *Builder {
	b.def.annotations.Idempotent = true
	return b
}

// WithTimeout bounds a single execution.
func (b *Builder) WithTimeout(d time.Duration) *Builder {
	b.def.annotations.Timeout = d
	return b
}

// WithCategory sets the tool category.
func (b *Builder) WithCategory(c Category) *Builder {
	b.def.annotations.Category = c
	return b
}

// WithTags adds tags to the tool.
func (b *Builder) WithTags(tags ...string) *Builder {
	b.def.annotations.Tags = append(b.def.annotations.Tags, tags...)
	return b
}

// WithHandler sets the tool handler function.
func (b *Builder) WithHandler(handler Handler) *Builder {
	b.def.handler = handler
	return b
}

// Build constructs the tool definition.
func (b *Builder) Build() (Tool, error) {
	if b.def.name == "" {
		return nil, ErrEmptyName
	}
	return b.def, nil
}

// MustBuild constructs the tool definition or panics on error.
func (b *Builder) MustBuild() Tool {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}
