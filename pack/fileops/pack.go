// Package fileops provides the file_ops tool: listing, reading, writing,
// creating and deleting paths on the user's machine through the command
// bridge.
package fileops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/orbit/domain/pack"
	"github.com/felixgeelhaar/orbit/domain/tool"
	"github.com/felixgeelhaar/orbit/infrastructure/bridge"
)

// ToolName is the registry name of the file tool.
const ToolName = "file_ops"

// MaxReadChars bounds the text returned by a read.
const MaxReadChars = 10000

const truncatedNote = "\n\n[... Content truncated - file too large ...]"

// Operations supported by file_ops.
const (
	OpList   = "list"
	OpRead   = "read"
	OpWrite  = "write"
	OpMkdir  = "mkdir"
	OpDelete = "delete"
)

// Bridge is the subset of the bridge client the tool needs.
type Bridge interface {
	ListFiles(ctx context.Context, path string, opts bridge.ListOptions) (bridge.CommandResponse, error)
	ReadFile(ctx context.Context, path string) (bridge.CommandResponse, error)
	WriteFile(ctx context.Context, path, content string, appendMode, createDirs bool) (bridge.CommandResponse, error)
	CreateDirectory(ctx context.Context, path string, parents bool) (bridge.CommandResponse, error)
	DeletePath(ctx context.Context, path string, recursive bool) (bridge.CommandResponse, error)
}

// New creates the fileops pack.
func New(b Bridge) (*pack.Pack, error) {
	if b == nil {
		return nil, errors.New("fileops pack requires a bridge")
	}
	return pack.NewBuilder("fileops").
		WithDescription("File system operations through the command bridge").
		WithVersion("1.0.0").
		WithMetadata("requires", "bridge").
		AddTools(fileOpsTool(b)).
		Build(), nil
}

type input struct {
	Operation     string `json:"operation"`
	Path          string `json:"path"`
	Content       string `json:"content,omitempty"`
	Recursive     bool   `json:"recursive,omitempty"`
	IncludeHidden bool   `json:"include_hidden,omitempty"`
	Mode          string `json:"mode,omitempty"`
	CreateDirs    bool   `json:"create_dirs,omitempty"`
	CreateParents *bool  `json:"create_parents,omitempty"`
}

func fileOpsTool(b Bridge) tool.Tool {
	return tool.NewBuilder(ToolName).
		WithDescription("Read, write, list, create, delete files and directories. Useful for viewing code, configuration files, logs, and managing project files.").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"operation":      {Type: "string", Description: "Operation to perform", Enum: []string{OpList, OpRead, OpWrite, OpMkdir, OpDelete}},
			"path":           {Type: "string", Description: "Target file or directory"},
			"content":        {Type: "string", Description: "Content for write"},
			"recursive":      {Type: "boolean", Description: "Recurse when listing or deleting"},
			"include_hidden": {Type: "boolean", Description: "Include dotfiles when listing"},
			"mode":           {Type: "string", Description: "Write mode", Enum: []string{"write", "append"}},
			"create_dirs":    {Type: "boolean", Description: "Create parent directories before writing"},
			"create_parents": {Type: "boolean", Description: "Create parent directories for mkdir (default true)"},
		}, []string{"operation"})).
		WithDangerLevel(tool.DangerMedium).
		RequiresConfirmation().
		WithCategory(tool.CategoryFileSystem).
		WithTags("files", "bridge").
		WithHandler(func(ctx context.Context, raw json.RawMessage) (tool.Result, error) {
			var in input
			if err := json.Unmarshal(raw, &in); err != nil {
				return tool.Result{}, tool.NewValidationError(ToolName, err.Error())
			}
			out, err := run(ctx, b, in)
			if err != nil {
				return tool.Result{}, err
			}
			return tool.NewResult(out), nil
		}).
		MustBuild()
}

func run(ctx context.Context, b Bridge, in input) (string, error) {
	if in.Operation != OpList && strings.TrimSpace(in.Path) == "" {
		return "", tool.NewValidationError(ToolName, "path is required")
	}

	switch in.Operation {
	case OpList:
		path := in.Path
		if path == "" {
			path = "."
		}
		resp, err := check(b.ListFiles(ctx, path, bridge.ListOptions{Recursive: in.Recursive, IncludeHidden: in.IncludeHidden}))
		if err != nil {
			return "", failure("list files", err)
		}
		if strings.TrimSpace(resp.Stdout) == "" {
			return fmt.Sprintf("No files found in '%s'", path), nil
		}
		return fmt.Sprintf("Files in '%s':\n%s", path, resp.Stdout), nil

	case OpRead:
		resp, err := check(b.ReadFile(ctx, in.Path))
		if err != nil {
			return "", failure("read file", err)
		}
		out := fmt.Sprintf("Contents of '%s':\n\n%s", in.Path, resp.Stdout)
		if r := []rune(out); len(r) > MaxReadChars {
			out = string(r[:MaxReadChars]) + truncatedNote
		}
		return out, nil

	case OpWrite:
		appendMode := false
		switch in.Mode {
		case "", "write":
		case "append":
			appendMode = true
		default:
			return "", tool.NewValidationError(ToolName, fmt.Sprintf("unknown write mode %q", in.Mode))
		}
		if _, err := check(b.WriteFile(ctx, in.Path, in.Content, appendMode, in.CreateDirs)); err != nil {
			return "", failure("write file", err)
		}
		return fmt.Sprintf("Successfully wrote %d characters to '%s'", len([]rune(in.Content)), in.Path), nil

	case OpMkdir:
		parents := in.CreateParents == nil || *in.CreateParents
		if _, err := check(b.CreateDirectory(ctx, in.Path, parents)); err != nil {
			return "", failure("create directory", err)
		}
		return fmt.Sprintf("Successfully created directory: '%s'", in.Path), nil

	case OpDelete:
		if _, err := check(b.DeletePath(ctx, in.Path, in.Recursive)); err != nil {
			return "", failure("delete path", err)
		}
		return fmt.Sprintf("Successfully deleted: '%s'", in.Path), nil

	default:
		return "", tool.NewValidationError(ToolName, fmt.Sprintf("Unknown operation: %s", in.Operation))
	}
}

// check folds a non-zero exit into the error.
func check(resp bridge.CommandResponse, err error) (bridge.CommandResponse, error) {
	if err != nil {
		return resp, err
	}
	if resp.ExitCode != 0 {
		return resp, errors.New(strings.TrimSpace(resp.Stderr))
	}
	return resp, nil
}

func failure(op string, err error) error {
	return tool.NewExecutionError(ToolName, fmt.Errorf("Failed to %s: %w", op, err))
}
