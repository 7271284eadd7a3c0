package bridge

import (
	"context"
	"fmt"
)

// ListOptions controls ListFiles.
type ListOptions struct {
	Recursive     bool
	IncludeHidden bool
}

// ListFiles lists a directory in long format.
func (c *Client) ListFiles(ctx context.Context, path string, opts ListOptions) (CommandResponse, error) {
	if path == "" {
		path = "."
	}
	flags := "-l"
	if opts.IncludeHidden {
		flags += "a"
	}
	if opts.Recursive {
		flags += "R"
	}
	return c.ExecuteCommand(ctx, "ls", []string{flags, path}, "")
}

// ReadFile prints a file.
func (c *Client) ReadFile(ctx context.Context, path string) (CommandResponse, error) {
	return c.ExecuteCommand(ctx, "cat", []string{path}, "")
}

// WriteFile writes or appends content. The content travels as a
// positional argument so it is never interpreted by the shell.
func (c *Client) WriteFile(ctx context.Context, path, content string, appendMode, createDirs bool) (CommandResponse, error) {
	redirect := ">"
	if appendMode {
		redirect = ">>"
	}
	script := fmt.Sprintf(`printf '%%s' "$1" %s "$2"`, redirect)
	if createDirs {
		script = `mkdir -p -- "$(dirname -- "$2")" && ` + script
	}
	return c.ExecuteCommand(ctx, "sh", []string{"-c", script, "sh", content, path}, "")
}

// CreateDirectory creates a directory, with parents when asked.
func (c *Client) CreateDirectory(ctx context.Context, path string, parents bool) (CommandResponse, error) {
	args := []string{path}
	if parents {
		args = []string{"-p", path}
	}
	return c.ExecuteCommand(ctx, "mkdir", args, "")
}

// DeletePath removes a file, or a directory tree when recursive.
func (c *Client) DeletePath(ctx context.Context, path string, recursive bool) (CommandResponse, error) {
	args := []string{path}
	if recursive {
		args = []string{"-r", path}
	}
	return c.ExecuteCommand(ctx, "rm", args, "")
}
