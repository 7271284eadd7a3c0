package tool

import (
	"sort"
	"strings"
)

// Registry defines the interface for tool registration and lookup.
// Implementations must be safe for concurrent reads.
type Registry interface {
	// Register adds a tool to the registry.
	Register(tool Tool) error

	// Get retrieves a tool by name.
	Get(name string) (Tool, bool)

	// List returns all registered tools.
	List() []Tool

	// Names returns all registered tool names.
	Names() []string

	// Has checks if a tool is registered.
	Has(name string) bool

	// Unregister removes a tool from the registry.
	Unregister(name string) error
}

// FormatCatalogue renders the registry as "- name: description" lines,
// sorted by name.
func FormatCatalogue(r Registry) string {
	tools := sorted(r.List())
	lines := make([]string, 0, len(tools))
	for _, t := range tools {
		lines = append(lines, "- "+t.Name()+": "+t.Description())
	}
	return strings.Join(lines, "\n")
}

// SafeFor returns the names of tools a caller with the given permission
// level may run.
func SafeFor(r Registry, permission int) []string {
	var names []string
	for _, t := range sorted(r.List()) {
		if t.Annotations().IsSafeFor(permission) {
			names = append(names, t.Name())
		}
	}
	return names
}

// RequiringConfirmation returns the names of tools that need confirmation
// for a caller with the given permission level.
func RequiringConfirmation(r Registry, permission int) []string {
	var names []string
	for _, t := range sorted(r.List()) {
		if t.Annotations().NeedsConfirmation(permission) {
			names = append(names, t.Name())
		}
	}
	return names
}

// Search returns tools whose name, description or tags contain the query.
func Search(r Registry, query string) []string {
	q := strings.ToLower(query)
	var names []string
	for _, t := range sorted(r.List()) {
		if strings.Contains(strings.ToLower(t.Name()), q) ||
			strings.Contains(strings.ToLower(t.Description()), q) ||
			hasTag(t.Annotations().Tags, q) {
			names = append(names, t.Name())
		}
	}
	return names
}

func hasTag(tags []string, q string) bool {
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

func sorted(tools []Tool) []Tool {
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}
