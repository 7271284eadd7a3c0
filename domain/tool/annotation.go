// Package tool provides the domain model for agent tools.
package tool

import "time"

// DangerLevel is the safety tier of a tool. A caller may run a tool only
// when the tool's danger level does not exceed the caller's permission level.
type DangerLevel int

const (
	DangerNone     DangerLevel = iota // Purely informational
	DangerMinimal                     // Reads local state
	DangerLow                         // Reversible changes
	DangerMedium                      // Writes that may need cleanup
	DangerHigh                        // Hard to reverse
	DangerCritical                    // Arbitrary side effects
)

// String returns the string representation of the danger level.
func (d DangerLevel) String() string {
	switch d {
	case DangerNone:
		return "none"
	case DangerMinimal:
		return "minimal"
	case DangerLow:
		return "low"
	case DangerMedium:
		return "medium"
	case DangerHigh:
		return "high"
	case DangerCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Category groups tools for discovery.
type Category string

const (
	CategorySystem     Category = "system"
	CategoryFileSystem Category = "filesystem"
	CategoryNetwork    Category = "network"
	CategoryData       Category = "data"
)

// Annotations describe tool behavior for safety checks and planning.
type Annotations struct {
	// DangerLevel is the tool's safety tier.
	DangerLevel DangerLevel `json:"danger_level"`

	// RequiresConfirmation indicates the user must confirm every call.
	RequiresConfirmation bool `json:"requires_confirmation"`

	// ReadOnly indicates the tool has no side effects.
	ReadOnly bool `json:"read_only"`

	// Destructive indicates the tool may cause irreversible changes.
	Destructive bool `json:"destructive"`

	// Idempotent indicates multiple calls with same input yield same result.
	Idempotent bool `json:"idempotent"`

	// Timeout bounds a single execution (0 = no tool-level bound).
	Timeout time.Duration `json:"timeout,omitempty"`

	Category Category `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// DefaultAnnotations returns annotations with safe defaults.
func DefaultAnnotations() Annotations {
	return Annotations{
		DangerLevel: DangerMinimal,
		Category:    CategorySystem,
	}
}

// IsSafeFor reports whether a caller with the given permission level may
// run the tool without escalation.
func (a Annotations) IsSafeFor(permission int) bool {
	return int(a.DangerLevel) <= permission
}

// NeedsConfirmation reports whether a call by the given caller must be
// confirmed first.
func (a Annotations) NeedsConfirmation(permission int) bool {
	return a.RequiresConfirmation || !a.IsSafeFor(permission)
}

