package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/orbit/domain/agent"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// ThreadID adds a thread ID field.
func ThreadID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("thread_id", id)
	}
}

// SessionID adds a session ID field.
func SessionID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("session_id", id)
	}
}

// Stage adds a stage field.
func Stage(s agent.Stage) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("stage", string(s))
	}
}

// FromStage adds a from_stage field for transitions.
func FromStage(s agent.Stage) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("from_stage", string(s))
	}
}

// ToStage adds a to_stage field for transitions.
func ToStage(s agent.Stage) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("to_stage", string(s))
	}
}

// Intent adds an intent field.
func Intent(i agent.Intent) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("intent", string(i))
	}
}

// StepNumber adds the plan step number.
func StepNumber(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("step", n)
	}
}

// ToolName adds a tool name field.
func ToolName(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("tool", name)
	}
}

// Outcome adds an evaluation outcome field.
func Outcome(o agent.Outcome) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("outcome", string(o))
	}
}

// CheckpointID adds a checkpoint ID field.
func CheckpointID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("checkpoint_id", id)
	}
}

// Command adds a shell command field.
func Command(cmd string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("command", cmd)
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Goal adds a goal field.
func Goal(goal string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("goal", goal)
	}
}

// Reason adds a reason field.
func Reason(reason string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("reason", reason)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Count adds an integer field with a custom key.
func Count(key string, n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, n)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}
