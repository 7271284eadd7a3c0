package agent

import "strings"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// IsValid returns true if the role is recognized.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	default:
		return false
	}
}

// Message is one entry of the conversation transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage creates a message authored by the user.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage creates a message authored by the agent.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolMessage creates a message carrying tool output.
func ToolMessage(content string) Message {
	return Message{Role: RoleTool, Content: content}
}

// Intent is the classified purpose of the latest user utterance.
type Intent string

const (
	IntentCommand      Intent = "command"
	IntentQuestion     Intent = "question"
	IntentWorkflow     Intent = "workflow"
	IntentConfirmation Intent = "confirmation"
	IntentUnknown      Intent = "unknown"
)

// ParseIntent normalizes classifier output. Anything outside the four
// classifiable intents degrades to IntentQuestion.
func ParseIntent(raw string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(raw))) {
	case IntentCommand:
		return IntentCommand
	case IntentWorkflow:
		return IntentWorkflow
	case IntentConfirmation:
		return IntentConfirmation
	default:
		return IntentQuestion
	}
}

// IsValid returns true if the intent is part of the closed intent set.
func (i Intent) IsValid() bool {
	switch i {
	case IntentCommand, IntentQuestion, IntentWorkflow, IntentConfirmation, IntentUnknown:
		return true
	default:
		return false
	}
}
