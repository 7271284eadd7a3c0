// Package conversation implements the language stages around the plan
// loop: intent classification, command generation and the final reply.
package conversation

import (
	"context"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/infrastructure/completion"
	"github.com/felixgeelhaar/orbit/infrastructure/logging"
)

// Classifier labels the latest user utterance with an intent.
type Classifier struct {
	llm completion.Service
}

// NewClassifier creates a classifier.
func NewClassifier(llm completion.Service) *Classifier {
	return &Classifier{llm: llm}
}

// Classify returns IntentUnknown when there is nothing to classify and
// IntentQuestion when the completion fails or is not recognized.
func (c *Classifier) Classify(ctx context.Context, state *agent.AgentState) agent.Intent {
	if state == nil || len(state.Messages) == 0 {
		return agent.IntentUnknown
	}

	input := state.Messages[len(state.Messages)-1].Content
	if last, ok := state.LastUserMessage(); ok {
		input = last.Content
	}
	if c.llm == nil {
		return agent.IntentQuestion
	}

	raw, err := c.llm.Complete(ctx, []agent.Message{
		{Role: agent.RoleSystem, Content: ClassifierPrompt},
		agent.UserMessage(input),
	}, 0)
	if err != nil {
		logging.Warn().
			Add(logging.SessionID(state.SessionID)).
			Add(logging.ErrorField(err)).
			Msg("classification failed, assuming question")
		return agent.IntentQuestion
	}

	intent := agent.ParseIntent(completion.StripFences(raw))
	logging.Debug().
		Add(logging.SessionID(state.SessionID)).
		Add(logging.Intent(intent)).
		Msg("intent classified")
	return intent
}
