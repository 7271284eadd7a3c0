package completion

import (
	"context"
	"strings"
	"sync"

	"github.com/felixgeelhaar/orbit/domain/agent"
)

// Reply is one scripted completion outcome.
type Reply struct {
	Content string
	Err     error
}

// Text returns a successful reply.
func Text(s string) Reply { return Reply{Content: s} }

// Fail returns a failing reply.
func Fail(err error) Reply { return Reply{Err: err} }

// Call records one request made to a Scripted service.
type Call struct {
	Messages    []agent.Message
	Temperature float64
}

type rule struct {
	marker  string
	replies []Reply
	next    int
}

// Scripted is a deterministic Service for tests and dry runs. Replies
// are chosen by the first rule whose marker occurs in the system prompt,
// otherwise from the sequential queue, otherwise the fallback.
type Scripted struct {
	mu       sync.Mutex
	rules    []*rule
	queue    []Reply
	fallback Reply
	calls    []Call
}

// NewScripted creates a scripted service answering in order.
func NewScripted(replies ...Reply) *Scripted {
	return &Scripted{
		queue:    replies,
		fallback: Fail(ErrScriptExhausted),
	}
}

// On answers requests whose system prompt contains marker. Replies are
// used in order; the last one repeats.
func (s *Scripted) On(marker string, replies ...Reply) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, &rule{marker: marker, replies: replies})
	return s
}

// WithFallback sets the reply used once everything else is exhausted.
func (s *Scripted) WithFallback(r Reply) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = r
	return s
}

// Complete implements Service.
func (s *Scripted) Complete(ctx context.Context, messages []agent.Message, temperature float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Messages: append([]agent.Message(nil), messages...), Temperature: temperature})

	prompt := systemPrompt(messages)
	for _, r := range s.rules {
		if r.marker == "" || !strings.Contains(prompt, r.marker) || len(r.replies) == 0 {
			continue
		}
		reply := r.replies[min(r.next, len(r.replies)-1)]
		r.next++
		return reply.Content, reply.Err
	}

	if len(s.queue) > 0 {
		reply := s.queue[0]
		s.queue = s.queue[1:]
		return reply.Content, reply.Err
	}
	return s.fallback.Content, s.fallback.Err
}

// Calls returns the recorded requests.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

func systemPrompt(messages []agent.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		if m.Role == agent.RoleSystem {
			sb.WriteString(m.Content)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
