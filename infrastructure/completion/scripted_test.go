package completion

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/orbit/domain/agent"
)

func TestScripted(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := NewScripted(Text("first"), Fail(boom)).
		On("CLASSIFY", Text("command"), Text("workflow"))

	classify := []agent.Message{{Role: agent.RoleSystem, Content: "CLASSIFY this"}, agent.UserMessage("x")}
	other := []agent.Message{agent.UserMessage("y")}

	steps := []struct {
		msgs    []agent.Message
		want    string
		wantErr error
	}{
		{classify, "command", nil},
		{other, "first", nil},
		{classify, "workflow", nil},
		{classify, "workflow", nil},
		{other, "", boom},
		{other, "", ErrScriptExhausted},
	}
	for i, st := range steps {
		got, err := s.Complete(context.Background(), st.msgs, 0)
		if got != st.want || !errors.Is(err, st.wantErr) {
			t.Errorf("call %d = (%q, %v), want (%q, %v)", i, got, err, st.want, st.wantErr)
		}
	}

	if n := len(s.Calls()); n != len(steps) {
		t.Errorf("Calls() = %d, want %d", n, len(steps))
	}
}

func TestScripted_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewScripted(Text("x")).WithFallback(Text("y")).Complete(ctx, nil, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Complete() error = %v, want context.Canceled", err)
	}
}
