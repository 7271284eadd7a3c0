package planner

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/domain/tool"
	"github.com/felixgeelhaar/orbit/infrastructure/completion"
	"github.com/felixgeelhaar/orbit/infrastructure/storage/memory"
)

func testRegistry(t *testing.T) tool.Registry {
	t.Helper()
	noop := func(_ context.Context, _ json.RawMessage) (tool.Result, error) { return tool.NewResult("ok"), nil }
	r, err := memory.NewToolRegistry(
		tool.NewBuilder("file_ops").WithDescription("File operations").WithDangerLevel(tool.DangerLevel(3)).WithHandler(noop).MustBuild(),
		tool.NewBuilder("echo").WithDescription("Echo input").WithDangerLevel(tool.DangerLevel(0)).WithHandler(noop).MustBuild(),
	)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestIsSimpleRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"What is my IP address", true},
		{"list files in /tmp", true},
		{"Show me the logs", true},
		{"how do I undo a commit", true},
		{"explain monads", true},
		{"deploy the service and run migrations", false},
		{"listen to port 80", false},
	}
	for _, tt := range tests {
		if got := IsSimpleRequest(tt.in); got != tt.want {
			t.Errorf("IsSimpleRequest(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCreatePlan_NoPlanCases(t *testing.T) {
	t.Parallel()

	p := New(Config{Completion: completion.NewScripted()})

	empty := agent.NewAgentState("s", "u", "")
	plan, err := p.CreatePlan(context.Background(), empty)
	if err != nil || plan.Goal != GoalNoMessage || plan.HasSteps() {
		t.Errorf("CreatePlan(empty) = %+v, %v", plan, err)
	}

	assistantLast := agent.NewAgentState("s", "u", "hi")
	assistantLast.AppendMessages(agent.AssistantMessage("hello"))
	plan, err = p.CreatePlan(context.Background(), assistantLast)
	if err != nil || plan.Goal != GoalNotUserRequest || plan.HasSteps() {
		t.Errorf("CreatePlan(assistant last) = %+v, %v", plan, err)
	}

	if _, err := p.CreatePlan(context.Background(), nil); !errors.Is(err, agent.ErrInvalidState) {
		t.Errorf("CreatePlan(nil) error = %v, want ErrInvalidState", err)
	}
}

func TestCreatePlan_ParsesPlan(t *testing.T) {
	t.Parallel()

	llm := completion.NewScripted(completion.Text("```json\n" + `{
		"goal": "Back up the config",
		"steps": [
			{"step_number": 4, "description": "Read config", "tool_name": "file_ops", "arguments": {"operation": "read", "path": "app.yaml"}},
			{"step_number": 9, "description": "Summarize", "tool_name": null}
		]
	}` + "\n```"))
	p := New(Config{Completion: llm, Registry: testRegistry(t)})

	state := agent.NewAgentState("s", "u", "back up the config and tell me what changed")
	state.PermissionLevel = 5

	plan, err := p.CreatePlan(context.Background(), state)
	if err != nil {
		t.Fatalf("CreatePlan() error = %v", err)
	}
	if plan.Goal != "Back up the config" || plan.TotalSteps() != 2 {
		t.Fatalf("plan = %+v", plan)
	}
	if plan.Steps[0].StepNumber != 1 || plan.Steps[1].StepNumber != 2 {
		t.Errorf("steps not renumbered: %+v", plan.Steps)
	}
	if plan.Steps[0].Tool() != "file_ops" || !plan.Steps[1].IsInformational() {
		t.Errorf("tool binding = %q / %v", plan.Steps[0].Tool(), plan.Steps[1].IsInformational())
	}
	if plan.RequiresConfirmation {
		t.Error("RequiresConfirmation = true with sufficient permission")
	}
	if plan.EstimatedSteps != 2 {
		t.Errorf("EstimatedSteps = %d, want 2", plan.EstimatedSteps)
	}

	calls := llm.Calls()
	if len(calls) != 1 || calls[0].Temperature != multiStepTemperature {
		t.Fatalf("calls = %+v", calls)
	}
	prompt := calls[0].Messages[1].Content
	if !strings.Contains(prompt, "- file_ops: File operations") {
		t.Errorf("prompt missing tool catalogue:\n%s", prompt)
	}
}

func TestCreatePlan_SimpleModeTemperature(t *testing.T) {
	t.Parallel()

	llm := completion.NewScripted(completion.Text(`{"goal":"list","steps":[{"description":"list files","tool_name":"echo"}]}`))
	p := New(Config{Completion: llm, Registry: testRegistry(t)})

	if _, err := p.CreatePlan(context.Background(), agent.NewAgentState("s", "u", "List files here")); err != nil {
		t.Fatal(err)
	}
	if got := llm.Calls()[0].Temperature; got != simpleTemperature {
		t.Errorf("temperature = %v, want %v", got, simpleTemperature)
	}
}

func TestCreatePlan_Confirmation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		reply      string
		permission int
		want       bool
		wantStep   int
	}{
		{"llm flag", `{"goal":"g","requires_confirmation":true,"steps":[{"description":"a"}]}`, 5, true, 0},
		{"step flag", `{"goal":"g","steps":[{"description":"a","requires_confirmation":true}]}`, 5, true, 1},
		{"dangerous tool", `{"goal":"g","steps":[{"description":"a","tool_name":"echo"},{"description":"b","tool_name":"file_ops"}]}`, 1, true, 2},
		{"safe tools", `{"goal":"g","steps":[{"description":"a","tool_name":"echo"}]}`, 1, false, 0},
		{"unknown tool", `{"goal":"g","steps":[{"description":"a","tool_name":"rm_rf"}]}`, 1, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := New(Config{Completion: completion.NewScripted(completion.Text(tt.reply)), Registry: testRegistry(t)})
			state := agent.NewAgentState("s", "u", "do the thing")
			state.PermissionLevel = tt.permission

			plan, err := p.CreatePlan(context.Background(), state)
			if err != nil {
				t.Fatal(err)
			}
			if plan.RequiresConfirmation != tt.want {
				t.Errorf("RequiresConfirmation = %v, want %v", plan.RequiresConfirmation, tt.want)
			}
			if tt.wantStep > 0 && !plan.Steps[tt.wantStep-1].RequiresConfirmation {
				t.Errorf("step %d not flagged", tt.wantStep)
			}
		})
	}
}

func TestCreatePlan_TruncatesSteps(t *testing.T) {
	t.Parallel()

	var steps []string
	for i := 0; i < 8; i++ {
		steps = append(steps, `{"description":"step"}`)
	}
	reply := `{"goal":"many","steps":[` + strings.Join(steps, ",") + `]}`

	p := New(Config{Completion: completion.NewScripted(completion.Text(reply))})
	plan, err := p.CreatePlan(context.Background(), agent.NewAgentState("s", "u", "do many things"))
	if err != nil {
		t.Fatal(err)
	}
	if plan.TotalSteps() != DefaultMaxSteps || plan.EstimatedSteps != DefaultMaxSteps {
		t.Errorf("steps = %d (estimated %d), want %d", plan.TotalSteps(), plan.EstimatedSteps, DefaultMaxSteps)
	}
	if plan.Steps[DefaultMaxSteps-1].StepNumber != DefaultMaxSteps {
		t.Errorf("last step number = %d", plan.Steps[DefaultMaxSteps-1].StepNumber)
	}
}

func TestCreatePlan_Fallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		reply    completion.Reply
		request  string
		wantDesc string
		wantExp  string
	}{
		{"completion error simple", completion.Fail(errors.New("down")), "show me disk usage", "Process: show me disk usage", "Understand and respond to user"},
		{"completion error multi", completion.Fail(errors.New("down")), "migrate the db", "Analyze and respond to: migrate the db", "Understand and provide information"},
		{"prose reply", completion.Text("I would first check the disk."), "migrate the db", "Analyze and respond to: migrate the db", "Understand and provide information"},
		{"empty steps", completion.Text(`{"goal":"g","steps":[]}`), "migrate the db", "Analyze and respond to: migrate the db", "Understand and provide information"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := New(Config{Completion: completion.NewScripted(tt.reply)})
			plan, err := p.CreatePlan(context.Background(), agent.NewAgentState("s", "u", tt.request))
			if err != nil {
				t.Fatalf("CreatePlan() error = %v", err)
			}
			if plan.TotalSteps() != 1 || plan.Goal == "" {
				t.Fatalf("plan = %+v, want single-step fallback", plan)
			}
			if plan.Steps[0].Description != tt.wantDesc || plan.Steps[0].ExpectedOutcome != tt.wantExp {
				t.Errorf("step = %+v", plan.Steps[0])
			}
			if !plan.Steps[0].IsInformational() {
				t.Error("fallback step bound to a tool")
			}
		})
	}
}

func TestParsePlan_LineFragments(t *testing.T) {
	t.Parallel()

	raw := "Here is the plan:\n" +
		"```\n" +
		`{"goal": "Inspect repo"}` + "\n" +
		`- {"steps": [{"description": "git status", "tool_name": "shell_exec"}]},` + "\n" +
		`{"description": "Report findings"}` + "\n" +
		`{"requires_confirmation": true}` + "\n" +
		"```"

	plan, err := ParsePlan(raw)
	if err != nil {
		t.Fatalf("ParsePlan() error = %v", err)
	}
	if plan.Goal != "Inspect repo" || plan.TotalSteps() != 2 || !plan.RequiresConfirmation {
		t.Errorf("plan = %+v", plan)
	}
	if plan.Steps[0].Tool() != "shell_exec" || plan.Steps[1].StepNumber != 2 {
		t.Errorf("steps = %+v", plan.Steps)
	}
}

func TestParsePlan_Rejects(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"",
		"no json at all",
		`{"goal":"g"}`,
		`{"goal":"g","steps":[{"description":""}]}`,
	} {
		if _, err := ParsePlan(raw); !errors.Is(err, ErrNoSteps) {
			t.Errorf("ParsePlan(%q) error = %v, want ErrNoSteps", raw, err)
		}
	}
}

func TestParsePlan_NullToolNames(t *testing.T) {
	t.Parallel()

	plan, err := ParsePlan(`{"steps":[{"description":"a","tool_name":"null"},{"description":"b","tool_name":" "}]}`)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range plan.Steps {
		if !s.IsInformational() {
			t.Errorf("step %d bound to %q", s.StepNumber, s.Tool())
		}
	}
}
