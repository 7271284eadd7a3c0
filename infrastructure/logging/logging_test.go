package logging

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/orbit/domain/agent"
)

func testLogger() (*bolt.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := bolt.New(bolt.NewJSONHandler(buf)).SetLevel(bolt.TRACE)
	return logger, buf
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	if config.Level != "info" {
		t.Errorf("Level = %s, want info", config.Level)
	}
	if config.Format != "console" {
		t.Errorf("Format = %s, want console", config.Format)
	}
	if config.Output != os.Stderr {
		t.Errorf("Output = %v, want os.Stderr", config.Output)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected bolt.Level
	}{
		{"trace", bolt.TRACE},
		{"debug", bolt.DEBUG},
		{"info", bolt.INFO},
		{"warn", bolt.WARN},
		{"error", bolt.ERROR},
		{"unknown", bolt.INFO},
		{"", bolt.INFO},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%s) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field Field
		want  string
	}{
		{"thread", ThreadID("th-1"), `"thread_id":"th-1"`},
		{"session", SessionID("default"), `"session_id":"default"`},
		{"stage", Stage(agent.StagePlanner), `"stage":"planner"`},
		{"from", FromStage(agent.StageExecutor), `"from_stage":"executor"`},
		{"to", ToStage(agent.StageEvaluator), `"to_stage":"evaluator"`},
		{"intent", Intent(agent.IntentWorkflow), `"intent":"workflow"`},
		{"step", StepNumber(3), `"step":3`},
		{"tool", ToolName("file_ops"), `"tool":"file_ops"`},
		{"outcome", Outcome(agent.OutcomeGoalAchieved), `"outcome":"goal_achieved"`},
		{"checkpoint", CheckpointID("cp-9"), `"checkpoint_id":"cp-9"`},
		{"command", Command("ls -la"), `"command":"ls -la"`},
		{"duration", Duration(100 * time.Millisecond), `"duration_ms":100`},
		{"error", ErrorField(errors.New("boom")), `"error":"boom"`},
		{"goal", Goal("deploy"), `"goal":"deploy"`},
		{"reason", Reason("unsafe"), `"reason":"unsafe"`},
		{"component", Component("safety"), `"component":"safety"`},
		{"count", Count("steps", 2), `"steps":2`},
		{"str", Str("k", "v"), `"k":"v"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, buf := testLogger()
			NewEvent(logger.Info()).Add(tt.field).Msg("test")

			if !bytes.Contains(buf.Bytes(), []byte(tt.want)) {
				t.Errorf("output %s missing %s", buf.String(), tt.want)
			}
		})
	}
}

func TestErrorField_Nil(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	ErrorField(nil)(logger.Info()).Msg("test")

	if bytes.Contains(buf.Bytes(), []byte(`"error"`)) {
		t.Errorf("unexpected error field in output: %s", buf.String())
	}
}

func TestNew_WritesToOutput(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	logger := New(Config{Level: "debug", Format: "json", Output: buf})
	logger.Debug().Str("k", "v").Msg("hello")

	if !bytes.Contains(buf.Bytes(), []byte("hello")) {
		t.Errorf("output = %s, want hello", buf.String())
	}
}
