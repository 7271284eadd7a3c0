package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/infrastructure/completion"
)

// ErrNoSteps indicates no plan steps could be recovered from a completion.
var ErrNoSteps = errors.New("no plan steps in completion")

type planDocument struct {
	Goal                 string           `json:"goal"`
	Steps                []agent.PlanStep `json:"steps"`
	RequiresConfirmation bool             `json:"requires_confirmation"`
}

// ParsePlan recovers a plan from raw completion text. The outermost JSON
// object is tried first; failing that, each line is decoded as a JSON
// fragment and fragments carrying steps are merged.
func ParsePlan(raw string) (*agent.Plan, error) {
	var doc planDocument
	if err := completion.DecodeJSON(raw, &doc); err == nil {
		if err := validate(doc); err == nil {
			return build(doc), nil
		}
	}

	doc = scanFragments(raw)
	if err := validate(doc); err != nil {
		return nil, err
	}
	return build(doc), nil
}

func validate(doc planDocument) error {
	if len(doc.Steps) == 0 {
		return ErrNoSteps
	}
	for i, s := range doc.Steps {
		if strings.TrimSpace(s.Description) == "" {
			return fmt.Errorf("%w: step %d has no description", ErrNoSteps, i+1)
		}
	}
	return nil
}

func build(doc planDocument) *agent.Plan {
	steps := make([]agent.PlanStep, len(doc.Steps))
	for i, s := range doc.Steps {
		if s.ToolName != nil {
			name := strings.TrimSpace(*s.ToolName)
			if name == "" || strings.EqualFold(name, "null") || strings.EqualFold(name, "none") {
				s.ToolName = nil
			} else {
				s.ToolName = &name
			}
		}
		steps[i] = s
	}
	p := agent.NewPlan(strings.TrimSpace(doc.Goal), steps)
	p.RequiresConfirmation = doc.RequiresConfirmation
	return p
}

// scanFragments decodes line-level JSON fragments, as emitted by models
// that stream one object per line.
func scanFragments(raw string) planDocument {
	var doc planDocument
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		line = strings.TrimLeft(line, "-*• ")
		line = strings.TrimSuffix(line, ",")
		if !strings.HasPrefix(line, "{") {
			continue
		}

		var fragment map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &fragment); err != nil {
			continue
		}

		if v, ok := fragment["goal"]; ok && doc.Goal == "" {
			_ = json.Unmarshal(v, &doc.Goal)
		}
		if v, ok := fragment["requires_confirmation"]; ok {
			var flag bool
			if json.Unmarshal(v, &flag) == nil && flag {
				doc.RequiresConfirmation = true
			}
		}
		if v, ok := fragment["steps"]; ok {
			var steps []agent.PlanStep
			if json.Unmarshal(v, &steps) == nil {
				doc.Steps = append(doc.Steps, steps...)
			}
			continue
		}
		if _, ok := fragment["description"]; ok {
			var step agent.PlanStep
			if json.Unmarshal([]byte(line), &step) == nil {
				doc.Steps = append(doc.Steps, step)
			}
		}
	}
	return doc
}
