package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/domain/event"
)

// ErrThreadNotFound indicates no events were recorded for a thread.
var ErrThreadNotFound = errors.New("thread not found")

// rangeLoader is implemented by stores that can load from a sequence.
type rangeLoader interface {
	LoadEventsFrom(ctx context.Context, threadID string, fromSeq uint64) ([]event.Event, error)
}

// Replay rebuilds thread history from retained events.
type Replay struct {
	eventStore event.Store
}

// NewReplay creates a new replay engine.
func NewReplay(eventStore event.Store) *Replay {
	return &Replay{
		eventStore: eventStore,
	}
}

// ThreadSummary is what a thread's event stream says happened.
type ThreadSummary struct {
	ThreadID    string
	SessionID   string
	Intent      agent.Intent
	Plan        *agent.Plan
	Results     []agent.ExecutionResult
	Evaluations []agent.Evaluation
	Response    string
	Status      string
	Error       string
	Resumes     int
	StartTime   time.Time
	EndTime     time.Time
}

// Thread statuses reported by replay.
const (
	ThreadRunning   = "running"
	ThreadCompleted = "completed"
	ThreadFailed    = "failed"
)

// ReconstructThread rebuilds a thread summary from its event history.
func (r *Replay) ReconstructThread(ctx context.Context, threadID string) (*ThreadSummary, error) {
	events, err := r.eventStore.LoadEvents(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return applyEvents(threadID, events)
}

// ReconstructThreadFrom rebuilds a summary from a starting sequence.
func (r *Replay) ReconstructThreadFrom(ctx context.Context, threadID string, fromSeq uint64) (*ThreadSummary, error) {
	events, err := r.loadFrom(ctx, threadID, fromSeq)
	if err != nil {
		return nil, err
	}
	return applyEvents(threadID, events)
}

func (r *Replay) loadFrom(ctx context.Context, threadID string, fromSeq uint64) ([]event.Event, error) {
	if rl, ok := r.eventStore.(rangeLoader); ok {
		events, err := rl.LoadEventsFrom(ctx, threadID, fromSeq)
		if err != nil {
			return nil, fmt.Errorf("load events: %w", err)
		}
		return events, nil
	}

	all, err := r.eventStore.LoadEvents(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	events := make([]event.Event, 0, len(all))
	for _, e := range all {
		if e.Sequence >= fromSeq {
			events = append(events, e)
		}
	}
	return events, nil
}

// applyEvents folds a sequence of events into a summary.
func applyEvents(threadID string, events []event.Event) (*ThreadSummary, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}

	s := &ThreadSummary{ThreadID: threadID, Status: ThreadRunning}
	var response strings.Builder

	for _, e := range events {
		switch e.Type {
		case event.TypeStart:
			var payload event.StartPayload
			if err := e.UnmarshalPayload(&payload); err != nil {
				return nil, fmt.Errorf("unmarshal start: %w", err)
			}
			if s.StartTime.IsZero() {
				s.StartTime = e.Timestamp
			}
			if payload.Resumed {
				s.Resumes++
			}
			s.SessionID = payload.SessionID
			s.Status = ThreadRunning

		case event.TypeIntent:
			var payload event.IntentPayload
			if err := e.UnmarshalPayload(&payload); err != nil {
				return nil, fmt.Errorf("unmarshal intent: %w", err)
			}
			s.Intent = payload.Intent

		case event.TypePlan:
			var payload event.PlanPayload
			if err := e.UnmarshalPayload(&payload); err != nil {
				return nil, fmt.Errorf("unmarshal plan: %w", err)
			}
			s.Plan = payload.Plan
			s.Results = nil

		case event.TypeToolResult:
			var payload event.ToolResultPayload
			if err := e.UnmarshalPayload(&payload); err != nil {
				return nil, fmt.Errorf("unmarshal tool_result: %w", err)
			}
			s.Results = append(s.Results, payload.Result)

		case event.TypeEvaluation:
			var payload event.EvaluationPayload
			if err := e.UnmarshalPayload(&payload); err != nil {
				return nil, fmt.Errorf("unmarshal evaluation: %w", err)
			}
			s.Evaluations = append(s.Evaluations, payload.Evaluation)

		case event.TypeChunk:
			var payload event.ChunkPayload
			if err := e.UnmarshalPayload(&payload); err != nil {
				return nil, fmt.Errorf("unmarshal chunk: %w", err)
			}
			if payload.Index == 0 {
				response.Reset()
			}
			response.WriteString(payload.Content)

		case event.TypeComplete:
			s.Status = ThreadCompleted
			s.EndTime = e.Timestamp

		case event.TypeError:
			var payload event.ErrorPayload
			if err := e.UnmarshalPayload(&payload); err != nil {
				return nil, fmt.Errorf("unmarshal error: %w", err)
			}
			s.Status = ThreadFailed
			s.Error = payload.Error
			s.EndTime = e.Timestamp

		// Step announcements carry nothing the results don't.
		case event.TypeStep:
		}
	}

	s.Response = response.String()
	return s, nil
}

// Duration returns the time from the first start to the last terminal event.
func (s *ThreadSummary) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// EventsByType returns a thread's events of one type.
func (r *Replay) EventsByType(ctx context.Context, threadID string, eventType event.Type) ([]event.Event, error) {
	events, err := r.eventStore.LoadEvents(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	var result []event.Event
	for _, e := range events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result, nil
}
