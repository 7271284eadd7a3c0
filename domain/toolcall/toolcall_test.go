package toolcall_test

import (
	"errors"
	"testing"

	"github.com/felixgeelhaar/orbit/domain/toolcall"
)

func TestCheckTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to toolcall.Status
		wantErr  bool
	}{
		{toolcall.StatusPending, toolcall.StatusRunning, false},
		{toolcall.StatusRunning, toolcall.StatusCompleted, false},
		{toolcall.StatusRunning, toolcall.StatusFailed, false},
		{toolcall.StatusCompleted, toolcall.StatusCompleted, false},
		{toolcall.StatusFailed, toolcall.StatusFailed, false},
		{toolcall.StatusPending, toolcall.StatusCompleted, true},
		{toolcall.StatusCompleted, toolcall.StatusFailed, true},
		{toolcall.StatusFailed, toolcall.StatusRunning, true},
		{toolcall.StatusRunning, toolcall.StatusRunning, true},
		{toolcall.StatusRunning, toolcall.StatusPending, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()
			err := toolcall.CheckTransition(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckTransition() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, toolcall.ErrInvalidTransition) {
				t.Errorf("error = %v, want ErrInvalidTransition", err)
			}
		})
	}
}
