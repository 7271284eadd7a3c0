package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/orbit/domain/config"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "orbit.yaml")
	if err := os.WriteFile(path, []byte("llm:\n  provider: mock\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	changes := make(chan *config.Config, 64)
	loader := NewLoaderWithOptions(WithEnviron(env(nil)))
	w, err := NewWatcher(path, loader, func(c *config.Config) {
		select {
		case changes <- c:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	if err := os.WriteFile(path, []byte("llm:\n  provider: mock\nlogging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	// A single save can surface as several write events; wait for the
	// final content.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Logging.Level == "debug" {
				return
			}
		case <-deadline:
			t.Fatal("no reload with the new level observed")
		}
	}
}
