package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
server:
  port: 9090
rate_limit:
  max_requests: 10
`

func TestWatch_ReloadOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	// Give the watcher a moment to register before the write.
	time.Sleep(100 * time.Millisecond)

	updated := "server:\n  port: 9191\n"
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Server.Port != 9191 {
			t.Errorf("reloaded port: got %d, want 9191", cfg.Server.Port)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload within 5s")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_KeepsPreviousOnInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	go Watch(ctx, path, func(cfg *Config) { reloaded <- cfg })

	time.Sleep(100 * time.Millisecond)

	// Broken content must not reach onChange.
	if err := os.WriteFile(path, []byte("rate_limit: [broken"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		t.Fatalf("onChange fired for invalid config: %+v", cfg)
	case <-time.After(500 * time.Millisecond):
	}

	// A subsequent valid write recovers.
	if err := os.WriteFile(path, []byte("server:\n  port: 9292\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Server.Port != 9292 {
			t.Errorf("recovered port: got %d, want 9292", cfg.Server.Port)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after recovery write")
	}
}

func TestWatch_MissingFile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := Watch(ctx, filepath.Join(t.TempDir(), "absent.yaml"), func(*Config) {})
	if err == nil {
		t.Fatal("expected error when watching a missing file, got nil")
	}
}
