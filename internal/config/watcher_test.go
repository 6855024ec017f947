package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnProjectConfigWrite(t *testing.T) {
	projectDir := t.TempDir()
	home := t.TempDir()
	t.Setenv("HOME", home)

	_, projectPath := ConfigPaths(projectDir, "")
	if err := os.MkdirAll(filepath.Dir(projectPath), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(projectPath, []byte("[response]\nmode = \"strict\"\n"), 0644); err != nil {
		t.Fatalf("writing initial config: %v", err)
	}

	w, err := NewWatcher(LoadOptions{ProjectDir: projectDir})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan Config, 1)
	errs := make(chan error, 1)
	go w.Run(ctx, func(cfg Config) { changed <- cfg }, func(err error) { errs <- err })

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(projectPath, []byte("[response]\nmode = \"lenient\"\n"), 0644); err != nil {
		t.Fatalf("rewriting config: %v", err)
	}

	select {
	case cfg := <-changed:
		if cfg.Response.Mode != "lenient" {
			t.Fatalf("expected reloaded mode lenient, got %q", cfg.Response.Mode)
		}
	case err := <-errs:
		t.Fatalf("unexpected reload error: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for config reload")
	}
}

func TestNewWatcher_FailsWhenNoDirectoryWatchable(t *testing.T) {
	// With an empty HOME and a project dir that has no .dcg directory,
	// only the system config directory can be watched; when it is absent
	// too, NewWatcher must report an error instead of a watcher.
	t.Setenv("HOME", t.TempDir())
	w, err := NewWatcher(LoadOptions{ProjectDir: t.TempDir()})
	if _, statErr := os.Stat(filepath.Dir(systemConfigPath)); statErr == nil {
		// This host has a system config directory, which alone is watchable.
		if err != nil {
			t.Fatalf("NewWatcher: %v", err)
		}
		w.Close()
		return
	}
	if err == nil {
		w.Close()
		t.Fatalf("expected an error when no config directory exists")
	}
}
