package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolate(t *testing.T) (home, repo string) {
	t.Helper()
	home = t.TempDir()
	repo = t.TempDir()
	t.Setenv("HOME", home)
	return home, repo
}

func TestDefaults(t *testing.T) {
	_, repo := isolate(t)
	cfg, err := Load(repo)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sync.Interval != 10*time.Minute || cfg.Log.Level != "info" || !cfg.Color.UI {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if _, err := cfg.Author(); err == nil {
		t.Fatal("Author should fail without user.name")
	}
}

func TestRepoOverridesGlobal(t *testing.T) {
	_, repo := isolate(t)
	if err := SetValue(repo, "user.name", "Global Name", true); err != nil {
		t.Fatalf("SetValue global: %v", err)
	}
	if err := SetValue(repo, "user.email", "g@example.com", true); err != nil {
		t.Fatalf("SetValue global: %v", err)
	}
	if err := SetValue(repo, "user.name", "Repo Name", false); err != nil {
		t.Fatalf("SetValue repo: %v", err)
	}
	if err := SetValue(repo, "sync.interval", "90s", false); err != nil {
		t.Fatalf("SetValue repo: %v", err)
	}

	cfg, err := Load(repo)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	author, err := cfg.Author()
	if err != nil {
		t.Fatalf("Author: %v", err)
	}
	if author != "Repo Name <g@example.com>" {
		t.Errorf("Author = %q", author)
	}
	if cfg.Sync.Interval != 90*time.Second {
		t.Errorf("interval = %v", cfg.Sync.Interval)
	}
	if _, err := os.Stat(filepath.Join(repo, DirName, "config")); err != nil {
		t.Errorf("repo config not written: %v", err)
	}
}

func TestGetValue(t *testing.T) {
	_, repo := isolate(t)
	if err := SetValue(repo, "remote.url", "http://localhost:7070", false); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		key, want string
	}{
		{"remote.url", "http://localhost:7070"},
		{"log.level", "info"},
		{"color.ui", "true"},
		{"sync.interval", "10m0s"},
	}
	for _, tt := range tests {
		got, err := GetValue(repo, tt.key)
		if err != nil {
			t.Fatalf("GetValue(%s): %v", tt.key, err)
		}
		if got != tt.want {
			t.Errorf("GetValue(%s) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestSetValueRejectsBadInput(t *testing.T) {
	_, repo := isolate(t)
	bad := []struct{ key, value string }{
		{"core.editor", "vim"},
		{"user", "x"},
		{"sync.interval", "soon"},
		{"sync.interval", "-5m"},
		{"color.ui", "yes"},
		{"log.level", "loud"},
	}
	for _, tt := range bad {
		if err := SetValue(repo, tt.key, tt.value, false); err == nil {
			t.Errorf("SetValue(%s, %s) should fail", tt.key, tt.value)
		}
	}
}
