package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFileParsesLayoutPath(t *testing.T) {
	cfg := &Config{}
	cfg.ConfigPath = filepath.Join(t.TempDir(), "config")

	content := "ListenAddr=:9999\nToken=test-token\nWorkDir=/tmp/work\nLayoutPath=/tmp/custom/layout.yaml\nMaxSessions=16\nMaxConcurrentTasks=8\n"
	if err := os.WriteFile(cfg.ConfigPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file error = %v", err)
	}

	if err := cfg.loadFromFile(); err != nil {
		t.Fatalf("loadFromFile() error = %v", err)
	}

	if cfg.LayoutPath != "/tmp/custom/layout.yaml" {
		t.Fatalf("LayoutPath = %q, want /tmp/custom/layout.yaml", cfg.LayoutPath)
	}
	if cfg.MaxSessions != 16 {
		t.Fatalf("MaxSessions = %d, want 16", cfg.MaxSessions)
	}
	if cfg.MaxConcurrentTasks != 8 {
		t.Fatalf("MaxConcurrentTasks = %d, want 8", cfg.MaxConcurrentTasks)
	}
}

func TestLoadFromFileRejectsOutOfRangeMaxSessions(t *testing.T) {
	cfg := &Config{}
	cfg.ConfigPath = filepath.Join(t.TempDir(), "config")

	if err := os.WriteFile(cfg.ConfigPath, []byte("MaxSessions=0\n"), 0o600); err != nil {
		t.Fatalf("write config file error = %v", err)
	}

	if err := cfg.loadFromFile(); err == nil {
		t.Fatal("expected loadFromFile to reject MaxSessions=0, got nil error")
	}
}
