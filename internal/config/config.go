// Package config loads weavepane's ambient settings: a flat
// key=value file under the user's config directory, overridable by
// command-line flags, with an auto-generated token that is persisted
// to that file. The websocket control-plane transport does not check
// the token.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config bounds the ambient, non-domain settings a running
// weavepane process needs: where to listen, how many sessions/tasks
// to allow concurrently, and where to persist layouts.
type Config struct {
	ListenAddr         string
	Token              string
	ConfigPath         string
	PrintToken         bool
	WorkDir            string
	LayoutPath         string
	MaxSessions        int
	MaxConcurrentTasks int
}

// field binds one on-disk key to a getter/setter pair on a *Config,
// so loadFromFile and saveToFile walk a single table instead of
// duplicating a field list as a parse switch and a format string.
// A setter that validates (maxSessions, maxConcurrentTasks below)
// rejects a bad on-disk value at load time rather than waiting for a
// boot-time sanity check to catch it later.
type field struct {
	key string
	get func(*Config) string
	set func(*Config, string) error
}

func intField(key string, get func(*Config) int, set func(*Config, int)) field {
	return field{
		key: key,
		get: func(c *Config) string { return strconv.Itoa(get(c)) },
		set: func(c *Config, raw string) error {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("%s: %q is not an integer", key, raw)
			}
			if n < 1 {
				return fmt.Errorf("%s: %d must be at least 1", key, n)
			}
			set(c, n)
			return nil
		},
	}
}

func strField(key string, get func(*Config) string, set func(*Config, string)) field {
	return field{key: key, get: get, set: func(c *Config, raw string) error {
		set(c, raw)
		return nil
	}}
}

var configFields = []field{
	strField("ListenAddr", func(c *Config) string { return c.ListenAddr }, func(c *Config, v string) { c.ListenAddr = v }),
	strField("Token", func(c *Config) string { return c.Token }, func(c *Config, v string) { c.Token = v }),
	strField("WorkDir", func(c *Config) string { return c.WorkDir }, func(c *Config, v string) { c.WorkDir = v }),
	strField("LayoutPath", func(c *Config) string { return c.LayoutPath }, func(c *Config, v string) { c.LayoutPath = v }),
	intField("MaxSessions", func(c *Config) int { return c.MaxSessions }, func(c *Config, n int) { c.MaxSessions = n }),
	intField("MaxConcurrentTasks", func(c *Config) int { return c.MaxConcurrentTasks }, func(c *Config, n int) { c.MaxConcurrentTasks = n }),
}

func fieldByKey(key string) (field, bool) {
	for _, f := range configFields {
		if f.key == key {
			return f, true
		}
	}
	return field{}, false
}

// Load resolves defaults, applies the on-disk config file, then
// command-line flag overrides, generating and persisting an auth
// token on first run.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	cfg := &Config{
		ConfigPath:         filepath.Join(homeDir, ".config", "weavepane", "config"),
		WorkDir:            cwd,
		LayoutPath:         filepath.Join(homeDir, ".config", "weavepane", "layout.yaml"),
		MaxSessions:        32,
		MaxConcurrentTasks: 4,
	}

	if err := cfg.loadFromFile(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "websocket control-plane listen address (empty disables it)")
	flag.StringVar(&cfg.Token, "token", cfg.Token, "control-plane token (auto-generated if empty; not checked by the websocket transport)")
	flag.StringVar(&cfg.WorkDir, "dir", cfg.WorkDir, "default working directory for new sessions")
	flag.StringVar(&cfg.LayoutPath, "layout-path", cfg.LayoutPath, "path to persisted split-pane layout")
	flag.IntVar(&cfg.MaxSessions, "max-sessions", cfg.MaxSessions, "maximum concurrent PTY sessions")
	flag.IntVar(&cfg.MaxConcurrentTasks, "max-concurrent-tasks", cfg.MaxConcurrentTasks, "task scheduler concurrency cap")
	flag.BoolVar(&cfg.PrintToken, "print-token", false, "print the control-plane token to stderr (for local debugging)")
	flag.Parse()

	// Flags bypass the field table's validating setters, so re-check
	// the two bounds they can violate directly.
	if cfg.MaxSessions < 1 {
		return nil, fmt.Errorf("invalid max-sessions %d: must be at least 1", cfg.MaxSessions)
	}
	if cfg.MaxConcurrentTasks < 1 {
		return nil, fmt.Errorf("invalid max-concurrent-tasks %d: must be at least 1", cfg.MaxConcurrentTasks)
	}

	if cfg.Token == "" {
		token, err := generateToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %w", err)
		}
		cfg.Token = token
		if err := cfg.saveToFile(); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile parses ConfigPath's flat key=value lines and applies
// each recognized key through its field's validating setter; unknown
// keys and comment/blank lines are skipped.
func (c *Config) loadFromFile() error {
	data, err := os.ReadFile(c.ConfigPath)
	if err != nil {
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		f, ok := fieldByKey(strings.TrimSpace(key))
		if !ok {
			continue
		}
		if err := f.set(c, strings.TrimSpace(value)); err != nil {
			return err
		}
	}
	return nil
}

// saveToFile writes every field back out in table order, the inverse
// of loadFromFile.
func (c *Config) saveToFile() error {
	dir := filepath.Dir(c.ConfigPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	var b strings.Builder
	for _, f := range configFields {
		fmt.Fprintf(&b, "%s=%s\n", f.key, f.get(c))
	}
	return os.WriteFile(c.ConfigPath, []byte(b.String()), 0600)
}

func generateToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
