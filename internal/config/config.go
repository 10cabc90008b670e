package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const DefaultServerURL = "http://127.0.0.1:8080"

type Config struct {
	// ServerURL is the base URL of the line API (scheme://host[:port][/prefix]).
	ServerURL string `json:"serverUrl,omitempty"`

	// CSRFToken is a pre-issued credential. When empty the client asks the
	// server for one at startup.
	CSRFToken string `json:"csrfToken,omitempty"`

	// StateDB is the SQLite file holding per-origin view state (scroll offset).
	StateDB string `json:"stateDb,omitempty"`

	// LogFile receives the client's log; the TUI owns the terminal.
	LogFile string `json:"logFile,omitempty"`

	// RequestTimeout is a Go duration ("10s"). Empty means no timeout.
	RequestTimeout string `json:"requestTimeout,omitempty"`

	TUI *TUIConfig `json:"tui,omitempty"`
}

type TUIConfig struct {
	// Glyphs selects the glyph set ("unicode", "ascii").
	Glyphs string `json:"glyphs,omitempty"`
}

func Dir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.webtodo).
	if v := strings.TrimSpace(os.Getenv("WEBTODO_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".webtodo"), nil
}

func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DefaultPath joins name onto the config dir, falling back to name itself.
func DefaultPath(name string) string {
	dir, err := Dir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, name)
}

func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}

func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if prev, err := os.ReadFile(path); err == nil && len(prev) > 0 {
		_ = atomicWriteFile(dir, "config.json.bak.*.tmp", path+".bak", prev, 0o644)
	}
	// The file may hold a credential.
	return atomicWriteFile(dir, "config.json.*.tmp", path, b, 0o600)
}

// Timeout parses RequestTimeout; empty is zero.
func (c *Config) Timeout() (time.Duration, error) {
	s := strings.TrimSpace(c.RequestTimeout)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("requestTimeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("requestTimeout: negative duration %s", s)
	}
	return d, nil
}

// Keys lists the names accepted by Get and Set.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var setters = map[string]func(*Config, string) error{
	"serverUrl": func(c *Config, v string) error { c.ServerURL = v; return nil },
	"csrfToken": func(c *Config, v string) error { c.CSRFToken = v; return nil },
	"stateDb":   func(c *Config, v string) error { c.StateDB = v; return nil },
	"logFile":   func(c *Config, v string) error { c.LogFile = v; return nil },
	"requestTimeout": func(c *Config, v string) error {
		prev := c.RequestTimeout
		c.RequestTimeout = v
		if _, err := c.Timeout(); err != nil {
			c.RequestTimeout = prev
			return err
		}
		return nil
	},
	"tui.glyphs": func(c *Config, v string) error {
		switch v {
		case "", "unicode", "ascii":
		default:
			return fmt.Errorf("tui.glyphs: unknown glyph set %q", v)
		}
		if c.TUI == nil {
			c.TUI = &TUIConfig{}
		}
		c.TUI.Glyphs = v
		return nil
	},
}

// Set assigns one key. An empty value clears it.
func (c *Config) Set(key, value string) error {
	fn, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	return fn(c, strings.TrimSpace(value))
}

func (c *Config) Get(key string) (string, error) {
	switch key {
	case "serverUrl":
		return c.ServerURL, nil
	case "csrfToken":
		return c.CSRFToken, nil
	case "stateDb":
		return c.StateDB, nil
	case "logFile":
		return c.LogFile, nil
	case "requestTimeout":
		return c.RequestTimeout, nil
	case "tui.glyphs":
		if c.TUI == nil {
			return "", nil
		}
		return c.TUI.Glyphs, nil
	}
	return "", fmt.Errorf("unknown config key %q", key)
}
