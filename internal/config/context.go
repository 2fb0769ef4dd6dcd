package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Context is the remembered CLI target, used when --host is omitted. The
// password is never persisted.
type Context struct {
	// Host is the IPv4 address of the selected host.
	Host string `yaml:"host,omitempty"`
	// Port is the SSH port; zero means the configured default.
	Port int `yaml:"port,omitempty"`
	// User is the login name.
	User string `yaml:"user,omitempty"`
	// UpdatedAt is when the context was last modified.
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// IsEmpty returns true if no target is set.
func (c *Context) IsEmpty() bool {
	return c.Host == ""
}

// HasUser returns true if a login name is remembered.
func (c *Context) HasUser() bool {
	return c.User != ""
}

// Clear removes the target.
func (c *Context) Clear() {
	c.Host = ""
	c.Port = 0
	c.User = ""
	c.UpdatedAt = time.Now()
}

// SetTarget selects host. Changing the host forgets the previous user unless
// a new one is given.
func (c *Context) SetTarget(host string, port int, user string) {
	if host != c.Host && user == "" {
		c.User = ""
	}
	c.Host = host
	c.Port = port
	if user != "" {
		c.User = user
	}
	c.UpdatedAt = time.Now()
}

// String returns a human-readable representation of the context.
func (c *Context) String() string {
	if c.IsEmpty() {
		return "(no target set)"
	}
	target := c.Host
	if c.Port != 0 {
		target += ":" + strconv.Itoa(c.Port)
	}
	if c.HasUser() {
		target = c.User + "@" + target
	}
	return target
}

// ContextStore manages loading and saving context.
type ContextStore struct {
	path string
	mu   sync.RWMutex
}

// NewContextStore creates a new context store.
// If path is empty, uses the default path (~/.config/remotectl/context.yaml).
func NewContextStore(path string) *ContextStore {
	if path == "" {
		homeDir, _ := os.UserHomeDir()
		path = filepath.Join(homeDir, ".config", "remotectl", "context.yaml")
	}
	return &ContextStore{path: path}
}

// Path returns the context file path.
func (s *ContextStore) Path() string {
	return s.path
}

// Load reads the context from disk.
// Returns an empty context if the file doesn't exist.
func (s *ContextStore) Load() (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := &Context{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ctx, nil
		}
		return nil, fmt.Errorf("failed to read context file: %w", err)
	}

	if err := yaml.Unmarshal(data, ctx); err != nil {
		return nil, fmt.Errorf("failed to parse context file: %w", err)
	}

	return ctx, nil
}

// Save writes the context to disk.
func (s *ContextStore) Save(ctx *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create context directory: %w", err)
	}

	data, err := yaml.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("failed to serialize context: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write context file: %w", err)
	}

	return nil
}

// Clear removes the context file.
func (s *ContextStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove context file: %w", err)
	}
	return nil
}
