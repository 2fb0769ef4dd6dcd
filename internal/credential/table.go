// Package credential registers host credentials in the local OS credential
// table so that drive mounts can authenticate non-interactively.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tOgg1/remotectl/internal/command"
)

// ErrNotFound reports that no credential entry exists for a target.
var ErrNotFound = errors.New("credential not found")

// Kind distinguishes credential entry types.
type Kind string

const (
	KindDomain  Kind = "domain"
	KindGeneric Kind = "generic"
)

// Entry is one credential to add.
type Entry struct {
	Target   string
	Username string
	Password string
	Kind     Kind
}

// Listing reports which entry kinds exist for a target.
type Listing struct {
	Generic bool
	Domain  bool
}

// Complete reports whether both a generic and a domain entry exist.
func (l Listing) Complete() bool {
	return l.Generic && l.Domain
}

// Table is the machine-wide credential table. Implementations are not safe
// for concurrent use; other processes may modify the table at any time.
type Table interface {
	List(ctx context.Context, target string) (Listing, error)
	Add(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, target string) error
}

// DefaultBinary is the Windows credential manager CLI.
const DefaultBinary = "cmdkey"

// CmdkeyTable drives cmdkey through a Commander.
type CmdkeyTable struct {
	runner  command.Commander
	binary  string
	options command.Options
}

// NewCmdkeyTable creates a table that runs binary (cmdkey when empty).
func NewCmdkeyTable(runner command.Commander, binary string) *CmdkeyTable {
	if binary == "" {
		binary = DefaultBinary
	}
	return &CmdkeyTable{runner: runner, binary: binary, options: command.DefaultOptions()}
}

// List runs `cmdkey /list:"target"` and looks for entry types in its output.
// The command is not checked; a failing listing reads as empty.
func (t *CmdkeyTable) List(ctx context.Context, target string) (Listing, error) {
	opts := t.options
	opts.Check = false

	out, err := t.runner.Run(ctx, fmt.Sprintf(`%s /list:%s`, t.binary, command.Quote(target)), opts)
	if err != nil {
		return Listing{}, err
	}
	return parseListing(out), nil
}

func parseListing(out string) Listing {
	return Listing{
		Generic: strings.Contains(out, "Generic"),
		Domain:  strings.Contains(out, "Domain"),
	}
}

// Add runs `cmdkey /add` for domain entries and `cmdkey /generic` for generic
// ones. Values are quoted so each reaches cmdkey as one argument without a shell.
func (t *CmdkeyTable) Add(ctx context.Context, entry Entry) error {
	flag := "/add"
	if entry.Kind == KindGeneric {
		flag = "/generic"
	}

	cmd := fmt.Sprintf(`%s %s:%s /user:%s /pass:%s`, t.binary, flag, command.Quote(entry.Target), command.Quote(entry.Username), command.Quote(entry.Password))
	if _, err := t.runner.Run(ctx, cmd, t.options); err != nil {
		return fmt.Errorf("add %s credential for %s: %w", entry.Kind, entry.Target, err)
	}
	return nil
}

// Delete runs `cmdkey /delete:"target"`. A missing entry yields ErrNotFound.
func (t *CmdkeyTable) Delete(ctx context.Context, target string) error {
	opts := t.options
	opts.Retries = 1

	_, err := t.runner.Run(ctx, fmt.Sprintf(`%s /delete:%s`, t.binary, command.Quote(target)), opts)
	if err == nil {
		return nil
	}

	var failed *command.FailedError
	if errors.As(err, &failed) && strings.Contains(strings.ToLower(failed.Stdout+failed.Stderr), "not found") {
		return ErrNotFound
	}
	return fmt.Errorf("delete credential for %s: %w", target, err)
}

// MemoryTable is an in-process Table for tests and dry runs.
type MemoryTable struct {
	mu      sync.Mutex
	entries map[string]map[Kind]Entry
	calls   []string
}

// NewMemoryTable creates an empty MemoryTable.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{entries: make(map[string]map[Kind]Entry)}
}

func (m *MemoryTable) List(_ context.Context, target string) (Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "list "+target)

	kinds := m.entries[target]
	_, generic := kinds[KindGeneric]
	_, domain := kinds[KindDomain]
	return Listing{Generic: generic, Domain: domain}, nil
}

func (m *MemoryTable) Add(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("add %s %s", entry.Kind, entry.Target))

	if m.entries[entry.Target] == nil {
		m.entries[entry.Target] = make(map[Kind]Entry)
	}
	m.entries[entry.Target][entry.Kind] = entry
	return nil
}

func (m *MemoryTable) Delete(_ context.Context, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "delete "+target)

	if _, ok := m.entries[target]; !ok {
		return ErrNotFound
	}
	delete(m.entries, target)
	return nil
}

// Entries returns the stored entries for target.
func (m *MemoryTable) Entries(target string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, kind := range []Kind{KindDomain, KindGeneric} {
		if e, ok := m.entries[target][kind]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Calls returns the operations performed, in order.
func (m *MemoryTable) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

var (
	_ Table = (*CmdkeyTable)(nil)
	_ Table = (*MemoryTable)(nil)
)
