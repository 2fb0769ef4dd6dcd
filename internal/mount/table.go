package mount

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tOgg1/remotectl/internal/command"
)

// Table is the machine-wide mount table. Implementations are not safe for
// concurrent use; other processes may assign letters at any time.
type Table interface {
	Assigned(ctx context.Context) ([]DriveLetter, error)
	Attach(ctx context.Context, letter DriveLetter, share string) error
	Detach(ctx context.Context, letter DriveLetter) error
}

// NetUseTable queries drives with wmic and mounts with net use.
type NetUseTable struct {
	runner command.Commander
}

// NewNetUseTable creates a table driven through runner.
func NewNetUseTable(runner command.Commander) *NetUseTable {
	return &NetUseTable{runner: runner}
}

// Assigned lists the captions reported by `wmic logicaldisk get caption`.
func (t *NetUseTable) Assigned(ctx context.Context) ([]DriveLetter, error) {
	out, err := t.runner.Run(ctx, "wmic logicaldisk get caption", command.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("list drives: %w", err)
	}
	return parseCaptions(out), nil
}

func parseCaptions(out string) []DriveLetter {
	var letters []DriveLetter
	for _, field := range strings.Fields(out) {
		if !strings.Contains(field, ":") {
			continue
		}
		if l, err := ParseDriveLetter(field); err == nil {
			letters = append(letters, l)
		}
	}
	return letters
}

// Attach runs `net use X: "share"`.
func (t *NetUseTable) Attach(ctx context.Context, letter DriveLetter, share string) error {
	_, err := t.runner.Run(ctx, fmt.Sprintf(`net use %s %s`, letter, command.Quote(share)), command.DefaultOptions())
	return err
}

// Detach runs `net use X: /delete /y`.
func (t *NetUseTable) Detach(ctx context.Context, letter DriveLetter) error {
	_, err := t.runner.Run(ctx, fmt.Sprintf(`net use %s /delete /y`, letter), command.DefaultOptions())
	return err
}

// MemoryTable is an in-process Table for tests and dry runs.
type MemoryTable struct {
	mu     sync.Mutex
	shares map[DriveLetter]string
}

// NewMemoryTable creates a table with the given letters already assigned to
// local disks.
func NewMemoryTable(assigned ...DriveLetter) *MemoryTable {
	m := &MemoryTable{shares: make(map[DriveLetter]string)}
	for _, l := range assigned {
		m.shares[l] = ""
	}
	return m
}

func (m *MemoryTable) Assigned(context.Context) ([]DriveLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	letters := make([]DriveLetter, 0, len(m.shares))
	for l := range m.shares {
		letters = append(letters, l)
	}
	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })
	return letters, nil
}

func (m *MemoryTable) Attach(_ context.Context, letter DriveLetter, share string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shares[letter]; ok {
		return fmt.Errorf("drive %s is already in use", letter)
	}
	m.shares[letter] = share
	return nil
}

func (m *MemoryTable) Detach(_ context.Context, letter DriveLetter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shares[letter]; !ok {
		return fmt.Errorf("drive %s is not mounted", letter)
	}
	delete(m.shares, letter)
	return nil
}

// Share returns what is mounted at letter.
func (m *MemoryTable) Share(letter DriveLetter) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	share, ok := m.shares[letter]
	return share, ok
}

var (
	_ Table = (*NetUseTable)(nil)
	_ Table = (*MemoryTable)(nil)
)
