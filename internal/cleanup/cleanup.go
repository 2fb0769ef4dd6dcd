// Package cleanup tracks release handles for acquired resources and runs them
// in reverse order of acquisition.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Release undoes one acquisition. Implementations must tolerate being called
// more than once.
type Release func(ctx context.Context) error

// Noop is a Release that does nothing.
func Noop(context.Context) error { return nil }

// Once wraps fn so that only the first call has an effect; later calls return
// the first call's error.
func Once(fn Release) Release {
	if fn == nil {
		return Noop
	}
	var (
		once sync.Once
		err  error
	)
	return func(ctx context.Context) error {
		once.Do(func() { err = fn(ctx) })
		return err
	}
}

type entry struct {
	name    string
	release Release
}

// Stack holds release handles. The zero value is ready to use.
type Stack struct {
	mu      sync.Mutex
	entries []entry
}

// Push registers release under name. Nil releases are ignored.
func (s *Stack) Push(name string, release Release) {
	if release == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry{name: name, release: release})
}

// Len returns the number of pending releases.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Release runs every pending release, newest first, and empties the stack.
// All releases run even when some fail; the failures are joined.
func (s *Stack) Release(ctx context.Context) error {
	s.mu.Lock()
	entries := s.entries
	s.entries = nil
	s.mu.Unlock()

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		if err := entries[i].release(ctx); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", entries[i].name, err))
		}
	}
	return errors.Join(errs...)
}
