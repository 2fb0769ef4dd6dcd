package command

import (
	"context"
	"strings"
	"sync"

	"github.com/tOgg1/remotectl/internal/models"
)

// FakeCall records one invocation of a FakeCommander.
type FakeCall struct {
	Command string
	Options Options
}

// FakeResponse is a scripted reply. Output is stdout; Stderr and ExitCode are
// only visible through RunResult.
type FakeResponse struct {
	Output   string
	Stderr   string
	ExitCode int
	Err      error
}

// FakeCommander is a scriptable Commander for tests. ResultHandler or Handler,
// when set, answers every call; otherwise Responses are consumed in order and
// an exhausted script answers with an empty output.
type FakeCommander struct {
	mu            sync.Mutex
	Calls         []FakeCall
	Responses     []FakeResponse
	Handler       func(command string, opts Options) (string, error)
	ResultHandler func(command string, opts Options) (models.CommandResult, error)
}

// Run records the call and returns the scripted response.
func (f *FakeCommander) Run(ctx context.Context, command string, opts Options) (string, error) {
	f.mu.Lock()
	handler := f.Handler
	f.mu.Unlock()

	if handler != nil {
		f.record(command, opts)
		return handler(command, opts)
	}

	result, err := f.RunResult(ctx, command, opts)
	if err != nil {
		return "", err
	}
	if result.Succeeded() {
		return result.Stdout, nil
	}
	return result.Stderr, nil
}

// RunResult records the call and returns the scripted response as a result.
func (f *FakeCommander) RunResult(_ context.Context, command string, opts Options) (models.CommandResult, error) {
	f.record(command, opts)

	f.mu.Lock()
	handler := f.ResultHandler
	var resp FakeResponse
	if handler == nil && len(f.Responses) > 0 {
		resp = f.Responses[0]
		f.Responses = f.Responses[1:]
	}
	f.mu.Unlock()

	if handler != nil {
		return handler(command, opts)
	}

	result := models.CommandResult{Stdout: resp.Output, Stderr: resp.Stderr, Attempts: 1}
	if resp.Err != nil {
		return result, resp.Err
	}
	result.SetExit(resp.ExitCode)
	return result, nil
}

func (f *FakeCommander) record(command string, opts Options) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, FakeCall{Command: command, Options: opts})
}

// Commands returns the recorded command lines.
func (f *FakeCommander) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Calls))
	for _, call := range f.Calls {
		out = append(out, call.Command)
	}
	return out
}

// CallsWithPrefix returns the recorded calls whose command starts with prefix.
func (f *FakeCommander) CallsWithPrefix(prefix string) []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []FakeCall
	for _, call := range f.Calls {
		if strings.HasPrefix(call.Command, prefix) {
			out = append(out, call)
		}
	}
	return out
}

var _ ResultCommander = (*FakeCommander)(nil)
