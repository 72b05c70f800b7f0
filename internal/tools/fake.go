package tools

import (
	"context"
	"strings"
	"sync"
)

// Call records one invocation seen by a FakeRunner.
type Call struct {
	Dir  string
	Name string
	Args []string
}

// FakeRunner is a scripted Runner for tests. Outputs and Errors are keyed by
// tool name; a name with neither reports ErrToolNotFound.
type FakeRunner struct {
	Outputs map[string]Output
	Errors  map[string]error

	mu    sync.Mutex
	Calls []Call
}

func (f *FakeRunner) Run(_ context.Context, dir, name string, args ...string) (Output, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, Call{Dir: dir, Name: name, Args: append([]string(nil), args...)})
	f.mu.Unlock()
	if err, ok := f.Errors[name]; ok {
		return Output{}, err
	}
	if out, ok := f.Outputs[name]; ok {
		return out, nil
	}
	return Output{}, ErrToolNotFound
}

// Called reports whether name was invoked, and the joined args of the last
// call when it was.
func (f *FakeRunner) Called(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.Calls) - 1; i >= 0; i-- {
		if f.Calls[i].Name == name {
			return strings.Join(f.Calls[i].Args, " "), true
		}
	}
	return "", false
}
