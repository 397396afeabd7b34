package procsource

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type fakeResponse struct {
	out []byte
	err error
}

// fakeRunner returns canned output keyed by the joined command line.
type fakeRunner struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	calls     []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{responses: make(map[string]fakeResponse)}
}

func (f *fakeRunner) on(out string, err error, name string, args ...string) {
	f.responses[key(name, args)] = fakeResponse{out: []byte(out), err: err}
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	k := key(name, args)
	f.mu.Lock()
	f.calls = append(f.calls, k)
	f.mu.Unlock()
	r, ok := f.responses[k]
	if !ok {
		return nil, fmt.Errorf("unexpected command: %s", k)
	}
	return r.out, r.err
}

func key(name string, args []string) string {
	return name + " " + strings.Join(args, " ")
}

type fixedSampler float64

func (s fixedSampler) Sample(context.Context, int, time.Duration) float64 {
	return float64(s)
}

type fakeInspector struct {
	users   map[int]string
	rss     map[int]uint64
	userErr error
	rssErr  error
}

func (f fakeInspector) Username(_ context.Context, pid int) (string, error) {
	if f.userErr != nil {
		return "", f.userErr
	}
	return f.users[pid], nil
}

func (f fakeInspector) ResidentBytes(_ context.Context, pid int) (uint64, error) {
	if f.rssErr != nil {
		return 0, f.rssErr
	}
	return f.rss[pid], nil
}
