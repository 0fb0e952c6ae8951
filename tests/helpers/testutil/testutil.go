// Package testutil provides testing utilities and helpers for termhost tests.
package testutil

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/termhost/internal/shared/id"
	"github.com/GriffinCanCode/termhost/internal/terminal/session"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// FakeProcess is an in-memory child process. Output written with Emit is
// read by the session; input written by the session is recorded.
type FakeProcess struct {
	pid  int
	spec session.Spec

	outR *io.PipeReader
	outW *io.PipeWriter

	mu         sync.Mutex
	input      strings.Builder
	writes     []string
	cols, rows uint16
	terminated bool
	closed     bool

	exitOnce sync.Once
	exited   chan struct{}
	exitErr  error
}

func newFakeProcess(pid int, spec session.Spec) *FakeProcess {
	r, w := io.Pipe()
	return &FakeProcess{
		pid:    pid,
		spec:   spec,
		outR:   r,
		outW:   w,
		cols:   spec.Cols,
		rows:   spec.Rows,
		exited: make(chan struct{}),
	}
}

// Read mocks terminal output.
func (p *FakeProcess) Read(b []byte) (int, error) {
	return p.outR.Read(b)
}

// Write records terminal input.
func (p *FakeProcess) Write(b []byte) (int, error) {
	select {
	case <-p.exited:
		return 0, io.ErrClosedPipe
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.input.Write(b)
	p.writes = append(p.writes, string(b))
	return len(b), nil
}

// Pid returns the fake process id.
func (p *FakeProcess) Pid() int { return p.pid }

// Wait blocks until Exit or Terminate.
func (p *FakeProcess) Wait() error {
	<-p.exited
	return p.exitErr
}

// Terminate exits the process immediately.
func (p *FakeProcess) Terminate(time.Duration) error {
	p.mu.Lock()
	p.terminated = true
	p.mu.Unlock()
	p.Exit(nil)
	return nil
}

// Resize records the terminal size.
func (p *FakeProcess) Resize(cols, rows uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cols, p.rows = cols, rows
	return nil
}

// Close closes the output side.
func (p *FakeProcess) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.outR.Close()
}

// Exit simulates the child exiting on its own.
func (p *FakeProcess) Exit(err error) {
	p.exitOnce.Do(func() {
		p.exitErr = err
		close(p.exited)
		p.outW.Close()
	})
}

// Emit writes output as if the shell printed it. It blocks until read.
func (p *FakeProcess) Emit(data string) error {
	_, err := p.outW.Write([]byte(data))
	return err
}

// Spec returns the spec the process was spawned with.
func (p *FakeProcess) Spec() session.Spec { return p.spec }

// Input returns everything written to the process.
func (p *FakeProcess) Input() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.input.String()
}

// Writes returns each write separately.
func (p *FakeProcess) Writes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.writes...)
}

// Size returns the last terminal size.
func (p *FakeProcess) Size() (cols, rows uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cols, p.rows
}

// Terminated reports whether Terminate was called.
func (p *FakeProcess) Terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

// Exited reports whether the process has exited.
func (p *FakeProcess) Exited() bool {
	select {
	case <-p.exited:
		return true
	default:
		return false
	}
}

// FakeSpawner hands out FakeProcesses.
type FakeSpawner struct {
	mu    sync.Mutex
	err   error
	procs []*FakeProcess
}

// NewFakeSpawner creates a spawner that succeeds until Fail is called.
func NewFakeSpawner() *FakeSpawner {
	return &FakeSpawner{}
}

// Spawn implements session.Spawner.
func (s *FakeSpawner) Spawn(ctx context.Context, spec session.Spec) (session.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	p := newFakeProcess(1000+len(s.procs), spec)
	s.procs = append(s.procs, p)
	return p, nil
}

// Fail makes subsequent spawns return err. Fail(nil) restores success.
func (s *FakeSpawner) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Count returns the number of successful spawns.
func (s *FakeSpawner) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

// Last returns the most recent process, or nil.
func (s *FakeSpawner) Last() *FakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.procs) == 0 {
		return nil
	}
	return s.procs[len(s.procs)-1]
}

// ErrNoShell is a canned spawn failure.
var ErrNoShell = errors.New("exec: no such file or directory")

// MockRecorder is a mock implementation of session.Recorder for testing.
type MockRecorder struct {
	mock.Mock
}

// RecordSpawn mocks the RecordSpawn method.
func (m *MockRecorder) RecordSpawn(ok bool) { m.Called(ok) }

// RecordExit mocks the RecordExit method.
func (m *MockRecorder) RecordExit(reason string) { m.Called(reason) }

// RecordSubmit mocks the RecordSubmit method.
func (m *MockRecorder) RecordSubmit() { m.Called() }

// RecordDroppedWrite mocks the RecordDroppedWrite method.
func (m *MockRecorder) RecordDroppedWrite() { m.Called() }

// NewMockRecorder creates a recorder that accepts every call.
func NewMockRecorder(t *testing.T) *MockRecorder {
	t.Helper()
	m := new(MockRecorder)
	m.On("RecordSpawn", mock.Anything).Maybe()
	m.On("RecordExit", mock.Anything).Maybe()
	m.On("RecordSubmit").Maybe()
	m.On("RecordDroppedWrite").Maybe()
	return m
}

// SessionConfig returns a session config wired to spawner with forwarding off.
func SessionConfig(t *testing.T, spawner session.Spawner) session.Config {
	t.Helper()
	return session.Config{
		ProjectID: id.ProjectID("proj-test"),
		Shell:     "/bin/zsh",
		Home:      t.TempDir(),
		BaseEnv:   map[string]string{"USER": "tester"},
		StopGrace: 10 * time.Millisecond,
		Spawner:   spawner,
		Logger:    zap.NewNop(),
	}
}

// Eventually polls cond until it holds or the timeout elapses.
func Eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}
