package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	// ErrSpawnFailed marks a child process that could not be created.
	ErrSpawnFailed = errors.New("spawn failed")
	// ErrWriteAfterTerminated marks a write aimed at a process that has exited.
	ErrWriteAfterTerminated = errors.New("write after terminated")
	// ErrInvalidSize is returned by Resize for a zero dimension.
	ErrInvalidSize = errors.New("terminal size must be positive")
)

// SpawnError reports a failed Start. errors.Is(err, ErrSpawnFailed) holds.
type SpawnError struct {
	Shell string
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrSpawnFailed, e.Shell, e.Err)
}

func (e *SpawnError) Unwrap() []error {
	return []error{ErrSpawnFailed, e.Err}
}

// Process is a running child attached to a terminal.
type Process interface {
	io.Reader
	io.Writer
	Pid() int
	// Wait blocks until the process exits. It may be called more than once.
	Wait() error
	// Terminate asks the process group to hang up and kills it after grace.
	Terminate(grace time.Duration) error
	Resize(cols, rows uint16) error
	Close() error
}

// Spec describes a child to spawn.
type Spec struct {
	Path string
	Args []string
	Dir  string
	Env  []string
	Cols uint16
	Rows uint16
}

// Spawner creates child processes.
type Spawner interface {
	Spawn(ctx context.Context, spec Spec) (Process, error)
}

// Recorder receives lifecycle counters. monitoring.Metrics implements it.
type Recorder interface {
	RecordSpawn(ok bool)
	RecordExit(reason string)
	RecordSubmit()
	RecordDroppedWrite()
}

type nopRecorder struct{}

func (nopRecorder) RecordSpawn(bool)    {}
func (nopRecorder) RecordExit(string)   {}
func (nopRecorder) RecordSubmit()       {}
func (nopRecorder) RecordDroppedWrite() {}
