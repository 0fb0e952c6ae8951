package registry_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/GriffinCanCode/termhost/internal/shared/id"
	"github.com/GriffinCanCode/termhost/internal/state"
	"github.com/GriffinCanCode/termhost/internal/terminal/registry"
	"github.com/GriffinCanCode/termhost/internal/terminal/session"
	"github.com/GriffinCanCode/termhost/tests/helpers/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	mu      sync.Mutex
	created int
}

func (c *countingRecorder) RecordSessionCreated() {
	c.mu.Lock()
	c.created++
	c.mu.Unlock()
}

func newRegistry(t *testing.T, store *state.Store) (*registry.Registry, *testutil.FakeSpawner, *countingRecorder) {
	t.Helper()
	spawner := testutil.NewFakeSpawner()
	recorder := &countingRecorder{}
	r := registry.New(registry.Options{
		Template: testutil.SessionConfig(t, spawner),
		Store:    store,
		Recorder: recorder,
	})
	t.Cleanup(func() { _ = r.Shutdown(context.Background()) })
	return r, spawner, recorder
}

func TestSessionForReturnsSameSession(t *testing.T) {
	r, _, recorder := newRegistry(t, nil)

	a := r.SessionFor("proj-a")
	b := r.SessionFor("proj-b")

	assert.Same(t, a, r.SessionFor("proj-a"))
	assert.Same(t, b, r.SessionFor("proj-b"))
	assert.NotSame(t, a, b)
	assert.Equal(t, id.ProjectID("proj-a"), a.ProjectID())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 2, recorder.created)
}

func TestSessionForIsLazy(t *testing.T) {
	r, spawner, _ := newRegistry(t, nil)

	s := r.SessionFor("proj-a")
	assert.Equal(t, session.StateIdle, s.State())
	assert.Equal(t, 0, spawner.Count())
}

func TestSessionForConcurrent(t *testing.T) {
	r, _, _ := newRegistry(t, nil)

	const workers = 32
	got := make([]*session.Session, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = r.SessionFor("proj-shared")
		}()
	}
	wg.Wait()

	for _, s := range got {
		assert.Same(t, got[0], s)
	}
	assert.Equal(t, 1, r.Len())
}

func TestLookupDoesNotCreate(t *testing.T) {
	r, _, _ := newRegistry(t, nil)

	_, ok := r.Lookup("proj-a")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())

	created := r.SessionFor("proj-a")
	found, ok := r.Lookup("proj-a")
	assert.True(t, ok)
	assert.Same(t, created, found)
}

func TestRemoveStopsAndDiscards(t *testing.T) {
	r, spawner, _ := newRegistry(t, nil)

	s := r.SessionFor("proj-a")
	require.NoError(t, s.Start(context.Background()))
	proc := spawner.Last()

	assert.True(t, r.Remove("proj-a"))
	assert.False(t, r.Remove("proj-a"))

	assert.True(t, proc.Terminated())
	assert.Equal(t, session.StateStopped, s.State())
	_, ok := r.Lookup("proj-a")
	assert.False(t, ok)
	assert.NotSame(t, s, r.SessionFor("proj-a"))
}

func TestAllSortedByProject(t *testing.T) {
	r, _, _ := newRegistry(t, nil)
	for _, p := range []id.ProjectID{"proj-c", "proj-a", "proj-b"} {
		r.SessionFor(p)
	}

	var order []id.ProjectID
	for _, s := range r.All() {
		order = append(order, s.ProjectID())
	}
	assert.Equal(t, []id.ProjectID{"proj-a", "proj-b", "proj-c"}, order)
}

func TestStartAll(t *testing.T) {
	r, spawner, _ := newRegistry(t, nil)

	projects := make([]id.ProjectID, 6)
	for i := range projects {
		projects[i] = id.ProjectID(fmt.Sprintf("proj-%d", i))
	}

	require.NoError(t, r.StartAll(context.Background(), projects))
	assert.Equal(t, 6, spawner.Count())
	for _, s := range r.All() {
		assert.True(t, s.Running())
	}
}

func TestStartAllJoinsFailures(t *testing.T) {
	r, spawner, _ := newRegistry(t, nil)
	spawner.Fail(testutil.ErrNoShell)

	err := r.StartAll(context.Background(), []id.ProjectID{"proj-a", "proj-b"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, session.ErrSpawnFailed))
	assert.Contains(t, err.Error(), "proj-a")
	assert.Contains(t, err.Error(), "proj-b")
	assert.Equal(t, 2, r.Len())
}

func TestShutdownPersistsAndRestores(t *testing.T) {
	store, err := state.NewStore(t.TempDir(), state.FormatJSON)
	require.NoError(t, err)

	r, _, _ := newRegistry(t, store)
	s := r.SessionFor("proj-a")
	workDir := t.TempDir()
	s.SetWorkingDir(workDir)
	require.NoError(t, s.Start(context.Background()))
	s.Submit("go test ./...\r")
	s.Submit("git status\r")

	require.NoError(t, r.Shutdown(context.Background()))
	assert.Equal(t, session.StateStopped, s.State())

	snap, ok, err := store.Load("proj-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, workDir, snap.WorkingDirectory)
	assert.Equal(t, []string{"go test ./...", "git status"}, snap.History)
	assert.Equal(t, "xterm-256color", snap.Environment["TERM"])

	restored, _, _ := newRegistry(t, store)
	again := restored.SessionFor("proj-a")
	assert.Equal(t, workDir, again.WorkingDir())
	assert.Equal(t, []string{"go test ./...", "git status"}, again.History())

	projects, err := restored.Projects()
	require.NoError(t, err)
	assert.Equal(t, []id.ProjectID{"proj-a"}, projects)
}

func TestRestoreFallsBackWhenWorkingDirIsGone(t *testing.T) {
	store, err := state.NewStore(t.TempDir(), state.FormatJSON)
	require.NoError(t, err)

	gone := filepath.Join(t.TempDir(), "deleted")
	require.NoError(t, os.Mkdir(gone, 0o755))

	r, _, _ := newRegistry(t, store)
	s := r.SessionFor("proj-a")
	s.SetWorkingDir(gone)
	s.Submit("make\r")
	require.NoError(t, r.Persist("proj-a"))
	require.NoError(t, os.Remove(gone))

	restored, _, _ := newRegistry(t, store)
	again := restored.SessionFor("proj-a")
	home := restored.SessionFor("proj-b").WorkingDir()
	assert.Equal(t, home, again.WorkingDir())
	assert.Equal(t, []string{"make"}, again.History())
}

func TestRemoveDeletesPersistedState(t *testing.T) {
	store, err := state.NewStore(t.TempDir(), state.FormatYAML)
	require.NoError(t, err)

	r, _, _ := newRegistry(t, store)
	r.SessionFor("proj-a").Submit("ls\r")
	require.NoError(t, r.Persist("proj-a"))

	_, ok, err := store.Load("proj-a")
	require.NoError(t, err)
	require.True(t, ok)

	r.Remove("proj-a")
	_, ok, err = store.Load("proj-a")
	require.NoError(t, err)
	assert.False(t, ok)
}
