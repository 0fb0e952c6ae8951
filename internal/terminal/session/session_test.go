package session_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/termhost/internal/terminal/delivery"
	"github.com/GriffinCanCode/termhost/internal/terminal/session"
	"github.com/GriffinCanCode/termhost/tests/helpers/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, mutate func(*session.Config)) (*session.Session, *testutil.FakeSpawner) {
	t.Helper()
	spawner := testutil.NewFakeSpawner()
	cfg := testutil.SessionConfig(t, spawner)
	if mutate != nil {
		mutate(&cfg)
	}
	s := session.New(cfg)
	t.Cleanup(s.Stop)
	return s, spawner
}

type doneRecorder struct {
	mu    sync.Mutex
	calls []bool
}

func (d *doneRecorder) done(ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, ok)
}

func (d *doneRecorder) results() []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]bool(nil), d.calls...)
}

func TestNewSessionIsIdle(t *testing.T) {
	s, spawner := newSession(t, nil)

	assert.Equal(t, session.StateIdle, s.State())
	assert.False(t, s.Running())
	assert.Equal(t, 0, spawner.Count())
}

func TestStartSpawnsLoginShell(t *testing.T) {
	var home string
	s, spawner := newSession(t, func(cfg *session.Config) { home = cfg.Home })

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, session.StateRunning, s.State())

	spec := spawner.Last().Spec()
	assert.Equal(t, "/bin/zsh", spec.Path)
	assert.Equal(t, []string{"-l"}, spec.Args)
	assert.Equal(t, home, spec.Dir)
	assert.Equal(t, uint16(80), spec.Cols)
	assert.Equal(t, uint16(24), spec.Rows)
	assert.Contains(t, spec.Env, "TERM=xterm-256color")
	assert.Contains(t, spec.Env, "LANG=en_US.UTF-8")
	assert.Contains(t, spec.Env, "HOME="+home)
	assert.Contains(t, spec.Env, "PS1= ")
	assert.Contains(t, spec.Env, "USER=tester")

	env := s.Environment()
	assert.Equal(t, home+"/.local/bin:/usr/local/bin:/opt/homebrew/bin:/usr/bin:/bin:/usr/sbin:/sbin", env["PATH"])
}

func TestStartWhileRunningIsNoop(t *testing.T) {
	s, spawner := newSession(t, nil)

	require.NoError(t, s.Start(context.Background()))
	first := s.Info().ProcessID
	require.NoError(t, s.Start(context.Background()))

	assert.Equal(t, 1, spawner.Count())
	assert.Equal(t, first, s.Info().ProcessID)
}

func TestSpawnFailure(t *testing.T) {
	recorder := testutil.NewMockRecorder(t)
	s, spawner := newSession(t, func(cfg *session.Config) { cfg.Recorder = recorder })
	spawner.Fail(testutil.ErrNoShell)

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, session.ErrSpawnFailed))
	assert.True(t, errors.Is(err, testutil.ErrNoShell))

	var spawnErr *session.SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, "/bin/zsh", spawnErr.Shell)

	assert.Equal(t, session.StateIdle, s.State())
	assert.NotEmpty(t, s.Info().LastError)
	recorder.AssertCalled(t, "RecordSpawn", false)

	spawner.Fail(nil)
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Running())
	assert.Empty(t, s.Info().LastError)
}

func TestSpawnFailureAfterStopStaysStopped(t *testing.T) {
	s, spawner := newSession(t, nil)
	require.NoError(t, s.Start(context.Background()))
	s.Stop()

	spawner.Fail(testutil.ErrNoShell)
	require.Error(t, s.Restart(context.Background()))
	assert.Equal(t, session.StateStopped, s.State())
}

func TestStopIsIdempotent(t *testing.T) {
	s, spawner := newSession(t, nil)

	s.Stop()
	assert.Equal(t, session.StateIdle, s.State())

	require.NoError(t, s.Start(context.Background()))
	proc := spawner.Last()
	s.Stop()
	s.Stop()

	assert.Equal(t, session.StateStopped, s.State())
	assert.True(t, proc.Terminated())
	assert.Zero(t, s.Info().Pid)
}

func TestOutboxLastWriteWins(t *testing.T) {
	s, _ := newSession(t, nil)

	_, ok := s.Drain()
	assert.False(t, ok)

	s.Submit("first\r")
	s.Submit("second\r")

	pending, ok := s.Pending()
	assert.True(t, ok)
	assert.Equal(t, "second\r", pending)

	text, ok := s.Drain()
	assert.True(t, ok)
	assert.Equal(t, "second\r", text)

	_, ok = s.Drain()
	assert.False(t, ok)
}

func TestSubmitRecordsDecodedHistory(t *testing.T) {
	s, _ := newSession(t, nil)

	s.Submit("ls -la\r")
	s.Submit(delivery.Encode("line one\nline two"))
	s.Submit("\r")

	assert.Equal(t, []string{"ls -la", "line one\nline two"}, s.History())
	last, ok := s.HistoryEntry(0)
	assert.True(t, ok)
	assert.Equal(t, "line one\nline two", last)
	_, ok = s.HistoryEntry(2)
	assert.False(t, ok)
}

func TestSubmitOnStoppedSessionStillRecords(t *testing.T) {
	s, _ := newSession(t, nil)
	require.NoError(t, s.Start(context.Background()))
	s.Stop()

	s.Submit("pwd\r")

	pending, ok := s.Pending()
	assert.True(t, ok)
	assert.Equal(t, "pwd\r", pending)
	assert.Equal(t, []string{"pwd"}, s.History())
}

func TestRestartDiscardsOutboxKeepsHistory(t *testing.T) {
	s, spawner := newSession(t, nil)
	require.NoError(t, s.Start(context.Background()))

	s.Submit("make build\r")
	s.Submit("make test\r")
	before := s.History()
	firstID := s.Info().ProcessID

	require.NoError(t, s.Restart(context.Background()))

	_, ok := s.Pending()
	assert.False(t, ok)
	assert.Equal(t, before, s.History())
	assert.Equal(t, session.StateRunning, s.State())
	assert.NotEqual(t, firstID, s.Info().ProcessID)
	assert.Equal(t, 2, spawner.Count())
}

func TestRestartFromIdleStarts(t *testing.T) {
	s, spawner := newSession(t, nil)

	require.NoError(t, s.Restart(context.Background()))
	assert.True(t, s.Running())
	assert.Equal(t, 1, spawner.Count())
}

func TestHistorySurvivesRestartCycles(t *testing.T) {
	s, _ := newSession(t, nil)
	require.NoError(t, s.Start(context.Background()))

	for i := 0; i < 5; i++ {
		s.Submit("echo hi\r")
		require.NoError(t, s.Restart(context.Background()))
	}
	assert.Len(t, s.History(), 5)
}

func TestHistoryBoundedByConfig(t *testing.T) {
	s, _ := newSession(t, func(cfg *session.Config) { cfg.HistoryLimit = 3 })

	for _, cmd := range []string{"a", "b", "c", "d"} {
		s.Submit(cmd + "\r")
	}
	assert.Equal(t, []string{"b", "c", "d"}, s.History())

	s.ClearHistory()
	assert.Empty(t, s.History())

	s.RestoreHistory([]string{"x", "y", "z", "w"})
	assert.Equal(t, []string{"y", "z", "w"}, s.History())
}

func TestScheduleSubmitsAfterDelay(t *testing.T) {
	s, _ := newSession(t, nil)
	require.NoError(t, s.Start(context.Background()))

	rec := &doneRecorder{}
	s.Schedule(5*time.Millisecond, "\r", rec.done)

	testutil.Eventually(t, func() bool { return len(rec.results()) == 1 }, "scheduled send completes")
	assert.Equal(t, []bool{true}, rec.results())
	pending, ok := s.Pending()
	assert.True(t, ok)
	assert.Equal(t, "\r", pending)
}

func TestStopCancelsScheduledSends(t *testing.T) {
	s, _ := newSession(t, nil)
	require.NoError(t, s.Start(context.Background()))

	rec := &doneRecorder{}
	s.Schedule(50*time.Millisecond, "\r", rec.done)
	s.Stop()

	assert.Equal(t, []bool{false}, rec.results())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []bool{false}, rec.results())
	_, ok := s.Pending()
	assert.False(t, ok)
}

func TestRestartCancelsScheduledSends(t *testing.T) {
	s, spawner := newSession(t, func(cfg *session.Config) { cfg.AutoForward = true })
	require.NoError(t, s.Start(context.Background()))

	rec := &doneRecorder{}
	s.Schedule(30*time.Millisecond, "\r", rec.done)
	require.NoError(t, s.Restart(context.Background()))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, []bool{false}, rec.results())
	assert.Empty(t, spawner.Last().Input())
}

func TestScheduleCancelFunc(t *testing.T) {
	s, _ := newSession(t, nil)
	require.NoError(t, s.Start(context.Background()))

	rec := &doneRecorder{}
	cancel := s.Schedule(20*time.Millisecond, "\r", rec.done)
	cancel()
	cancel()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []bool{false}, rec.results())
}

func TestScheduleOnIdleSessionIsDropped(t *testing.T) {
	s, _ := newSession(t, nil)

	rec := &doneRecorder{}
	s.Schedule(time.Millisecond, "\r", rec.done)

	testutil.Eventually(t, func() bool { return len(rec.results()) == 1 }, "scheduled send completes")
	assert.Equal(t, []bool{false}, rec.results())
}

func TestExitWatcherStopsSession(t *testing.T) {
	s, spawner := newSession(t, nil)

	var mu sync.Mutex
	var events []session.Event
	s.Observe(func(e session.Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	require.NoError(t, s.Start(context.Background()))
	rec := &doneRecorder{}
	s.Schedule(time.Hour, "\r", rec.done)

	spawner.Last().Exit(errors.New("exit status 1"))

	testutil.Eventually(t, func() bool { return s.State() == session.StateStopped }, "session stops on exit")
	assert.Equal(t, "exit status 1", s.Info().LastError)
	assert.Equal(t, []bool{false}, rec.results())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 3)
	assert.Equal(t, session.StateIdle, events[0].From)
	assert.Equal(t, session.StateStarting, events[0].To)
	assert.Equal(t, session.StateRunning, events[1].To)
	assert.Equal(t, session.StateRunning, events[2].From)
	assert.Equal(t, session.StateStopped, events[2].To)
	assert.Equal(t, "exit status 1", events[2].Error)
}

func TestAutoForwardWritesOutbox(t *testing.T) {
	s, spawner := newSession(t, func(cfg *session.Config) { cfg.AutoForward = true })
	require.NoError(t, s.Start(context.Background()))

	s.Submit("echo hi\r")

	proc := spawner.Last()
	testutil.Eventually(t, func() bool { return proc.Input() == "echo hi\r" }, "outbox forwarded")
	_, ok := s.Pending()
	assert.False(t, ok)
}

func TestAutoForwardDeliversTextSubmittedBeforeStart(t *testing.T) {
	s, spawner := newSession(t, func(cfg *session.Config) { cfg.AutoForward = true })
	s.Submit("whoami\r")

	require.NoError(t, s.Start(context.Background()))

	proc := spawner.Last()
	testutil.Eventually(t, func() bool { return proc.Input() == "whoami\r" }, "pending text forwarded")
}

func TestDeliverMultiLineThroughSession(t *testing.T) {
	s, spawner := newSession(t, func(cfg *session.Config) { cfg.AutoForward = true })
	require.NoError(t, s.Start(context.Background()))
	proc := spawner.Last()

	deliverer := delivery.NewDeliverer(delivery.FixedDelay(20*time.Millisecond), nil)
	rec := &doneRecorder{}
	res, err := deliverer.Deliver(s, "first\nsecond", rec.done)
	require.NoError(t, err)
	assert.True(t, res.Multiline)

	testutil.Eventually(t, func() bool { return len(proc.Writes()) == 2 }, "paste and submit written")
	assert.Equal(t, []string{"\x1b[200~first\nsecond\x1b[201~", "\r"}, proc.Writes())
	assert.Equal(t, []bool{true}, rec.results())
}

func TestOutputCaptureAndSubscribe(t *testing.T) {
	s, spawner := newSession(t, nil)

	var mu sync.Mutex
	var seen strings.Builder
	s.Subscribe(func(chunk []byte) {
		mu.Lock()
		seen.Write(chunk)
		mu.Unlock()
	})

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, spawner.Last().Emit("hello\r\n"))

	testutil.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen.String() == "hello\r\n"
	}, "subscriber sees output")
	assert.Equal(t, "hello\r\n", string(s.ReadOutput()))
	assert.Empty(t, s.ReadOutput())
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	s, spawner := newSession(t, nil)

	var mu sync.Mutex
	count := 0
	unsubscribe := s.Subscribe(func([]byte) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	unsubscribe()

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, spawner.Last().Emit("x"))
	testutil.Eventually(t, func() bool { return len(s.ReadOutput()) > 0 }, "output buffered")

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, count)
}

func TestWriteInput(t *testing.T) {
	recorder := testutil.NewMockRecorder(t)
	s, spawner := newSession(t, func(cfg *session.Config) { cfg.Recorder = recorder })

	err := s.WriteInput([]byte("ls"))
	assert.ErrorIs(t, err, session.ErrWriteAfterTerminated)
	recorder.AssertCalled(t, "RecordDroppedWrite")

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.WriteInput([]byte("ls")))
	assert.Equal(t, "ls", spawner.Last().Input())
}

func TestResize(t *testing.T) {
	s, spawner := newSession(t, nil)

	require.NoError(t, s.Resize(100, 40))
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, uint16(100), spawner.Last().Spec().Cols)

	require.NoError(t, s.Resize(120, 50))
	cols, rows := spawner.Last().Size()
	assert.Equal(t, uint16(120), cols)
	assert.Equal(t, uint16(50), rows)

	assert.ErrorIs(t, s.Resize(0, 10), session.ErrInvalidSize)
}

func TestWorkingDirAppliesOnNextSpawn(t *testing.T) {
	s, spawner := newSession(t, nil)
	dir := t.TempDir()

	s.SetWorkingDir(dir)
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, dir, spawner.Last().Spec().Dir)

	snap := s.Snapshot()
	assert.Equal(t, dir, snap.WorkingDir)
	assert.Equal(t, "xterm-256color", snap.Environment["TERM"])
}

func TestAutoRestartAfterExit(t *testing.T) {
	s, spawner := newSession(t, func(cfg *session.Config) { cfg.AutoRestart = true })
	require.NoError(t, s.Start(context.Background()))

	spawner.Last().Exit(nil)

	testutil.Eventually(t, func() bool { return spawner.Count() == 2 && s.Running() }, "shell restarted")
}

func TestAutoRestartStopsWhenCrashLooping(t *testing.T) {
	s, spawner := newSession(t, func(cfg *session.Config) { cfg.AutoRestart = true })
	require.NoError(t, s.Start(context.Background()))

	// three short-lived runs trip the guard
	for n := 1; n <= 4; n++ {
		want := n
		testutil.Eventually(t, func() bool { return spawner.Count() == want && s.Running() }, "shell running")
		time.Sleep(20 * time.Millisecond)
		spawner.Last().Exit(nil)
	}

	testutil.Eventually(t, func() bool { return s.State() == session.StateStopped }, "session stopped")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 4, spawner.Count())
	assert.False(t, s.Running())
}

func TestStopDoesNotAutoRestart(t *testing.T) {
	s, spawner := newSession(t, func(cfg *session.Config) { cfg.AutoRestart = true })
	require.NoError(t, s.Start(context.Background()))

	s.Stop()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, spawner.Count())
	assert.Equal(t, session.StateStopped, s.State())
}

func TestStopAfterExitCancelsAutoRestart(t *testing.T) {
	s, spawner := newSession(t, func(cfg *session.Config) { cfg.AutoRestart = true })
	require.NoError(t, s.Start(context.Background()))

	// Stop lands between the exit and the restart policy
	var once sync.Once
	s.Observe(func(ev session.Event) {
		if ev.From == session.StateRunning && ev.To == session.StateStopped {
			once.Do(s.Stop)
		}
	})
	spawner.Last().Exit(nil)

	testutil.Eventually(t, func() bool { return s.State() == session.StateStopped }, "exit observed")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, spawner.Count())
	assert.False(t, s.Running())
}

func TestStartAfterExitSupersedesAutoRestart(t *testing.T) {
	s, spawner := newSession(t, func(cfg *session.Config) { cfg.AutoRestart = true })
	require.NoError(t, s.Start(context.Background()))

	var once sync.Once
	s.Observe(func(ev session.Event) {
		if ev.From == session.StateRunning && ev.To == session.StateStopped {
			once.Do(func() { assert.NoError(t, s.Start(context.Background())) })
		}
	})
	spawner.Last().Exit(nil)

	testutil.Eventually(t, func() bool { return spawner.Count() == 2 && s.Running() }, "manual start")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, spawner.Count())
}

func TestInfo(t *testing.T) {
	s, _ := newSession(t, nil)
	s.Submit("ls\r")

	info := s.Info()
	assert.Equal(t, "proj-test", info.ProjectID.String())
	assert.Equal(t, session.StateIdle, info.State)
	assert.True(t, info.Pending)
	assert.Equal(t, 1, info.History)
	assert.Nil(t, info.StartedAt)

	require.NoError(t, s.Start(context.Background()))
	info = s.Info()
	assert.True(t, info.Running)
	assert.NotEmpty(t, info.ProcessID)
	assert.NotZero(t, info.Pid)
	assert.NotNil(t, info.StartedAt)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", session.StateIdle.String())
	assert.Equal(t, "starting", session.StateStarting.String())
	assert.Equal(t, "running", session.StateRunning.String())
	assert.Equal(t, "stopped", session.StateStopped.String())

	text, err := session.StateRunning.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "running", string(text))
}
