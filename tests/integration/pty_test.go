//go:build integration
// +build integration

package integration

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/GriffinCanCode/termhost/internal/shared/id"
	"github.com/GriffinCanCode/termhost/internal/terminal/delivery"
	"github.com/GriffinCanCode/termhost/internal/terminal/session"
	"github.com/GriffinCanCode/termhost/tests/helpers/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type output struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (o *output) write(p []byte) {
	o.mu.Lock()
	o.buf.Write(p)
	o.mu.Unlock()
}

func (o *output) contains(s string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return strings.Contains(o.buf.String(), s)
}

func newShell(t *testing.T) (*session.Session, *output) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	s := session.New(session.Config{
		ProjectID:   id.ProjectID("integration"),
		Shell:       "/bin/sh",
		Home:        t.TempDir(),
		StopGrace:   200 * time.Millisecond,
		AutoForward: true,
		Logger:      zaptest.NewLogger(t),
	})
	out := &output{}
	s.Subscribe(out.write)
	t.Cleanup(s.Stop)

	require.NoError(t, s.Start(context.Background()))
	return s, out
}

func TestShellRunsSubmittedCommand(t *testing.T) {
	s, out := newShell(t)

	_, err := delivery.NewDeliverer(nil, nil).Deliver(s, "echo term$((40+2))host", nil)
	require.NoError(t, err)

	testutil.Eventually(t, func() bool { return out.contains("term42host") }, "command output")
	assert.Equal(t, []string{"echo term$((40+2))host"}, s.History())
}

func TestShellEnvironment(t *testing.T) {
	s, out := newShell(t)

	s.Submit("echo \"[$TERM|$LANG]\"\r")
	testutil.Eventually(t, func() bool {
		return out.contains("[xterm-256color|en_US.UTF-8]")
	}, "environment exported to shell")
}

func TestStopKillsProcessGroup(t *testing.T) {
	s, _ := newShell(t)
	pid := s.Info().Pid
	require.NotZero(t, pid)

	s.Stop()

	testutil.Eventually(t, func() bool {
		return errors.Is(syscall.Kill(pid, 0), syscall.ESRCH)
	}, "shell reaped")
	assert.Equal(t, session.StateStopped, s.State())
}

func TestExitIsObserved(t *testing.T) {
	s, _ := newShell(t)

	s.Submit("exit 3\r")
	testutil.Eventually(t, func() bool { return s.State() == session.StateStopped }, "exit watched")
	assert.NotEmpty(t, s.Info().LastError)
}
