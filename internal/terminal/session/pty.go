//go:build !windows

package session

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// PTYSpawner starts children on a pseudo-terminal.
type PTYSpawner struct{}

// Spawn starts spec.Path on a new PTY. ctx bounds the spawn only; the
// child outlives it.
func (PTYSpawner) Spawn(ctx context.Context, spec Spec) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: spec.Rows,
		Cols: spec.Cols,
	})
	if err != nil {
		return nil, err
	}

	p := &ptyProcess{
		cmd:  cmd,
		ptmx: ptmx,
		done: make(chan struct{}),
	}
	go p.wait()
	return p, nil
}

type ptyProcess struct {
	cmd     *exec.Cmd
	ptmx    *os.File
	done    chan struct{}
	waitErr error
}

func (p *ptyProcess) wait() {
	p.waitErr = p.cmd.Wait()
	close(p.done)
}

func (p *ptyProcess) Read(b []byte) (int, error)  { return p.ptmx.Read(b) }
func (p *ptyProcess) Write(b []byte) (int, error) { return p.ptmx.Write(b) }
func (p *ptyProcess) Pid() int                    { return p.cmd.Process.Pid }

func (p *ptyProcess) Wait() error {
	<-p.done
	return p.waitErr
}

// Terminate signals the whole process group, since the shell is a session
// leader and its jobs share its group.
func (p *ptyProcess) Terminate(grace time.Duration) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	pgid := -p.cmd.Process.Pid
	if err := unix.Kill(pgid, unix.SIGHUP); err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(grace):
	}

	if err := unix.Kill(pgid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	<-p.done
	return nil
}

func (p *ptyProcess) Resize(cols, rows uint16) error {
	return pty.Setsize(p.ptmx, &pty.Winsize{Rows: rows, Cols: cols})
}

func (p *ptyProcess) Close() error {
	err := p.ptmx.Close()
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
