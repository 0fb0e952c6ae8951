//go:build windows

package session

import (
	"context"
	"errors"
)

// PTYSpawner is unavailable on Windows.
type PTYSpawner struct{}

func (PTYSpawner) Spawn(context.Context, Spec) (Process, error) {
	return nil, errors.New("pty: unsupported platform")
}
