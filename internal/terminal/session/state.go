package session

import (
	"fmt"
	"time"

	"github.com/GriffinCanCode/termhost/internal/shared/id"
)

// State is the lifecycle state of a session
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event describes a lifecycle transition
type Event struct {
	ProjectID id.ProjectID `json:"project_id"`
	ProcessID id.ProcessID `json:"process_id,omitempty"`
	From      State        `json:"from"`
	To        State        `json:"to"`
	Error     string       `json:"error,omitempty"`
	At        time.Time    `json:"at"`
}

// Info is a point-in-time view of a session
type Info struct {
	ProjectID  id.ProjectID `json:"project_id"`
	ProcessID  id.ProcessID `json:"process_id,omitempty"`
	State      State        `json:"state"`
	Running    bool         `json:"running"`
	Shell      string       `json:"shell"`
	WorkingDir string       `json:"working_dir"`
	Pid        int          `json:"pid,omitempty"`
	Cols       uint16       `json:"cols"`
	Rows       uint16       `json:"rows"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	StoppedAt  *time.Time   `json:"stopped_at,omitempty"`
	History    int          `json:"history"`
	Pending    bool         `json:"pending"`
	LastError  string       `json:"last_error,omitempty"`
}

// Snapshot is the persistable part of a session
type Snapshot struct {
	ProjectID   id.ProjectID
	WorkingDir  string
	Environment map[string]string
	History     []string
}
