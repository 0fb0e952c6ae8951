package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/termhost/internal/shared/id"
	"github.com/gofrs/flock"
)

// ErrInvalidProjectID is returned for identifiers unsafe to use as file names
var ErrInvalidProjectID = errors.New("invalid project id")

const lockName = ".state.lock"

// Snapshot is the persisted state of one project's terminal
type Snapshot struct {
	ProjectID        string            `json:"project_id" yaml:"project_id" toml:"project_id"`
	WorkingDirectory string            `json:"working_directory" yaml:"working_directory" toml:"working_directory"`
	Environment      map[string]string `json:"environment,omitempty" yaml:"environment,omitempty" toml:"environment,omitempty"`
	History          []string          `json:"history" yaml:"history" toml:"history"`
	SavedAt          time.Time         `json:"saved_at" yaml:"saved_at" toml:"saved_at"`
}

// Store reads and writes snapshots in a directory
type Store struct {
	dir    string
	format Format
	codec  codec

	// mu serializes goroutines; lock serializes processes
	mu   sync.Mutex
	lock *flock.Flock
}

// NewStore creates dir if needed
func NewStore(dir string, format Format) (*Store, error) {
	if dir == "" {
		return nil, errors.New("state directory is required")
	}
	c, err := codecFor(format)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &Store{
		dir:    dir,
		format: format,
		codec:  c,
		lock:   flock.New(filepath.Join(dir, lockName)),
	}, nil
}

// Dir returns the state directory
func (s *Store) Dir() string { return s.dir }

// Format returns the encoding in use
func (s *Store) Format() Format { return s.format }

func (s *Store) path(project string) (string, error) {
	if err := id.ValidateExternal(project); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidProjectID, err)
	}
	return filepath.Join(s.dir, project+s.codec.ext()), nil
}

// Save writes snap atomically. A zero SavedAt is set to now.
func (s *Store) Save(snap Snapshot) error {
	path, err := s.path(snap.ProjectID)
	if err != nil {
		return err
	}
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC().Truncate(time.Second)
	}
	if snap.History == nil {
		snap.History = []string{}
	}

	data, err := s.codec.marshal(snap)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquire state lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	tmp, err := os.CreateTemp(s.dir, "."+snap.ProjectID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// Load reads the snapshot of project. ok is false when none was saved.
func (s *Store) Load(project string) (snap Snapshot, ok bool, err error) {
	path, err := s.path(project)
	if err != nil {
		return Snapshot{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.RLock(); err != nil {
		return Snapshot{}, false, fmt.Errorf("acquire state lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("read state: %w", err)
	}

	if err := s.codec.unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode state %s: %w", filepath.Base(path), err)
	}
	return snap, true, nil
}

// Delete removes the snapshot of project. Missing snapshots are not an error.
func (s *Store) Delete(project string) error {
	path, err := s.path(project)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquire state lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete state: %w", err)
	}
	return nil
}

// List returns the projects with a saved snapshot, sorted
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list state: %w", err)
	}

	ext := s.codec.ext()
	var projects []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		projects = append(projects, strings.TrimSuffix(name, ext))
	}
	sort.Strings(projects)
	return projects, nil
}
