package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/GriffinCanCode/termhost/internal/shared/id"
	"github.com/GriffinCanCode/termhost/internal/state"
	"github.com/GriffinCanCode/termhost/internal/terminal/session"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// startConcurrency bounds simultaneous shell spawns during StartAll
const startConcurrency = 4

// Recorder counts created sessions. monitoring.Metrics implements it.
type Recorder interface {
	RecordSessionCreated()
}

// Options configures a Registry
type Options struct {
	// Template is copied for every new session; ProjectID is overwritten.
	Template session.Config
	// Store persists sessions; nil disables persistence.
	Store    *state.Store
	Recorder Recorder
	Logger   *zap.Logger
}

// Registry owns one session per project
type Registry struct {
	mu       sync.Mutex
	sessions map[id.ProjectID]*session.Session
	template session.Config
	store    *state.Store
	recorder Recorder
	logger   *zap.Logger
}

// New creates an empty registry
func New(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Template.Logger == nil {
		opts.Template.Logger = logger
	}
	return &Registry{
		sessions: make(map[id.ProjectID]*session.Session),
		template: opts.Template,
		store:    opts.Store,
		recorder: opts.Recorder,
		logger:   logger,
	}
}

// SessionFor returns the session of project, creating it if needed. The
// session is not started.
func (r *Registry) SessionFor(project id.ProjectID) *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[project]; ok {
		return s
	}

	cfg := r.template
	cfg.ProjectID = project
	s := session.New(cfg)
	r.restore(s)
	r.sessions[project] = s

	if r.recorder != nil {
		r.recorder.RecordSessionCreated()
	}
	r.logger.Debug("Session created", zap.String("project_id", project.String()))
	return s
}

func (r *Registry) restore(s *session.Session) {
	if r.store == nil {
		return
	}
	snap, ok, err := r.store.Load(s.ProjectID().String())
	if err != nil {
		r.logger.Warn("Failed to restore session state",
			zap.String("project_id", s.ProjectID().String()),
			zap.Error(err),
		)
		return
	}
	if !ok {
		return
	}
	if dir := snap.WorkingDirectory; dir != "" {
		// a directory removed since the snapshot leaves the session in home
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			s.SetWorkingDir(dir)
		} else {
			r.logger.Warn("Saved working directory is gone, using home",
				zap.String("project_id", s.ProjectID().String()),
				zap.String("working_dir", dir),
			)
		}
	}
	s.RestoreHistory(snap.History)
	r.logger.Info("Session state restored",
		zap.String("project_id", s.ProjectID().String()),
		zap.Int("history", len(snap.History)),
	)
}

// Lookup returns the session of project without creating one
func (r *Registry) Lookup(project id.ProjectID) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[project]
	return s, ok
}

// Remove stops and discards the session of project along with its saved
// state. It reports whether a session existed.
func (r *Registry) Remove(project id.ProjectID) bool {
	r.mu.Lock()
	s, ok := r.sessions[project]
	delete(r.sessions, project)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Delete(project.String()); err != nil {
			r.logger.Warn("Failed to delete session state",
				zap.String("project_id", project.String()),
				zap.Error(err),
			)
		}
	}
	if !ok {
		return false
	}

	s.Stop()
	r.logger.Info("Session removed", zap.String("project_id", project.String()))
	return true
}

// All returns every session ordered by project
func (r *Registry) All() []*session.Session {
	r.mu.Lock()
	all := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].ProjectID() < all[j].ProjectID()
	})
	return all
}

// Len returns the number of sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// StartAll starts the sessions of projects. Every project is attempted; the
// spawn failures are joined.
func (r *Registry) StartAll(ctx context.Context, projects []id.ProjectID) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(startConcurrency)

	for _, project := range projects {
		s := r.SessionFor(project)
		g.Go(func() error {
			if err := s.Start(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("start %s: %w", s.ProjectID(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Persist saves the state of project's session
func (r *Registry) Persist(project id.ProjectID) error {
	if r.store == nil {
		return nil
	}
	s, ok := r.Lookup(project)
	if !ok {
		return nil
	}
	return r.persist(s)
}

func (r *Registry) persist(s *session.Session) error {
	snap := s.Snapshot()
	return r.store.Save(state.Snapshot{
		ProjectID:        snap.ProjectID.String(),
		WorkingDirectory: snap.WorkingDir,
		Environment:      snap.Environment,
		History:          snap.History,
	})
}

// Projects returns the projects with saved state
func (r *Registry) Projects() ([]id.ProjectID, error) {
	if r.store == nil {
		return nil, nil
	}
	names, err := r.store.List()
	if err != nil {
		return nil, err
	}
	projects := make([]id.ProjectID, 0, len(names))
	for _, name := range names {
		project, err := id.ParseProjectID(name)
		if err != nil {
			continue
		}
		projects = append(projects, project)
	}
	return projects, nil
}

// Shutdown persists and stops every session concurrently
func (r *Registry) Shutdown(ctx context.Context) error {
	sessions := r.All()
	g, ctx := errgroup.WithContext(ctx)

	var (
		mu   sync.Mutex
		errs []error
	)
	for _, s := range sessions {
		g.Go(func() error {
			if r.store != nil {
				if err := r.persist(s); err != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("persist %s: %w", s.ProjectID(), err))
					mu.Unlock()
				}
			}
			s.Stop()
			return ctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}
	r.logger.Info("Sessions shut down", zap.Int("count", len(sessions)))
	return errors.Join(errs...)
}
