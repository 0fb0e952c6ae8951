package session

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/termhost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/termhost/internal/shared/id"
	"github.com/GriffinCanCode/termhost/internal/terminal/delivery"
	"github.com/GriffinCanCode/termhost/internal/terminal/history"
	"github.com/GriffinCanCode/termhost/internal/terminal/shellenv"
	"go.uber.org/zap"
)

const (
	DefaultCols       = 80
	DefaultRows       = 24
	DefaultStopGrace  = 500 * time.Millisecond
	DefaultOutputSize = 1024 * 1024

	// A child that exits sooner than this after an automatic restart counts
	// as a crash against the restart guard.
	minStableUptime = 5 * time.Second
	readChunkSize   = 4096
)

var errShortLived = errors.New("shell exited shortly after restart")

// Config configures a Session. Zero values select defaults.
type Config struct {
	ProjectID        id.ProjectID
	Shell            string
	Home             string
	WorkingDir       string
	BaseEnv          map[string]string
	Cols             uint16
	Rows             uint16
	HistoryLimit     int
	OutputBufferSize int
	StopGrace        time.Duration
	AutoForward      bool
	AutoRestart      bool
	Spawner          Spawner
	Recorder         Recorder
	Logger           *zap.Logger
}

type scheduledSend struct {
	timer *time.Timer
	done  func(delivered bool)
}

// Session is the terminal of one project
type Session struct {
	projectID   id.ProjectID
	shell       string
	kind        shellenv.Kind
	home        string
	baseEnv     map[string]string
	stopGrace   time.Duration
	autoForward bool
	autoRestart bool
	spawner     Spawner
	recorder    Recorder
	logger      *zap.Logger
	guard       *resilience.RestartGuard
	output      *Buffer
	wake        chan struct{}

	// lifecycle serializes Start, Stop and Restart
	lifecycle sync.Mutex
	// writeMu keeps concurrent writers from interleaving on the terminal
	writeMu sync.Mutex

	mu         sync.Mutex
	state      State
	generation uint64
	// stops counts explicit Stop calls, including no-op ones
	stops      uint64
	proc       Process
	procDone   chan struct{}
	processID  id.ProcessID
	pid        int
	workingDir string
	env        map[string]string
	cols       uint16
	rows       uint16
	startedAt  time.Time
	stoppedAt  time.Time
	lastErr    error
	outbox     string
	pending    bool
	history    *history.Store
	sends      map[uint64]*scheduledSend
	observers  map[uint64]func(Event)
	listeners  map[uint64]func([]byte)
	seq        uint64
}

// New creates an idle session. No process is spawned until Start.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	home := cfg.Home
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		} else {
			home = os.TempDir()
		}
	}
	workingDir := cfg.WorkingDir
	if workingDir == "" {
		workingDir = home
	}
	baseEnv := cfg.BaseEnv
	if baseEnv == nil {
		baseEnv = shellenv.FromList(os.Environ())
	}
	shell := shellenv.DefaultShell(cfg.Shell, baseEnv)

	cols, rows := cfg.Cols, cfg.Rows
	if cols == 0 {
		cols = DefaultCols
	}
	if rows == 0 {
		rows = DefaultRows
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = history.DefaultLimit
	}
	outputSize := cfg.OutputBufferSize
	if outputSize <= 0 {
		outputSize = DefaultOutputSize
	}
	grace := cfg.StopGrace
	if grace <= 0 {
		grace = DefaultStopGrace
	}
	spawner := cfg.Spawner
	if spawner == nil {
		spawner = PTYSpawner{}
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	s := &Session{
		projectID:   cfg.ProjectID,
		shell:       shell,
		kind:        shellenv.DetectKind(shell),
		home:        home,
		baseEnv:     baseEnv,
		stopGrace:   grace,
		autoForward: cfg.AutoForward,
		autoRestart: cfg.AutoRestart,
		spawner:     spawner,
		recorder:    recorder,
		output:      NewBuffer(outputSize),
		wake:        make(chan struct{}, 1),
		state:       StateIdle,
		workingDir:  workingDir,
		cols:        cols,
		rows:        rows,
		history:     history.NewWithLimit(limit),
		sends:       make(map[uint64]*scheduledSend),
		observers:   make(map[uint64]func(Event)),
		listeners:   make(map[uint64]func([]byte)),
	}
	s.logger = logger.With(
		zap.String("project_id", cfg.ProjectID.String()),
		zap.String("shell", shell),
	)
	if cfg.AutoRestart {
		s.guard = resilience.NewRestartGuard(resilience.RestartLimits())
	}
	return s
}

// ProjectID returns the owning project
func (s *Session) ProjectID() id.ProjectID {
	return s.projectID
}

// Shell returns the shell executable path
func (s *Session) Shell() string {
	return s.shell
}

// Start spawns the login shell. It is a no-op when already running.
func (s *Session) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.start(ctx)
}

func (s *Session) start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		return nil
	}
	prev := s.state
	s.state = StateStarting
	s.env = shellenv.Build(s.baseEnv, s.home)
	spec := Spec{
		Path: s.shell,
		Args: s.kind.LoginArgs(),
		Dir:  s.workingDir,
		Env:  shellenv.ToList(s.env),
		Cols: s.cols,
		Rows: s.rows,
	}
	s.mu.Unlock()
	s.emit(prev, StateStarting, "", nil)

	proc, err := s.spawner.Spawn(ctx, spec)
	if err != nil {
		spawnErr := &SpawnError{Shell: s.shell, Err: err}
		s.mu.Lock()
		s.state = prev
		s.lastErr = spawnErr
		s.mu.Unlock()

		s.recorder.RecordSpawn(false)
		s.logger.Error("Failed to spawn shell",
			zap.String("working_dir", spec.Dir),
			zap.Error(err),
		)
		s.emit(StateStarting, prev, "", spawnErr)
		return spawnErr
	}

	processID := id.NewProcessID()
	done := make(chan struct{})

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.proc = proc
	s.procDone = done
	s.processID = processID
	s.pid = proc.Pid()
	s.startedAt = time.Now()
	s.stoppedAt = time.Time{}
	s.lastErr = nil
	s.state = StateRunning
	s.mu.Unlock()

	s.recorder.RecordSpawn(true)
	s.logger.Info("Shell started",
		zap.String("process_id", processID.String()),
		zap.Int("pid", proc.Pid()),
		zap.String("working_dir", spec.Dir),
	)

	go s.readLoop(proc)
	go s.waitLoop(proc, gen)
	if s.autoForward {
		go s.forwardLoop(proc, gen, done)
	}

	s.emit(StateStarting, StateRunning, processID, nil)
	return nil
}

// Stop terminates the shell. It always succeeds and is a no-op unless running.
func (s *Session) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
	s.stop()
}

func (s *Session) stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	proc := s.proc
	processID := s.processID
	s.state = StateStopped
	s.stoppedAt = time.Now()
	s.proc = nil
	close(s.procDone)
	cancelled := s.takeSendsLocked()
	s.mu.Unlock()

	finishSends(cancelled)

	if err := proc.Terminate(s.stopGrace); err != nil {
		s.logger.Warn("Failed to terminate shell", zap.Error(err))
	}
	if err := proc.Close(); err != nil {
		s.logger.Debug("Failed to close terminal", zap.Error(err))
	}

	s.recorder.RecordExit("stopped")
	s.logger.Info("Shell stopped",
		zap.String("process_id", processID.String()),
		zap.Int("cancelled_sends", len(cancelled)),
	)
	s.emit(StateRunning, StateStopped, processID, nil)
}

// Restart stops the shell, discards the outbox and spawns a fresh shell.
// History is kept.
func (s *Session) Restart(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.stop()

	s.mu.Lock()
	s.outbox = ""
	s.pending = false
	s.mu.Unlock()
	select {
	case <-s.wake:
	default:
	}

	return s.start(ctx)
}

// Running reports whether a live process is attached
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRunning
}

// State returns the lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submit places text in the outbox, replacing anything not yet drained, and
// records the command in history. It never blocks and never fails.
func (s *Session) Submit(text string) {
	s.mu.Lock()
	s.outbox = text
	s.pending = true
	s.history.Add(delivery.Decode(text))
	state := s.state
	s.mu.Unlock()

	s.recorder.RecordSubmit()
	s.signal()

	if state == StateStopped {
		s.logger.Debug("Submit to stopped session held in outbox",
			zap.Error(ErrWriteAfterTerminated),
		)
	}
}

// Drain takes the pending outbox text
func (s *Session) Drain() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		return "", false
	}
	text := s.outbox
	s.outbox = ""
	s.pending = false
	return text, true
}

// Pending returns the outbox text without taking it
func (s *Session) Pending() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outbox, s.pending
}

// Schedule submits text after delay on the process that is live now. The
// send is dropped when that process has gone by then, and cancelled by Stop,
// Restart, exit or the returned cancel func. done runs exactly once.
func (s *Session) Schedule(delay time.Duration, text string, done func(delivered bool)) (cancel func()) {
	if done == nil {
		done = func(bool) {}
	}

	s.mu.Lock()
	s.seq++
	key := s.seq
	gen := s.generation
	send := &scheduledSend{done: done}
	s.sends[key] = send
	send.timer = time.AfterFunc(delay, func() { s.fire(key, gen, text) })
	s.mu.Unlock()

	return func() { s.cancelSend(key) }
}

func (s *Session) fire(key, gen uint64, text string) {
	s.mu.Lock()
	send, ok := s.sends[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.sends, key)
	live := s.generation == gen && s.state == StateRunning
	s.mu.Unlock()

	if !live {
		s.recorder.RecordDroppedWrite()
		s.logger.Debug("Dropped scheduled send", zap.Error(ErrWriteAfterTerminated))
		send.done(false)
		return
	}

	s.Submit(text)
	send.done(true)
}

func (s *Session) cancelSend(key uint64) {
	s.mu.Lock()
	send, ok := s.sends[key]
	if ok {
		delete(s.sends, key)
		send.timer.Stop()
	}
	s.mu.Unlock()

	if ok {
		send.done(false)
	}
}

func (s *Session) takeSendsLocked() []*scheduledSend {
	if len(s.sends) == 0 {
		return nil
	}
	keys := make([]uint64, 0, len(s.sends))
	for key := range s.sends {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	taken := make([]*scheduledSend, 0, len(keys))
	for _, key := range keys {
		send := s.sends[key]
		send.timer.Stop()
		taken = append(taken, send)
		delete(s.sends, key)
	}
	return taken
}

func finishSends(sends []*scheduledSend) {
	for _, send := range sends {
		send.done(false)
	}
}

// WriteInput writes raw bytes to the shell's terminal
func (s *Session) WriteInput(p []byte) error {
	s.mu.Lock()
	proc, gen, running := s.proc, s.generation, s.state == StateRunning
	s.mu.Unlock()

	if !running {
		s.recorder.RecordDroppedWrite()
		return ErrWriteAfterTerminated
	}
	return s.writeTo(proc, gen, p)
}

func (s *Session) writeTo(proc Process, gen uint64, p []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	live := s.generation == gen && s.state == StateRunning
	s.mu.Unlock()
	if !live {
		s.recorder.RecordDroppedWrite()
		return ErrWriteAfterTerminated
	}

	if _, err := proc.Write(p); err != nil {
		s.recorder.RecordDroppedWrite()
		return errors.Join(ErrWriteAfterTerminated, err)
	}
	return nil
}

// Resize changes the terminal size, now if running and for later spawns
func (s *Session) Resize(cols, rows uint16) error {
	if cols == 0 || rows == 0 {
		return ErrInvalidSize
	}

	s.mu.Lock()
	s.cols, s.rows = cols, rows
	proc := s.proc
	running := s.state == StateRunning
	s.mu.Unlock()

	if !running {
		return nil
	}
	return proc.Resize(cols, rows)
}

// SetWorkingDir sets the directory used by the next spawn
func (s *Session) SetWorkingDir(dir string) {
	if dir == "" {
		return
	}
	s.mu.Lock()
	s.workingDir = dir
	s.mu.Unlock()
}

// WorkingDir returns the directory the shell was or will be spawned in
func (s *Session) WorkingDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workingDir
}

// Environment returns a copy of the environment of the last spawn
func (s *Session) Environment() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.env == nil {
		return nil
	}
	env := make(map[string]string, len(s.env))
	for k, v := range s.env {
		env[k] = v
	}
	return env
}

// History returns the recorded commands, oldest first
func (s *Session) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Entries()
}

// HistoryEntry returns the command offset entries back from the newest
func (s *Session) HistoryEntry(offset int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.EntryAt(offset)
}

// ClearHistory drops all recorded commands
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Clear()
}

// RestoreHistory replaces the history, keeping the newest entries
func (s *Session) RestoreHistory(entries []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Restore(entries)
}

// ReadOutput returns and clears buffered terminal output
func (s *Session) ReadOutput() []byte {
	return s.output.ReadAll()
}

// Subscribe registers fn for every chunk of terminal output. Chunks are
// delivered on the reader goroutine; fn must not block.
func (s *Session) Subscribe(fn func([]byte)) (unsubscribe func()) {
	s.mu.Lock()
	s.seq++
	key := s.seq
	s.listeners[key] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, key)
		s.mu.Unlock()
	}
}

// Observe registers fn for lifecycle transitions
func (s *Session) Observe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	s.seq++
	key := s.seq
	s.observers[key] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, key)
		s.mu.Unlock()
	}
}

// Info returns a view of the session
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		ProjectID:  s.projectID,
		State:      s.state,
		Running:    s.state == StateRunning,
		Shell:      s.shell,
		WorkingDir: s.workingDir,
		Cols:       s.cols,
		Rows:       s.rows,
		History:    s.history.Len(),
		Pending:    s.pending,
	}
	if s.state == StateRunning {
		info.ProcessID = s.processID
		info.Pid = s.pid
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		info.StartedAt = &started
	}
	if !s.stoppedAt.IsZero() {
		stopped := s.stoppedAt
		info.StoppedAt = &stopped
	}
	if s.lastErr != nil {
		info.LastError = s.lastErr.Error()
	}
	return info
}

// Snapshot returns the persistable state
func (s *Session) Snapshot() Snapshot {
	env := s.Environment()
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ProjectID:   s.projectID,
		WorkingDir:  s.workingDir,
		Environment: env,
		History:     s.history.Entries(),
	}
}

func (s *Session) readLoop(proc Process) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := proc.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.output.Write(chunk)
			s.publish(chunk)
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) publish(chunk []byte) {
	s.mu.Lock()
	fns := make([]func([]byte), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(chunk)
	}
}

// waitLoop watches for the child exiting on its own
func (s *Session) waitLoop(proc Process, gen uint64) {
	err := proc.Wait()

	s.mu.Lock()
	if s.generation != gen || s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	processID := s.processID
	uptime := time.Since(s.startedAt)
	stops := s.stops
	s.state = StateStopped
	s.stoppedAt = time.Now()
	s.proc = nil
	s.lastErr = err
	close(s.procDone)
	cancelled := s.takeSendsLocked()
	s.mu.Unlock()

	finishSends(cancelled)
	if cerr := proc.Close(); cerr != nil {
		s.logger.Debug("Failed to close terminal", zap.Error(cerr))
	}

	s.recorder.RecordExit("exited")
	s.logger.Info("Shell exited",
		zap.String("process_id", processID.String()),
		zap.Duration("uptime", uptime),
		zap.Error(err),
	)
	s.emit(StateRunning, StateStopped, processID, err)

	if s.autoRestart {
		go s.restartAfterExit(gen, stops, uptime)
	}
}

func (s *Session) restartAfterExit(gen, stops uint64, uptime time.Duration) {
	skipped := false
	err := s.guard.Execute(func() error {
		s.lifecycle.Lock()
		defer s.lifecycle.Unlock()

		// A Stop, Start or Restart since the exit wins over the restart policy
		s.mu.Lock()
		superseded := s.generation != gen || s.stops != stops || s.state != StateStopped
		s.mu.Unlock()
		if superseded {
			skipped = true
			return nil
		}

		if err := s.start(context.Background()); err != nil {
			return err
		}
		if uptime < minStableUptime {
			return errShortLived
		}
		return nil
	})
	if skipped {
		s.logger.Debug("Automatic restart skipped, session changed after exit")
		return
	}

	switch {
	case err == nil:
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTrialPending):
		s.logger.Warn("Shell is crash looping, automatic restart suspended")
	case errors.Is(err, errShortLived):
		s.logger.Debug("Restarted shell after short run", zap.Duration("uptime", uptime))
	default:
		s.logger.Error("Automatic restart failed", zap.Error(err))
	}
}

// forwardLoop drains the outbox into the terminal until done is closed
func (s *Session) forwardLoop(proc Process, gen uint64, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-s.wake:
		}

		select {
		case <-done:
			// the signal belongs to the next generation
			s.signal()
			return
		default:
		}

		text, ok := s.Drain()
		if !ok {
			continue
		}
		if err := s.writeTo(proc, gen, []byte(text)); err != nil {
			s.logger.Debug("Dropped outbox write", zap.Error(err))
		}
	}
}

func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) emit(from, to State, processID id.ProcessID, err error) {
	event := Event{
		ProjectID: s.projectID,
		ProcessID: processID,
		From:      from,
		To:        to,
		At:        time.Now(),
	}
	if err != nil {
		event.Error = err.Error()
	}

	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}
