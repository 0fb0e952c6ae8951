package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen rejects a restart while the guard is cooling down
	ErrCircuitOpen = errors.New("restart guard is open")
	// ErrTrialPending rejects a restart while the single trial restart runs
	ErrTrialPending = errors.New("trial restart already in progress")
)

// State of a RestartGuard
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Limits configures when a RestartGuard trips and recovers.
type Limits struct {
	// MaxFailures consecutive failures inside Window open the guard.
	MaxFailures int
	// Window bounds the failure streak; a streak older than Window starts over.
	Window time.Duration
	// Cooldown keeps the guard open before one trial restart is allowed.
	Cooldown time.Duration
}

// RestartLimits trips after three consecutive failed restarts within a
// minute and allows one trial restart after five minutes.
func RestartLimits() Limits {
	return Limits{
		MaxFailures: 3,
		Window:      time.Minute,
		Cooldown:    5 * time.Minute,
	}
}

// RestartGuard stops a session from respawning a shell that keeps dying.
type RestartGuard struct {
	limits Limits
	now    func() time.Time

	mu         sync.Mutex
	state      State
	failures   int
	streakFrom time.Time
	openUntil  time.Time
	trial      bool
}

// NewRestartGuard returns a closed guard. Zero fields of limits take the
// RestartLimits values.
func NewRestartGuard(limits Limits) *RestartGuard {
	def := RestartLimits()
	if limits.MaxFailures <= 0 {
		limits.MaxFailures = def.MaxFailures
	}
	if limits.Window <= 0 {
		limits.Window = def.Window
	}
	if limits.Cooldown <= 0 {
		limits.Cooldown = def.Cooldown
	}
	return &RestartGuard{limits: limits, now: time.Now}
}

// State reports the guard state, moving an expired open guard to half-open
func (g *RestartGuard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current(g.now())
}

// Failures is the length of the current failure streak
func (g *RestartGuard) Failures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures
}

// Execute runs restart unless the guard rejects it with ErrCircuitOpen or
// ErrTrialPending. A non-nil error or a panic from restart is a failure.
func (g *RestartGuard) Execute(restart func() error) error {
	trial, err := g.admit()
	if err != nil {
		return err
	}

	ok := false
	defer func() { g.record(trial, ok) }()

	err = restart()
	ok = err == nil
	return err
}

// Reset closes the guard and forgets the failure streak
func (g *RestartGuard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.close()
}

func (g *RestartGuard) admit() (trial bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.current(g.now()) {
	case StateOpen:
		return false, ErrCircuitOpen
	case StateHalfOpen:
		if g.trial {
			return false, ErrTrialPending
		}
		g.trial = true
		return true, nil
	}
	return false, nil
}

func (g *RestartGuard) record(trial, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if trial {
		g.trial = false
		if ok {
			g.close()
		} else {
			g.open(now)
		}
		return
	}
	// Reset or a trial may have moved the guard while this call ran
	if g.state != StateClosed {
		return
	}

	if ok {
		g.failures = 0
		return
	}
	if g.failures == 0 || now.Sub(g.streakFrom) > g.limits.Window {
		g.failures = 0
		g.streakFrom = now
	}
	g.failures++
	if g.failures >= g.limits.MaxFailures {
		g.open(now)
	}
}

func (g *RestartGuard) current(now time.Time) State {
	if g.state == StateOpen && !now.Before(g.openUntil) {
		g.state = StateHalfOpen
	}
	return g.state
}

func (g *RestartGuard) open(now time.Time) {
	g.state = StateOpen
	g.openUntil = now.Add(g.limits.Cooldown)
	g.failures = 0
}

func (g *RestartGuard) close() {
	g.state = StateClosed
	g.failures = 0
	g.trial = false
}
