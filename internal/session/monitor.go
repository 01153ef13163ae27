// Package session holds the client-side half of a quiz attempt: the Monitor
// watches a running attempt for timeout, inactivity and anti-cheating
// signals, and the Orchestrator owns the attempt state and the submission
// path. Both are driven purely by discrete events so tests can run them
// against a fake clock.
package session

import (
	"sync"
	"time"
)

// State is the monitor's position in its lifecycle.
type State int

const (
	// StateRunning counts the wall-clock countdown down once per tick.
	StateRunning State = iota
	// StatePaused freezes the countdown while the page is hidden.
	StatePaused
	// StateTerminating is entered exactly once; the termination handler is
	// invoked and the monitor moves on to StateTerminated.
	StateTerminating
	// StateTerminated is absorbing: no further event has any effect.
	StateTerminated
)

// TerminationReason explains why the attempt ended.
type TerminationReason string

const (
	ReasonManual        TerminationReason = "manual"
	ReasonTimeExpired   TerminationReason = "time_expired"
	ReasonIdleTimeout   TerminationReason = "idle_timeout"
	ReasonHiddenTimeout TerminationReason = "hidden_timeout"
	ReasonFocusLoss     TerminationReason = "focus_loss"
)

// WarningKind classifies non-terminating alerts surfaced to the user.
type WarningKind string

const (
	WarnIdle          WarningKind = "idle"
	WarnOneMinuteLeft WarningKind = "one_minute_left"
	WarnTabHidden     WarningKind = "tab_hidden"
	WarnTabReturned   WarningKind = "tab_returned"
	WarnFocusLoss     WarningKind = "focus_loss"
)

// Warning carries the counters a UI needs to render the alert.
type Warning struct {
	Kind           WarningKind
	SecondsLeft    int // idle: seconds until forced termination
	HiddenFor      int // tab_returned: seconds the page was hidden
	HiddenAllowed  int // tab_returned: cumulative ceiling
	FocusLosses    int
	MaxFocusLosses int
}

// Config sets the monitor's thresholds. The defaults mirror the production
// values: 15 minute quiz, 5 minute idle ceiling with a warning in the final
// minute checked every 30 s, 60 s cumulative hidden ceiling, 3 focus losses
// with a 1 s debounce.
type Config struct {
	TimeLimit         int           // countdown seconds
	MaxIdle           int           // seconds of inactivity before termination
	IdleWarningWindow int           // warn when idle exceeds MaxIdle minus this
	IdleCheckEvery    int           // evaluate idleness every N ticks
	MaxHidden         int           // cumulative hidden seconds allowed
	MaxFocusLoss      int           // focus losses before termination
	BlurDebounce      time.Duration // window in which repeated blurs count once
}

// DefaultConfig returns production thresholds for a given time limit.
func DefaultConfig(timeLimit int) Config {
	return Config{
		TimeLimit:         timeLimit,
		MaxIdle:           300,
		IdleWarningWindow: 60,
		IdleCheckEvery:    30,
		MaxHidden:         60,
		MaxFocusLoss:      3,
		BlurDebounce:      time.Second,
	}
}

// Hooks are the monitor's only outputs. Terminate fires exactly once, with
// the first reason that crossed a threshold; Warn may fire many times.
// Handlers are invoked without the monitor's lock held, so they may call
// back into it.
type Hooks struct {
	Warn      func(Warning)
	Terminate func(TerminationReason)
}

// Monitor is a finite-state watcher over one running quiz attempt. All
// transitions are triggered by discrete events: Tick (1 Hz), Activity,
// Hidden, Visible, Blur and Submit.
type Monitor struct {
	cfg   Config
	hooks Hooks
	now   func() time.Time

	mu                sync.Mutex
	state             State
	timeRemaining     int
	ticks             int
	lastActivity      time.Time
	hiddenSince       time.Time
	hiddenAccumulated int
	focusLosses       int
	lastBlur          time.Time
}

// NewMonitor arms a monitor in StateRunning.
func NewMonitor(cfg Config, hooks Hooks) *Monitor {
	return NewMonitorWithClock(cfg, hooks, time.Now)
}

// NewMonitorWithClock allows deterministic time in tests.
func NewMonitorWithClock(cfg Config, hooks Hooks, now func() time.Time) *Monitor {
	return &Monitor{
		cfg:           cfg,
		hooks:         hooks,
		now:           now,
		state:         StateRunning,
		timeRemaining: cfg.TimeLimit,
		lastActivity:  now(),
	}
}

// Tick advances the 1 Hz clock: the countdown decrements while running, and
// idleness is evaluated every IdleCheckEvery ticks even while paused.
func (m *Monitor) Tick() {
	m.mu.Lock()
	var warnings []Warning
	var reason TerminationReason

	if m.state == StateRunning {
		m.timeRemaining--
		if m.timeRemaining == 60 {
			warnings = append(warnings, Warning{Kind: WarnOneMinuteLeft})
		}
		if m.timeRemaining <= 0 {
			reason = m.beginTerminationLocked(ReasonTimeExpired)
		}
	}

	if m.state == StateRunning || m.state == StatePaused {
		m.ticks++
		if reason == "" && m.cfg.IdleCheckEvery > 0 && m.ticks%m.cfg.IdleCheckEvery == 0 {
			idle := int(m.now().Sub(m.lastActivity) / time.Second)
			if idle > m.cfg.MaxIdle {
				reason = m.beginTerminationLocked(ReasonIdleTimeout)
			} else if idle > m.cfg.MaxIdle-m.cfg.IdleWarningWindow {
				warnings = append(warnings, Warning{Kind: WarnIdle, SecondsLeft: m.cfg.MaxIdle - idle})
			}
		}
	}
	m.mu.Unlock()

	m.emit(warnings, reason)
}

// Activity records user interaction (mouse, key, click, scroll) and resets
// the idle clock.
func (m *Monitor) Activity() {
	m.mu.Lock()
	if m.state == StateRunning || m.state == StatePaused {
		m.lastActivity = m.now()
	}
	m.mu.Unlock()
}

// Hidden handles the page becoming invisible: the countdown freezes and the
// hidden interval starts accumulating.
func (m *Monitor) Hidden() {
	m.mu.Lock()
	var warnings []Warning
	if m.state == StateRunning {
		m.state = StatePaused
		m.hiddenSince = m.now()
		warnings = append(warnings, Warning{Kind: WarnTabHidden})
	}
	m.mu.Unlock()

	m.emit(warnings, "")
}

// Visible handles the page returning. The elapsed hidden time is added to
// the cumulative total; crossing the ceiling terminates instead of resuming.
func (m *Monitor) Visible() {
	m.mu.Lock()
	var warnings []Warning
	var reason TerminationReason
	if m.state == StatePaused {
		hiddenFor := int(m.now().Sub(m.hiddenSince) / time.Second)
		m.hiddenAccumulated += hiddenFor
		if m.hiddenAccumulated > m.cfg.MaxHidden {
			reason = m.beginTerminationLocked(ReasonHiddenTimeout)
		} else {
			m.state = StateRunning
			warnings = append(warnings, Warning{
				Kind:          WarnTabReturned,
				HiddenFor:     hiddenFor,
				HiddenAllowed: m.cfg.MaxHidden,
			})
		}
	}
	m.mu.Unlock()

	m.emit(warnings, reason)
}

// Blur counts a window focus loss. Rapid repeated blurs inside the debounce
// window count once; reaching the cap terminates the attempt.
func (m *Monitor) Blur() {
	m.mu.Lock()
	var warnings []Warning
	var reason TerminationReason
	if m.state == StateRunning || m.state == StatePaused {
		now := m.now()
		if m.lastBlur.IsZero() || now.Sub(m.lastBlur) >= m.cfg.BlurDebounce {
			m.lastBlur = now
			m.focusLosses++
			if m.focusLosses >= m.cfg.MaxFocusLoss {
				reason = m.beginTerminationLocked(ReasonFocusLoss)
			} else {
				warnings = append(warnings, Warning{
					Kind:           WarnFocusLoss,
					FocusLosses:    m.focusLosses,
					MaxFocusLosses: m.cfg.MaxFocusLoss,
				})
			}
		}
	}
	m.mu.Unlock()

	m.emit(warnings, reason)
}

// Submit is the manual submission event, valid from Running or Paused.
func (m *Monitor) Submit() {
	m.mu.Lock()
	var reason TerminationReason
	if m.state == StateRunning || m.state == StatePaused {
		reason = m.beginTerminationLocked(ReasonManual)
	}
	m.mu.Unlock()

	m.emit(nil, reason)
}

// claimManual performs the manual-submit transition without invoking the
// Terminate hook, reporting whether this caller won it. The orchestrator
// uses it to run the submission path synchronously while still sharing the
// single-shot guard with forced terminations.
func (m *Monitor) claimManual() bool {
	m.mu.Lock()
	reason := TerminationReason("")
	if m.state == StateRunning || m.state == StatePaused {
		reason = m.beginTerminationLocked(ReasonManual)
	}
	if reason != "" {
		m.state = StateTerminated
	}
	m.mu.Unlock()
	return reason != ""
}

// beginTerminationLocked claims the single Terminating slot. It returns the
// reason when this caller won the transition and "" when termination already
// happened, which keeps the Terminate hook single-shot even when several
// thresholds trip in the same tick.
func (m *Monitor) beginTerminationLocked(reason TerminationReason) TerminationReason {
	if m.state == StateTerminating || m.state == StateTerminated {
		return ""
	}
	m.state = StateTerminating
	return reason
}

func (m *Monitor) emit(warnings []Warning, reason TerminationReason) {
	if reason == "" {
		if m.hooks.Warn != nil {
			for _, w := range warnings {
				m.hooks.Warn(w)
			}
		}
		return
	}
	// Suppress pending warnings once termination is decided.
	if m.hooks.Terminate != nil {
		m.hooks.Terminate(reason)
	}
	m.mu.Lock()
	m.state = StateTerminated
	m.mu.Unlock()
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// TimeRemaining reports countdown seconds left.
func (m *Monitor) TimeRemaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeRemaining
}

// HiddenAccumulated reports total seconds the page has been hidden.
func (m *Monitor) HiddenAccumulated() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hiddenAccumulated
}

// FocusLosses reports counted focus losses after debouncing.
func (m *Monitor) FocusLosses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focusLosses
}
