package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"school-quiz-service/internal/domain"
)

// Backend is the server contract the orchestrator submits through. The HTTP
// client implements it in production; tests supply fakes.
type Backend interface {
	StartQuiz(ctx context.Context, subject domain.Subject) (domain.QuestionSet, error)
	SubmitAttempt(ctx context.Context, sub domain.AttemptSubmission) (domain.SubmissionResult, error)
}

var (
	// ErrNoActiveSession is returned for answer/submit calls without a started quiz.
	ErrNoActiveSession = errors.New("no active quiz session")
	// ErrUnknownQuestion rejects answers for questions outside the current set.
	ErrUnknownQuestion = errors.New("question not part of this quiz")
	// ErrSubmitInFlight is returned when a second submission races an active one.
	ErrSubmitInFlight = errors.New("submission already in flight")
	// ErrSessionSuperseded marks a stale start response that arrived after a
	// newer session began.
	ErrSessionSuperseded = errors.New("quiz session superseded")
	// ErrNotTerminated guards Retry: only a terminated, unsent attempt can be resent.
	ErrNotTerminated = errors.New("attempt has not terminated yet")
)

// Events deliver monitor warnings and auto-submission outcomes to the UI.
// AutoSubmitted fires after a forced termination's submission attempt
// completes; err is non-nil when the attempt was preserved for retry.
type Events struct {
	Warn          func(Warning)
	AutoSubmitted func(result domain.SubmissionResult, reason TerminationReason, err error)
}

// attempt is the transient client-held session state. It lives from Start
// until a submission succeeds; a failed submission keeps it (answers intact)
// so the user can retry.
type attempt struct {
	subject    domain.Subject
	questions  []domain.PublicQuestion
	answers    map[string]string
	startedAt  time.Time
	monitor    *Monitor
	generation uint64
	inFlight   bool
}

// Orchestrator ties the question set, the answer map and the Monitor
// together and owns the single submission path.
type Orchestrator struct {
	backend       Backend
	events        Events
	now           func() time.Time
	submitTimeout time.Duration
	monitorCfg    func(timeLimit int) Config

	mu         sync.Mutex
	generation uint64
	current    *attempt
}

// NewOrchestrator builds an orchestrator with production defaults: real
// clock, default monitor thresholds, 15 s submission timeout.
func NewOrchestrator(backend Backend, events Events) *Orchestrator {
	return NewOrchestratorWithClock(backend, events, time.Now)
}

// NewOrchestratorWithClock allows deterministic time in tests.
func NewOrchestratorWithClock(backend Backend, events Events, now func() time.Time) *Orchestrator {
	return &Orchestrator{
		backend:       backend,
		events:        events,
		now:           now,
		submitTimeout: 15 * time.Second,
		monitorCfg:    DefaultConfig,
	}
}

// SetMonitorConfig overrides monitor thresholds (tests, alternate policies).
func (o *Orchestrator) SetMonitorConfig(cfg func(timeLimit int) Config) {
	o.monitorCfg = cfg
}

// Start fetches a question set and arms a fresh session. Any session in
// progress is superseded; a stale start response that loses the race against
// a newer Start call is discarded.
func (o *Orchestrator) Start(ctx context.Context, subject domain.Subject) (domain.QuestionSet, error) {
	o.mu.Lock()
	o.generation++
	gen := o.generation
	o.mu.Unlock()

	set, err := o.backend.StartQuiz(ctx, subject)
	if err != nil {
		return domain.QuestionSet{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		return domain.QuestionSet{}, ErrSessionSuperseded
	}

	monitor := NewMonitorWithClock(o.monitorCfg(set.TimeLimit), Hooks{
		Warn:      o.events.Warn,
		Terminate: o.autoTerminate,
	}, o.now)

	o.current = &attempt{
		subject:    set.Subject,
		questions:  set.Questions,
		answers:    make(map[string]string, set.TotalQuestions),
		startedAt:  o.now(),
		monitor:    monitor,
		generation: gen,
	}
	return set, nil
}

// RecordAnswer stores or overwrites an answer for a question in the current
// set. No local scoring happens; verdicts are server-side only. Recording
// counts as user activity for the idle clock.
func (o *Orchestrator) RecordAnswer(questionID, value string) error {
	o.mu.Lock()
	cur := o.current
	if cur == nil {
		o.mu.Unlock()
		return ErrNoActiveSession
	}
	known := false
	for _, q := range cur.questions {
		if q.ID == questionID {
			known = true
			break
		}
	}
	if !known {
		o.mu.Unlock()
		return ErrUnknownQuestion
	}
	cur.answers[questionID] = value
	monitor := cur.monitor
	o.mu.Unlock()

	monitor.Activity()
	return nil
}

// Monitor exposes the current session's monitor so the event source (DOM
// bridge, terminal driver) can feed it. Nil when no session is active.
func (o *Orchestrator) Monitor() *Monitor {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return nil
	}
	return o.current.monitor
}

// Answers returns a copy of the recorded answers.
func (o *Orchestrator) Answers() map[string]string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return nil
	}
	out := make(map[string]string, len(o.current.answers))
	for k, v := range o.current.answers {
		out[k] = v
	}
	return out
}

// Active reports whether a session is in progress.
func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current != nil
}

// Submit is the manual submission path. The manual claim on the monitor
// shares the single-shot termination guard with forced submissions, so a
// manual click racing an auto-submit is discarded rather than sent twice.
func (o *Orchestrator) Submit(ctx context.Context) (domain.SubmissionResult, error) {
	o.mu.Lock()
	cur := o.current
	o.mu.Unlock()
	if cur == nil {
		return domain.SubmissionResult{}, ErrNoActiveSession
	}
	if !cur.monitor.claimManual() {
		return domain.SubmissionResult{}, ErrSubmitInFlight
	}
	return o.send(ctx, cur)
}

// Retry resends a terminated attempt whose submission failed. The session
// and its answers were preserved; the attempt is consumed only on success.
func (o *Orchestrator) Retry(ctx context.Context) (domain.SubmissionResult, error) {
	o.mu.Lock()
	cur := o.current
	o.mu.Unlock()
	if cur == nil {
		return domain.SubmissionResult{}, ErrNoActiveSession
	}
	state := cur.monitor.State()
	if state != StateTerminated && state != StateTerminating {
		return domain.SubmissionResult{}, ErrNotTerminated
	}
	return o.send(ctx, cur)
}

// autoTerminate is the monitor's Terminate hook for forced endings. The
// submission applies the same retry policy as manual submits: on failure the
// session is preserved and surfaced through the AutoSubmitted event.
func (o *Orchestrator) autoTerminate(reason TerminationReason) {
	o.mu.Lock()
	cur := o.current
	o.mu.Unlock()
	if cur == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.submitTimeout)
	defer cancel()
	result, err := o.send(ctx, cur)
	if o.events.AutoSubmitted != nil {
		o.events.AutoSubmitted(result, reason, err)
	}
}

// send performs the one guarded network submission for an attempt. At most
// one send is in flight per attempt; a concurrent second call is discarded
// rather than producing a duplicate attempt record.
func (o *Orchestrator) send(ctx context.Context, cur *attempt) (domain.SubmissionResult, error) {
	o.mu.Lock()
	if o.current != cur {
		o.mu.Unlock()
		return domain.SubmissionResult{}, ErrSessionSuperseded
	}
	if cur.inFlight {
		o.mu.Unlock()
		return domain.SubmissionResult{}, ErrSubmitInFlight
	}
	cur.inFlight = true
	answers := make(map[string]string, len(cur.answers))
	for k, v := range cur.answers {
		answers[k] = v
	}
	sub := domain.AttemptSubmission{
		Subject:   cur.subject,
		Answers:   answers,
		TimeTaken: int(o.now().Sub(cur.startedAt) / time.Second),
	}
	o.mu.Unlock()

	result, err := o.backend.SubmitAttempt(ctx, sub)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		// The session and its answers survive; the attempt is not consumed
		// until the server accepts it.
		cur.inFlight = false
		return domain.SubmissionResult{}, err
	}
	if o.current == cur {
		o.current = nil
	}
	return result, nil
}
