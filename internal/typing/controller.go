package typing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wailsapp/wails/v2/pkg/logger"

	"auto-typer/internal/domain"
	"auto-typer/internal/jobs"
	"auto-typer/internal/keymap"
	"auto-typer/internal/logging"
)

const (
	// DefaultTick is the countdown refresh cadence.
	DefaultTick = 100 * time.Millisecond
	// DefaultSettle is the pause after every primitive action.
	DefaultSettle = 10 * time.Millisecond
)

// errJobStopped reports that the worker observed a stopped state before
// the context was cancelled.
var errJobStopped = errors.New("job stopped")

// Backend is the narrow key-emission capability the controller drives.
type Backend interface {
	PressKey(name string) error
	ReleaseKey(name string) error
	WriteLiteral(ch rune) error
	CommitLine() error
}

// Hooks receive notifications from the worker goroutine. All are optional.
// OnFinish runs before Wait returns and must not call Wait or Start.
type Hooks struct {
	OnProgress func(domain.ProgressEvent)
	OnTick     func()
	OnFinish   func(Result)
}

// Result summarizes a job that reached a terminal state.
type Result struct {
	JobID string          `json:"jobId"`
	State domain.RunState `json:"state"`
	Lines int             `json:"lines"`
	Chars int             `json:"chars"`
	Err   error           `json:"-"`
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger routes controller logs to l.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithResolver replaces the default character table.
func WithResolver(r *keymap.Resolver) Option {
	return func(c *Controller) { c.resolver = r }
}

// WithManager shares a state machine with other callers.
func WithManager(m *jobs.Manager) Option {
	return func(c *Controller) { c.jobs = m }
}

// WithTiming overrides the countdown tick and the per-action settle delay.
func WithTiming(tick, settle time.Duration) Option {
	return func(c *Controller) {
		c.tick = tick
		c.settle = settle
	}
}

// WithClock replaces time.Now for countdown deadlines.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithReadFile replaces os.ReadFile for file sources.
func WithReadFile(readFile func(string) ([]byte, error)) Option {
	return func(c *Controller) { c.readFile = readFile }
}

// Controller drives one typing job at a time from start to a terminal state.
type Controller struct {
	backend  Backend
	resolver *keymap.Resolver
	jobs     *jobs.Manager
	log      logger.Logger
	tick     time.Duration
	settle   time.Duration
	now      func() time.Time
	readFile func(string) ([]byte, error)
	newID    func() string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	result Result

	// emitMu is held while an action is dispatched; held lists pressed keys
	// in press order and is guarded by emitMu.
	emitMu sync.Mutex
	held   []string
}

// New creates an idle controller emitting through backend.
func New(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend:  backend,
		resolver: keymap.Default(),
		jobs:     jobs.NewManager(),
		log:      logging.Discard(),
		tick:     DefaultTick,
		settle:   DefaultSettle,
		now:      time.Now,
		readFile: readFileDefault,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tick <= 0 {
		c.tick = DefaultTick
	}
	return c
}

// Start validates job, snapshots its text, and runs it asynchronously.
func (c *Controller) Start(job domain.TypingJob, hooks Hooks) (domain.Job, error) {
	if c.jobs.IsActive() {
		return domain.Job{}, jobs.ErrJobAlreadyRunning
	}
	if err := validateJob(job); err != nil {
		c.log.Error(fmt.Sprintf("rejecting job: %v", err))
		return domain.Job{}, err
	}
	text, err := loadText(job.Source, c.readFile)
	if err != nil {
		c.log.Error(fmt.Sprintf("rejecting job: %v", err))
		return domain.Job{}, err
	}
	if text == "" {
		return domain.Job{}, &JobError{Field: "source", Message: "text is empty"}
	}
	lines := SplitLines(text)

	c.mu.Lock()
	prev := c.done
	c.mu.Unlock()
	if prev != nil {
		<-prev
	}

	jobID := c.newID()
	if err := c.jobs.Start(jobID); err != nil {
		return domain.Job{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.result = Result{}
	c.mu.Unlock()

	c.log.Info(fmt.Sprintf("job %s: %d lines, starting in %.1fs", jobID, len(lines), job.StartDelaySeconds))
	go c.run(ctx, cancel, done, jobID, job, lines, hooks)
	return c.jobs.Current(), nil
}

// Pause halts emission before the next character.
func (c *Controller) Pause() error {
	if err := c.jobs.Pause(); err != nil {
		return err
	}
	c.log.Info("typing paused")
	return nil
}

// Resume re-runs the start countdown and then continues the paused job.
func (c *Controller) Resume() error {
	if err := c.jobs.Resume(); err != nil {
		return err
	}
	c.log.Info("typing resuming")
	return nil
}

// Stop ends the active job. When Stop returns no further key action will be
// dispatched and every held key has been released.
func (c *Controller) Stop() error {
	if err := c.jobs.Stop(); err != nil {
		return err
	}

	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	c.emitMu.Lock()
	c.releaseHeldLocked()
	c.emitMu.Unlock()

	c.log.Info("typing stopped")
	return nil
}

// Acknowledge returns a finished controller to idle.
func (c *Controller) Acknowledge() error {
	return c.jobs.Acknowledge()
}

// State returns the current run state.
func (c *Controller) State() domain.RunState {
	return c.jobs.Current().State
}

// Current returns a snapshot of the current job.
func (c *Controller) Current() domain.Job {
	return c.jobs.Current()
}

// Wait blocks until the latest job finishes or ctx is done.
func (c *Controller) Wait(ctx context.Context) (Result, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return Result{}, jobs.ErrNoRunningJob
	}

	select {
	case <-done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// run is the worker goroutine for one job.
func (c *Controller) run(
	ctx context.Context,
	cancel context.CancelFunc,
	done chan struct{},
	jobID string,
	job domain.TypingJob,
	lines []string,
	hooks Hooks,
) {
	defer close(done)
	defer cancel()

	w := &worker{c: c, ctx: ctx, jobID: jobID, job: job, total: len(lines), hooks: hooks}
	err := w.countdown(domain.RunStateCountingDown, 0)
	if err == nil {
		err = c.jobs.Transition(domain.RunStateRunning)
	}
	if err == nil {
		err = w.typeLines(lines)
	}
	if err == nil {
		err = w.complete()
	}

	c.emitMu.Lock()
	c.releaseHeldLocked()
	c.emitMu.Unlock()

	result := Result{JobID: jobID, Lines: w.lines, Chars: w.chars}
	switch {
	case err == nil:
		c.log.Info(fmt.Sprintf("job %s completed: %d lines", jobID, w.lines))
	case errors.Is(err, ErrEmissionFailure):
		result.Err = err
		if terr := c.jobs.Transition(domain.RunStateFailed); terr != nil {
			c.log.Warning(fmt.Sprintf("job %s: mark failed: %v", jobID, terr))
		}
		c.log.Error(fmt.Sprintf("job %s failed: %v", jobID, err))
	default:
		c.log.Info(fmt.Sprintf("job %s ended after %d lines", jobID, w.lines))
	}
	// The worker is the only driver of an active job; never leave one behind.
	if c.jobs.IsActive() {
		c.log.Warning(fmt.Sprintf("job %s: worker exiting in state %s, stopping", jobID, c.jobs.Current().State))
		_ = c.jobs.Stop()
	}
	result.State = c.jobs.Current().State

	c.mu.Lock()
	c.result = result
	c.mu.Unlock()

	if hooks.OnFinish != nil {
		hooks.OnFinish(result)
	}
}

// emit dispatches one action unless the job has been stopped.
func (c *Controller) emit(ctx context.Context, line int, ch rune, action keymap.Action) error {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	switch action.Kind {
	case keymap.PressModifier:
		if err = c.backend.PressKey(action.Key); err == nil {
			c.held = append(c.held, action.Key)
		}
	case keymap.ReleaseModifier:
		if err = c.backend.ReleaseKey(action.Key); err == nil {
			c.dropHeldLocked(action.Key)
		}
	case keymap.PressKey:
		if err = c.backend.PressKey(action.Key); err == nil {
			c.held = append(c.held, action.Key)
			if err = c.backend.ReleaseKey(action.Key); err == nil {
				c.dropHeldLocked(action.Key)
			}
		}
	case keymap.WriteLiteral:
		err = c.backend.WriteLiteral(action.Char)
	case keymap.CommitLine:
		err = c.backend.CommitLine()
	default:
		err = fmt.Errorf("unknown action kind %q", action.Kind)
	}
	if err != nil {
		return &EmissionError{Line: line, Char: ch, Action: action, Err: err}
	}
	return nil
}

// releaseHeldLocked releases pressed keys in reverse press order.
func (c *Controller) releaseHeldLocked() {
	for i := len(c.held) - 1; i >= 0; i-- {
		if err := c.backend.ReleaseKey(c.held[i]); err != nil {
			c.log.Warning(fmt.Sprintf("release %s: %v", c.held[i], err))
		}
	}
	c.held = nil
}

func (c *Controller) dropHeldLocked(name string) {
	for i := len(c.held) - 1; i >= 0; i-- {
		if c.held[i] == name {
			c.held = append(c.held[:i], c.held[i+1:]...)
			return
		}
	}
}

// worker holds per-job loop state.
type worker struct {
	c     *Controller
	ctx   context.Context
	jobID string
	job   domain.TypingJob
	total int
	hooks Hooks
	lines int
	chars int
}

func (w *worker) typeLines(lines []string) error {
	for i, line := range lines {
		w.progress(domain.ProgressEvent{LineIndex: i, TotalLines: w.total, Phase: domain.RunStateRunning})
		w.c.log.Debug(fmt.Sprintf("typing line %d/%d", i+1, w.total))

		for _, ch := range line {
			if err := w.checkpoint(i); err != nil {
				return err
			}
			for _, action := range w.c.resolver.Resolve(ch) {
				if err := w.c.emit(w.ctx, i, ch, action); err != nil {
					return err
				}
				if err := w.sleep(w.c.settle); err != nil {
					return err
				}
			}
			w.chars++
			if w.job.SoundEnabled && w.hooks.OnTick != nil {
				w.hooks.OnTick()
			}
			if err := w.sleep(seconds(w.job.InterCharDelaySeconds)); err != nil {
				return err
			}
		}

		if err := w.checkpoint(i); err != nil {
			return err
		}
		if err := w.c.emit(w.ctx, i, '\n', keymap.LineBreak); err != nil {
			return err
		}
		w.lines++
		if err := w.sleep(seconds(w.job.LineEndDelaySeconds)); err != nil {
			return err
		}
	}
	return nil
}

// complete marks the job completed once the last line is out. A pause or
// resume that arrived after the final character is honoured first.
func (w *worker) complete() error {
	last := max(w.total-1, 0)
	for {
		if err := w.checkpoint(last); err != nil {
			return err
		}
		err := w.c.jobs.Transition(domain.RunStateCompleted)
		if err == nil {
			return nil
		}
		if !errors.Is(err, jobs.ErrInvalidTransition) {
			return err
		}
		w.c.log.Warning(fmt.Sprintf("job %s: complete: %v", w.jobID, err))
	}
}

// checkpoint blocks while paused, re-runs the countdown on resume, and
// fails once the job is stopped.
func (w *worker) checkpoint(line int) error {
	for {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		state, gate := w.c.jobs.Gate()
		switch state {
		case domain.RunStateRunning:
			return nil
		case domain.RunStatePaused:
			w.progress(domain.ProgressEvent{LineIndex: line, TotalLines: w.total, Phase: domain.RunStatePaused})
			select {
			case <-gate:
			case <-w.ctx.Done():
				return w.ctx.Err()
			}
		case domain.RunStateResuming:
			if err := w.countdown(domain.RunStateResuming, line); err != nil {
				return err
			}
			if err := w.c.jobs.Transition(domain.RunStateRunning); err != nil {
				return err
			}
		default:
			return errJobStopped
		}
	}
}

// countdown emits remaining-time progress every tick until the start delay
// has elapsed.
func (w *worker) countdown(phase domain.RunState, line int) error {
	deadline := w.c.now().Add(seconds(w.job.StartDelaySeconds))
	for {
		remaining := deadline.Sub(w.c.now())
		if remaining < 0 {
			remaining = 0
		}
		w.progress(domain.ProgressEvent{
			LineIndex:        line,
			TotalLines:       w.total,
			Phase:            phase,
			RemainingSeconds: remaining.Seconds(),
		})
		if remaining == 0 {
			return w.ctx.Err()
		}
		if err := w.sleep(min(w.c.tick, remaining)); err != nil {
			return err
		}
	}
}

// sleep waits for d or until the job is stopped.
func (w *worker) sleep(d time.Duration) error {
	if d <= 0 {
		return w.ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-w.ctx.Done():
		return w.ctx.Err()
	}
}

func (w *worker) progress(event domain.ProgressEvent) {
	if w.hooks.OnProgress != nil {
		event.JobID = w.jobID
		w.hooks.OnProgress(event)
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
