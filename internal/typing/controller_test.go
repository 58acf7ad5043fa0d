package typing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"auto-typer/internal/domain"
	"auto-typer/internal/jobs"
	"auto-typer/internal/keymap"
)

// fakeBackend records emitted calls and optionally fails them.
type fakeBackend struct {
	mu    sync.Mutex
	calls []string
	fail  func(call string) error
}

func (b *fakeBackend) record(call string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
	if b.fail != nil {
		return b.fail(call)
	}
	return nil
}

func (b *fakeBackend) PressKey(name string) error   { return b.record("press:" + name) }
func (b *fakeBackend) ReleaseKey(name string) error { return b.record("release:" + name) }
func (b *fakeBackend) WriteLiteral(ch rune) error   { return b.record("write:" + string(ch)) }
func (b *fakeBackend) CommitLine() error            { return b.record("commit") }

// Calls returns a snapshot of recorded calls.
func (b *fakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// progressLog collects progress events from the worker goroutine.
type progressLog struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (p *progressLog) add(event domain.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *progressLog) phases() []domain.RunState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.RunState, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Phase)
	}
	return out
}

func (p *progressLog) snapshot() []domain.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ProgressEvent(nil), p.events...)
}

func bangTable() *keymap.Resolver {
	return keymap.NewResolver(keymap.Table{'!': {Modifiers: []string{"shift"}, Key: "1"}})
}

func newTestController(backend Backend, opts ...Option) *Controller {
	base := []Option{WithResolver(bangTable()), WithTiming(10*time.Millisecond, 0)}
	return New(backend, append(base, opts...)...)
}

func inline(text string) domain.TypingJob {
	return domain.TypingJob{Source: domain.InlineText(text), Volume: 0.5}
}

// waitResult waits for the current job to finish.
func waitResult(t *testing.T, c *Controller) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	result, err := c.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	return result
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// TestStartTypesChordScenario checks the exact action stream for a shifted symbol.
func TestStartTypesChordScenario(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestController(backend)

	job, err := c.Start(inline("ab!"), Hooks{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected job id")
	}

	result := waitResult(t, c)
	want := []string{"write:a", "write:b", "press:shift", "press:1", "release:1", "release:shift", "commit"}
	if got := backend.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	if result.State != domain.RunStateCompleted || c.State() != domain.RunStateCompleted {
		t.Fatalf("state = %s / %s, want completed", result.State, c.State())
	}
	if result.Lines != 1 || result.Chars != 3 || result.Err != nil {
		t.Fatalf("result = %+v", result)
	}
}

// TestStartRejectsEmptyText checks no action is emitted for empty input.
func TestStartRejectsEmptyText(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestController(backend)

	_, err := c.Start(inline(""), Hooks{})
	if !errors.Is(err, ErrInvalidJob) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidJob)
	}
	if c.State() != domain.RunStateIdle {
		t.Fatalf("state = %s, want idle", c.State())
	}
	if len(backend.Calls()) != 0 {
		t.Fatalf("calls = %v, want none", backend.Calls())
	}
}

// TestStartRejectsMalformedTiming checks delay and volume validation.
func TestStartRejectsMalformedTiming(t *testing.T) {
	c := newTestController(&fakeBackend{})

	for name, mutate := range map[string]func(*domain.TypingJob){
		"negative start": func(j *domain.TypingJob) { j.StartDelaySeconds = -1 },
		"negative char":  func(j *domain.TypingJob) { j.InterCharDelaySeconds = -0.1 },
		"negative line":  func(j *domain.TypingJob) { j.LineEndDelaySeconds = -2 },
		"volume":         func(j *domain.TypingJob) { j.Volume = 1.5 },
	} {
		job := inline("text")
		mutate(&job)
		_, err := c.Start(job, Hooks{})
		var jobErr *JobError
		if !errors.As(err, &jobErr) || !errors.Is(err, ErrInvalidJob) {
			t.Fatalf("%s: err = %v, want JobError", name, err)
		}
		if c.State() != domain.RunStateIdle {
			t.Fatalf("%s: state = %s, want idle", name, c.State())
		}
	}
}

// TestStartMissingFile checks unreadable sources fail before the countdown.
func TestStartMissingFile(t *testing.T) {
	c := newTestController(&fakeBackend{})

	job := domain.TypingJob{Source: domain.FileRef(filepath.Join(t.TempDir(), "missing.txt"))}
	_, err := c.Start(job, Hooks{})
	if !errors.Is(err, ErrSourceUnavailable) || !errors.Is(err, ErrInvalidJob) {
		t.Fatalf("err = %v, want source unavailable", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want wrapped not-exist", err)
	}
	if c.State() != domain.RunStateIdle {
		t.Fatalf("state = %s, want idle", c.State())
	}
}

// TestStartFileSourceCommitsEveryLine checks line order and universal newlines.
func TestStartFileSourceCommitsEveryLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snippet.txt")
	if err := os.WriteFile(path, []byte("x\r\ny\rz\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	backend := &fakeBackend{}
	progress := &progressLog{}
	c := newTestController(backend)

	if _, err := c.Start(domain.TypingJob{Source: domain.FileRef(path)}, Hooks{OnProgress: progress.add}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	result := waitResult(t, c)

	want := []string{"write:x", "commit", "write:y", "commit", "write:z", "commit"}
	if got := backend.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	if result.Lines != 3 {
		t.Fatalf("lines = %d, want 3", result.Lines)
	}

	var running []int
	for _, event := range progress.snapshot() {
		if event.Phase == domain.RunStateRunning {
			running = append(running, event.LineIndex)
			if event.TotalLines != 3 {
				t.Fatalf("total lines = %d, want 3", event.TotalLines)
			}
		}
	}
	if !reflect.DeepEqual(running, []int{0, 1, 2}) {
		t.Fatalf("running line events = %v", running)
	}
}

// TestStartWhileActive verifies the single-job guard leaves the first job alone.
func TestStartWhileActive(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestController(backend)

	job := inline("slow")
	job.StartDelaySeconds = 10
	first, err := c.Start(job, Hooks{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, err := c.Start(inline("other"), Hooks{}); !errors.Is(err, jobs.ErrJobAlreadyRunning) {
		t.Fatalf("second start err = %v, want %v", err, jobs.ErrJobAlreadyRunning)
	}
	if got := c.Current(); got.ID != first.ID || got.State != domain.RunStateCountingDown {
		t.Fatalf("current = %+v, want first job counting down", got)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	result := waitResult(t, c)
	if result.State != domain.RunStateStopped {
		t.Fatalf("state = %s, want stopped", result.State)
	}
	if len(backend.Calls()) != 0 {
		t.Fatalf("calls = %v, want none", backend.Calls())
	}
}

// TestControlRequestsWhileIdle checks illegal transitions are reported.
func TestControlRequestsWhileIdle(t *testing.T) {
	c := newTestController(&fakeBackend{})

	if err := c.Pause(); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("Pause() err = %v, want %v", err, jobs.ErrInvalidTransition)
	}
	if err := c.Resume(); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("Resume() err = %v, want %v", err, jobs.ErrInvalidTransition)
	}
	if err := c.Stop(); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("Stop() err = %v, want %v", err, jobs.ErrInvalidTransition)
	}
	if c.State() != domain.RunStateIdle {
		t.Fatalf("state = %s, want idle", c.State())
	}
	if _, err := c.Wait(context.Background()); !errors.Is(err, jobs.ErrNoRunningJob) {
		t.Fatalf("Wait() err = %v, want %v", err, jobs.ErrNoRunningJob)
	}
}

// TestStopDuringEmission checks nothing is emitted after Stop returns.
func TestStopDuringEmission(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestController(backend)

	job := inline("abcdefghijklmnopqrstuvwxyz")
	job.InterCharDelaySeconds = 0.02
	if _, err := c.Start(job, Hooks{}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "three writes", func() bool { return len(backend.Calls()) >= 3 })

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	stoppedAt := len(backend.Calls())
	result := waitResult(t, c)
	time.Sleep(50 * time.Millisecond)

	if got := len(backend.Calls()); got != stoppedAt {
		t.Fatalf("calls after stop = %d, want %d", got, stoppedAt)
	}
	if result.State != domain.RunStateStopped || result.Err != nil {
		t.Fatalf("result = %+v, want stopped without error", result)
	}
	if result.Chars >= 26 {
		t.Fatalf("chars = %d, want partial run", result.Chars)
	}
	if err := c.Stop(); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("second Stop() err = %v, want %v", err, jobs.ErrInvalidTransition)
	}
}

// TestStopReleasesHeldModifier checks a chord interrupted by stop leaves no key down.
func TestStopReleasesHeldModifier(t *testing.T) {
	backend := &fakeBackend{}
	c := New(backend, WithResolver(bangTable()), WithTiming(10*time.Millisecond, 500*time.Millisecond))

	if _, err := c.Start(inline("!"), Hooks{}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "shift press", func() bool { return len(backend.Calls()) >= 1 })

	start := time.Now()
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	result := waitResult(t, c)
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Fatalf("stop took %v, want interrupted settle delay", elapsed)
	}

	want := []string{"press:shift", "release:shift"}
	if got := backend.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	if result.State != domain.RunStateStopped {
		t.Fatalf("state = %s, want stopped", result.State)
	}
}

// TestEmissionFailureReleasesModifiers checks the failure path and its report.
func TestEmissionFailureReleasesModifiers(t *testing.T) {
	cause := errors.New("injection denied")
	backend := &fakeBackend{fail: func(call string) error {
		if call == "press:1" {
			return cause
		}
		return nil
	}}
	c := newTestController(backend)

	finished := make(chan Result, 1)
	if _, err := c.Start(inline("a!b"), Hooks{OnFinish: func(r Result) { finished <- r }}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	result := waitResult(t, c)

	want := []string{"write:a", "press:shift", "press:1", "release:shift"}
	if got := backend.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	if result.State != domain.RunStateFailed {
		t.Fatalf("state = %s, want failed", result.State)
	}
	if !errors.Is(result.Err, ErrEmissionFailure) || !errors.Is(result.Err, cause) {
		t.Fatalf("err = %v, want emission failure wrapping cause", result.Err)
	}
	var emitErr *EmissionError
	if !errors.As(result.Err, &emitErr) || emitErr.Char != '!' || emitErr.Action.Key != "1" {
		t.Fatalf("emission error = %+v", emitErr)
	}

	select {
	case got := <-finished:
		if got.State != domain.RunStateFailed {
			t.Fatalf("OnFinish state = %s, want failed", got.State)
		}
	default:
		t.Fatal("OnFinish not called before Wait returned")
	}
}

// TestPauseResumeContinuesWithoutSkipping checks pause/resume keeps the character stream intact.
func TestPauseResumeContinuesWithoutSkipping(t *testing.T) {
	backend := &fakeBackend{}
	progress := &progressLog{}
	c := newTestController(backend)

	job := inline("abcdefgh")
	job.InterCharDelaySeconds = 0.02
	job.StartDelaySeconds = 0.05
	if _, err := c.Start(job, Hooks{OnProgress: progress.add}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "two writes", func() bool { return len(backend.Calls()) >= 2 })

	if err := c.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if err := c.Pause(); !errors.Is(err, jobs.ErrInvalidTransition) {
		t.Fatalf("second Pause() err = %v, want %v", err, jobs.ErrInvalidTransition)
	}
	time.Sleep(60 * time.Millisecond)
	paused := len(backend.Calls())
	time.Sleep(60 * time.Millisecond)
	if got := len(backend.Calls()); got != paused {
		t.Fatalf("calls while paused grew from %d to %d", paused, got)
	}

	if err := c.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	result := waitResult(t, c)

	want := []string{"write:a", "write:b", "write:c", "write:d", "write:e", "write:f", "write:g", "write:h", "commit"}
	if got := backend.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	if result.State != domain.RunStateCompleted {
		t.Fatalf("state = %s, want completed", result.State)
	}

	seen := map[domain.RunState]bool{}
	for _, phase := range progress.phases() {
		seen[phase] = true
	}
	for _, phase := range []domain.RunState{
		domain.RunStateCountingDown,
		domain.RunStateRunning,
		domain.RunStatePaused,
		domain.RunStateResuming,
	} {
		if !seen[phase] {
			t.Fatalf("missing %s progress event in %v", phase, progress.phases())
		}
	}
}

// TestPauseAfterLastLineWaitsForResume checks a pause that arrives after the
// final line break holds the job open until resume, then completes it.
func TestPauseAfterLastLineWaitsForResume(t *testing.T) {
	backend := &fakeBackend{}
	progress := &progressLog{}
	c := newTestController(backend)

	job := inline("a")
	job.LineEndDelaySeconds = 0.3
	if _, err := c.Start(job, Hooks{OnProgress: progress.add}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "line commit", func() bool {
		calls := backend.Calls()
		return len(calls) > 0 && calls[len(calls)-1] == "commit"
	})
	if err := c.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}

	time.Sleep(400 * time.Millisecond)
	if state := c.State(); state != domain.RunStatePaused {
		t.Fatalf("state after line delay = %s, want paused", state)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() while paused err = %v, want worker still running", err)
	}

	if err := c.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	result := waitResult(t, c)
	if result.State != domain.RunStateCompleted {
		t.Fatalf("state = %s, want completed", result.State)
	}
	if result.Lines != 1 || result.Chars != 1 {
		t.Fatalf("result = %+v, want 1 line and 1 char", result)
	}
	if got, want := backend.Calls(), []string{"write:a", "commit"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}

	if _, err := c.Start(inline("b"), Hooks{}); err != nil {
		t.Fatalf("Start() after completion error = %v", err)
	}
	if next := waitResult(t, c); next.State != domain.RunStateCompleted {
		t.Fatalf("next state = %s, want completed", next.State)
	}
}

// TestWorkerNeverFinishesInActiveState checks every result carries a terminal state.
func TestWorkerNeverFinishesInActiveState(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestController(backend)

	job := inline("xy")
	job.LineEndDelaySeconds = 0.05
	finished := make(chan Result, 1)
	if _, err := c.Start(job, Hooks{OnFinish: func(r Result) { finished <- r }}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "line commit", func() bool {
		calls := backend.Calls()
		return len(calls) > 0 && calls[len(calls)-1] == "commit"
	})
	if err := c.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if err := c.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}

	select {
	case result := <-finished:
		if !result.State.Terminal() {
			t.Fatalf("result state = %s, want terminal", result.State)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("job did not finish")
	}
	if !c.Current().State.Terminal() {
		t.Fatalf("controller state = %s, want terminal", c.State())
	}
}

// TestStopWhilePaused checks stop wakes the paused worker.
func TestStopWhilePaused(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestController(backend)

	job := inline("abcdef")
	job.InterCharDelaySeconds = 0.02
	if _, err := c.Start(job, Hooks{}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "first write", func() bool { return len(backend.Calls()) >= 1 })
	if err := c.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	result := waitResult(t, c)
	if result.State != domain.RunStateStopped {
		t.Fatalf("state = %s, want stopped", result.State)
	}
}

// TestCountdownReportsRemainingTime checks countdown progress ticks.
func TestCountdownReportsRemainingTime(t *testing.T) {
	progress := &progressLog{}
	c := New(&fakeBackend{}, WithTiming(20*time.Millisecond, 0))

	job := inline("a")
	job.StartDelaySeconds = 0.1
	if _, err := c.Start(job, Hooks{OnProgress: progress.add}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitResult(t, c)

	var remaining []float64
	for _, event := range progress.snapshot() {
		if event.Phase == domain.RunStateCountingDown {
			remaining = append(remaining, event.RemainingSeconds)
		}
	}
	if len(remaining) < 3 {
		t.Fatalf("countdown events = %v, want several", remaining)
	}
	for i := 1; i < len(remaining); i++ {
		if remaining[i] > remaining[i-1] {
			t.Fatalf("remaining not decreasing: %v", remaining)
		}
	}
	if remaining[0] > 0.1 || remaining[len(remaining)-1] != 0 {
		t.Fatalf("remaining bounds = %v", remaining)
	}
}

// TestFeedbackTicksFollowSoundSetting checks ticks per character only with sound on.
func TestFeedbackTicksFollowSoundSetting(t *testing.T) {
	for _, sound := range []bool{true, false} {
		var mu sync.Mutex
		ticks := 0
		c := newTestController(&fakeBackend{})

		job := inline("hey\nyo")
		job.SoundEnabled = sound
		if _, err := c.Start(job, Hooks{OnTick: func() {
			mu.Lock()
			ticks++
			mu.Unlock()
		}}); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		waitResult(t, c)

		mu.Lock()
		got := ticks
		mu.Unlock()
		want := 0
		if sound {
			want = 5
		}
		if got != want {
			t.Fatalf("sound=%v ticks = %d, want %d", sound, got, want)
		}
	}
}

// TestRestartAfterCompletion checks terminal states accept the next job.
func TestRestartAfterCompletion(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestController(backend)

	if _, err := c.Start(inline("a"), Hooks{}); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	waitResult(t, c)
	if err := c.Acknowledge(); err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}
	if c.State() != domain.RunStateIdle {
		t.Fatalf("state = %s, want idle", c.State())
	}

	if _, err := c.Start(inline("b"), Hooks{}); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	waitResult(t, c)
	if _, err := c.Start(inline("c"), Hooks{}); err != nil {
		t.Fatalf("third Start() without acknowledge error = %v", err)
	}
	waitResult(t, c)

	want := []string{"write:a", "commit", "write:b", "commit", "write:c", "commit"}
	if got := backend.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

// TestSplitLines checks universal newline handling.
func TestSplitLines(t *testing.T) {
	cases := map[string][]string{
		"":             nil,
		"one":          {"one"},
		"one\n":        {"one"},
		"a\nb":         {"a", "b"},
		"a\r\nb\r\n":   {"a", "b"},
		"a\rb":         {"a", "b"},
		"a\n\nb":       {"a", "", "b"},
		"\n":           {""},
		"tail\n\n":     {"tail", ""},
		"mixed\r\n\rx": {"mixed", "", "x"},
	}
	for in, want := range cases {
		if got := SplitLines(in); !reflect.DeepEqual(got, want) {
			t.Fatalf("SplitLines(%q) = %q, want %q", in, got, want)
		}
	}
}
