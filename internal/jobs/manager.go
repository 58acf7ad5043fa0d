package jobs

import (
	"errors"
	"fmt"
	"sync"

	"auto-typer/internal/domain"
)

// ErrJobAlreadyRunning is returned when starting a second active job.
var ErrJobAlreadyRunning = errors.New("job already running")

// ErrNoRunningJob is returned when a control request arrives with no active job.
var ErrNoRunningJob = errors.New("no running job")

// ErrInvalidTransition is returned for state changes the machine does not allow.
var ErrInvalidTransition = errors.New("invalid transition")

// Manager tracks the single allowed active job, its state, and the pause
// gate shared with the worker.
type Manager struct {
	mu      sync.RWMutex
	current domain.Job
	gate    chan struct{}
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Job{
			State: domain.RunStateIdle,
		},
	}
}

// Start creates a new job and moves it to the countdown state.
func (m *Manager) Start(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isActive(m.current.State) {
		return ErrJobAlreadyRunning
	}

	m.current = domain.Job{
		ID:    jobID,
		State: domain.RunStateCountingDown,
	}
	m.gate = nil
	return nil
}

// Transition validates and applies a state change for the current job.
func (m *Manager) Transition(state domain.RunState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(state)
}

// Pause moves a running job to paused and arms the pause gate.
func (m *Manager) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transitionLocked(domain.RunStatePaused); err != nil {
		return err
	}
	m.gate = make(chan struct{})
	return nil
}

// Resume moves a paused job to resuming and opens the pause gate.
func (m *Manager) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transitionLocked(domain.RunStateResuming); err != nil {
		return err
	}
	m.openGateLocked()
	return nil
}

// Stop moves an active job to stopped and opens the pause gate.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isActive(m.current.State) {
		return fmt.Errorf("%w: %w", ErrInvalidTransition, ErrNoRunningJob)
	}
	m.current.State = domain.RunStateStopped
	m.openGateLocked()
	return nil
}

// Gate returns the current state together with the pause gate. The gate is
// nil unless the job is paused and is closed when the pause ends.
func (m *Manager) Gate() (domain.RunState, <-chan struct{}) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current.State != domain.RunStatePaused {
		return m.current.State, nil
	}
	return m.current.State, m.gate
}

// Current returns a snapshot of the current job.
func (m *Manager) Current() domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Acknowledge returns a finished job to idle.
func (m *Manager) Acknowledge() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.transitionLocked(domain.RunStateIdle); err != nil {
		return err
	}
	m.current = domain.Job{State: domain.RunStateIdle}
	return nil
}

// IsActive reports whether a job is between start and a terminal state.
func (m *Manager) IsActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isActive(m.current.State)
}

func (m *Manager) transitionLocked(state domain.RunState) error {
	if m.current.ID == "" && state != domain.RunStateIdle {
		return fmt.Errorf("%w: %w", ErrInvalidTransition, ErrNoRunningJob)
	}
	if !isValidTransition(m.current.State, state) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.current.State, state)
	}

	m.current.State = state
	return nil
}

func (m *Manager) openGateLocked() {
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// isActive checks if a state represents a job in progress.
func isActive(state domain.RunState) bool {
	switch state {
	case domain.RunStateCountingDown, domain.RunStateRunning, domain.RunStatePaused, domain.RunStateResuming:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed state machine edges.
func isValidTransition(from, to domain.RunState) bool {
	switch from {
	case domain.RunStateIdle:
		return to == domain.RunStateCountingDown
	case domain.RunStateCountingDown:
		return to == domain.RunStateRunning || to == domain.RunStateStopped || to == domain.RunStateFailed
	case domain.RunStateRunning:
		return to == domain.RunStatePaused || to == domain.RunStateCompleted ||
			to == domain.RunStateStopped || to == domain.RunStateFailed
	case domain.RunStatePaused:
		return to == domain.RunStateResuming || to == domain.RunStateStopped
	case domain.RunStateResuming:
		return to == domain.RunStateRunning || to == domain.RunStateStopped || to == domain.RunStateFailed
	case domain.RunStateCompleted, domain.RunStateFailed, domain.RunStateStopped:
		return to == domain.RunStateCountingDown || to == domain.RunStateIdle
	default:
		return false
	}
}
