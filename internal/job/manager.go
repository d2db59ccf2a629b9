package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mattjoyce/asubexec/internal/child"
)

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrBusy       = errors.New("job is busy")
)

// Sink receives every completed run, after the outcome is stored and
// before the job is re-armed. Implementations must not block for long;
// they run on the job's worker goroutine.
type Sink interface {
	RunCompleted(job *Job, out Outcome)
}

// Manager owns the full set of configured jobs and their workers.
type Manager struct {
	logger *slog.Logger
	sink   Sink

	mu   sync.RWMutex
	jobs map[string]*Job

	wg sync.WaitGroup
}

// NewManager builds an empty manager. sink may be nil.
func NewManager(logger *slog.Logger, sink Sink) *Manager {
	return &Manager{
		logger: logger.With("component", "manager"),
		sink:   sink,
		jobs:   make(map[string]*Job),
	}
}

// Add registers a job. Jobs must be added before Start.
func (m *Manager) Add(name string, spec child.Spec, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[name]; exists {
		return fmt.Errorf("duplicate job %q", name)
	}
	m.jobs[name] = New(name, spec, fields, m.logger, m.resume)
	return nil
}

// resume is phase two of the handoff: hand the stored outcome to the sink,
// then acknowledge so the job can be triggered again.
func (m *Manager) resume(j *Job, out Outcome) {
	if m.sink != nil {
		m.sink.RunCompleted(j, out)
	}
	j.Acknowledge()
}

// Start launches one worker per job. It returns immediately; workers stop
// when ctx is cancelled and Wait returns once they are all parked.
func (m *Manager) Start(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, j := range m.jobs {
		m.wg.Add(1)
		go func(j *Job) {
			defer m.wg.Done()
			j.Run(ctx)
		}(j)
	}
	m.logger.Info("workers started", "jobs", len(m.jobs))
}

// Wait blocks until every worker has stopped.
func (m *Manager) Wait() { m.wg.Wait() }

// Trigger fires the named job. ErrBusy means the job is mid-cycle; the
// caller decides whether that is an error worth surfacing.
func (m *Manager) Trigger(name string) error {
	j, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if !j.Trigger() {
		return fmt.Errorf("%w: %s (phase %s)", ErrBusy, name, j.Phase())
	}
	return nil
}

// Get returns the named job.
func (m *Manager) Get(name string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[name]
	return j, ok
}

// List returns all jobs sorted by name.
func (m *Manager) List() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}
