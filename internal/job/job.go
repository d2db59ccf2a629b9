// Package job coordinates one child-process execution per trigger.
//
// Each job owns a single worker goroutine parked on a trigger channel, so
// there is never more than one live child per job and the job's state needs
// no locking beyond the phase word. A trigger moves the job Idle →
// Triggered; the worker runs the full exchange, stores the outcome, moves
// the job to Completed, and fires the resume callback. Acknowledging the
// outcome returns the job to Idle, which re-arms the trigger.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mattjoyce/asubexec/internal/child"
	"github.com/mattjoyce/asubexec/internal/pipeio"
	"github.com/mattjoyce/asubexec/internal/wire"
)

// Phase is the job's position in the trigger/resume cycle.
type Phase int32

const (
	PhaseIdle      Phase = iota // ready to accept a trigger
	PhaseTriggered              // a run is queued or in flight
	PhaseCompleted              // outcome stored, waiting for acknowledge
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseTriggered:
		return "triggered"
	case PhaseCompleted:
		return "completed"
	}
	return "unknown"
}

// Status classifies how a run ended.
type Status string

const (
	StatusOK            Status = "ok"
	StatusWarning       Status = "warning"        // completed, with shape mismatches
	StatusTimedOut      Status = "timed_out"      // the deadline expired mid-exchange
	StatusLaunchFailed  Status = "launch_failed"  // the child never started
	StatusProtocolError Status = "protocol_error" // the response stream was unusable
)

// Fields supplies the typed slots for one exchange. Implementations are
// read by the worker only while a run is in flight.
type Fields interface {
	Inputs() []wire.Slot
	Outputs() []wire.Slot
}

// Outcome is the stored result of one completed trigger.
type Outcome struct {
	Status   Status
	Pid      int // 0 when the child never started
	ExitCode int
	Warnings []wire.Warning
	Stderr   string
	Err      error
	Started  time.Time
	Finished time.Time
}

// Job runs one configured external program, one trigger at a time.
type Job struct {
	Name string

	spec   child.Spec
	fields Fields
	logger *slog.Logger

	phase     atomic.Int32
	triggerCh chan struct{}
	resume    func(*Job, Outcome)

	last    atomic.Pointer[Outcome]
	runSeen atomic.Int64
}

// New builds a job. The resume callback fires exactly once per trigger,
// after the outcome is stored and the phase is Completed; it may be nil.
//
// The first argument defaults to the job's own name so a bare child can
// tell which job invoked it; configured args override.
func New(name string, spec child.Spec, fields Fields, logger *slog.Logger, resume func(*Job, Outcome)) *Job {
	if len(spec.Args) == 0 {
		spec.Args = []string{name}
	}
	return &Job{
		Name:      name,
		spec:      spec,
		fields:    fields,
		logger:    logger.With("job", name),
		triggerCh: make(chan struct{}, 1),
		resume:    resume,
	}
}

// Phase returns the job's current phase.
func (j *Job) Phase() Phase { return Phase(j.phase.Load()) }

// Last returns the most recent outcome, or nil before the first run.
func (j *Job) Last() *Outcome { return j.last.Load() }

// Runs returns how many triggers have completed.
func (j *Job) Runs() int64 { return j.runSeen.Load() }

// Trigger requests a run. It never blocks: false means the job was not
// Idle (a run is in flight or an outcome awaits acknowledgement).
func (j *Job) Trigger() bool {
	if !j.phase.CompareAndSwap(int32(PhaseIdle), int32(PhaseTriggered)) {
		return false
	}
	j.triggerCh <- struct{}{} // capacity 1, and only Idle→Triggered sends
	return true
}

// Acknowledge consumes a Completed outcome, returning the job to Idle.
// It reports false if there was nothing to acknowledge.
func (j *Job) Acknowledge() bool {
	return j.phase.CompareAndSwap(int32(PhaseCompleted), int32(PhaseIdle))
}

// Run parks the worker on the trigger channel until ctx is cancelled.
// It must be called exactly once, on its own goroutine.
func (j *Job) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-j.triggerCh:
			outcome := j.execute(ctx)
			j.last.Store(&outcome)
			j.runSeen.Add(1)
			j.phase.Store(int32(PhaseCompleted))
			if j.resume != nil {
				j.resume(j, outcome)
			}
		}
	}
}

// execute performs one full exchange: launch, write request, read
// response, supervise the child to its end.
func (j *Job) execute(ctx context.Context) Outcome {
	started := time.Now()

	proc, err := child.Launch(j.spec)
	if err != nil {
		var le *child.LaunchError
		code := child.ExitSetup
		if errors.As(err, &le) {
			code = le.Code
		}
		j.logger.Error("launch failed", "error", err)
		return Outcome{
			Status:   StatusLaunchFailed,
			ExitCode: code,
			Err:      err,
			Started:  started,
			Finished: time.Now(),
		}
	}
	j.logger.Debug("child started", "pid", proc.Pid, "deadline", proc.Deadline)

	runCtx, cancel := context.WithDeadline(ctx, proc.Deadline)
	defer cancel()

	// A failed request write is logged but does not abort: the response
	// read decides the run's fate, and a child may legitimately exit
	// without draining its stdin.
	if err := wire.EncodeRequest(pipeio.NewWriter(runCtx, proc.Stdin), j.fields.Inputs(), j.fields.Outputs()); err != nil {
		j.logger.Warn("request write failed", "pid", proc.Pid, "error", err)
	}
	proc.Stdin.Close()

	warnings, decodeErr := wire.DecodeResponse(pipeio.NewReader(runCtx, proc.Stdout), j.fields.Outputs())
	proc.Stdout.Close()

	for _, w := range warnings {
		j.logger.Warn("field shape mismatch",
			"field", w.Key(),
			"expected_type", w.Expected.String(), "received_type", w.Received.String(),
			"expected_count", w.ExpectedCount, "received_count", w.ReceivedCount)
	}

	res := proc.Supervise(ctx, j.logger)

	outcome := Outcome{
		Pid:      proc.Pid,
		ExitCode: res.ExitCode,
		Warnings: warnings,
		Stderr:   proc.Stderr(),
		Err:      decodeErr,
		Started:  started,
		Finished: time.Now(),
	}
	switch {
	case decodeErr == nil:
		outcome.Status = StatusOK
		if len(warnings) > 0 {
			outcome.Status = StatusWarning
		}
	case errors.Is(decodeErr, context.DeadlineExceeded), errors.Is(decodeErr, context.Canceled):
		outcome.Status = StatusTimedOut
		j.logger.Warn("run timed out", "pid", proc.Pid, "exit_code", res.ExitCode)
	default:
		outcome.Status = StatusProtocolError
		outcome.Err = fmt.Errorf("decode response: %w", decodeErr)
		j.logger.Error("response unusable", "pid", proc.Pid, "error", decodeErr)
	}

	j.logger.Info("run finished",
		"status", string(outcome.Status),
		"exit_code", outcome.ExitCode,
		"warnings", len(warnings),
		"duration", outcome.Finished.Sub(started))
	return outcome
}
