package child

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"syscall"
	"time"
)

const (
	// pollInterval is how often the supervisor rechecks the child.
	pollInterval = 5 * time.Millisecond
	// termGrace is how long after supervisor entry a still-running child
	// is asked politely to exit.
	termGrace = 100 * time.Millisecond
	// killGrace is how long after supervisor entry the child is killed
	// outright and reaped.
	killGrace = 2100 * time.Millisecond
)

// Result is the outcome of supervising one child to completion.
type Result struct {
	ExitCode int
	Forced   bool // a signal was needed to end the child
}

// Supervise waits for the child to exit, escalating on a fixed clock
// measured from entry: SIGTERM after 100 ms, SIGKILL plus a blocking reap
// after 2.1 s. Once the polite signal has gone out the reported exit code
// is pinned to ExitTimeout regardless of what status the child dies with.
//
// If ctx is cancelled (daemon shutdown), the child is killed and reaped
// immediately rather than orphaned.
func (p *Proc) Supervise(ctx context.Context, logger *slog.Logger) Result {
	entry := time.Now()
	termAt := entry.Add(termGrace)
	killAt := entry.Add(killGrace)
	termSent := false

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case waitErr := <-p.waitCh:
			return p.finish(waitErr, termSent, logger)

		case <-ctx.Done():
			logger.Warn("shutdown while child running, killing", "pid", p.Pid)
			return p.killAndReap(logger)

		case now := <-ticker.C:
			if now.After(killAt) {
				logger.Warn("child ignored SIGTERM, killing", "pid", p.Pid)
				return p.killAndReap(logger)
			}
			if !termSent && now.After(termAt) {
				logger.Warn("child still running, sending SIGTERM", "pid", p.Pid)
				if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
					logger.Error("SIGTERM failed", "pid", p.Pid, "error", err)
				}
				termSent = true
			}
		}
	}
}

// finish translates the wait outcome into a Result.
func (p *Proc) finish(waitErr error, termSent bool, logger *slog.Logger) Result {
	if termSent {
		// The child only died because it was told to.
		return Result{ExitCode: ExitTimeout, Forced: true}
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		return Result{ExitCode: 0}
	case errors.As(waitErr, &exitErr):
		code := exitErr.ExitCode()
		if code < 0 {
			// Killed by an uninstigated signal.
			code = ExitWait
		}
		return Result{ExitCode: code}
	default:
		logger.Error("collecting child status failed", "pid", p.Pid, "error", waitErr)
		return Result{ExitCode: ExitWait}
	}
}

// killAndReap force-kills the child and blocks until its status is
// collected, so no zombie outlives the supervisor.
func (p *Proc) killAndReap(logger *slog.Logger) Result {
	if err := p.cmd.Process.Kill(); err != nil {
		logger.Error("SIGKILL failed", "pid", p.Pid, "error", err)
	}
	<-p.waitCh
	return Result{ExitCode: ExitTimeout, Forced: true}
}
