// Package child launches and supervises the external program behind a job.
//
// A child is started once per trigger with its stdin and stdout bound to
// fresh pipes; the parent keeps the far ends for the request/response
// exchange. Stderr is captured into a bounded buffer for diagnostics.
// Termination never relies on the child cooperating: after I/O completes a
// supervisor escalates from a polite SIGTERM to SIGKILL on a fixed clock.
package child

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Reserved exit codes, reported when the child's own exit status never
// became available. They sit above the POSIX 0..127 range so they cannot
// collide with a well-behaved program's status.
const (
	ExitSetup   = 128 // pipes or argument validation failed before start
	ExitExec    = 129 // the program could not be started
	ExitTimeout = 130 // the child had to be signalled to die
	ExitWait    = 131 // the child's status could not be collected
)

// MaxArgs caps the argument list after the program path.
const MaxArgs = 9

// stderrLimit bounds how much child stderr is retained.
const stderrLimit = 64 * 1024

// LaunchError is a failure that occurred before or during process start,
// carrying the reserved exit code a caller should record for the run.
type LaunchError struct {
	Code int
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch failed (code %d): %v", e.Code, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Spec describes what to run.
type Spec struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string // nil inherits the parent environment
	Timeout time.Duration
}

// Proc is a started child plus the parent's ends of its pipes.
//
// Stdin is the write end feeding the child's stdin; Stdout is the read end
// draining its stdout. The caller owns closing both (closing Stdin is the
// end-of-request signal the child waits for). Deadline is absolute, fixed
// at launch.
type Proc struct {
	Pid      int
	Stdin    *os.File
	Stdout   *os.File
	Deadline time.Time

	cmd      *exec.Cmd
	stderr   *boundedBuffer
	waitCh   chan error
	waitOnce sync.Once
}

// Launch validates the spec, wires the pipes, and starts the program.
// The deadline is computed here, before the first byte moves, so slow
// request writes eat into the same budget as everything else.
func Launch(spec Spec) (*Proc, error) {
	if spec.Path == "" {
		return nil, &LaunchError{Code: ExitSetup, Err: fmt.Errorf("empty program path")}
	}
	if len(spec.Args) > MaxArgs {
		return nil, &LaunchError{
			Code: ExitSetup,
			Err:  fmt.Errorf("%d arguments exceeds the limit of %d", len(spec.Args), MaxArgs),
		}
	}

	inR, inW, err := os.Pipe()
	if err != nil {
		return nil, &LaunchError{Code: ExitSetup, Err: fmt.Errorf("stdin pipe: %w", err)}
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		inR.Close()
		inW.Close()
		return nil, &LaunchError{Code: ExitSetup, Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderr := &boundedBuffer{limit: stderrLimit}

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Stdin = inR
	cmd.Stdout = outW
	cmd.Stderr = stderr
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env

	started := time.Now()
	if err := cmd.Start(); err != nil {
		inR.Close()
		inW.Close()
		outR.Close()
		outW.Close()
		return nil, &LaunchError{Code: ExitExec, Err: fmt.Errorf("start %s: %w", spec.Path, err)}
	}

	// The child holds its own copies now.
	inR.Close()
	outW.Close()

	p := &Proc{
		Pid:      cmd.Process.Pid,
		Stdin:    inW,
		Stdout:   outR,
		Deadline: started.Add(spec.Timeout),
		cmd:      cmd,
		stderr:   stderr,
		waitCh:   make(chan error, 1),
	}
	p.waitOnce.Do(func() {
		go func() { p.waitCh <- cmd.Wait() }()
	})
	return p, nil
}

// Stderr returns the captured child stderr, truncated to the retention
// limit.
func (p *Proc) Stderr() string { return p.stderr.String() }

// boundedBuffer keeps the first limit bytes written and counts the rest.
type boundedBuffer struct {
	mu      sync.Mutex
	limit   int
	buf     []byte
	dropped int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room := b.limit - len(b.buf)
	if room > 0 {
		if room > len(p) {
			room = len(p)
		}
		b.buf = append(b.buf, p[:room]...)
		b.dropped += len(p) - room
	} else {
		b.dropped += len(p)
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dropped > 0 {
		return fmt.Sprintf("%s\n... (%d bytes truncated)", b.buf, b.dropped)
	}
	return string(b.buf)
}
