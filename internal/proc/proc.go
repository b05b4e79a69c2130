package proc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Process is an owned background process. Unlike a plain exec.Cmd it is
// reaped as soon as it exits and can be stopped with a SIGTERM grace period.
type Process struct {
	name string
	cmd  *exec.Cmd
	done chan struct{}
	werr error
}

// StartOptions configures how a background process is spawned.
type StartOptions struct {
	Env    map[string]string // additional env vars
	Dir    string            // working directory
	Stdout io.Writer         // defaults to os.Stdout
	Stderr io.Writer         // defaults to os.Stderr
}

// Start spawns name with args detached from the caller's stdin. The returned
// Process keeps running independently; use Stop to terminate it.
func Start(name string, args []string, opts StartOptions) (*Process, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdin = nil
	cmd.Stdout = opts.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = opts.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	cmd.Env = os.Environ()
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", name, err)
	}
	p := &Process{name: name, cmd: cmd, done: make(chan struct{})}
	go func() {
		p.werr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Name returns the executable name the process was started with.
func (p *Process) Name() string { return p.name }

// PID returns the operating system process id.
func (p *Process) PID() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Exited reports whether the process has terminated.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the process exits and returns its wait error.
func (p *Process) Wait() error {
	<-p.done
	return p.werr
}

// Stop terminates the process: SIGTERM first, then SIGKILL once grace
// elapses. It is a no-op if the process already exited.
func (p *Process) Stop(grace time.Duration) error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	if p.Exited() {
		return nil
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already gone between the Exited check and the signal.
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return p.cmd.Process.Kill()
	}
	select {
	case <-p.done:
		return nil
	case <-time.After(grace):
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-p.done
	return nil
}
