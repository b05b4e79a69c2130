package proc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Cmd describes one foreground command invocation.
type Cmd struct {
	Path   string
	Args   []string
	Env    map[string]string // additional env vars
	Dir    string            // working directory
	Stdout io.Writer         // defaults to os.Stdout
	Stderr io.Writer         // defaults to os.Stderr
	Stream bool              // if true, copy output line by line through a scanner
}

// Run executes c to completion and returns its exit code. A nonzero exit is
// not an error: err is non-nil only when the command could not be spawned or
// was interrupted by something other than its own exit (e.g. ctx cancel).
func Run(ctx context.Context, c Cmd) (int, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	cmd.Env = os.Environ()
	for k, v := range c.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	stdout := c.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := c.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	if c.Stream {
		outPipe, _ := cmd.StdoutPipe()
		errPipe, _ := cmd.StderrPipe()
		if err := cmd.Start(); err != nil {
			return -1, fmt.Errorf("spawn %s: %w", c.Path, err)
		}
		done := make(chan struct{}, 2)
		go func() { streamLines(stdout, outPipe); done <- struct{}{} }()
		go func() { streamLines(stderr, errPipe); done <- struct{}{} }()
		<-done
		<-done
		return exitCode(ctx, cmd.Wait())
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("spawn %s: %w", c.Path, err)
	}
	return exitCode(ctx, cmd.Wait())
}

// exitCode translates a Wait error into (code, err). Context cancellation
// takes precedence so callers can tell a timeout from a real exit.
func exitCode(ctx context.Context, werr error) (int, error) {
	if werr == nil {
		return 0, nil
	}
	if ctx.Err() != nil {
		return -1, ctx.Err()
	}
	var ee *exec.ExitError
	if errors.As(werr, &ee) {
		return ee.ExitCode(), nil
	}
	return -1, werr
}

func streamLines(w io.Writer, r io.Reader) {
	if r == nil {
		return
	}
	s := bufio.NewScanner(r)
	for s.Scan() {
		fmt.Fprintln(w, s.Text())
	}
}
