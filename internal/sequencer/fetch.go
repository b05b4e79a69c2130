package sequencer

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"modelboot/internal/ollama"
	"modelboot/internal/proc"
)

// Fetcher materializes a model artifact. It returns the subprocess exit code
// (0 for API-based fetches that succeed) and an error when the fetch could
// not run or reported failure.
type Fetcher interface {
	Fetch(ctx context.Context, model string) (int, error)
}

// CommandFetcher shells out, e.g. `ollama pull <model>`.
type CommandFetcher struct {
	Command []string // command plus fixed args; model is appended
	Timeout time.Duration
	Stdout  io.Writer
	Stderr  io.Writer
}

func (f CommandFetcher) Fetch(ctx context.Context, model string) (int, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	args := append(append([]string(nil), f.Command[1:]...), model)
	return proc.Run(ctx, proc.Cmd{
		Path:   f.Command[0],
		Args:   args,
		Stdout: f.Stdout,
		Stderr: f.Stderr,
	})
}

// APIFetcher pulls through the daemon's own HTTP API, streaming progress
// into the log.
type APIFetcher struct {
	Client  *ollama.Client
	Timeout time.Duration
	Log     zerolog.Logger
}

func (f APIFetcher) Fetch(ctx context.Context, model string) (int, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	var last string
	err := f.Client.Pull(ctx, model, func(p ollama.PullProgress) {
		if p.Status == last {
			return
		}
		last = p.Status
		ev := f.Log.Debug().Str("status", p.Status)
		if p.Total > 0 {
			ev = ev.Int64("completed", p.Completed).Int64("total", p.Total)
		}
		ev.Msg("pull progress")
	})
	if err != nil {
		return 1, err
	}
	return 0, nil
}
