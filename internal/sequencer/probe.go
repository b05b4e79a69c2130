package sequencer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrReadinessTimeout reports that the daemon did not become ready within
// the configured bound. It is distinguishable from downstream connection
// errors so failures stay attributable to the real cause.
var ErrReadinessTimeout = errors.New("daemon readiness timed out")

// ReadinessProbe decides when the serving daemon counts as ready.
type ReadinessProbe interface {
	Wait(ctx context.Context) error
}

// DelayProbe assumes readiness after a fixed delay. This reproduces the
// original sequence's behavior; a zero delay returns immediately.
type DelayProbe struct {
	Delay time.Duration
}

func (p DelayProbe) Wait(ctx context.Context) error {
	if p.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(p.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HTTPProbe polls a health URL until it answers with the wanted status or
// the timeout elapses.
type HTTPProbe struct {
	URL      string
	Want     int
	Interval time.Duration
	Timeout  time.Duration
	Client   *http.Client
}

func (p HTTPProbe) Wait(ctx context.Context) error {
	want := p.Want
	if want == 0 {
		want = http.StatusOK
	}
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == want {
				return nil
			}
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s did not return %d within %s", ErrReadinessTimeout, p.URL, want, p.Timeout)
			}
			return ctx.Err()
		}
	}
}

// chain runs probes in order, failing on the first error.
type chain []ReadinessProbe

func (c chain) Wait(ctx context.Context) error {
	for _, p := range c {
		if err := p.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
