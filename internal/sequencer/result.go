package sequencer

import (
	"time"

	"modelboot/pkg/types"
)

// Step names, in execution order.
const (
	StepDaemonLaunch = "daemon_launch"
	StepReadiness    = "readiness"
	StepFetch        = "fetch"
	StepApp          = "app"
)

// Outcome classifies how a step ended.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeFailed
	OutcomeTimedOut
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// StepResult is the typed outcome of one sequence step. Policy decisions
// (abort vs. continue) are made on this, never on implicit fallthrough.
type StepResult struct {
	Name      string
	Outcome   Outcome
	ExitCode  int
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// Status converts a result to its wire/journal representation.
func (r StepResult) Status() types.StepStatus {
	s := types.StepStatus{
		Name:       r.Name,
		Outcome:    r.Outcome.String(),
		ExitCode:   r.ExitCode,
		StartedAt:  r.StartedAt,
		DurationMS: r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return s
}
