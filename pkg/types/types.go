package types

import "time"

// RunState names a phase of the startup sequence. Transitions are strictly
// forward: start, daemon_launched, ready, artifact_fetched, app_running,
// terminated. No transition reverses.
type RunState string

const (
	StateStart           RunState = "start"
	StateDaemonLaunched  RunState = "daemon_launched"
	StateReady           RunState = "ready"
	StateArtifactFetched RunState = "artifact_fetched"
	StateAppRunning      RunState = "app_running"
	StateTerminated      RunState = "terminated"
)

// StepStatus is the externally visible record of one sequence step, as
// reported by GET /status and persisted to the run journal.
type StepStatus struct {
	// Step name: daemon_launch, readiness, fetch or app.
	// example: fetch
	Name string `json:"name" example:"fetch"`
	// Outcome: ok, failed, timed_out or skipped.
	// example: ok
	Outcome string `json:"outcome" example:"ok"`
	// Exit code of the underlying subprocess, when one ran.
	// example: 0
	ExitCode int `json:"exit_code" example:"0"`
	// Error message for failed or timed_out outcomes.
	Error string `json:"error,omitempty"`
	// When the step began.
	StartedAt time.Time `json:"started_at"`
	// Wall-clock duration of the step in milliseconds.
	DurationMS int64 `json:"duration_ms"`
}

// Snapshot summarizes the current run for GET /status.
type Snapshot struct {
	// Unique id of this run.
	RunID string `json:"run_id"`
	// Model identifier being materialized.
	// example: llama3.1:8b
	Model string `json:"model" example:"llama3.1:8b"`
	// Current state of the sequence.
	State RunState `json:"state"`
	// When the sequence started.
	StartedAt time.Time `json:"started_at"`
	// Finished steps, in execution order.
	Steps []StepStatus `json:"steps"`
}

// RunRecord is one journal row, as listed by `modelboot history`.
type RunRecord struct {
	ID         string    `json:"id"`
	Model      string    `json:"model"`
	State      string    `json:"state"`
	ExitCode   int       `json:"exit_code"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: status unavailable
	Error string `json:"error" example:"status unavailable"`
	// HTTP status code.
	// example: 503
	Code int `json:"code" example:"503"`
}
