// Package sequencer implements the startup sequence for a local
// model-serving daemon: launch the daemon, wait until it is ready, pull the
// model artifact, then run the application in the foreground and propagate
// its exit code. The daemon, the fetch step and the application are opaque
// external processes.
package sequencer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"modelboot/internal/config"
	"modelboot/internal/ollama"
	"modelboot/internal/proc"
	"modelboot/pkg/types"
)

// Config holds the sequencer's runtime parameters in native types.
type Config struct {
	DaemonCommand   []string
	DaemonHealthURL string
	Model           string
	FetchCommand    []string // empty means pull via the daemon API
	OnFetchFailure  string   // config.FetchContinue or config.FetchAbort
	AppCommand      []string

	StartupDelay     time.Duration
	ReadinessTimeout time.Duration
	PollInterval     time.Duration
	FetchTimeout     time.Duration
	StopGrace        time.Duration
}

// FromFileConfig converts the file/flag representation.
func FromFileConfig(fc config.Config) Config {
	return Config{
		DaemonCommand:    fc.DaemonCommand,
		DaemonHealthURL:  fc.DaemonHealthURL,
		Model:            fc.Model,
		FetchCommand:     fc.FetchCommand,
		OnFetchFailure:   fc.OnFetchFailure,
		AppCommand:       fc.AppCommand,
		StartupDelay:     time.Duration(fc.StartupDelayMS) * time.Millisecond,
		ReadinessTimeout: time.Duration(fc.ReadinessTimeoutMS) * time.Millisecond,
		PollInterval:     time.Duration(fc.PollIntervalMS) * time.Millisecond,
		FetchTimeout:     time.Duration(fc.FetchTimeoutMS) * time.Millisecond,
		StopGrace:        time.Duration(fc.StopGraceMS) * time.Millisecond,
	}
}

// Recorder receives run and step records, typically backed by the journal.
type Recorder interface {
	BeginRun(ctx context.Context, id, model string, startedAt time.Time) error
	RecordStep(ctx context.Context, runID string, step types.StepStatus) error
	FinishRun(ctx context.Context, id string, state string, exitCode int, finishedAt time.Time) error
}

// Sequencer drives one startup sequence. Safe for concurrent snapshots
// while Run executes.
type Sequencer struct {
	cfg   Config
	log   zerolog.Logger
	procs *proc.Manager

	// overridable for tests
	probe    ReadinessProbe
	fetcher  Fetcher
	recorder Recorder

	mu        sync.Mutex
	runID     string
	state     types.RunState
	startedAt time.Time
	steps     []types.StepStatus
}

func New(cfg Config, log zerolog.Logger) *Sequencer {
	return &Sequencer{
		cfg:   cfg,
		log:   log,
		procs: proc.NewManager(),
		state: types.StateStart,
	}
}

// SetRecorder installs a run recorder. A nil recorder disables journaling.
func (s *Sequencer) SetRecorder(r Recorder) { s.recorder = r }

// SetProbe overrides the readiness probe derived from the config.
func (s *Sequencer) SetProbe(p ReadinessProbe) { s.probe = p }

// SetFetcher overrides the fetcher derived from the config.
func (s *Sequencer) SetFetcher(f Fetcher) { s.fetcher = f }

// Ready reports whether the sequence has reached the ready state.
func (s *Sequencer) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case types.StateReady, types.StateArtifactFetched, types.StateAppRunning:
		return true
	}
	return false
}

// Snapshot returns the current run state for the status surface.
func (s *Sequencer) Snapshot() types.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.Snapshot{
		RunID:     s.runID,
		Model:     s.cfg.Model,
		State:     s.state,
		StartedAt: s.startedAt,
		Steps:     append([]types.StepStatus(nil), s.steps...),
	}
}

// Run executes the sequence and returns the process exit code the sequencer
// should terminate with. The code equals the application's exit code when
// the application is reached. The daemon is stopped on every return path.
func (s *Sequencer) Run(ctx context.Context) (int, error) {
	s.begin(ctx)

	// 1. Launch the serving daemon in the background.
	s.log.Info().Strs("command", s.cfg.DaemonCommand).Msg("starting serving daemon")
	res := s.launchDaemon()
	s.record(ctx, res)
	if res.Outcome != OutcomeOK {
		s.finish(ctx, 1)
		return 1, res.Err
	}
	s.setState(types.StateDaemonLaunched)
	defer func() {
		if err := s.procs.StopAll(s.cfg.StopGrace); err != nil {
			s.log.Warn().Err(err).Msg("stopping serving daemon")
		}
	}()

	// 2. Wait for readiness.
	s.log.Info().Dur("delay", s.cfg.StartupDelay).Str("health_url", s.cfg.DaemonHealthURL).
		Msg("waiting for daemon readiness")
	res = s.awaitReadiness(ctx)
	s.record(ctx, res)
	if res.Outcome != OutcomeOK {
		s.finish(ctx, 1)
		return 1, res.Err
	}
	s.setState(types.StateReady)

	// 3. Fetch the model artifact.
	s.log.Info().Str("model", s.cfg.Model).Msg("pulling model artifact")
	res = s.fetchArtifact(ctx)
	s.record(ctx, res)
	if res.Outcome != OutcomeOK {
		if s.cfg.OnFetchFailure == config.FetchAbort {
			code := res.ExitCode
			if code <= 0 {
				code = 1
			}
			s.finish(ctx, code)
			return code, fmt.Errorf("artifact fetch failed: %w", res.Err)
		}
		s.log.Warn().Err(res.Err).Int("exit_code", res.ExitCode).
			Msg("artifact fetch failed; continuing per policy")
	}
	s.setState(types.StateArtifactFetched)

	// 4. Run the application and adopt its exit code.
	s.log.Info().Strs("command", s.cfg.AppCommand).Msg("starting application")
	s.setState(types.StateAppRunning)
	code, res := s.runApplication(ctx)
	s.record(ctx, res)
	s.finish(ctx, code)
	if res.Err != nil {
		return code, res.Err
	}
	return code, nil
}

func (s *Sequencer) launchDaemon() StepResult {
	start := time.Now()
	p, err := proc.Start(s.cfg.DaemonCommand[0], s.cfg.DaemonCommand[1:], proc.StartOptions{})
	res := StepResult{Name: StepDaemonLaunch, StartedAt: start, Duration: time.Since(start)}
	if err != nil {
		res.Outcome = OutcomeFailed
		res.ExitCode = -1
		res.Err = err
		return res
	}
	s.procs.Track(p)
	s.log.Debug().Int("pid", p.PID()).Msg("daemon launched")
	return res
}

func (s *Sequencer) awaitReadiness(ctx context.Context) StepResult {
	start := time.Now()
	probe := s.probe
	if probe == nil {
		probe = s.buildProbe()
	}
	res := StepResult{Name: StepReadiness, StartedAt: start}
	if err := probe.Wait(ctx); err != nil {
		res.Duration = time.Since(start)
		res.Err = err
		res.ExitCode = -1
		if isTimeout(err) {
			res.Outcome = OutcomeTimedOut
		} else {
			res.Outcome = OutcomeFailed
		}
		return res
	}
	res.Duration = time.Since(start)
	return res
}

func (s *Sequencer) buildProbe() ReadinessProbe {
	var probes chain
	if s.cfg.StartupDelay > 0 {
		probes = append(probes, DelayProbe{Delay: s.cfg.StartupDelay})
	}
	if s.cfg.DaemonHealthURL != "" {
		probes = append(probes, HTTPProbe{
			URL:      s.cfg.DaemonHealthURL,
			Interval: s.cfg.PollInterval,
			Timeout:  s.cfg.ReadinessTimeout,
		})
	}
	return probes
}

func (s *Sequencer) fetchArtifact(ctx context.Context) StepResult {
	start := time.Now()
	fetcher := s.fetcher
	if fetcher == nil {
		fetcher = s.buildFetcher()
	}
	code, err := fetcher.Fetch(ctx, s.cfg.Model)
	res := StepResult{Name: StepFetch, StartedAt: start, Duration: time.Since(start), ExitCode: code}
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
	} else if code != 0 {
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("fetch exited with status %d", code)
	}
	return res
}

func (s *Sequencer) buildFetcher() Fetcher {
	if len(s.cfg.FetchCommand) > 0 {
		return CommandFetcher{Command: s.cfg.FetchCommand, Timeout: s.cfg.FetchTimeout}
	}
	base := apiBaseURL(s.cfg.DaemonHealthURL)
	return APIFetcher{
		Client:  ollama.New(base, 5*time.Second),
		Timeout: s.cfg.FetchTimeout,
		Log:     s.log,
	}
}

func (s *Sequencer) runApplication(ctx context.Context) (int, StepResult) {
	start := time.Now()
	app := s.cfg.AppCommand
	code, err := proc.Run(ctx, proc.Cmd{Path: app[0], Args: app[1:]})
	res := StepResult{Name: StepApp, StartedAt: start, Duration: time.Since(start), ExitCode: code}
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		if code < 0 {
			code = 1
		}
	} else if code != 0 {
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("application exited with status %d", code)
	}
	return code, res
}

func (s *Sequencer) begin(ctx context.Context) {
	s.mu.Lock()
	s.runID = uuid.New().String()
	s.startedAt = time.Now()
	s.state = types.StateStart
	s.steps = nil
	id, model, started := s.runID, s.cfg.Model, s.startedAt
	s.mu.Unlock()
	observeState(types.StateStart)
	if s.recorder != nil {
		if err := s.recorder.BeginRun(ctx, id, model, started); err != nil {
			s.log.Warn().Err(err).Msg("journal: begin run")
		}
	}
}

func (s *Sequencer) record(ctx context.Context, res StepResult) {
	status := res.Status()
	s.mu.Lock()
	s.steps = append(s.steps, status)
	id := s.runID
	s.mu.Unlock()
	observeStep(res)
	if s.recorder != nil {
		if err := s.recorder.RecordStep(ctx, id, status); err != nil {
			s.log.Warn().Err(err).Str("step", res.Name).Msg("journal: record step")
		}
	}
}

func (s *Sequencer) setState(st types.RunState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	observeState(st)
}

func (s *Sequencer) finish(ctx context.Context, exitCode int) {
	s.setState(types.StateTerminated)
	s.mu.Lock()
	id := s.runID
	s.mu.Unlock()
	observeRun(exitCode)
	if s.recorder != nil {
		if err := s.recorder.FinishRun(ctx, id, string(types.StateTerminated), exitCode, time.Now()); err != nil {
			s.log.Warn().Err(err).Msg("journal: finish run")
		}
	}
}
