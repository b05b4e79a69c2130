package sequencer

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"modelboot/pkg/types"
)

var (
	stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modelboot",
			Subsystem: "sequencer",
			Name:      "step_duration_seconds",
			Help:      "Duration of startup sequence steps in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"step", "outcome"},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelboot",
			Subsystem: "sequencer",
			Name:      "runs_total",
			Help:      "Total completed startup sequences by exit code",
		},
		[]string{"exit_code"},
	)

	stateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "modelboot",
			Subsystem: "sequencer",
			Name:      "state",
			Help:      "Current sequence state (1 for the active state, 0 otherwise)",
		},
		[]string{"state"},
	)
)

var allStates = []types.RunState{
	types.StateStart,
	types.StateDaemonLaunched,
	types.StateReady,
	types.StateArtifactFetched,
	types.StateAppRunning,
	types.StateTerminated,
}

func init() {
	prometheus.MustRegister(stepDuration, runsTotal, stateGauge)
}

func observeStep(res StepResult) {
	stepDuration.WithLabelValues(res.Name, res.Outcome.String()).Observe(res.Duration.Seconds())
}

func observeState(st types.RunState) {
	for _, s := range allStates {
		v := 0.0
		if s == st {
			v = 1.0
		}
		stateGauge.WithLabelValues(string(s)).Set(v)
	}
}

func observeRun(exitCode int) {
	runsTotal.WithLabelValues(strconv.Itoa(exitCode)).Inc()
}
