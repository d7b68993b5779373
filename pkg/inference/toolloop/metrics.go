package toolloop

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeCompleted = "completed"
	outcomeRoundCap  = "round_cap"
	outcomeTransport = "transport_error"
	outcomeCancelled = "cancelled"
	outcomeFailed    = "failed"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trai_toolloop_runs_total",
		Help: "Orchestration runs by outcome",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trai_toolloop_run_duration_seconds",
		Help:    "Wall time of an orchestration run",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
	})

	roundsPerRun = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trai_toolloop_rounds",
		Help:    "Counted backend rounds per run",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8},
	})

	roundDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trai_toolloop_round_duration_seconds",
		Help:    "Time to stream one backend round",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"follow_up"})

	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trai_toolloop_tool_calls_total",
		Help: "Dispatched tool calls by tool and result type",
	}, []string{"tool", "result"})

	skippedFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trai_toolloop_skipped_frames_total",
		Help: "Stream frames that could not be decoded and were skipped",
	})

	followUpRoundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trai_toolloop_follow_up_rounds_total",
		Help: "Suggestion follow-up rounds issued",
	})
)

func recordRun(outcome string, rounds int, started time.Time) {
	runsTotal.WithLabelValues(outcome).Inc()
	roundsPerRun.Observe(float64(rounds))
	runDuration.Observe(time.Since(started).Seconds())
}

func recordRound(followUp bool, started time.Time, skipped int) {
	label := "false"
	if followUp {
		label = "true"
		followUpRoundsTotal.Inc()
	}
	roundDuration.WithLabelValues(label).Observe(time.Since(started).Seconds())
	if skipped > 0 {
		skippedFramesTotal.Add(float64(skipped))
	}
}

func recordToolCall(tool string, result string) {
	toolCallsTotal.WithLabelValues(tool, result).Inc()
}
