// Package metrics counts conversation runs and writes them out in the
// node-exporter textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nbenliogludev/go-chat-agent-tester/internal/conversation"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agent_tester"

// Recorder holds the run metrics on a registry of its own.
type Recorder struct {
	registry *prometheus.Registry

	turns       *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_turns_total",
			Help:      "Conversation turns by follow-up mode.",
		}, []string{"mode"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_fallbacks_total",
			Help:      "Decisions that fell back to the local policy, by stage.",
		}, []string{"stage"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by status and end reason.",
		}, []string{"status", "end_reason"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a run from navigation to summary.",
			Buckets:   []float64{30, 60, 120, 180, 300, 450, 600, 900},
		}, []string{"agent"}),
	}
	r.registry.MustRegister(r.turns, r.fallbacks, r.runs, r.runDuration)
	return r
}

var _ conversation.Observer = (*Recorder)(nil)

// TurnCompleted counts one turn.
func (r *Recorder) TurnCompleted(mode conversation.Mode, _ int, _ conversation.TurnResult) {
	r.turns.WithLabelValues(string(mode)).Inc()
}

// DecisionFallback counts a degraded decision; stage is "screenshot",
// "message", "classify" and so on.
func (r *Recorder) DecisionFallback(stage string) {
	r.fallbacks.WithLabelValues(stage).Inc()
}

// RunFinished records the outcome of one run.
func (r *Recorder) RunFinished(agent, status, endReason string, d time.Duration) {
	r.runs.WithLabelValues(status, endReason).Inc()
	r.runDuration.WithLabelValues(agent).Observe(d.Seconds())
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes all metrics to path atomically. An empty path is a
// no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
