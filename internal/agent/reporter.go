package agent

import (
	"time"

	"github.com/nbenliogludev/go-chat-agent-tester/internal/config"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/conversation"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/report"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/selector"
	"go.uber.org/zap"
)

// Reporter keeps the step trace of one run and turns it into a summary.
type Reporter struct {
	logger   *zap.Logger
	runID    string
	scenario config.Scenario
	start    time.Time
	trace    []string
}

func NewReporter(runID string, sc config.Scenario, start time.Time, logger *zap.Logger) *Reporter {
	return &Reporter{logger: logger, runID: runID, scenario: sc, start: start}
}

// Step logs a milestone and keeps it for the report.
func (r *Reporter) Step(msg string, fields ...zap.Field) {
	r.logger.Info(msg, fields...)
	r.trace = append(r.trace, msg)
}

// StepWarn is Step for milestones that did not go as planned.
func (r *Reporter) StepWarn(msg string, fields ...zap.Field) {
	r.logger.Warn(msg, fields...)
	r.trace = append(r.trace, msg)
}

// Outcome is everything a finished run contributes to its summary.
type Outcome struct {
	Mode        conversation.Mode
	Result      *conversation.Result
	EndReason   conversation.EndReason
	Screenshots []string
	Video       string
	Browser     string
	Model       string
	MaxTurns    int
	Err         error
	End         time.Time
}

// Summary builds the run record. A run passes when nothing along the way
// returned an error; a missing chat input is not one. The timestamp is
// the time the record is made.
func (r *Reporter) Summary(o Outcome) report.RunSummary {
	status := report.StatusPassed
	if o.Err != nil {
		status = report.StatusFailed
	}

	sum := report.RunSummary{
		RunID:            r.runID,
		TestTitle:        r.scenario.Title(),
		TestName:         testName(r.scenario),
		AgentName:        r.scenario.Agent,
		InitialPrompt:    r.scenario.Prompt,
		Timestamp:        o.End.UTC(),
		DurationMs:       o.End.Sub(r.start).Milliseconds(),
		Status:           status,
		ConversationMode: string(o.Mode),
		Steps:            append([]string(nil), r.trace...),
		Artifacts: report.Artifacts{
			Video:       o.Video,
			Screenshots: o.Screenshots,
		},
		TestConfig: report.TestConfig{
			Browser:              o.Browser,
			LLMAnalysis:          o.Mode == conversation.ModeLLM,
			MaxConversationTurns: o.MaxTurns,
		},
	}
	if sum.TestConfig.LLMAnalysis {
		sum.TestConfig.Model = o.Model
	}
	reason := o.EndReason
	if o.Result != nil {
		sum.Turns = o.Result.State.TurnIndex
		sum.Messages = o.Result.Messages
		reason = o.Result.EndReason
	}
	sum.EndReason = string(reason)
	if o.Err != nil {
		sum.Error = o.Err.Error()
	}

	fields := []zap.Field{
		zap.String("status", string(sum.Status)),
		zap.Int("turns", sum.Turns),
		zap.Int("screenshots", len(sum.Artifacts.Screenshots)),
		zap.Duration("duration", sum.Duration()),
	}
	if reason != "" {
		fields = append(fields, zap.String("reason", humanizeReason(reason)))
	}
	if o.Err != nil {
		r.logger.Error("Run failed", append(fields, zap.Error(o.Err))...)
	} else {
		r.logger.Info("Run finished", fields...)
	}
	return sum
}

func testName(sc config.Scenario) string {
	name := sc.Agent
	if sc.Description != "" {
		name += " " + sc.Description
	}
	return selector.Slug(name)
}
