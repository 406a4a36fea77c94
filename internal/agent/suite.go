package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/nbenliogludev/go-chat-agent-tester/internal/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrScenariosFailed is returned by Suite.Run when at least one scenario failed.
var ErrScenariosFailed = errors.New("scenarios failed")

// ScenarioRunner is what a Suite schedules.
type ScenarioRunner interface {
	Run(ctx context.Context, sc config.Scenario) (RunResult, error)
}

// Suite runs scenarios side by side, at most concurrency at a time. Each
// run opens its own session and a failing run does not stop the others.
type Suite struct {
	runner      ScenarioRunner
	concurrency int
	logger      *zap.Logger
}

func NewSuite(runner ScenarioRunner, concurrency int, logger *zap.Logger) *Suite {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suite{runner: runner, concurrency: concurrency, logger: logger.Named("suite")}
}

// ScenarioResult pairs a scenario with its outcome.
type ScenarioResult struct {
	Scenario config.Scenario
	Result   RunResult
	Err      error
}

// Run returns one result per scenario, in input order.
func (s *Suite) Run(ctx context.Context, scenarios []config.Scenario) ([]ScenarioResult, error) {
	results := make([]ScenarioResult, len(scenarios))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, sc := range scenarios {
		g.Go(func() error {
			res, err := s.runner.Run(ctx, sc)
			results[i] = ScenarioResult{Scenario: sc, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			s.logger.Error("Scenario failed", zap.String("title", r.Scenario.Title()), zap.Error(r.Err))
		}
	}
	s.logger.Info("Suite finished", zap.Int("scenarios", len(scenarios)), zap.Int("failed", failed))
	if failed > 0 {
		return results, fmt.Errorf("%w: %d of %d", ErrScenariosFailed, failed, len(scenarios))
	}
	return results, nil
}
