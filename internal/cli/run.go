package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/nbenliogludev/go-chat-agent-tester/internal/agent"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/browser"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/config"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/llm"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/metrics"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		sc         config.Scenario
		all        bool
		maxTurns   int
		videoDir   string
		withReport bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Select an agent, send a prompt and hold the conversation",
		Long: `run selects the agent in the assistant UI, sends the prompt and lets the
conversation loop continue until it ends or reaches the turn limit. A
summary is written for every run; --all runs the configured scenarios.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("max-turns") {
				a.cfg.Conversation.MaxTurns = maxTurns
			}
			if videoDir != "" {
				a.cfg.Browser.VideoDir = videoDir
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			scenarios, err := pickScenarios(a.cfg.Scenarios.List, sc, all)
			if err != nil {
				return err
			}
			return a.run(cmd, scenarios, withReport)
		},
	}

	cmd.Flags().StringVar(&sc.Agent, "agent", "", "agent to select (defaults to the first configured scenario)")
	cmd.Flags().StringVar(&sc.Prompt, "prompt", "", "initial prompt")
	cmd.Flags().StringVar(&sc.Description, "description", "", "short label shown in the report title")
	cmd.Flags().BoolVar(&all, "all", false, "run every configured scenario")
	cmd.Flags().IntVar(&maxTurns, "max-turns", 0, "override conversation.max_turns")
	cmd.Flags().StringVar(&videoDir, "video-dir", "", "record a video of each run into this directory")
	cmd.Flags().BoolVar(&withReport, "report", true, "generate the HTML report afterwards")
	cmd.MarkFlagsMutuallyExclusive("all", "agent")
	return cmd
}

// pickScenarios resolves the flags into the list to run. Flags override
// the first configured scenario field by field.
func pickScenarios(list []config.Scenario, flags config.Scenario, all bool) ([]config.Scenario, error) {
	if all {
		if len(list) == 0 {
			return nil, errors.New("no scenarios configured")
		}
		return list, nil
	}

	sc := flags
	if len(list) > 0 {
		base := list[0]
		if sc.Agent == "" {
			sc.Agent = base.Agent
			if sc.Description == "" {
				sc.Description = base.Description
			}
		}
		if sc.Prompt == "" && sc.Agent == base.Agent {
			sc.Prompt = base.Prompt
		}
	}
	if sc.Agent == "" {
		return nil, errors.New("--agent is required when no scenarios are configured")
	}
	if sc.Prompt == "" {
		return nil, fmt.Errorf("--prompt is required for agent %q", sc.Agent)
	}
	return []config.Scenario{sc}, nil
}

func (a *app) run(cmd *cobra.Command, scenarios []config.Scenario, withReport bool) error {
	ctx := cmd.Context()
	cfg := a.cfg

	mgr, err := browser.NewManager(cfg.Browser, a.logger)
	if err != nil {
		return err
	}
	defer mgr.Close()

	recorder := metrics.NewRecorder()
	advisor := llm.NewOpenAIClient(cfg.LLM, cfg.Conversation, a.logger)
	advisor.SetFallbackHook(recorder.DecisionFallback)
	if !advisor.HasCredential() {
		a.logger.Warn("OpenAI API key not found, follow-ups will come from the canned list",
			zap.String("hint", "set OPENAI_API_KEY for LLM analysis"))
	}

	store := report.NewStore(cfg.Artifacts.SummaryDir)
	runner := agent.NewRunner(agent.NewBrowserSessions(mgr, cfg, a.logger), advisor, advisor.Model(), store, recorder, cfg, a.logger)
	results, runErr := agent.NewSuite(runner, cfg.Scenarios.Concurrency, a.logger).Run(ctx, scenarios)

	for _, r := range results {
		printSummary(cmd.OutOrStdout(), r.Result.Summary, a.logger)
	}

	if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		a.logger.Warn("Error writing metrics textfile", zap.Error(err))
	}

	if withReport {
		if _, _, err := a.generate(); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

func printSummary(w io.Writer, sum report.RunSummary, logger *zap.Logger) {
	out, err := report.RenderTerminal(report.Markdown(sum))
	if err != nil {
		logger.Debug("Terminal rendering failed, printing markdown", zap.Error(err))
	}
	fmt.Fprintln(w, out)
}
