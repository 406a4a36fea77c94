package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/config"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/conversation"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/llm"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/metrics"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/report"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/selector"
	"go.uber.org/zap"
)

var (
	ErrSessionFailed  = errors.New("could not open browser session")
	ErrNavigateFailed = errors.New("could not open the assistant")
	ErrPromptFailed   = errors.New("could not send the initial prompt")
)

// Runner performs one scenario end to end: select the agent, send the
// prompt, hold the conversation and persist the summary.
type Runner struct {
	sessions Sessions
	advisor  llm.Client
	model    string
	store    *report.Store
	recorder *metrics.Recorder
	cfg      *config.Config
	logger   *zap.Logger

	now func() time.Time
}

// NewRunner wires a runner. recorder may be nil.
func NewRunner(sessions Sessions, advisor llm.Client, model string, store *report.Store, recorder *metrics.Recorder, cfg *config.Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		sessions: sessions,
		advisor:  advisor,
		model:    model,
		store:    store,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger.Named("runner"),
		now:      time.Now,
	}
}

// RunResult is a finished run and where its summary was written.
type RunResult struct {
	Summary     report.RunSummary
	SummaryPath string
}

// Run executes sc. The returned error is the run failure; the summary is
// written either way, and a failure to write it is joined in.
func (r *Runner) Run(ctx context.Context, sc config.Scenario) (RunResult, error) {
	runID := uuid.NewString()
	start := r.now()
	log := r.logger.With(zap.String("run_id", runID), zap.String("agent", sc.Agent))
	rep := NewReporter(runID, sc, start, log)

	mode := conversation.ModeFor(r.advisor)
	out := Outcome{
		Mode:     mode,
		Browser:  r.sessions.Label(),
		Model:    r.model,
		MaxTurns: r.cfg.Conversation.MaxTurns,
	}

	log.Info("Starting run", zap.String("title", sc.Title()), zap.String("mode", string(mode)))

	surface, err := r.sessions.Open(ctx, runID)
	if err != nil {
		out.Err = fmt.Errorf("%w: %w", ErrSessionFailed, err)
	} else {
		r.drive(ctx, surface, sc, rep, log, &out)
		out.Video = surface.VideoPath()
		if err := surface.Close(); err != nil {
			log.Warn("Error closing session", zap.Error(err))
		}
	}

	out.End = r.now()
	sum := rep.Summary(out)

	res := RunResult{Summary: sum}
	path, werr := r.store.Write(sum)
	if werr != nil {
		log.Error("Error writing summary", zap.Error(werr))
	} else {
		res.SummaryPath = path
		log.Info("Test summary created", zap.String("path", path))
		if sum.Artifacts.Video != "" {
			log.Info("Video recording", zap.String("path", sum.Artifacts.Video))
		}
	}

	if r.recorder != nil {
		r.recorder.RunFinished(sc.Agent, string(sum.Status), sum.EndReason, sum.Duration())
	}
	return res, errors.Join(out.Err, werr)
}

// drive walks the UI and runs the conversation, filling out.
func (r *Runner) drive(ctx context.Context, s Surface, sc config.Scenario, rep *Reporter, log *zap.Logger, out *Outcome) {
	startURL := r.cfg.Browser.StartURL
	if err := s.Navigate(ctx, startURL); err != nil {
		out.Err = fmt.Errorf("%w: %w", ErrNavigateFailed, err)
		return
	}
	rep.Step("Opened assistant", zap.String("url", startURL))
	if err := s.Pause(ctx, r.cfg.Selectors.StepPause); err != nil {
		out.Err = err
		return
	}

	sel := selector.NewAgentSelector(s.Locator(), r.cfg.Selectors, log)

	ok, err := sel.OpenAgentStore(ctx)
	if err != nil {
		out.Err = err
		return
	}
	if ok {
		rep.Step("Opened agent store")
	} else {
		rep.StepWarn("Agent store link not found, assuming agents page is open")
	}

	ok, err = sel.SearchAgent(ctx, sc.Agent)
	if err != nil {
		out.Err = err
		return
	}
	if ok {
		rep.Step("Searched for " + sc.Agent)
	} else {
		rep.StepWarn("Agent search box not found")
	}

	ok, err = sel.SelectAgent(ctx, sc.Agent)
	if err != nil {
		out.Err = err
		return
	}
	if ok {
		rep.Step("Selected " + sc.Agent)
	} else {
		rep.StepWarn("Could not find " + sc.Agent + " in search results")
	}

	input, ok, err := sel.FindChatInput(ctx)
	if err != nil {
		out.Err = err
		return
	}
	if !ok {
		rep.StepWarn("Chat interface not found after selecting " + sc.Agent)
		if path, cerr := s.Capture(context.WithoutCancel(ctx), fmt.Sprintf("no-chat-input-%d", r.now().UnixMilli())); cerr != nil {
			log.Warn("Error capturing page", zap.Error(cerr))
		} else {
			out.Screenshots = append(out.Screenshots, path)
		}
		out.EndReason = EndNoChatInput
		return
	}
	rep.Step("Found chat input")

	page := s.Chat(input)
	if err := page.Submit(ctx, sc.Prompt); err != nil {
		out.Err = fmt.Errorf("%w: %w", ErrPromptFailed, err)
		return
	}
	rep.Step("Sent prompt to " + sc.Agent)

	driver := conversation.NewDriver(page, r.advisor, conversation.Options{
		MaxTurns:        r.cfg.Conversation.MaxTurns,
		FallbackTurnCap: r.cfg.Conversation.FallbackTurnCap,
		CannedResponses: r.cfg.Conversation.CannedResponses,
		Now:             r.now,
	}, log)
	if r.recorder != nil {
		driver.WithObserver(r.recorder)
	}

	res, err := driver.Run(ctx)
	out.Result = res
	if res != nil {
		out.Screenshots = append(out.Screenshots, res.State.ScreenshotPaths...)
		rep.Step(fmt.Sprintf("Conversation completed after %d turns", res.State.TurnIndex))
	}
	out.Err = err
}
