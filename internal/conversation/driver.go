package conversation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nbenliogludev/go-chat-agent-tester/internal/llm"
	"go.uber.org/zap"
)

// ErrSubmitFailed wraps the error of a follow-up that could not be sent.
var ErrSubmitFailed = errors.New("follow-up submission failed")

// Page is the chat surface the loop drives.
type Page interface {
	Capture(ctx context.Context, name string) (string, error)
	Submit(ctx context.Context, msg string) error
	// WaitStable returns once the assistant's answer stopped changing.
	WaitStable(ctx context.Context) error
}

// Observer is told about every finished turn and every degraded decision.
type Observer interface {
	TurnCompleted(mode Mode, turn int, result TurnResult)
	DecisionFallback(stage string)
}

type nopObserver struct{}

func (nopObserver) TurnCompleted(Mode, int, TurnResult) {}
func (nopObserver) DecisionFallback(string)             {}

// Options are the loop limits and the canned replies used without a model.
type Options struct {
	MaxTurns        int
	FallbackTurnCap int
	CannedResponses []string

	// Now and ReadFile default to time.Now and os.ReadFile.
	Now      func() time.Time
	ReadFile func(path string) ([]byte, error)
}

type Driver struct {
	page     Page
	advisor  llm.Client
	opts     Options
	logger   *zap.Logger
	observer Observer
}

// NewDriver builds a driver. A nil advisor, or one without a credential,
// runs the loop on the canned table.
func NewDriver(page Page, advisor llm.Client, opts Options, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ReadFile == nil {
		opts.ReadFile = os.ReadFile
	}
	return &Driver{
		page:     page,
		advisor:  advisor,
		opts:     opts,
		logger:   logger.Named("driver"),
		observer: nopObserver{},
	}
}

// WithObserver sets the turn observer.
func (d *Driver) WithObserver(o Observer) *Driver {
	if o != nil {
		d.observer = o
	}
	return d
}

// Mode reports which policy Run will use.
func (d *Driver) Mode() Mode {
	return ModeFor(d.advisor)
}

// ModeFor is the policy a driver with this advisor runs.
func ModeFor(advisor llm.Client) Mode {
	if advisor != nil && advisor.HasCredential() {
		return ModeLLM
	}
	return ModeFallback
}

// Run drives the conversation until the decision says stop, MaxTurns is
// reached, a submission fails or ctx ends. A final screenshot is taken on
// every path that gets past the per-turn captures, so ScreenshotPaths ends
// up one longer than TurnIndex.
//
// A submission failure is returned wrapped in ErrSubmitFailed together
// with a complete Result. A capture failure is returned as is.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	mode := d.Mode()
	st := State{MaxTurns: d.opts.MaxTurns}
	res := &Result{Mode: mode, EndReason: EndLimit}

	if mode == ModeFallback {
		d.logger.Warn("No model credential, using canned follow-ups")
	}
	d.logger.Info("Starting conversation loop", zap.String("mode", string(mode)), zap.Int("max_turns", st.MaxTurns))

	var runErr error
loop:
	for st.TurnIndex < st.MaxTurns {
		if err := ctx.Err(); err != nil {
			res.EndReason, runErr = EndCancelled, err
			break
		}

		turn := st.TurnIndex + 1
		d.logger.Info("Conversation turn", zap.Int("turn", turn))

		if err := d.page.WaitStable(ctx); err != nil {
			if ctx.Err() != nil {
				res.EndReason, runErr = EndCancelled, ctx.Err()
				break
			}
			d.logger.Warn("Answer did not settle, capturing anyway", zap.Int("turn", turn), zap.Error(err))
		}

		st.TurnIndex = turn
		path, err := d.page.Capture(ctx, fmt.Sprintf("conversation-turn-%d-%d", turn, d.opts.Now().UnixMilli()))
		if err != nil {
			res.State = st.clone()
			return res, fmt.Errorf("capture turn %d: %w", turn, err)
		}
		st.ScreenshotPaths = append(st.ScreenshotPaths, path)

		tr := d.decide(ctx, mode, &st, path)
		if !tr.ShouldContinue {
			if turn >= st.MaxTurns {
				res.EndReason = EndLimit
			} else {
				res.EndReason = EndNatural
			}
			d.logger.Info("Conversation reached its end", zap.Int("turn", turn), zap.String("reason", string(res.EndReason)))
			d.observer.TurnCompleted(mode, turn, tr)
			break
		}

		d.logger.Info("Sending follow-up", zap.Int("turn", turn), zap.String("message", tr.NextMessage))
		if err := d.page.Submit(ctx, tr.NextMessage); err != nil {
			if ctx.Err() != nil {
				res.EndReason, runErr = EndCancelled, ctx.Err()
				break loop
			}
			d.logger.Error("Error sending follow-up", zap.Int("turn", turn), zap.Error(err))
			res.EndReason = EndSubmitFailed
			runErr = fmt.Errorf("%w: turn %d: %w", ErrSubmitFailed, turn, err)
			break
		}
		st.record(turn, tr.NextMessage)
		res.Messages = append(res.Messages, tr.NextMessage)
		d.observer.TurnCompleted(mode, turn, tr)
	}

	// The closing screenshot is taken even after cancellation.
	final, err := d.page.Capture(context.WithoutCancel(ctx), fmt.Sprintf("conversation-final-%d", d.opts.Now().UnixMilli()))
	if err != nil {
		res.State = st.clone()
		return res, errors.Join(runErr, fmt.Errorf("final capture: %w", err))
	}
	st.ScreenshotPaths = append(st.ScreenshotPaths, final)
	res.State = st.clone()

	d.logger.Info("Conversation completed",
		zap.Int("turns", st.TurnIndex),
		zap.Int("screenshots", len(st.ScreenshotPaths)),
		zap.String("reason", string(res.EndReason)))
	return res, runErr
}

func (d *Driver) decide(ctx context.Context, mode Mode, st *State, screenshot string) TurnResult {
	turn := st.TurnIndex
	if turn >= st.MaxTurns {
		return TurnResult{}
	}
	if mode == ModeFallback {
		return d.simple(turn)
	}

	image, err := d.opts.ReadFile(screenshot)
	if err != nil {
		d.logger.Warn("Screenshot unreadable, using canned policy for this turn", zap.Int("turn", turn), zap.Error(err))
		d.observer.DecisionFallback("screenshot")
		return d.simple(turn)
	}

	if !d.advisor.ClassifyContinuation(ctx, image, turn) {
		return TurnResult{}
	}
	msg := strings.TrimSpace(d.advisor.GenerateNextMessage(ctx, image, st.History(), turn))
	if msg == "" {
		d.observer.DecisionFallback("message")
		msg = llm.ResponseAt(d.opts.CannedResponses, turn)
	}
	return TurnResult{ShouldContinue: true, NextMessage: msg}
}

// simple continues while turn < FallbackTurnCap and replies from the
// canned table.
func (d *Driver) simple(turn int) TurnResult {
	if turn >= d.opts.FallbackTurnCap || turn >= d.opts.MaxTurns {
		return TurnResult{}
	}
	return TurnResult{ShouldContinue: true, NextMessage: llm.ResponseAt(d.opts.CannedResponses, turn)}
}
