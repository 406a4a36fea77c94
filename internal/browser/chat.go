package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/nbenliogludev/go-chat-agent-tester/internal/selector"
	"go.uber.org/zap"
)

// ChatPage is a page with a located chat input: the surface the
// conversation loop talks to.
type ChatPage struct {
	capturer *Capturer
	input    selector.Element
	probe    Probe
	settle   SettleOptions
	pause    time.Duration
	logger   *zap.Logger
}

// NewChatPage wires capture, submission and settling for one session.
func NewChatPage(s *Session, input selector.Element, capturer *Capturer, settle SettleOptions, submitPause time.Duration, logger *zap.Logger) *ChatPage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatPage{
		capturer: capturer,
		input:    input,
		probe:    TextProbe(s.Page),
		settle:   settle,
		pause:    submitPause,
		logger:   logger.Named("chat"),
	}
}

func (p *ChatPage) Capture(ctx context.Context, name string) (string, error) {
	return p.capturer.Capture(ctx, name)
}

// Submit types msg into the chat input and sends it with Enter.
func (p *ChatPage) Submit(ctx context.Context, msg string) error {
	if err := p.input.Fill(ctx, msg); err != nil {
		return fmt.Errorf("fill chat input: %w", err)
	}
	if err := p.input.Press(ctx, "Enter"); err != nil {
		return fmt.Errorf("press enter: %w", err)
	}
	p.logger.Debug("Message sent", zap.Int("chars", len(msg)))
	return sleep(ctx, p.pause)
}

// WaitStable blocks until the page text stops changing.
func (p *ChatPage) WaitStable(ctx context.Context) error {
	return WaitForStable(ctx, p.probe, p.settle)
}
