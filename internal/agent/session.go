package agent

import (
	"context"
	"path/filepath"
	"time"

	"github.com/nbenliogludev/go-chat-agent-tester/internal/browser"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/config"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/conversation"
	"github.com/nbenliogludev/go-chat-agent-tester/internal/selector"
	"go.uber.org/zap"
)

// Surface is one browser page as a run sees it.
type Surface interface {
	Navigate(ctx context.Context, url string) error
	Pause(ctx context.Context, d time.Duration) error
	Locator() selector.Locator
	Capture(ctx context.Context, name string) (string, error)
	// Chat binds the located input to a page the conversation loop can drive.
	Chat(input selector.Element) conversation.Page
	VideoPath() string
	Close() error
}

// Sessions hands out one Surface per run.
type Sessions interface {
	Open(ctx context.Context, runID string) (Surface, error)
	Label() string
}

// BrowserSessions opens playwright sessions on a browser.Manager.
type BrowserSessions struct {
	mgr    *browser.Manager
	cfg    *config.Config
	logger *zap.Logger
}

func NewBrowserSessions(mgr *browser.Manager, cfg *config.Config, logger *zap.Logger) *BrowserSessions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserSessions{mgr: mgr, cfg: cfg, logger: logger}
}

func (b *BrowserSessions) Label() string { return b.mgr.Label() }

// Open starts a session whose screenshots go to a directory of their own,
// so concurrent runs never write the same file.
func (b *BrowserSessions) Open(ctx context.Context, runID string) (Surface, error) {
	s, err := b.mgr.OpenSession(ctx)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(b.cfg.Artifacts.ScreenshotsDir, shortID(runID))
	return &browserSurface{
		session:  s,
		capturer: browser.NewCapturer(s.Page, dir, b.cfg.Artifacts.FullPage, b.logger),
		cfg:      b.cfg,
		logger:   b.logger,
	}, nil
}

type browserSurface struct {
	session  *browser.Session
	capturer *browser.Capturer
	cfg      *config.Config
	logger   *zap.Logger
}

func (s *browserSurface) Navigate(ctx context.Context, url string) error {
	return s.session.Navigate(ctx, url)
}

func (s *browserSurface) Pause(ctx context.Context, d time.Duration) error {
	return s.session.Pause(ctx, d)
}

func (s *browserSurface) Locator() selector.Locator {
	return browser.NewPageLocator(s.session.Page)
}

func (s *browserSurface) Capture(ctx context.Context, name string) (string, error) {
	return s.capturer.Capture(ctx, name)
}

func (s *browserSurface) Chat(input selector.Element) conversation.Page {
	settle := browser.SettleOptions(s.cfg.Conversation.Settle)
	return browser.NewChatPage(s.session, input, s.capturer, settle, s.cfg.Conversation.SubmitPause, s.logger)
}

func (s *browserSurface) VideoPath() string { return s.session.VideoPath() }

func (s *browserSurface) Close() error { return s.session.Close() }
