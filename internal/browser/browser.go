package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// Session is one page used for one run. Pages and contexts it did not
// create are left open on Close.
type Session struct {
	Context playwright.BrowserContext
	Page    playwright.Page

	ownsPage    bool
	ownsContext bool
	recording   bool
	logger      *zap.Logger
}

func newSession(bctx playwright.BrowserContext, page playwright.Page, ownsPage, ownsContext bool, logger *zap.Logger) *Session {
	return &Session{
		Context:     bctx,
		Page:        page,
		ownsPage:    ownsPage,
		ownsContext: ownsContext,
		logger:      logger,
	}
}

// Navigate loads url and waits for DOMContentLoaded, then gives the page a
// bounded chance to reach network idle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.Page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}

	err := s.Page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(10000),
	})
	if err != nil && !errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("wait for load state: %w", err)
	}
	if err != nil {
		s.logger.Debug("Network did not go idle, continuing", zap.String("url", url))
	}
	return nil
}

// Pause blocks for d or until ctx is done.
func (s *Session) Pause(ctx context.Context, d time.Duration) error {
	return sleep(ctx, d)
}

// VideoPath is the recording file for this page, or "" when video is off.
// The file is complete only after Close.
func (s *Session) VideoPath() string {
	if !s.recording {
		return ""
	}
	v := s.Page.Video()
	if v == nil {
		return ""
	}
	p, err := v.Path()
	if err != nil {
		s.logger.Warn("Video path unavailable", zap.Error(err))
		return ""
	}
	return p
}

// Close releases what the session created. Closing the context also
// flushes the video file.
func (s *Session) Close() error {
	var errs []error
	if s.ownsPage {
		if err := s.Page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
	}
	if s.ownsContext {
		if err := s.Context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close context: %w", err))
		}
	}
	return errors.Join(errs...)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
