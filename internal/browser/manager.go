package browser

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/nbenliogludev/go-chat-agent-tester/internal/config"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// Manager owns the playwright driver and the browser it is attached to.
// In cdp mode it attaches to an already running, signed-in browser; in
// launch mode it starts a persistent Chromium profile.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	pw         *playwright.Playwright
	browser    playwright.Browser        // cdp mode
	persistent playwright.BrowserContext // launch mode

	mu          sync.Mutex
	pageClaimed bool
}

// NewManager installs the driver if needed, starts it and connects
// according to cfg.Mode.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{cfg: cfg, logger: logger.Named("browser")}

	// An attached browser needs only the driver.
	runOpts := &playwright.RunOptions{
		Browsers:            []string{"chromium"},
		SkipInstallBrowsers: cfg.Mode == config.BrowserModeCDP,
	}
	if err := playwright.Install(runOpts); err != nil {
		return nil, fmt.Errorf("install pw failed: %w", err)
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("start pw failed: %w", err)
	}
	m.pw = pw

	switch cfg.Mode {
	case config.BrowserModeLaunch:
		err = m.launch()
	default:
		err = m.connect()
	}
	if err != nil {
		_ = pw.Stop()
		return nil, err
	}
	return m, nil
}

func (m *Manager) connect() error {
	b, err := m.pw.Chromium.ConnectOverCDP(m.cfg.CDPURL)
	if err != nil {
		return fmt.Errorf("connect over cdp %s: %w (start the browser with --remote-debugging-port)", m.cfg.CDPURL, err)
	}
	m.browser = b
	m.logger.Info("Connected to existing browser", zap.String("endpoint", m.cfg.CDPURL), zap.String("version", b.Version()))
	return nil
}

func (m *Manager) launch() error {
	userDataDir, err := filepath.Abs(m.cfg.UserDataDir)
	if err != nil {
		return fmt.Errorf("resolve user data dir: %w", err)
	}

	opts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(m.cfg.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
		},
	}
	if m.cfg.Channel != "" {
		opts.Channel = playwright.String(m.cfg.Channel)
	}
	if m.cfg.VideoDir != "" {
		opts.RecordVideo = &playwright.RecordVideo{Dir: m.cfg.VideoDir}
	}

	bctx, err := m.pw.Chromium.LaunchPersistentContext(userDataDir, opts)
	if err != nil {
		return fmt.Errorf("launch persistent context: %w", err)
	}
	m.persistent = bctx
	m.logger.Info("Launched browser", zap.String("user_data_dir", userDataDir), zap.Bool("headless", m.cfg.Headless))
	return nil
}

// OpenSession hands out a page for one run.
//
// cdp mode reuses the browser's first context so the existing sign-in is
// kept; the first session also takes over its first tab. A dedicated
// context is created instead when new_context is set or video is
// recorded, since recording can only be enabled on a fresh context.
func (m *Manager) OpenSession(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		s   *Session
		err error
	)
	if m.persistent != nil {
		s, err = m.sessionIn(m.persistent, false)
	} else if m.cfg.NewContext || m.cfg.VideoDir != "" {
		s, err = m.isolatedSession()
	} else {
		s, err = m.sharedSession()
	}
	if err != nil {
		return nil, err
	}

	s.recording = m.cfg.VideoDir != ""
	if m.cfg.DefaultTimeout > 0 {
		ms := float64(m.cfg.DefaultTimeout.Milliseconds())
		s.Page.SetDefaultTimeout(ms)
		s.Page.SetDefaultNavigationTimeout(ms)
	}
	return s, nil
}

func (m *Manager) sharedSession() (*Session, error) {
	contexts := m.browser.Contexts()
	if len(contexts) == 0 {
		return m.isolatedSession()
	}
	bctx := contexts[0]

	m.mu.Lock()
	claim := !m.pageClaimed
	m.pageClaimed = true
	m.mu.Unlock()

	if claim {
		if pages := bctx.Pages(); len(pages) > 0 {
			return newSession(bctx, pages[0], false, false, m.logger), nil
		}
	}
	return m.sessionIn(bctx, false)
}

func (m *Manager) isolatedSession() (*Session, error) {
	opts := playwright.BrowserNewContextOptions{}
	if m.cfg.VideoDir != "" {
		opts.RecordVideo = &playwright.RecordVideo{Dir: m.cfg.VideoDir}
	}
	bctx, err := m.browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	return m.sessionIn(bctx, true)
}

func (m *Manager) sessionIn(bctx playwright.BrowserContext, ownsContext bool) (*Session, error) {
	page, err := bctx.NewPage()
	if err != nil {
		if ownsContext {
			_ = bctx.Close()
		}
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return newSession(bctx, page, true, ownsContext, m.logger), nil
}

// Label describes the browser in summaries.
func (m *Manager) Label() string {
	if m.cfg.Label != "" {
		return m.cfg.Label
	}
	return "Chromium (" + m.cfg.Mode + ")"
}

// Close detaches from (cdp) or shuts down (launch) the browser and stops
// the driver. An attached browser keeps running.
func (m *Manager) Close() {
	if m.persistent != nil {
		_ = m.persistent.Close()
	}
	if m.browser != nil {
		_ = m.browser.Close()
	}
	if m.pw != nil {
		_ = m.pw.Stop()
	}
}
