package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// Screenshotter is the part of playwright.Page the capturer uses.
type Screenshotter interface {
	Screenshot(options ...playwright.PageScreenshotOptions) ([]byte, error)
}

// Capturer writes PNG screenshots of a page into one directory.
type Capturer struct {
	page     Screenshotter
	dir      string
	fullPage bool
	logger   *zap.Logger
}

func NewCapturer(page Screenshotter, dir string, fullPage bool, logger *zap.Logger) *Capturer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Capturer{page: page, dir: dir, fullPage: fullPage, logger: logger.Named("capture")}
}

// PathFor is where Capture stores name. It depends only on the directory
// and the name.
func (c *Capturer) PathFor(name string) string {
	return filepath.Join(c.dir, name+".png")
}

// Capture takes a screenshot and writes it to PathFor(name).
func (c *Capturer) Capture(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshots dir: %w", err)
	}

	png, err := c.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(c.fullPage),
		Type:     playwright.ScreenshotTypePng,
	})
	if err != nil {
		return "", fmt.Errorf("screenshot %s: %w", name, err)
	}

	path := c.PathFor(name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	c.logger.Info("Screenshot saved", zap.String("path", path))
	return path, nil
}
