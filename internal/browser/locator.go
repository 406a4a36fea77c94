package browser

import (
	"context"
	"errors"
	"time"

	"github.com/nbenliogludev/go-chat-agent-tester/internal/selector"
	"github.com/playwright-community/playwright-go"
)

// PageLocator evaluates selector queries against a playwright page.
type PageLocator struct {
	page playwright.Page
}

func NewPageLocator(page playwright.Page) *PageLocator {
	return &PageLocator{page: page}
}

var _ selector.Locator = (*PageLocator)(nil)

// FirstVisible scans the current matches for a visible one, and otherwise
// waits up to timeout for the first match to become visible.
func (l *PageLocator) FirstVisible(ctx context.Context, query string, timeout time.Duration) (selector.Element, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	matches := l.page.Locator(query)
	n, err := matches.Count()
	if err != nil {
		return nil, false, err
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		el := matches.Nth(i)
		visible, err := el.IsVisible()
		if err != nil {
			return nil, false, err
		}
		if visible {
			return &element{loc: el}, true, nil
		}
	}

	if timeout <= 0 {
		return nil, false, nil
	}
	first := matches.First()
	err = first.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if errors.Is(err, playwright.ErrTimeout) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &element{loc: first}, true, nil
}

// element adapts a playwright locator pinned to one match.
type element struct {
	loc playwright.Locator
}

func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.loc.Click()
}

func (e *element) Fill(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.loc.Fill(text)
}

func (e *element) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.loc.Press(key)
}

func (e *element) Editable(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	v, err := e.loc.Evaluate(`el => el.tagName.toLowerCase() === "div" || el.isContentEditable`, nil)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}
