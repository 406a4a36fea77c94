// Package selector finds elements on a chat UI whose markup is not under
// our control. Every lookup walks a prioritized list of candidate queries
// and takes the first visible match; running out of candidates is a normal
// outcome, not an error.
package selector

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Element is a matched, visible element.
type Element interface {
	Click(ctx context.Context) error
	Fill(ctx context.Context, text string) error
	Press(ctx context.Context, key string) error
	// Editable reports whether the element is a contenteditable host
	// rather than a form control.
	Editable(ctx context.Context) bool
}

// Locator evaluates one query against the current page.
type Locator interface {
	// FirstVisible returns the first visible element matching query,
	// waiting up to timeout. ok is false when nothing became visible.
	FirstVisible(ctx context.Context, query string, timeout time.Duration) (el Element, ok bool, err error)
}

// Match is the winning candidate of a Resolve call.
type Match struct {
	Element Element
	Query   string
	Index   int
}

// Resolve tries candidates in order and returns the first visible match.
// A candidate that errors is logged and skipped. ok is false when the list
// is exhausted; only a cancelled ctx produces an error.
func Resolve(ctx context.Context, loc Locator, candidates []string, timeout time.Duration, logger *zap.Logger) (Match, bool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for i, q := range candidates {
		if err := ctx.Err(); err != nil {
			return Match{}, false, err
		}

		el, ok, err := loc.FirstVisible(ctx, q, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return Match{}, false, ctx.Err()
			}
			logger.Debug("Candidate failed", zap.Int("index", i), zap.String("query", q), zap.Error(err))
			continue
		}
		if ok {
			logger.Debug("Candidate matched", zap.Int("index", i), zap.String("query", q))
			return Match{Element: el, Query: q, Index: i}, true, nil
		}
	}
	return Match{}, false, nil
}
