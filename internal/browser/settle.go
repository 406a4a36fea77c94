package browser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrNotSettled is returned when the page kept changing until the timeout.
var ErrNotSettled = errors.New("page did not settle")

// SettleOptions controls WaitForStable.
type SettleOptions struct {
	MinWait    time.Duration
	Interval   time.Duration
	QuietPolls int
	Timeout    time.Duration
}

// Probe returns a fingerprint of the current page state.
type Probe func(ctx context.Context) (string, error)

// WaitForStable waits MinWait, then samples probe every Interval until
// QuietPolls consecutive samples are identical. A failed sample counts as
// a change. Returns ErrNotSettled after Timeout, or the context error if
// ctx ends first.
func WaitForStable(ctx context.Context, probe Probe, opts SettleOptions) error {
	if opts.QuietPolls < 1 {
		opts.QuietPolls = 1
	}

	if err := sleep(ctx, opts.MinWait); err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	var (
		last   string
		streak int
	)
	for {
		fp, err := probe(wctx)
		switch {
		case err != nil:
			streak = 0
			last = ""
		case streak > 0 && fp == last:
			streak++
		default:
			last = fp
			streak = 1
		}
		if streak >= opts.QuietPolls {
			return nil
		}

		select {
		case <-wctx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w after %s", ErrNotSettled, opts.Timeout)
		case <-ticker.C:
		}
	}
}

// textEvaluator is the part of playwright.Page the page probe uses.
type textEvaluator interface {
	Evaluate(expression string, arg ...interface{}) (interface{}, error)
}

const visibleTextScript = `() => document.body ? document.body.innerText : ""`

// TextProbe fingerprints the page by hashing its visible text, so a
// streaming answer keeps the fingerprint moving until it completes.
func TextProbe(page textEvaluator) Probe {
	return func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		v, err := page.Evaluate(visibleTextScript)
		if err != nil {
			return "", fmt.Errorf("js evaluation failed: %w", err)
		}
		text, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("expected string from js, got %T", v)
		}
		sum := sha256.Sum256([]byte(text))
		return hex.EncodeToString(sum[:]), nil
	}
}
