package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// PageTarget is an open tab reported by the DevTools endpoint.
type PageTarget struct {
	ID    string
	Title string
	URL   string
}

// PreflightReport describes a reachable DevTools endpoint.
type PreflightReport struct {
	Endpoint  string
	UserAgent string
	Pages     []PageTarget
}

// Preflight checks that a browser is listening on cdpURL: it opens a
// scratch tab, reads the user agent and lists the other page targets.
// The scratch tab is closed before returning; the browser keeps running.
func Preflight(ctx context.Context, cdpURL string, timeout time.Duration) (*PreflightReport, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, cdpURL)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	var ua string
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(`navigator.userAgent`, &ua)); err != nil {
		return nil, fmt.Errorf("devtools endpoint %s unreachable: %w", cdpURL, err)
	}

	infos, err := chromedp.Targets(tabCtx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}

	var self target.ID
	if c := chromedp.FromContext(tabCtx); c != nil && c.Target != nil {
		self = c.Target.TargetID
	}

	return &PreflightReport{
		Endpoint:  cdpURL,
		UserAgent: ua,
		Pages:     pageTargets(infos, self),
	}, nil
}

func pageTargets(infos []*target.Info, skip target.ID) []PageTarget {
	var pages []PageTarget
	for _, info := range infos {
		if info == nil || info.Type != "page" || info.TargetID == skip {
			continue
		}
		pages = append(pages, PageTarget{
			ID:    string(info.TargetID),
			Title: info.Title,
			URL:   info.URL,
		})
	}
	return pages
}
