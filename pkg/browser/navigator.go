// Package browser drives the archive's search UI and hands the raw
// result fragments to the pipeline. The search page is rendered
// client-side, so a real browser is required here; everything past the
// fragment boundary is plain HTTP.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/aspenlund/kbharvest/pkg/services"
)

const (
	resultSelector = "div.search-result-item"
	dateSelector   = "p.search-result-item-date"
	titleSelector  = "div.search-result-item-title"

	// The result list is filled in by scripts after load.
	renderSettleDelay = 3 * time.Second
)

// Navigator owns one headless (or headed) browser for the duration of
// a run.
type Navigator struct {
	browser *rod.Browser
	timeout time.Duration
}

func NewNavigator(headless bool, timeout time.Duration) (*Navigator, error) {
	controlURL, err := launcher.New().
		Headless(headless).
		Set("disable-gpu").
		Set("no-sandbox").
		Set("window-size", "1920,1080").
		Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Navigator{browser: b, timeout: timeout}, nil
}

// SearchResults opens the search URL and returns one Fragment per
// result element, in page order.
func (n *Navigator) SearchResults(ctx context.Context, searchURL string) ([]services.Fragment, error) {
	slog.Info("navigating to search page", "url", searchURL)

	page, err := n.browser.Page(proto.TargetCreateTarget{URL: searchURL})
	if err != nil {
		return nil, fmt.Errorf("open search page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			slog.Warn("close search page", "err", err)
		}
	}()

	page = page.Context(ctx).Timeout(n.timeout)
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("load search page: %w", err)
	}
	time.Sleep(renderSettleDelay)

	elements, err := page.Elements(resultSelector)
	if err != nil {
		return nil, fmt.Errorf("locate search results: %w", err)
	}
	slog.Info("found search results", "count", len(elements))

	fragments := make([]services.Fragment, 0, len(elements))
	for _, el := range elements {
		frag := services.Fragment{
			Title: elementText(el, titleSelector),
			Date:  elementText(el, dateSelector),
		}
		obj, err := el.Eval(`() => this.innerHTML`)
		if err != nil {
			slog.Warn("read result fragment", "err", err)
			continue
		}
		frag.HTML = obj.Value.Str()
		fragments = append(fragments, frag)
	}
	return fragments, nil
}

// elementText reads a child element's trimmed text, or "" when the
// child is absent.
func elementText(el *rod.Element, selector string) string {
	child, err := el.Element(selector)
	if err != nil {
		return ""
	}
	text, err := child.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// Close releases the browser. Release errors cannot affect completed
// work, so they are logged and swallowed.
func (n *Navigator) Close() {
	if err := n.browser.Close(); err != nil {
		slog.Warn("close browser", "err", err)
	}
}
