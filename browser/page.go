package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// mutationBinding is the JS→Go channel name for mutation pings.
const mutationBinding = "__cashpeek_mut"

// mutationJS installs a document-wide MutationObserver that pings the
// binding once per mutation batch. The coordinator owns debouncing, so
// the JS side stays dumb.
const mutationJS = `(() => {
	if (window.__cashpeek_observing) return;
	window.__cashpeek_observing = true;
	const obs = new MutationObserver(() => {
		try { window.` + mutationBinding + `("m"); } catch (e) {}
	});
	obs.observe(document.documentElement, {
		childList: true, subtree: true, attributes: true, characterData: true,
	});
})()`

// Page wraps a Rod page with cashpeek-specific setup: stealth, resource
// blocking, and the mutation ping channel.
type Page struct {
	page *rod.Page
	mgr  *Manager
}

// OpenPage creates a stealth tab, navigates to the URL, and waits for
// the load event.
func OpenPage(ctx context.Context, mgr *Manager, pageURL string) (*Page, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if len(mgr.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, mgr.cfg.ResourceBlocking); err != nil {
			mgr.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Page{page: page, mgr: mgr}, nil
}

// URL reads the live location. SPA navigations change it without a page
// load, which is exactly what the coordinator's poll looks for.
func (p *Page) URL(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => location.href`)
	if err != nil {
		return "", fmt.Errorf("browser: read url: %w", err)
	}
	return res.Value.Str(), nil
}

// WaitReady blocks until the document load event has fired.
func (p *Page) WaitReady(ctx context.Context) error {
	if err := p.page.Context(ctx).WaitLoad(); err != nil {
		return fmt.Errorf("browser: wait ready: %w", err)
	}
	return nil
}

// Snapshot serialises the complete DOM as outer HTML.
func (p *Page) Snapshot(ctx context.Context) ([]byte, error) {
	res, err := p.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: snapshot: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

// WatchMutations injects a MutationObserver and delivers one ping per
// mutation batch until cancel is called or ctx ends.
func (p *Page) WatchMutations(ctx context.Context, onMutation func()) (func(), error) {
	if err := (proto.RuntimeAddBinding{Name: mutationBinding}).Call(p.page); err != nil {
		p.mgr.cfg.Logger.Warn("browser: add binding failed (may already exist)", "error", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	go p.page.Context(watchCtx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name == mutationBinding {
			onMutation()
		}
	})()

	if _, err := p.page.Context(ctx).Eval(mutationJS); err != nil {
		cancel()
		return nil, fmt.Errorf("browser: inject mutation observer: %w", err)
	}
	return cancel, nil
}

// Open loads a URL in a fresh tab (used for the partner search).
func (p *Page) Open(ctx context.Context, pageURL string) error {
	b := p.mgr.Browser()
	if b == nil {
		return fmt.Errorf("browser: no active browser")
	}
	tab, err := stealth.Page(b)
	if err != nil {
		return fmt.Errorf("browser: create tab: %w", err)
	}
	if err := tab.Context(ctx).Navigate(pageURL); err != nil {
		tab.Close()
		return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	return nil
}

// Eval runs an expression in the page; used by the notification surface.
func (p *Page) Eval(ctx context.Context, js string, args ...any) (*proto.RuntimeRemoteObject, error) {
	return p.page.Context(ctx).Eval(js, args...)
}

// Close closes the tab.
func (p *Page) Close() error {
	if p.page != nil {
		return p.page.Close()
	}
	return nil
}

// applyResourceBlocking sets up request interception to block the
// configured resource types.
func applyResourceBlocking(page *rod.Page, types []string) error {
	blockSet := make(map[string]bool, len(types))
	for _, t := range types {
		blockSet[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(ctx *rod.Hijack) {
		if shouldBlock(blockSet, string(ctx.Request.Type())) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return nil
}

func shouldBlock(blockSet map[string]bool, resType string) bool {
	lower := strings.ToLower(resType)
	switch lower {
	case "image":
		return blockSet["images"]
	case "font":
		return blockSet["fonts"]
	case "media":
		return blockSet["media"]
	case "stylesheet":
		return blockSet["stylesheets"]
	}
	return blockSet[lower]
}
