// Package pagewatch runs the per-page lifecycle: preference gating,
// the initial detection pass, mutation-debounced re-detection, the
// single late-content retry, and SPA navigation handling via URL
// polling.
//
// One Coordinator serves one page. The page itself is abstracted behind
// the Page port, so the live browser driver and the test fakes plug in
// the same way.
package pagewatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cashpeek/cashpeek/detect"
	"github.com/cashpeek/cashpeek/dom"
	"github.com/cashpeek/cashpeek/notify"
	"github.com/cashpeek/cashpeek/store"
	"github.com/cashpeek/cashpeek/track"
)

// Page is the live page port. WatchMutations delivers a ping for every
// DOM mutation burst; the coordinator does its own debouncing.
type Page interface {
	URL(ctx context.Context) (string, error)
	WaitReady(ctx context.Context) error
	Snapshot(ctx context.Context) ([]byte, error)
	WatchMutations(ctx context.Context, onMutation func()) (cancel func(), err error)
	// Open loads a URL in a fresh tab (partner search).
	Open(ctx context.Context, url string) error
}

// PreferenceStore reads the user switches. *store.Store satisfies it.
type PreferenceStore interface {
	Preferences(ctx context.Context) (store.Preferences, error)
}

// Coordinator drives detection for one page.
type Coordinator struct {
	cfg      *Config
	page     Page
	detector *detect.Orchestrator
	notifier *notify.Controller
	prefs    PreferenceStore
	tracker  *track.Router
	logger   *slog.Logger

	mu      sync.Mutex
	version int
	pageURL string
	verdict *detect.Verdict
	userOff bool

	mutCh chan struct{}
}

// CoordinatorConfig wires a Coordinator's collaborators.
type CoordinatorConfig struct {
	Config   *Config
	Page     Page
	Detector *detect.Orchestrator
	Notifier *notify.Controller
	Prefs    PreferenceStore
	Tracker  *track.Router
	Logger   *slog.Logger
}

// NewCoordinator creates a Coordinator. Tracker may be nil.
func NewCoordinator(cc CoordinatorConfig) *Coordinator {
	cfg := cc.Config
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	logger := cc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:      cfg,
		page:     cc.Page,
		detector: cc.Detector,
		notifier: cc.Notifier,
		prefs:    cc.Prefs,
		tracker:  cc.Tracker,
		logger:   logger,
		mutCh:    make(chan struct{}, 1),
	}
}

// Run executes the page lifecycle until ctx is cancelled. Preferences
// are checked before anything is armed: a disabled extension or a
// blacklisted domain means no observers, no timers, no detection.
func (c *Coordinator) Run(ctx context.Context) error {
	prefs, err := c.prefs.Preferences(ctx)
	if err != nil {
		return fmt.Errorf("pagewatch: load preferences: %w", err)
	}
	if !prefs.Enabled {
		c.mu.Lock()
		c.userOff = true
		c.mu.Unlock()
		c.logger.Info("pagewatch: disabled by preferences")
		return nil
	}

	if err := c.page.WaitReady(ctx); err != nil {
		return fmt.Errorf("pagewatch: wait ready: %w", err)
	}

	pageURL, err := c.page.URL(ctx)
	if err != nil {
		return fmt.Errorf("pagewatch: read url: %w", err)
	}
	if domainBlacklisted(pageURL, prefs.BlacklistedDomains) {
		c.mu.Lock()
		c.userOff = true
		c.mu.Unlock()
		c.logger.Info("pagewatch: domain blacklisted", "url", pageURL)
		return nil
	}

	c.mu.Lock()
	c.pageURL = pageURL
	c.mu.Unlock()

	cancelMut, err := c.page.WatchMutations(ctx, func() {
		select {
		case c.mutCh <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("pagewatch: watch mutations: %w", err)
	}
	defer cancelMut()

	c.logger.Info("pagewatch: observing", "url", pageURL)
	c.loop(ctx, prefs, pageURL)
	return nil
}

// loop is the single event loop. Debounce, retry, and settle are all
// timer channels selected here, so detection runs never race each
// other within one coordinator.
func (c *Coordinator) loop(ctx context.Context, prefs store.Preferences, startURL string) {
	poll := time.NewTicker(c.cfg.Timing.PollInterval)
	defer poll.Stop()

	var (
		debounceT *time.Timer
		debounceC <-chan time.Time
		retryC    <-chan time.Time
		settleC   <-chan time.Time
		retried   bool
		lastURL   = startURL
	)

	// The first pass waits out the initial DOM churn behind the same
	// debounce window mutations use. The retry arms from the debounce
	// case like any other pass.
	debounceT = time.NewTimer(c.cfg.Timing.Debounce)
	debounceC = debounceT.C

	for {
		select {
		case <-ctx.Done():
			return

		case <-c.mutCh:
			if debounceT != nil {
				debounceT.Stop()
			}
			debounceT = time.NewTimer(c.cfg.Timing.Debounce)
			debounceC = debounceT.C

		case <-debounceC:
			debounceC = nil
			if !c.runDetection(ctx, prefs) && !retried {
				retried = true
				retryC = time.After(c.cfg.Timing.RetryDelay)
			}

		case <-retryC:
			retryC = nil
			c.runDetection(ctx, prefs)

		case <-settleC:
			settleC = nil
			if !c.runDetection(ctx, prefs) && !retried {
				retried = true
				retryC = time.After(c.cfg.Timing.RetryDelay)
			}

		case <-poll.C:
			u, err := c.page.URL(ctx)
			if err != nil {
				c.logger.Debug("pagewatch: url poll failed", "error", err)
				continue
			}
			if u == lastURL {
				continue
			}
			c.logger.Info("pagewatch: navigation", "from", lastURL, "to", u)
			lastURL = u

			// Full reset before re-arming: pending work from the old
			// view must not leak into the new one.
			if debounceT != nil {
				debounceT.Stop()
			}
			debounceC, retryC = nil, nil
			retried = false
			c.resetForNavigation(ctx, u)

			settleC = time.After(c.cfg.Timing.SettleDelay)
		}
	}
}

// resetForNavigation bumps the page-view version so in-flight detection
// results from the old view are dropped on arrival.
func (c *Coordinator) resetForNavigation(ctx context.Context, newURL string) {
	c.mu.Lock()
	c.version++
	c.pageURL = newURL
	c.verdict = nil
	c.mu.Unlock()
	c.notifier.Reset(ctx)
}

// runDetection snapshots the page, runs the detector, and applies the
// verdict if the page-view has not changed since the pass started.
// Returns whether the page qualified.
func (c *Coordinator) runDetection(ctx context.Context, prefs store.Preferences) bool {
	c.mu.Lock()
	v := c.version
	pageURL := c.pageURL
	c.mu.Unlock()

	raw, err := c.page.Snapshot(ctx)
	if err != nil {
		c.logger.Warn("pagewatch: snapshot failed", "url", pageURL, "error", err)
		return false
	}
	doc, err := dom.Parse(raw, pageURL)
	if err != nil {
		c.logger.Warn("pagewatch: parse failed", "url", pageURL, "error", err)
		return false
	}

	verdict := c.detector.Detect(doc)

	c.mu.Lock()
	if c.version != v {
		c.mu.Unlock()
		c.logger.Debug("pagewatch: stale detection dropped", "url", pageURL)
		return false
	}
	c.verdict = &verdict
	c.mu.Unlock()

	if !verdict.IsQualifyingPage {
		return false
	}

	ev := track.Event{
		Kind:  track.KindBrandDetected,
		URL:   pageURL,
		Brand: verdict.WinningBrand.Name,
		Score: verdict.ConfidenceScore,
	}
	if md := detect.Summarize(doc); md != "" {
		ev.Payload = map[string]any{"summary": md}
	}
	c.emit(ctx, ev)

	if prefs.AutoShow && verdict.ConfidenceScore >= prefs.MinConfidence {
		c.showNotification(ctx, verdict, pageURL)
	}
	return true
}

func (c *Coordinator) showNotification(ctx context.Context, verdict detect.Verdict, pageURL string) {
	content := notify.Content{
		Brand:           verdict.WinningBrand.Name,
		CashbackPercent: verdict.WinningBrand.CashbackPercent,
		ProductTitle:    verdict.PageTitle,
		OfferURL:        c.searchURL(verdict.WinningBrand.Name),
	}
	if err := c.notifier.MaybeShow(ctx, verdict, pageURL, content); err != nil {
		c.logger.Warn("pagewatch: show notification failed", "url", pageURL, "error", err)
		return
	}
	if c.notifier.State() == notify.StateDisplaying {
		c.emit(ctx, track.Event{Kind: track.KindNotification, URL: pageURL, Brand: content.Brand})
	}
}

// ReDetect reloads preferences and runs a fresh pass immediately. The
// version token still protects it: a navigation racing the pass drops
// the result.
func (c *Coordinator) ReDetect(ctx context.Context) (bool, error) {
	prefs, err := c.prefs.Preferences(ctx)
	if err != nil {
		return false, fmt.Errorf("pagewatch: load preferences: %w", err)
	}
	if !prefs.Enabled {
		return false, errors.New("pagewatch: detection disabled by preferences")
	}
	return c.runDetection(ctx, prefs), nil
}

// Verdict returns the current page-view's verdict, or nil before the
// first completed pass.
func (c *Coordinator) Verdict() *detect.Verdict {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verdict
}

// searchURL builds the partner search link for a brand.
func (c *Coordinator) searchURL(brand string) string {
	q := url.Values{}
	q.Set("query", brand)
	q.Set("source", "extension")
	return fmt.Sprintf("https://%s/search?%s", c.cfg.PartnerDomain, q.Encode())
}

func (c *Coordinator) emit(ctx context.Context, ev track.Event) {
	if c.tracker == nil {
		return
	}
	if err := c.tracker.Emit(ctx, ev); err != nil {
		c.logger.Debug("pagewatch: track emit failed", "kind", ev.Kind, "error", err)
	}
}

// domainBlacklisted reports whether the URL's host matches any entry
// (exact or subdomain-suffix).
func domainBlacklisted(pageURL string, domains []string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
