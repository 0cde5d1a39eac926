// Package notify manages the on-page cashback notification: its
// lifecycle state machine and the z-index arbitration that keeps it
// stacked above arbitrary third-party page content.
//
// A displayed notification has no automatic timeout. It leaves the
// screen only through an explicit user action, and both dismissal
// paths write a durable record keyed by the exact page URL before the
// element is removed.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cashpeek/cashpeek/detect"
	"github.com/cashpeek/cashpeek/store"
)

// State of the notification for one page-view.
type State int

const (
	StateIdle State = iota
	StateDisplaying
	StateDismissed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDisplaying:
		return "displaying"
	case StateDismissed:
		return "dismissed"
	}
	return "unknown"
}

// Content is what the overlay displays.
type Content struct {
	Brand           string
	CashbackPercent int
	ProductTitle    string
	OfferURL        string
}

// Surface is the UI port the controller drives. The browser package
// provides the live implementation; tests use an in-memory fake.
//
// MaxZIndex scans computed z-index values across the document
// (descending open shadow roots; closed roots contribute only their
// host's own value) excluding the notification's own subtree.
// MaxZIndexIn restricts the scan to one added subtree, identified by an
// opaque scope token the surface itself handed out via WatchAdditions.
type Surface interface {
	Mount(ctx context.Context, content Content, zIndex int64) error
	Raise(ctx context.Context, zIndex int64) error
	Unmount(ctx context.Context) error
	MaxZIndex(ctx context.Context) (int64, error)
	MaxZIndexIn(ctx context.Context, scope string) (int64, error)
	WatchAdditions(ctx context.Context, onAdded func(scope string)) (cancel func(), err error)
}

// DismissalStore is the durable-record port. *store.Store satisfies it.
type DismissalStore interface {
	Dismissal(ctx context.Context, url string) (*store.DismissalRecord, error)
	RecordDismissal(ctx context.Context, rec store.DismissalRecord) error
}

// DefaultCooldown suppresses re-display on a URL the user dismissed
// recently.
const DefaultCooldown = 15 * time.Minute

// DefaultZFloor is the sentinel minimum z-index, so the notification
// wins even on pages with no stacking competition at all.
const DefaultZFloor = int64(2_147_480_000)

// Config for a Controller. One controller serves one page-view.
type Config struct {
	Surface Surface
	Store   DismissalStore

	// Cooldown before a dismissed URL may show again. Default: 15m.
	Cooldown time.Duration
	// RecheckDelays are the fixed-delay re-scans after mount, defeating
	// late-loading overlays. Default: 500ms, 1500ms.
	RecheckDelays []time.Duration
	// SettleDelay lets newly added DOM content finish rendering before
	// its subtree is scanned. Default: 250ms.
	SettleDelay time.Duration
	// ZFloor is the sentinel minimum z-index. Default: DefaultZFloor.
	ZFloor int64
	// Now is the clock, injectable for cooldown tests.
	Now func() time.Time

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if len(c.RecheckDelays) == 0 {
		c.RecheckDelays = []time.Duration{500 * time.Millisecond, 1500 * time.Millisecond}
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 250 * time.Millisecond
	}
	if c.ZFloor <= 0 {
		c.ZFloor = DefaultZFloor
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Controller owns at most one live notification. All callbacks (timers,
// addition watches) serialize on the same mutex as the public methods,
// matching the cooperative single-threaded contract of the page
// environment.
type Controller struct {
	cfg Config

	mu          sync.Mutex
	state       State
	z           int64
	url         string
	content     Content
	ctx         context.Context
	cancelWatch func()
	timers      []*time.Timer
}

// NewController creates a Controller in StateIdle.
func NewController(cfg Config) *Controller {
	cfg.defaults()
	return &Controller{cfg: cfg}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ZIndex returns the currently assigned z-index (0 when not displaying).
func (c *Controller) ZIndex() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.z
}

// MaybeShow displays the notification for a qualifying verdict unless a
// notification was already shown this page-view or the URL is inside
// its dismissal cooldown. A second call while Displaying is a no-op.
func (c *Controller) MaybeShow(ctx context.Context, verdict detect.Verdict, pageURL string, content Content) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return nil
	}
	if !verdict.IsQualifyingPage {
		return nil
	}

	rec, err := c.cfg.Store.Dismissal(ctx, pageURL)
	if err != nil {
		// A failing read must not block the only user-visible feature;
		// treat it as "no record".
		c.cfg.Logger.Warn("notify: dismissal read failed", "url", pageURL, "error", err)
	}
	if rec != nil && c.cfg.Now().Sub(rec.DismissedAt) < c.cfg.Cooldown {
		c.cfg.Logger.Debug("notify: suppressed by dismissal cooldown",
			"url", pageURL, "dismissed_at", rec.DismissedAt)
		return nil
	}

	z := c.initialZ(ctx)
	if err := c.cfg.Surface.Mount(ctx, content, z); err != nil {
		return fmt.Errorf("notify: mount: %w", err)
	}

	c.state = StateDisplaying
	c.z = z
	c.url = pageURL
	c.content = content
	c.ctx = ctx

	c.armRechecks()
	c.armAdditionWatch(ctx)

	c.cfg.Logger.Info("notify: displaying",
		"url", pageURL, "brand", content.Brand, "z_index", z)
	return nil
}

// Dismiss ends the Displaying state on explicit user action (close
// button or offer action). The dismissal record is written before the
// watcher teardown and element removal.
func (c *Controller) Dismiss(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDisplaying {
		return nil
	}
	c.dismissLocked(ctx)
	return nil
}

// ActOnOffer dismisses exactly like Dismiss and returns the offer URL
// so the caller can open the partner search. Returns "" when nothing
// is displayed. The dismissal record is written before the element is
// removed, same as the close path.
func (c *Controller) ActOnOffer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDisplaying {
		return "", nil
	}
	offer := c.content.OfferURL
	c.dismissLocked(ctx)
	return offer, nil
}

func (c *Controller) dismissLocked(ctx context.Context) {
	rec := store.DismissalRecord{
		URL:          c.url,
		DismissedAt:  c.cfg.Now(),
		Brand:        c.content.Brand,
		ProductTitle: c.content.ProductTitle,
	}
	if err := c.cfg.Store.RecordDismissal(ctx, rec); err != nil {
		// Recording failed: the notification may reappear sooner than
		// the cooldown promises, which is the acceptable degradation.
		c.cfg.Logger.Warn("notify: record dismissal failed", "url", c.url, "error", err)
	}

	c.teardownLocked(ctx)
	c.state = StateDismissed

	c.cfg.Logger.Info("notify: dismissed", "url", rec.URL, "brand", rec.Brand)
}

// Reset tears the notification down without recording a dismissal.
// The coordinator calls it when the page-view ends (SPA navigation).
func (c *Controller) Reset(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDisplaying {
		c.teardownLocked(ctx)
	}
	c.state = StateIdle
	c.z = 0
	c.url = ""
}

// initialZ runs the first whole-document scan. The result is one more
// than the observed maximum, floored at the sentinel.
func (c *Controller) initialZ(ctx context.Context) int64 {
	max, err := c.cfg.Surface.MaxZIndex(ctx)
	if err != nil {
		c.cfg.Logger.Warn("notify: initial z scan failed", "error", err)
		max = 0
	}
	z := max + 1
	if z < c.cfg.ZFloor {
		z = c.cfg.ZFloor
	}
	return z
}

// armRechecks schedules the fixed-delay whole-document re-scans.
func (c *Controller) armRechecks() {
	for _, delay := range c.cfg.RecheckDelays {
		t := time.AfterFunc(delay, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.rescanLocked(func(ctx context.Context) (int64, error) {
				return c.cfg.Surface.MaxZIndex(ctx)
			})
		})
		c.timers = append(c.timers, t)
	}
}

// armAdditionWatch installs the persistent watcher. Every added subtree
// is re-scanned after the settle delay; the surface already excludes the
// notification's own subtree, so there is no self-reinforcing loop.
func (c *Controller) armAdditionWatch(ctx context.Context) {
	cancel, err := c.cfg.Surface.WatchAdditions(ctx, func(scope string) {
		t := time.AfterFunc(c.cfg.SettleDelay, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.rescanLocked(func(ctx context.Context) (int64, error) {
				return c.cfg.Surface.MaxZIndexIn(ctx, scope)
			})
		})
		c.mu.Lock()
		c.timers = append(c.timers, t)
		c.mu.Unlock()
	})
	if err != nil {
		c.cfg.Logger.Warn("notify: addition watch failed", "error", err)
		return
	}
	c.cancelWatch = cancel
}

// rescanLocked raises the notification when a competing z beats the
// current one. The assigned z never decreases, so interleaving between
// fixed-delay and mutation-driven scans cannot regress the outcome.
func (c *Controller) rescanLocked(scan func(context.Context) (int64, error)) {
	if c.state != StateDisplaying {
		return
	}

	observed, err := scan(c.ctx)
	if err != nil {
		c.cfg.Logger.Debug("notify: z rescan failed", "error", err)
		return
	}
	if observed < c.z {
		return
	}

	c.z = observed + 1
	if err := c.cfg.Surface.Raise(c.ctx, c.z); err != nil {
		c.cfg.Logger.Warn("notify: raise failed", "z_index", c.z, "error", err)
		return
	}
	c.cfg.Logger.Debug("notify: raised", "z_index", c.z)
}

// teardownLocked disconnects the watcher before the element is removed,
// so no observer outlives its target.
func (c *Controller) teardownLocked(ctx context.Context) {
	if c.cancelWatch != nil {
		c.cancelWatch()
		c.cancelWatch = nil
	}
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil

	if err := c.cfg.Surface.Unmount(ctx); err != nil {
		c.cfg.Logger.Warn("notify: unmount failed", "error", err)
	}
}
