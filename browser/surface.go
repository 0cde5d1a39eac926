package browser

import (
	"context"
	"fmt"
	"html"
	"strconv"

	"github.com/go-rod/rod/lib/proto"
	"github.com/microcosm-cc/bluemonday"

	"github.com/cashpeek/cashpeek/notify"
)

// overlayID is the DOM id of the mounted notification element. The z
// scans skip this subtree so the notification never competes with
// itself.
const overlayID = "cashpeek-notification"

// additionBinding is the JS→Go channel for subtree-addition tokens.
const additionBinding = "__cashpeek_add"

// dismissBinding fires when the user clicks the overlay's close button.
const dismissBinding = "__cashpeek_dismiss"

// zScanJS walks the whole document, descending open shadow roots, and
// returns the maximum computed z-index outside the notification's own
// subtree. Closed shadow roots contribute only their host's value,
// which the host walk already covers.
const zScanJS = `() => {
	const own = document.getElementById("` + overlayID + `");
	let max = 0;
	const walk = (root) => {
		const els = root.querySelectorAll("*");
		for (const el of els) {
			if (own && (el === own || own.contains(el))) continue;
			const z = parseInt(getComputedStyle(el).zIndex, 10);
			if (!isNaN(z) && z > max) max = z;
			if (el.shadowRoot) walk(el.shadowRoot);
		}
	};
	walk(document);
	return max;
}`

// zScanScopeJS scans only a previously registered added subtree.
const zScanScopeJS = `(token) => {
	const reg = window.__cashpeek_added || {};
	const nodes = reg[token];
	if (!nodes) return 0;
	const own = document.getElementById("` + overlayID + `");
	let max = 0;
	const visit = (el) => {
		if (!(el instanceof Element)) return;
		if (own && (el === own || own.contains(el))) return;
		const z = parseInt(getComputedStyle(el).zIndex, 10);
		if (!isNaN(z) && z > max) max = z;
		for (const child of el.querySelectorAll("*")) {
			if (own && own.contains(child)) continue;
			const cz = parseInt(getComputedStyle(child).zIndex, 10);
			if (!isNaN(cz) && cz > max) max = cz;
			if (child.shadowRoot) visit(child.shadowRoot.host);
		}
		if (el.shadowRoot) {
			for (const child of el.shadowRoot.querySelectorAll("*")) visit(child);
		}
	};
	for (const el of nodes) visit(el);
	delete reg[token];
	return max;
}`

// additionWatchJS registers added subtrees under tokens and pings the
// binding once per batch. Additions inside the notification itself are
// ignored, so mounting can never trigger its own re-scan.
const additionWatchJS = `(() => {
	if (window.__cashpeek_addwatch) return;
	window.__cashpeek_added = {};
	let seq = 0;
	const obs = new MutationObserver((muts) => {
		const own = document.getElementById("` + overlayID + `");
		const batch = [];
		for (const m of muts) {
			for (const n of m.addedNodes) {
				if (!(n instanceof Element)) continue;
				if (own && (n === own || own.contains(n))) continue;
				batch.push(n);
			}
		}
		if (batch.length === 0) return;
		const token = "add-" + (++seq);
		window.__cashpeek_added[token] = batch;
		try { window.` + additionBinding + `(token); } catch (e) {}
	});
	obs.observe(document.documentElement, { childList: true, subtree: true });
	window.__cashpeek_addwatch = obs;
})()`

const additionUnwatchJS = `() => {
	if (window.__cashpeek_addwatch) {
		window.__cashpeek_addwatch.disconnect();
		window.__cashpeek_addwatch = null;
	}
	window.__cashpeek_added = {};
}`

// Surface renders the notification into a live page. Implements
// notify.Surface.
type Surface struct {
	page   *Page
	strict *bluemonday.Policy
}

// NewSurface creates a Surface bound to a page.
func NewSurface(page *Page) *Surface {
	return &Surface{page: page, strict: bluemonday.StrictPolicy()}
}

// Mount injects the overlay element at the given z-index. All content
// strings pass through a strict sanitizer before entering the page.
func (s *Surface) Mount(ctx context.Context, content notify.Content, zIndex int64) error {
	markup := s.renderHTML(content, zIndex)
	js := `(html) => {
		const prev = document.getElementById("` + overlayID + `");
		if (prev) prev.remove();
		const holder = document.createElement("div");
		holder.innerHTML = html;
		document.body.appendChild(holder.firstElementChild);
	}`
	if _, err := s.page.Eval(ctx, js, markup); err != nil {
		return fmt.Errorf("browser: mount overlay: %w", err)
	}
	return nil
}

// Raise updates the overlay's z-index in place.
func (s *Surface) Raise(ctx context.Context, zIndex int64) error {
	js := `(z) => {
		const el = document.getElementById("` + overlayID + `");
		if (el) el.style.zIndex = String(z);
	}`
	if _, err := s.page.Eval(ctx, js, zIndex); err != nil {
		return fmt.Errorf("browser: raise overlay: %w", err)
	}
	return nil
}

// Unmount removes the overlay element.
func (s *Surface) Unmount(ctx context.Context) error {
	js := `() => {
		const el = document.getElementById("` + overlayID + `");
		if (el) el.remove();
	}`
	if _, err := s.page.Eval(ctx, js); err != nil {
		return fmt.Errorf("browser: unmount overlay: %w", err)
	}
	return nil
}

// MaxZIndex scans the whole document.
func (s *Surface) MaxZIndex(ctx context.Context) (int64, error) {
	res, err := s.page.Eval(ctx, zScanJS)
	if err != nil {
		return 0, fmt.Errorf("browser: z scan: %w", err)
	}
	return int64(res.Value.Int()), nil
}

// MaxZIndexIn scans one added subtree by its token.
func (s *Surface) MaxZIndexIn(ctx context.Context, scope string) (int64, error) {
	res, err := s.page.Eval(ctx, zScanScopeJS, scope)
	if err != nil {
		return 0, fmt.Errorf("browser: scoped z scan: %w", err)
	}
	return int64(res.Value.Int()), nil
}

// WatchAdditions installs the addition observer and forwards subtree
// tokens until cancel is called.
func (s *Surface) WatchAdditions(ctx context.Context, onAdded func(scope string)) (func(), error) {
	if err := (proto.RuntimeAddBinding{Name: additionBinding}).Call(s.page.page); err != nil {
		s.page.mgr.cfg.Logger.Warn("browser: add binding failed (may already exist)", "error", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	go s.page.page.Context(watchCtx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name == additionBinding {
			onAdded(e.Payload)
		}
	})()

	if _, err := s.page.Eval(ctx, additionWatchJS); err != nil {
		cancel()
		return nil, fmt.Errorf("browser: inject addition watch: %w", err)
	}

	return func() {
		cancel()
		if _, err := s.page.Eval(context.Background(), additionUnwatchJS); err != nil {
			s.page.mgr.cfg.Logger.Debug("browser: addition unwatch failed", "error", err)
		}
	}, nil
}

// WatchDismiss forwards overlay clicks until cancel is called. The
// close button reports "close" and the offer link "offer"; both
// elements invoke the binding directly, so no observer script is
// needed.
func (s *Surface) WatchDismiss(ctx context.Context, onDismiss func(action string)) (func(), error) {
	if err := (proto.RuntimeAddBinding{Name: dismissBinding}).Call(s.page.page); err != nil {
		s.page.mgr.cfg.Logger.Warn("browser: add binding failed (may already exist)", "error", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	go s.page.page.Context(watchCtx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name == dismissBinding {
			onDismiss(e.Payload)
		}
	})()

	return cancel, nil
}

// renderHTML builds the overlay markup. Text fields pass through the
// strict sanitizer once (it entity-escapes its output); the offer URL
// is attribute-escaped in Go. Numbers are formatted in Go, never
// interpolated by JS.
//
// The offer link invokes the dismiss binding with "offer" so the Go
// side can record the dismissal and open the search in a new tab; when
// the binding is absent it falls back to a plain target="_blank" link.
func (s *Surface) renderHTML(content notify.Content, zIndex int64) string {
	brand := s.strict.Sanitize(content.Brand)
	title := s.strict.Sanitize(content.ProductTitle)
	offer := html.EscapeString(content.OfferURL)
	pct := strconv.Itoa(content.CashbackPercent)
	z := strconv.FormatInt(zIndex, 10)

	return `<div id="` + overlayID + `" style="position:fixed;top:16px;right:16px;z-index:` + z + `;` +
		`background:#fff;border:1px solid #ddd;border-radius:8px;padding:12px 16px;` +
		`box-shadow:0 4px 12px rgba(0,0,0,.15);font:14px/1.4 sans-serif;max-width:320px;">` +
		`<button onclick="window.` + dismissBinding + ` &amp;&amp; window.` + dismissBinding + `('close')" ` +
		`style="float:right;border:0;background:none;cursor:pointer;font-size:16px;" aria-label="Dismiss">&times;</button>` +
		`<strong>` + pct + `% cashback</strong> at ` + brand +
		`<div style="color:#666;margin-top:4px;">` + title + `</div>` +
		`<a href="` + offer + `" target="_blank" rel="noopener" ` +
		`onclick="if (window.` + dismissBinding + `) { window.` + dismissBinding + `('offer'); return false }" ` +
		`style="display:inline-block;margin-top:8px;">Activate offer</a>` +
		`</div>`
}
