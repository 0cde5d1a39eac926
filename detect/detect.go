// Package detect composes the PDP scorer and the brand voting engine
// into one page-level verdict.
//
// The composition is two-step: the PDP score must clear the threshold
// before the brand vote runs, and the page qualifies only when both
// pass. A high-scoring page with no catalog brand, or a brand mention on
// a non-product page, never qualifies. Detection is a pure function of
// one DOM snapshot — no caching, no network.
package detect

import (
	"log/slog"

	"github.com/cashpeek/cashpeek/brandvote"
	"github.com/cashpeek/cashpeek/catalog"
	"github.com/cashpeek/cashpeek/dom"
	"github.com/cashpeek/cashpeek/pdp"
)

// Verdict is the per-page decision bundle. Held by the coordinator as
// current page state and invalidated on navigation.
type Verdict struct {
	IsQualifyingPage bool                 `json:"is_qualifying_page"`
	ConfidenceScore  int                  `json:"confidence_score"`
	WinningBrand     *catalog.BrandRecord `json:"winning_brand,omitempty"`
	PageTitle        string               `json:"page_title,omitempty"`
	Signals          pdp.Signals          `json:"signals"`
}

// Orchestrator runs detection passes against DOM snapshots.
type Orchestrator struct {
	catalog   *catalog.Catalog
	threshold int
	logger    *slog.Logger
}

// Config for an Orchestrator.
type Config struct {
	// Catalog is the loaded brand catalog. Required (an empty catalog is
	// valid and simply never qualifies).
	Catalog *catalog.Catalog
	// Threshold is the minimum PDP score. Default: pdp.DefaultThreshold.
	Threshold int
	Logger    *slog.Logger
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Threshold <= 0 {
		cfg.Threshold = pdp.DefaultThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		catalog:   cfg.Catalog,
		threshold: cfg.Threshold,
		logger:    cfg.Logger,
	}
}

// Detect scores the snapshot and, if the PDP gate passes, runs the brand
// vote. The verdict always carries the score and signals, even when the
// page does not qualify.
func (o *Orchestrator) Detect(d *dom.Document) Verdict {
	signals, score := pdp.Score(d)

	v := Verdict{
		ConfidenceScore: score,
		PageTitle:       signals.Title,
		Signals:         signals,
	}

	if score < o.threshold {
		o.logger.Debug("detect: below PDP threshold",
			"score", score, "threshold", o.threshold)
		return v
	}

	candidates := brandvote.CollectCandidates(d, o.catalog.Names())
	winner := brandvote.Vote(candidates, o.catalog)
	if winner == nil {
		o.logger.Debug("detect: PDP gate passed but no brand won",
			"score", score, "candidates", len(candidates))
		return v
	}

	v.WinningBrand = winner
	v.IsQualifyingPage = true

	o.logger.Info("detect: qualifying page",
		"brand", winner.Name,
		"cashback_percent", winner.CashbackPercent,
		"score", score,
		"title", signals.Title)
	return v
}
