package pagewatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cashpeek/cashpeek/command"
	"github.com/cashpeek/cashpeek/notify"
	"github.com/cashpeek/cashpeek/track"
)

// DetectionResult is the reply to GET_DETECTION_RESULT. Ready is false
// until the first pass of the current page-view completes.
type DetectionResult struct {
	Ready           bool   `json:"ready"`
	Enabled         bool   `json:"enabled"`
	IsQualifying    bool   `json:"is_qualifying"`
	ConfidenceScore int    `json:"confidence_score"`
	Brand           string `json:"brand,omitempty"`
	CashbackPercent int    `json:"cashback_percent,omitempty"`
	ProductTitle    string `json:"product_title,omitempty"`
}

type searchPayload struct {
	Brand string `json:"brand"`
}

// RegisterCommands installs the coordinator's handlers on a command
// router.
func (c *Coordinator) RegisterCommands(r *command.Router) {
	r.Register(command.TypeDetectionResult, c.handleDetectionResult)
	r.Register(command.TypeTriggerSearch, c.handleTriggerSearch)
	r.Register(command.TypeShowNotification, c.handleShowNotification)
	r.Register(command.TypeReDetect, c.handleReDetect)
}

func (c *Coordinator) handleDetectionResult(_ context.Context, _ json.RawMessage) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := DetectionResult{Enabled: !c.userOff}
	if c.verdict == nil {
		return res, nil
	}
	res.Ready = true
	res.IsQualifying = c.verdict.IsQualifyingPage
	res.ConfidenceScore = c.verdict.ConfidenceScore
	if c.verdict.WinningBrand != nil {
		res.Brand = c.verdict.WinningBrand.Name
		res.CashbackPercent = c.verdict.WinningBrand.CashbackPercent
		res.ProductTitle = c.verdict.PageTitle
	}
	return res, nil
}

// handleTriggerSearch opens the partner search for the requested brand,
// defaulting to the detected one.
func (c *Coordinator) handleTriggerSearch(ctx context.Context, payload json.RawMessage) (any, error) {
	var p searchPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}
	if p.Brand == "" {
		c.mu.Lock()
		if c.verdict != nil && c.verdict.WinningBrand != nil {
			p.Brand = c.verdict.WinningBrand.Name
		}
		c.mu.Unlock()
	}
	if p.Brand == "" {
		return nil, errors.New("no brand to search for")
	}

	// Acting on the offer counts as dismissing the notification: the
	// record is written before the search opens.
	if c.notifier.State() == notify.StateDisplaying {
		if err := c.notifier.Dismiss(ctx); err != nil {
			c.logger.Warn("pagewatch: dismiss before search failed", "error", err)
		}
	}

	target := c.searchURL(p.Brand)
	if err := c.page.Open(ctx, target); err != nil {
		return nil, fmt.Errorf("open search: %w", err)
	}
	c.emit(ctx, track.Event{Kind: track.KindSearch, URL: target, Brand: p.Brand})
	return map[string]string{"url": target}, nil
}

// handleShowNotification forces the notification for the current
// verdict, bypassing the auto-show preference (the user asked for it).
// The dismissal cooldown and already-shown guards still apply.
func (c *Coordinator) handleShowNotification(ctx context.Context, _ json.RawMessage) (any, error) {
	c.mu.Lock()
	verdict := c.verdict
	pageURL := c.pageURL
	c.mu.Unlock()

	if verdict == nil || !verdict.IsQualifyingPage {
		return nil, errors.New("no qualifying detection on this page")
	}
	c.showNotification(ctx, *verdict, pageURL)
	return map[string]string{"state": c.notifier.State().String()}, nil
}

func (c *Coordinator) handleReDetect(ctx context.Context, _ json.RawMessage) (any, error) {
	qualified, err := c.ReDetect(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]bool{"is_qualifying": qualified}, nil
}
