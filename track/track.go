// Package track defines the analytics events cashpeek emits and the
// output backends that deliver them.
package track

import (
	"context"
	"time"
)

// Event kinds.
const (
	KindBrandDetected = "BRAND_DETECTED"
	KindNotification  = "NOTIFICATION_SHOWN"
	KindDismissal     = "NOTIFICATION_DISMISSED"
	KindSearch        = "SEARCH_TRIGGERED"
	KindGeneric       = "TRACK_EVENT"
)

// Event is one analytics record. ID is an "evt_" tagged UUIDv7, so
// history rows sort by creation time.
type Event struct {
	ID      string         `json:"id"`
	Kind    string         `json:"kind"`
	At      time.Time      `json:"at"`
	URL     string         `json:"url,omitempty"`
	Brand   string         `json:"brand,omitempty"`
	Score   int            `json:"score,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Sink is the output interface. Implementations deliver events to
// different backends (stdout, webhook, in-process callback).
type Sink interface {
	Send(ctx context.Context, ev Event) error
	Close() error
}
