package motion

import (
	"context"

	"sf-orb/server/logging"
)

const (
	// EventModeChanged is emitted when the controller's behavior mode flips.
	EventModeChanged logging.EventType = "motion.mode_changed"
	// EventPreferenceApplied is emitted when an external preference takes effect.
	EventPreferenceApplied logging.EventType = "motion.preference_applied"
	// EventPreferenceRejected is emitted when an external preference is discarded.
	EventPreferenceRejected logging.EventType = "motion.preference_rejected"
	// EventSummon is emitted when a summon trigger fires.
	EventSummon logging.EventType = "motion.summon"
	// EventViewportRejected is emitted when a resize carries unusable dimensions.
	EventViewportRejected logging.EventType = "motion.viewport_rejected"
)

// ModePayload captures a mode transition.
type ModePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PreferencePayload captures an external preference message.
type PreferencePayload struct {
	Kind     string  `json:"kind"`
	Value    float64 `json:"value,omitempty"`
	Quadrant string  `json:"quadrant,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// ViewportPayload captures a rejected resize.
type ViewportPayload struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func ModeChanged(ctx context.Context, pub logging.Publisher, tick uint64, payload ModePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventModeChanged,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: "orb", Kind: logging.EntityKindOrb},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryMotion,
		Payload:  payload,
	})
}

func PreferenceApplied(ctx context.Context, pub logging.Publisher, tick uint64, payload PreferencePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPreferenceApplied,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: "upstream", Kind: logging.EntityKindUpstream},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryMotion,
		Payload:  payload,
	})
}

func PreferenceRejected(ctx context.Context, pub logging.Publisher, tick uint64, payload PreferencePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPreferenceRejected,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: "upstream", Kind: logging.EntityKindUpstream},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryMotion,
		Payload:  payload,
	})
}

func Summon(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, toCursor bool) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSummon,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryMotion,
		Payload:  map[string]any{"toCursor": toCursor},
	})
}

func ViewportRejected(ctx context.Context, pub logging.Publisher, tick uint64, payload ViewportPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventViewportRejected,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: "orb", Kind: logging.EntityKindOrb},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryMotion,
		Payload:  payload,
	})
}
