package network

import (
	"context"

	"sf-orb/server/logging"
)

const (
	// EventSubscriberJoined is emitted when a renderer attaches to the hub.
	EventSubscriberJoined logging.EventType = "network.subscriber_joined"
	// EventSubscriberLeft is emitted when a renderer detaches or times out.
	EventSubscriberLeft logging.EventType = "network.subscriber_left"
	// EventUpstreamConnected is emitted after a successful handshake.
	EventUpstreamConnected logging.EventType = "network.upstream_connected"
	// EventUpstreamDisconnected is emitted when the upstream channel drops.
	EventUpstreamDisconnected logging.EventType = "network.upstream_disconnected"
	// EventMalformedPayload is emitted when an inbound message fails to decode.
	EventMalformedPayload logging.EventType = "network.malformed_payload"
	// EventQueryForwarded is emitted when a click query is relayed upstream.
	EventQueryForwarded logging.EventType = "network.query_forwarded"
)

// DisconnectPayload records why a channel closed.
type DisconnectPayload struct {
	Reason string `json:"reason"`
}

// QueryPayload records a relayed query.
type QueryPayload struct {
	QueryID string `json:"queryId"`
	Length  int    `json:"length"`
}

func SubscriberJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSubscriberJoined,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
	})
}

func SubscriberLeft(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload DisconnectPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSubscriberLeft,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

func UpstreamConnected(ctx context.Context, pub logging.Publisher, tick uint64, url string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventUpstreamConnected,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: url, Kind: logging.EntityKindUpstream},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
	})
}

func UpstreamDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, url string, payload DisconnectPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventUpstreamDisconnected,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: url, Kind: logging.EntityKindUpstream},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

func MalformedPayload(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, reason string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMalformedPayload,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  DisconnectPayload{Reason: reason},
	})
}

func QueryForwarded(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload QueryPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventQueryForwarded,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}
