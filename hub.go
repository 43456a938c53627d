package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sf-orb/server/internal/motion"
	"sf-orb/server/logging"
	motionlog "sf-orb/server/logging/motion"
	networklog "sf-orb/server/logging/network"
)

// QuerySender relays click queries to the upstream cognitive module. A nil
// sender (no upstream configured, or channel down) is legal: queries are
// counted and dropped, and the orb keeps animating.
type QuerySender interface {
	SendQuery(id, text string) error
}

// Hub owns the motion controller and every renderer subscription. All
// controller access goes through the hub's mutex; the three input streams
// (pointer events, ticks, upstream pushes) are serialized here.
type Hub struct {
	mu          sync.Mutex
	ctrl        *motion.Controller
	cfg         Config
	subscribers map[string]*subscriber
	sender      QuerySender
	lastMode    motion.Mode

	nextID    atomic.Uint64
	tick      atomic.Uint64
	telemetry *telemetryCounters
	publisher logging.Publisher
	clock     motion.Clock
}

type subscriber struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex

	lastHeartbeat time.Time
	lastRTT       time.Duration
}

// ID returns the subscriber's hub-assigned identifier.
func (s *subscriber) ID() string {
	return s.id
}

// WriteMessage serializes writes on the connection.
func (s *subscriber) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

// NewHub builds a hub from a normalized config.
func NewHub(cfg Config, publisher logging.Publisher) (*Hub, error) {
	return NewHubWithClock(cfg, publisher, nil)
}

// NewHubWithClock injects a clock for deterministic tests.
func NewHubWithClock(cfg Config, publisher logging.Publisher, clock motion.Clock) (*Hub, error) {
	cfg = cfg.Normalized()
	if clock == nil {
		clock = motion.ClockFunc(time.Now)
	}
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	ctrl, err := motion.NewController(cfg.Tuning, cfg.Viewport.Width, cfg.Viewport.Height, clock)
	if err != nil {
		return nil, fmt.Errorf("construct controller: %w", err)
	}
	return &Hub{
		ctrl:        ctrl,
		cfg:         cfg,
		subscribers: make(map[string]*subscriber),
		telemetry:   newTelemetryCounters(),
		publisher:   publisher,
		clock:       clock,
	}, nil
}

// SetQuerySender installs (or clears) the upstream relay.
func (h *Hub) SetQuerySender(sender QuerySender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sender = sender
}

// TickRate reports the frame cadence for the diagnostics payload.
func (h *Hub) TickRate() int {
	return h.cfg.TickRate
}

// CurrentConfig returns the active config.
func (h *Hub) CurrentConfig() Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg
}

// Subscribe attaches a renderer connection and returns its hello frame.
func (h *Hub) Subscribe(conn *websocket.Conn) (*subscriber, helloMessage) {
	id := fmt.Sprintf("renderer-%d", h.nextID.Add(1))
	sub := &subscriber{id: id, conn: conn, lastHeartbeat: h.clock.Now()}

	h.mu.Lock()
	h.subscribers[id] = sub
	hello := helloMessage{
		Ver:      ProtocolVersion,
		Type:     "hello",
		ID:       id,
		OrbID:    h.cfg.OrbID,
		TickRate: h.cfg.TickRate,
		Tuning:   h.ctrl.Tuning(),
		State:    h.stateMessageLocked(),
	}
	hello.Width, hello.Height = h.ctrl.Viewport()
	h.mu.Unlock()

	networklog.SubscriberJoined(context.Background(), h.publisher, h.tick.Load(),
		logging.EntityRef{ID: id, Kind: logging.EntityKindClient})
	return sub, hello
}

// Disconnect removes a subscriber and closes its connection.
func (h *Hub) Disconnect(id, reason string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	sub.conn.Close()
	networklog.SubscriberLeft(context.Background(), h.publisher, h.tick.Load(),
		logging.EntityRef{ID: id, Kind: logging.EntityKindClient},
		networklog.DisconnectPayload{Reason: reason})
}

// HandlePointer feeds a cursor sample into the controller.
func (h *Hub) HandlePointer(x, y float64) {
	h.telemetry.IncrementPointer()
	h.mu.Lock()
	h.ctrl.PointerMove(x, y)
	h.mu.Unlock()
}

// HandleResize installs new viewport bounds. Unusable dimensions keep the
// previous bounds and are reported, never fatal.
func (h *Hub) HandleResize(width, height float64) bool {
	h.mu.Lock()
	err := h.ctrl.Resize(width, height)
	h.mu.Unlock()

	if err != nil {
		motionlog.ViewportRejected(context.Background(), h.publisher, h.tick.Load(),
			motionlog.ViewportPayload{Width: width, Height: height})
		return false
	}
	return true
}

// HandleSummon forces the target to the cursor or viewport center.
func (h *Hub) HandleSummon(to string, actor logging.EntityRef) {
	toCursor := to == "cursor"
	h.telemetry.IncrementSummon()

	h.mu.Lock()
	h.ctrl.Summon(toCursor)
	h.mu.Unlock()

	motionlog.Summon(context.Background(), h.publisher, h.tick.Load(), actor, toCursor)
}

// HandleClick opens the assisting window and relays the query upstream.
// The returned ID correlates the eventual result; it is empty when the
// query could not be forwarded.
func (h *Hub) HandleClick(text string, actor logging.EntityRef) string {
	h.telemetry.IncrementClick()

	h.mu.Lock()
	h.ctrl.Click()
	sender := h.sender
	h.mu.Unlock()

	if sender == nil || text == "" {
		return ""
	}

	queryID := uuid.New().String()
	if err := sender.SendQuery(queryID, text); err != nil {
		networklog.UpstreamDisconnected(context.Background(), h.publisher, h.tick.Load(),
			h.cfg.UpstreamURL, networklog.DisconnectPayload{Reason: err.Error()})
		return ""
	}
	h.telemetry.IncrementQueryForwarded()
	networklog.QueryForwarded(context.Background(), h.publisher, h.tick.Load(), actor,
		networklog.QueryPayload{QueryID: queryID, Length: len(text)})
	return queryID
}

// HandleQueryResult applies the responder's confidence as a transient
// speaking glow. The text itself is the renderer's concern.
func (h *Hub) HandleQueryResult(queryID string, confidence float64) {
	h.telemetry.IncrementQueryResult()
	h.mu.Lock()
	h.ctrl.Speak(confidence)
	h.mu.Unlock()
}

// HandleSmoothingOverride applies an externally pushed smoothing factor.
// Out-of-range values are rejected and the previous factor retained.
func (h *Hub) HandleSmoothingOverride(value float64) bool {
	h.mu.Lock()
	err := h.ctrl.ApplySmoothing(value)
	h.mu.Unlock()

	payload := motionlog.PreferencePayload{Kind: "smoothing_override", Value: value}
	if err != nil {
		payload.Reason = err.Error()
		h.telemetry.IncrementPreferenceRejected()
		motionlog.PreferenceRejected(context.Background(), h.publisher, h.tick.Load(), payload)
		return false
	}
	h.telemetry.IncrementPreferenceApplied()
	motionlog.PreferenceApplied(context.Background(), h.publisher, h.tick.Load(), payload)
	return true
}

// HandleDriftPreference repositions the idle anchor. Unknown quadrants
// fall back to center inside the controller, so this never fails.
func (h *Hub) HandleDriftPreference(quadrant string) {
	h.mu.Lock()
	h.ctrl.ApplyDrift(quadrant)
	h.mu.Unlock()

	h.telemetry.IncrementPreferenceApplied()
	motionlog.PreferenceApplied(context.Background(), h.publisher, h.tick.Load(),
		motionlog.PreferencePayload{Kind: "drift_preference", Quadrant: quadrant})
}

// ApplyTuning swaps the live motion tuning (config hot-reload).
func (h *Hub) ApplyTuning(tuning motion.Tuning) {
	h.mu.Lock()
	h.ctrl.Retune(tuning)
	h.cfg.Tuning = h.ctrl.Tuning()
	h.mu.Unlock()
}

// RecordUpstreamReconnect feeds the telemetry counter from the upstream client.
func (h *Hub) RecordUpstreamReconnect() {
	h.telemetry.IncrementUpstreamReconnect()
}

// RecordMalformed feeds the telemetry counter from the transport layers.
func (h *Hub) RecordMalformed() {
	h.telemetry.IncrementMalformed()
}

// UpdateHeartbeat refreshes a subscriber's liveness and returns its RTT.
func (h *Hub) UpdateHeartbeat(id string, receivedAt time.Time, clientSent int64) (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subscribers[id]
	if !ok {
		return 0, false
	}
	sub.lastHeartbeat = receivedAt

	var rtt time.Duration
	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(5 * time.Second)) {
			rtt = receivedAt.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
			sub.lastRTT = rtt
		}
	}
	return sub.lastRTT, true
}

// advance steps the controller one frame and collects the broadcast frame
// plus any subscribers that timed out.
func (h *Hub) advance(now time.Time) (stateMessage, []*subscriber, *motionlog.ModePayload) {
	h.mu.Lock()

	var timedOut []*subscriber
	for id, sub := range h.subscribers {
		if now.Sub(sub.lastHeartbeat) > disconnectAfter {
			timedOut = append(timedOut, sub)
			delete(h.subscribers, id)
		}
	}

	h.ctrl.Step(now)
	h.tick.Add(1)

	var transition *motionlog.ModePayload
	if mode := h.ctrl.Mode(); mode != h.lastMode {
		transition = &motionlog.ModePayload{From: h.lastMode.String(), To: mode.String()}
		h.lastMode = mode
	}

	frame := h.stateMessageLocked()
	h.mu.Unlock()

	return frame, timedOut, transition
}

// stateMessageLocked builds the wire frame; callers hold h.mu.
func (h *Hub) stateMessageLocked() stateMessage {
	snap := h.ctrl.Snapshot()
	return stateMessage{
		Ver:        ProtocolVersion,
		Type:       "state",
		Tick:       h.tick.Load(),
		X:          snap.X,
		Y:          snap.Y,
		TargetX:    snap.TargetX,
		TargetY:    snap.TargetY,
		Mode:       snap.Mode,
		Glow:       snap.Glow,
		Speaking:   snap.Speaking,
		ServerTime: h.clock.Now().UnixMilli(),
	}
}

// Snapshot returns the current frame without advancing the simulation.
func (h *Hub) Snapshot() stateMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stateMessageLocked()
}

// broadcastState fans the frame out to every subscriber. Write failures
// disconnect the offender; the loop keeps going for the rest.
func (h *Hub) broadcastState(frame stateMessage) {
	data, err := json.Marshal(frame)
	if err != nil {
		networklog.MalformedPayload(context.Background(), h.publisher, h.tick.Load(),
			logging.EntityRef{ID: "hub", Kind: logging.EntityKindWorld}, err.Error())
		return
	}

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
			h.Disconnect(sub.id, fmt.Sprintf("write failed: %v", err))
		}
	}
	h.telemetry.RecordBroadcast(len(data))
}

// RunSimulation drives the animation loop until stop closes.
func (h *Hub) RunSimulation(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second / time.Duration(h.cfg.TickRate))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			started := h.clock.Now()
			frame, timedOut, transition := h.advance(started)
			for _, sub := range timedOut {
				sub.conn.Close()
				networklog.SubscriberLeft(context.Background(), h.publisher, h.tick.Load(),
					logging.EntityRef{ID: sub.id, Kind: logging.EntityKindClient},
					networklog.DisconnectPayload{Reason: "heartbeat timeout"})
			}
			if transition != nil {
				motionlog.ModeChanged(context.Background(), h.publisher, h.tick.Load(), *transition)
			}
			h.broadcastState(frame)
			h.telemetry.RecordTickDuration(h.clock.Now().Sub(started))
		}
	}
}

// DiagnosticsSnapshot lists live subscribers for the diagnostics endpoint.
func (h *Hub) DiagnosticsSnapshot() []diagnosticsSubscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := make([]diagnosticsSubscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, diagnosticsSubscriber{
			Ver:           ProtocolVersion,
			ID:            sub.id,
			LastHeartbeat: sub.lastHeartbeat.UnixMilli(),
			RTTMillis:     sub.lastRTT.Milliseconds(),
		})
	}
	return subs
}

// TelemetrySnapshot exposes the counters for the diagnostics endpoint.
func (h *Hub) TelemetrySnapshot() telemetrySnapshot {
	return h.telemetry.Snapshot()
}

// Tick reports the current simulation tick.
func (h *Hub) Tick() uint64 {
	return h.tick.Load()
}
