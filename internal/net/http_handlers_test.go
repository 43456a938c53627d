package net

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"sf-orb/server"
)

func newTestHub(t *testing.T) *server.Hub {
	t.Helper()
	hub, err := server.NewHub(server.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("failed to build hub: %v", err)
	}
	return hub
}

func TestHealthEndpoint(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	if body := resp.Body.String(); body != "ok" {
		t.Fatalf("unexpected health body: %q", body)
	}
}

func TestDiagnosticsIncludesTelemetry(t *testing.T) {
	hub := newTestHub(t)
	hub.HandlePointer(100, 100)
	hub.HandlePointer(120, 100)

	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/diagnostics", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode diagnostics payload: %v", err)
	}

	if status, ok := payload["status"].(string); !ok || status != "ok" {
		t.Fatalf("expected ok status, got %v", payload["status"])
	}
	if _, ok := payload["tickRate"].(float64); !ok {
		t.Fatalf("expected tickRate field, payload=%v", payload)
	}

	telemetryValue, ok := payload["telemetry"].(map[string]any)
	if !ok {
		t.Fatalf("expected telemetry object in diagnostics payload, got %T", payload["telemetry"])
	}
	if got, ok := telemetryValue["pointerEvents"].(float64); !ok || got != 2 {
		t.Fatalf("expected 2 pointer events in telemetry, payload=%v", telemetryValue)
	}
}

func TestStateEndpointReturnsFrame(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode state payload: %v", err)
	}
	if payloadType, ok := payload["type"].(string); !ok || payloadType != "state" {
		t.Fatalf("expected state payload type, got %v", payload["type"])
	}
	if mode, ok := payload["mode"].(string); !ok || mode != "idle" {
		t.Fatalf("expected idle mode before any input, got %v", payload["mode"])
	}
}

func TestStateEndpointRejectsWrongMethod(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/state", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405 Method Not Allowed, got %d", resp.Code)
	}
}

func dialTestSocket(t *testing.T, hub *server.Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(NewHTTPHandler(hub, HTTPHandlerConfig{}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("failed to decode frame: %v", err)
	}
	return frame
}

func TestWebsocketHelloFrame(t *testing.T) {
	hub := newTestHub(t)
	conn := dialTestSocket(t, hub)

	hello := readFrame(t, conn)
	if payloadType, ok := hello["type"].(string); !ok || payloadType != "hello" {
		t.Fatalf("expected hello frame first, got %v", hello["type"])
	}
	if id, ok := hello["id"].(string); !ok || id == "" {
		t.Fatalf("expected subscriber id in hello frame, got %v", hello["id"])
	}
	if _, ok := hello["tuning"].(map[string]any); !ok {
		t.Fatalf("expected tuning object in hello frame, got %T", hello["tuning"])
	}
	state, ok := hello["state"].(map[string]any)
	if !ok {
		t.Fatalf("expected state object in hello frame, got %T", hello["state"])
	}
	if mode, ok := state["mode"].(string); !ok || mode != "idle" {
		t.Fatalf("expected idle state in hello frame, got %v", state["mode"])
	}
}

func TestWebsocketHeartbeatAck(t *testing.T) {
	hub := newTestHub(t)
	conn := dialTestSocket(t, hub)

	readFrame(t, conn)

	sentAt := time.Now().UnixMilli()
	msg := map[string]any{"type": "heartbeat", "sentAt": sentAt}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("failed to send heartbeat: %v", err)
	}

	ack := readFrame(t, conn)
	if payloadType, ok := ack["type"].(string); !ok || payloadType != "heartbeat" {
		t.Fatalf("expected heartbeat ack, got %v", ack["type"])
	}
	if clientTime, ok := ack["clientTime"].(float64); !ok || int64(clientTime) != sentAt {
		t.Fatalf("expected clientTime %d echoed, got %v", sentAt, ack["clientTime"])
	}
}

func TestWebsocketPointerReachesController(t *testing.T) {
	hub := newTestHub(t)
	conn := dialTestSocket(t, hub)

	readFrame(t, conn)

	if err := conn.WriteJSON(map[string]any{"type": "pointer", "x": 500.0, "y": 400.0}); err != nil {
		t.Fatalf("failed to send pointer: %v", err)
	}
	if err := conn.WriteJSON(map[string]any{"type": "heartbeat", "sentAt": time.Now().UnixMilli()}); err != nil {
		t.Fatalf("failed to send heartbeat: %v", err)
	}
	readFrame(t, conn)

	if got := hub.TelemetrySnapshot().PointerEvents; got != 1 {
		t.Fatalf("expected 1 pointer event recorded, got %d", got)
	}
}

func TestWebsocketMalformedMessageIsSkipped(t *testing.T) {
	hub := newTestHub(t)
	conn := dialTestSocket(t, hub)

	readFrame(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{")); err != nil {
		t.Fatalf("failed to send malformed payload: %v", err)
	}
	if err := conn.WriteJSON(map[string]any{"type": "heartbeat", "sentAt": time.Now().UnixMilli()}); err != nil {
		t.Fatalf("failed to send heartbeat: %v", err)
	}

	ack := readFrame(t, conn)
	if payloadType, ok := ack["type"].(string); !ok || payloadType != "heartbeat" {
		t.Fatalf("expected connection to survive malformed payload, got %v", ack["type"])
	}
	if got := hub.TelemetrySnapshot().MalformedMessages; got != 1 {
		t.Fatalf("expected 1 malformed message recorded, got %d", got)
	}
}
