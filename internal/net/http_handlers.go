package net

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"sf-orb/server"
	"sf-orb/server/internal/motion"
	"sf-orb/server/logging"
)

type HTTPHandlerConfig struct {
	ClientDir string
	Logger    *log.Logger
}

type clientMessage struct {
	Ver    int     `json:"ver,omitempty"`
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Text   string  `json:"text"`
	To     string  `json:"to"`
	SentAt int64   `json:"sentAt"`
}

type heartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}

type queryAckMessage struct {
	Ver     int    `json:"ver"`
	Type    string `json:"type"`
	QueryID string `json:"queryId"`
}

func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status      string `json:"status"`
			ServerTime  int64  `json:"serverTime"`
			Subscribers any    `json:"subscribers"`
			TickRate    int    `json:"tickRate"`
			Heartbeat   int64  `json:"heartbeatMillis"`
			Telemetry   any    `json:"telemetry"`
		}{
			Status:      "ok",
			ServerTime:  time.Now().UnixMilli(),
			Subscribers: hub.DiagnosticsSnapshot(),
			TickRate:    hub.TickRate(),
			Heartbeat:   server.HeartbeatInterval().Milliseconds(),
			Telemetry:   hub.TelemetrySnapshot(),
		}

		data, err := json.Marshal(payload)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/state", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		data, err := json.Marshal(hub.Snapshot())
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	mux.HandleFunc("/ws", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Printf("upgrade failed: %v", err)
			return
		}

		sub, hello := hub.Subscribe(conn)
		actor := logging.EntityRef{ID: sub.ID(), Kind: logging.EntityKindClient}

		data, err := json.Marshal(hello)
		if err != nil {
			logger.Printf("failed to marshal hello for %s: %v", sub.ID(), err)
			hub.Disconnect(sub.ID(), "hello marshal failed")
			return
		}
		if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
			hub.Disconnect(sub.ID(), "hello write failed")
			return
		}

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				hub.Disconnect(sub.ID(), "read failed")
				return
			}

			var msg clientMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				logger.Printf("discarding malformed message from %s: %v", sub.ID(), err)
				hub.RecordMalformed()
				continue
			}

			switch msg.Type {
			case "pointer":
				hub.HandlePointer(msg.X, msg.Y)
			case "resize":
				if !hub.HandleResize(msg.Width, msg.Height) {
					logger.Printf("resize rejected from %s: %gx%g", sub.ID(), msg.Width, msg.Height)
				}
			case "click":
				queryID := hub.HandleClick(msg.Text, actor)
				if queryID == "" {
					continue
				}
				ack := queryAckMessage{Ver: server.ProtocolVersion, Type: "queryAck", QueryID: queryID}
				data, err := json.Marshal(ack)
				if err != nil {
					logger.Printf("failed to marshal query ack for %s: %v", sub.ID(), err)
					continue
				}
				if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
					hub.Disconnect(sub.ID(), "write failed")
					return
				}
			case "summon":
				to := msg.To
				if to != "cursor" && to != motion.QuadrantCenter {
					to = motion.QuadrantCenter
				}
				hub.HandleSummon(to, actor)
			case "heartbeat":
				now := time.Now()
				rtt, ok := hub.UpdateHeartbeat(sub.ID(), now, msg.SentAt)
				if !ok {
					continue
				}

				ack := heartbeatMessage{
					Ver:        server.ProtocolVersion,
					Type:       "heartbeat",
					ServerTime: now.UnixMilli(),
					ClientTime: msg.SentAt,
					RTTMillis:  rtt.Milliseconds(),
				}

				data, err := json.Marshal(ack)
				if err != nil {
					logger.Printf("failed to marshal heartbeat ack for %s: %v", sub.ID(), err)
					continue
				}
				if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
					hub.Disconnect(sub.ID(), "write failed")
					return
				}
			default:
				logger.Printf("unknown message type %q from %s", msg.Type, sub.ID())
				hub.RecordMalformed()
			}
		}
	})

	if cfg.ClientDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.ClientDir))
		mux.Handle("/", fs)
	}

	return mux
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
