// Command ucm-mock stands in for the upstream cognitive module during
// local development. It acks the orb handshake, answers every query with
// a canned result, and can periodically push motion preferences.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type envelope struct {
	Type       string  `json:"type"`
	OrbID      string  `json:"orb_id,omitempty"`
	Kind       string  `json:"kind,omitempty"`
	Value      float64 `json:"value,omitempty"`
	Quadrant   string  `json:"quadrant,omitempty"`
	ID         string  `json:"id,omitempty"`
	Text       string  `json:"text,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

var quadrants = []string{"top_left", "top_right", "bottom_left", "bottom_right", "center"}

func main() {
	var (
		addr         string
		answer       string
		confidence   float64
		pushInterval time.Duration
		delay        time.Duration
	)
	flag.StringVar(&addr, "addr", ":8765", "listen address")
	flag.StringVar(&answer, "answer", "mock answer", "canned query result text")
	flag.Float64Var(&confidence, "confidence", 0.8, "canned query result confidence")
	flag.DurationVar(&pushInterval, "push-interval", 0, "interval between preference pushes (0 disables)")
	flag.DurationVar(&delay, "delay", 300*time.Millisecond, "simulated thinking time per query")
	flag.Parse()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var hello envelope
		if err := json.Unmarshal(payload, &hello); err != nil || hello.Type != "orb_handshake" {
			log.Printf("rejecting connection without handshake: %s", payload)
			return
		}
		log.Printf("orb %q connected", hello.OrbID)

		var writeMu sync.Mutex
		writeJSON := func(msg envelope) error {
			writeMu.Lock()
			defer writeMu.Unlock()
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			return conn.WriteJSON(msg)
		}

		if err := writeJSON(envelope{Type: "handshake_ack"}); err != nil {
			return
		}

		done := make(chan struct{})
		defer close(done)

		if pushInterval > 0 {
			go func() {
				ticker := time.NewTicker(pushInterval)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						msg := envelope{Type: "preference"}
						if rand.Intn(2) == 0 {
							msg.Kind = "smoothing_override"
							msg.Value = 0.05 + rand.Float64()*0.3
						} else {
							msg.Kind = "drift_preference"
							msg.Quadrant = quadrants[rand.Intn(len(quadrants))]
						}
						if err := writeJSON(msg); err != nil {
							return
						}
						log.Printf("pushed %s preference", msg.Kind)
					}
				}
			}()
		}

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				log.Printf("orb %q disconnected: %v", hello.OrbID, err)
				return
			}
			var msg envelope
			if err := json.Unmarshal(payload, &msg); err != nil {
				log.Printf("discarding malformed frame: %v", err)
				continue
			}

			switch msg.Type {
			case "query":
				log.Printf("query %s: %q", msg.ID, msg.Text)
				go func(id string) {
					time.Sleep(delay)
					result := envelope{
						Type:       "query_result",
						ID:         id,
						Text:       answer,
						Confidence: confidence,
					}
					if err := writeJSON(result); err != nil {
						log.Printf("failed to answer query %s: %v", id, err)
					}
				}(msg.ID)
			case "orb_click":
				log.Printf("click from orb %q", msg.OrbID)
			default:
				log.Printf("unknown frame type %q", msg.Type)
			}
		}
	})

	log.Printf("mock upstream listening on %s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("%v", err)
	}
}
