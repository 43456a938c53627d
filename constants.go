package server

import "time"

const (
	ProtocolVersion   = 1
	writeWait         = 10 * time.Second
	defaultTickRate   = 60 // animation frames per second
	heartbeatInterval = 2 * time.Second
	disconnectAfter   = 3 * heartbeatInterval

	defaultViewportWidth  = 1920.0
	defaultViewportHeight = 1080.0
)

// HeartbeatInterval exposes the heartbeat cadence to the HTTP layer.
func HeartbeatInterval() time.Duration {
	return heartbeatInterval
}
