package server

import "sf-orb/server/internal/motion"

// stateMessage is the per-tick frame consumed by renderers.
type stateMessage struct {
	Ver        int     `json:"ver"`
	Type       string  `json:"type"`
	Tick       uint64  `json:"t"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	TargetX    float64 `json:"targetX"`
	TargetY    float64 `json:"targetY"`
	Mode       string  `json:"mode"`
	Glow       float64 `json:"glow"`
	Speaking   bool    `json:"speaking"`
	ServerTime int64   `json:"serverTime"`
}

// helloMessage is sent once per subscription so a renderer can size its
// overlay and seed its interpolation before the first frame arrives.
type helloMessage struct {
	Ver      int           `json:"ver"`
	Type     string        `json:"type"`
	ID       string        `json:"id"`
	OrbID    string        `json:"orbId"`
	TickRate int           `json:"tickRate"`
	Width    float64       `json:"width"`
	Height   float64       `json:"height"`
	Tuning   motion.Tuning `json:"tuning"`
	State    stateMessage  `json:"state"`
}

type diagnosticsSubscriber struct {
	Ver           int    `json:"ver"`
	ID            string `json:"id"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
	RTTMillis     int64  `json:"rttMillis"`
}
