package motion

import "time"

// Mode selects the controller's active behavior. Exactly one mode is active
// per tick; each mode carries the smoothing factor used while it holds.
type Mode uint8

const (
	ModeIdle Mode = iota
	ModeAvoiding
	ModeFollowing
	ModeAssisting
	ModeSummoned
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeAvoiding:
		return "avoiding"
	case ModeFollowing:
		return "following"
	case ModeAssisting:
		return "assisting"
	case ModeSummoned:
		return "summoned"
	default:
		return "unknown"
	}
}

// Clock abstracts wall-clock reads so mode timers are testable.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts functions into the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// Snapshot is the per-tick view consumed by the render fan-out.
type Snapshot struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	TargetX  float64 `json:"targetX"`
	TargetY  float64 `json:"targetY"`
	Mode     string  `json:"mode"`
	Glow     float64 `json:"glow"`
	Speaking bool    `json:"speaking"`
}
