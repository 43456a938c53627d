package motion

import (
	"errors"
	"math"
	"time"
)

var (
	// ErrSmoothingOutOfRange rejects smoothing overrides outside (0, 1].
	ErrSmoothingOutOfRange = errors.New("motion: smoothing factor outside (0, 1]")
	// ErrInvalidViewport rejects non-positive viewport dimensions.
	ErrInvalidViewport = errors.New("motion: viewport dimensions must be positive")
)

// Quadrant names accepted by ApplyDrift. Anything else maps to center.
const (
	QuadrantTopLeft     = "top_left"
	QuadrantTopRight    = "top_right"
	QuadrantBottomLeft  = "bottom_left"
	QuadrantBottomRight = "bottom_right"
	QuadrantCenter      = "center"
)

// refFrame is the frame interval the smoothing factors are expressed in.
// Variable tick timing is compensated against it so the glide feels the
// same at any refresh rate.
const refFrame = time.Second / 60

// Controller owns the orb's position, target, and behavior mode. All state
// is mutated only through its methods; callers serialize access (the hub
// holds its own lock around the controller).
type Controller struct {
	tuning Tuning
	clock  Clock

	posX, posY       float64
	targetX, targetY float64
	width, height    float64

	baseSmoothing float64
	mode          Mode

	cursorX, cursorY float64
	cursorDistance   float64
	haveCursor       bool
	lastPointerAt    time.Time

	summonActive   bool
	summonToCursor bool
	assistUntil    time.Time

	driftQuadrant            string
	idleAnchorX, idleAnchorY float64
	floatEpoch               time.Time

	speakingUntil time.Time
	speakingGlow  float64

	lastStep time.Time
}

// NewController starts the orb at the viewport center in idle mode.
func NewController(tuning Tuning, width, height float64, clock Clock) (*Controller, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidViewport
	}
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	c := &Controller{
		tuning:        tuning.Normalized(),
		clock:         clock,
		width:         width,
		height:        height,
		driftQuadrant: QuadrantCenter,
		floatEpoch:    clock.Now(),
	}
	c.baseSmoothing = c.tuning.BaseSmoothing
	c.posX, c.posY = width/2, height/2
	c.targetX, c.targetY = c.posX, c.posY
	c.recomputeIdleAnchor()
	return c, nil
}

// PointerMove folds a raw cursor sample into the target. Policy order:
// standoff push-out inside keepAway, ramped pursuit beyond keepAway+band,
// loose tether in between. An active summon overrides all three.
func (c *Controller) PointerMove(x, y float64) {
	c.cursorX, c.cursorY = x, y
	c.haveCursor = true
	c.lastPointerAt = c.clock.Now()

	dx := c.posX - x
	dy := c.posY - y
	d := math.Hypot(dx, dy)
	c.cursorDistance = d

	if c.summonActive {
		if c.summonToCursor {
			c.setTarget(x, y)
		}
		return
	}

	near := c.tuning.KeepAway
	far := near + c.tuning.Band

	switch {
	case d < near:
		// Jump the target straight to the standoff ring. The position
		// still eases there, but the intent never trails the pointer.
		ux, uy := 0.0, -1.0 // cursor exactly under the orb: push straight up
		if d > 0 {
			ux, uy = dx/d, dy/d
		}
		c.setTarget(x+ux*near, y+uy*near)
	case d > far:
		blend := c.tuning.FollowBias
		ramp := (d - far) / c.tuning.FollowRamp
		if ramp > 1 {
			ramp = 1
		}
		blend += (c.tuning.FollowMax - c.tuning.FollowBias) * ramp
		c.setTarget(lerp(c.posX, x, blend), lerp(c.posY, y, blend))
	default:
		w := c.tuning.TetherWeight
		c.setTarget(lerp(c.targetX, x, w), lerp(c.targetY, y, w))
	}
}

// Step advances the position one animation frame. Idle float recomputes
// the target from wall-clock time when the pointer has gone stale, so the
// orb keeps moving without input.
func (c *Controller) Step(now time.Time) {
	dt := refFrame.Seconds()
	if !c.lastStep.IsZero() {
		if elapsed := now.Sub(c.lastStep).Seconds(); elapsed > 0 {
			dt = elapsed
		}
	}
	c.lastStep = now

	c.recomputeMode(now)

	if c.mode == ModeIdle && c.pointerStale(now) {
		c.floatTarget(now)
	}

	f := c.tuning.smoothingFor(c.mode, c.baseSmoothing)
	alpha := frameAlpha(f, dt)
	c.posX = lerp(c.posX, c.targetX, alpha)
	c.posY = lerp(c.posY, c.targetY, alpha)
	c.posX = clamp(c.posX, c.tuning.Margin, c.width-c.tuning.Margin)
	c.posY = clamp(c.posY, c.tuning.Margin, c.height-c.tuning.Margin)

	if c.summonActive {
		if math.Hypot(c.posX-c.targetX, c.posY-c.targetY) <= c.tuning.SummonTolerance {
			c.summonActive = false
			c.recomputeMode(now)
		}
	}
}

// Summon forces the target to the cursor (when known) or viewport center.
// The flag clears on its own once the position reaches tolerance.
func (c *Controller) Summon(toCursor bool) {
	c.summonActive = true
	c.summonToCursor = toCursor && c.haveCursor
	if c.summonToCursor {
		c.setTarget(c.cursorX, c.cursorY)
	} else {
		c.setTarget(c.width/2, c.height/2)
	}
	c.recomputeMode(c.clock.Now())
}

// Click opens the assisting window; the mode reverts on its own when the
// deadline passes.
func (c *Controller) Click() {
	now := c.clock.Now()
	c.assistUntil = now.Add(c.tuning.AssistWindow)
	c.recomputeMode(now)
}

// ApplySmoothing replaces the base factor. Out-of-range values are
// rejected outright; the previous factor stays in force.
func (c *Controller) ApplySmoothing(v float64) error {
	if !(v > 0 && v <= 1) || math.IsNaN(v) {
		return ErrSmoothingOutOfRange
	}
	c.baseSmoothing = v
	return nil
}

// ApplyDrift repositions the idle-float anchor to a named quadrant around
// the viewport center. Unknown names fall back to center. The active mode
// is untouched.
func (c *Controller) ApplyDrift(quadrant string) {
	switch quadrant {
	case QuadrantTopLeft, QuadrantTopRight, QuadrantBottomLeft, QuadrantBottomRight:
		c.driftQuadrant = quadrant
	default:
		c.driftQuadrant = QuadrantCenter
	}
	c.recomputeIdleAnchor()
}

// Resize installs new viewport bounds, keeping the last known-good bounds
// when the dimensions are unusable.
func (c *Controller) Resize(width, height float64) error {
	if width <= 0 || height <= 0 {
		return ErrInvalidViewport
	}
	c.width, c.height = width, height
	c.posX = clamp(c.posX, c.tuning.Margin, width-c.tuning.Margin)
	c.posY = clamp(c.posY, c.tuning.Margin, height-c.tuning.Margin)
	c.setTarget(c.targetX, c.targetY)
	c.recomputeIdleAnchor()
	c.recomputeMode(c.clock.Now())
	return nil
}

// Retune swaps the live tuning. The base smoothing keeps any external
// override only if it is still in range for the new tuning.
func (c *Controller) Retune(tuning Tuning) {
	c.tuning = tuning.Normalized()
	if !(c.baseSmoothing > 0 && c.baseSmoothing <= 1) {
		c.baseSmoothing = c.tuning.BaseSmoothing
	}
	c.setTarget(c.targetX, c.targetY)
	c.posX = clamp(c.posX, c.tuning.Margin, c.width-c.tuning.Margin)
	c.posY = clamp(c.posY, c.tuning.Margin, c.height-c.tuning.Margin)
	c.recomputeIdleAnchor()
}

// Speak lights the speaking glow for the speak window. The intensity is
// the upstream confidence scalar, clamped to [0, 1].
func (c *Controller) Speak(confidence float64) {
	if math.IsNaN(confidence) {
		return
	}
	c.speakingGlow = clamp(confidence, 0, 1)
	c.speakingUntil = c.clock.Now().Add(c.tuning.SpeakWindow)
}

// Snapshot reads the render-facing view for the current tick.
func (c *Controller) Snapshot() Snapshot {
	now := c.clock.Now()
	speaking := now.Before(c.speakingUntil)
	glow := modeGlow(c.mode)
	if speaking && c.speakingGlow > glow {
		glow = c.speakingGlow
	}
	return Snapshot{
		X:        c.posX,
		Y:        c.posY,
		TargetX:  c.targetX,
		TargetY:  c.targetY,
		Mode:     c.mode.String(),
		Glow:     glow,
		Speaking: speaking,
	}
}

// Mode reports the active behavior mode.
func (c *Controller) Mode() Mode { return c.mode }

// Position reports the current position.
func (c *Controller) Position() (float64, float64) { return c.posX, c.posY }

// Target reports the current target.
func (c *Controller) Target() (float64, float64) { return c.targetX, c.targetY }

// BaseSmoothing reports the externally overridable idle factor.
func (c *Controller) BaseSmoothing() float64 { return c.baseSmoothing }

// Tuning reports the active tuning.
func (c *Controller) Tuning() Tuning { return c.tuning }

// Viewport reports the active bounds.
func (c *Controller) Viewport() (float64, float64) { return c.width, c.height }

// recomputeMode derives the mode from the latest distance measurement and
// the explicit triggers, in priority order. It never reads anything else,
// so a stale mode cannot survive a dimension or cursor change.
func (c *Controller) recomputeMode(now time.Time) {
	switch {
	case c.summonActive:
		c.mode = ModeSummoned
	case now.Before(c.assistUntil):
		c.mode = ModeAssisting
	case c.haveCursor && !c.pointerStale(now) && c.cursorDistance < c.tuning.KeepAway:
		c.mode = ModeAvoiding
	case c.haveCursor && !c.pointerStale(now) && c.cursorDistance > c.tuning.KeepAway+c.tuning.Band:
		c.mode = ModeFollowing
	default:
		c.mode = ModeIdle
	}
}

func (c *Controller) pointerStale(now time.Time) bool {
	if !c.haveCursor {
		return true
	}
	return now.Sub(c.lastPointerAt) >= c.tuning.IdleAfter
}

// floatTarget traces a bounded Lissajous path around the idle anchor.
func (c *Controller) floatTarget(now time.Time) {
	t := now.Sub(c.floatEpoch).Seconds()
	wx := 2 * math.Pi / c.tuning.FloatPeriodX.Seconds()
	wy := 2 * math.Pi / c.tuning.FloatPeriodY.Seconds()
	c.setTarget(
		c.idleAnchorX+c.tuning.FloatAmplitudeX*math.Sin(wx*t),
		c.idleAnchorY+c.tuning.FloatAmplitudeY*math.Sin(wy*t+math.Pi/2),
	)
}

func (c *Controller) recomputeIdleAnchor() {
	cx, cy := c.width/2, c.height/2
	ox := c.width * c.tuning.DriftOffsetRatio
	oy := c.height * c.tuning.DriftOffsetRatio
	switch c.driftQuadrant {
	case QuadrantTopLeft:
		cx, cy = cx-ox, cy-oy
	case QuadrantTopRight:
		cx, cy = cx+ox, cy-oy
	case QuadrantBottomLeft:
		cx, cy = cx-ox, cy+oy
	case QuadrantBottomRight:
		cx, cy = cx+ox, cy+oy
	}
	c.idleAnchorX = clamp(cx, c.tuning.Margin, c.width-c.tuning.Margin)
	c.idleAnchorY = clamp(cy, c.tuning.Margin, c.height-c.tuning.Margin)
}

// setTarget clamps into bounds before storing; the target is never allowed
// outside [margin, dim-margin].
func (c *Controller) setTarget(x, y float64) {
	c.targetX = clamp(x, c.tuning.Margin, c.width-c.tuning.Margin)
	c.targetY = clamp(y, c.tuning.Margin, c.height-c.tuning.Margin)
}

func modeGlow(mode Mode) float64 {
	switch mode {
	case ModeAvoiding:
		return 0.7
	case ModeFollowing:
		return 0.6
	case ModeAssisting:
		return 0.9
	case ModeSummoned:
		return 1.0
	default:
		return 0.4
	}
}

// frameAlpha rescales a per-frame factor to an arbitrary dt so the glide
// is refresh-rate independent. dt equal to the reference frame passes the
// factor through unchanged.
func frameAlpha(f, dt float64) float64 {
	frames := dt / refFrame.Seconds()
	if frames == 1 {
		return f
	}
	return 1 - math.Pow(1-f, frames)
}

func lerp(a, b, f float64) float64 {
	return a + (b-a)*f
}

func clamp(value, min, max float64) float64 {
	if min > max {
		return min
	}
	return math.Max(min, math.Min(max, value))
}
