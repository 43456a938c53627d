package motion

import "time"

// Tuning gathers every knob of the motion policy. Values are sanitized by
// Normalized before a controller accepts them.
type Tuning struct {
	Margin   float64 `json:"margin" yaml:"margin"`
	KeepAway float64 `json:"keepAway" yaml:"keep_away"`
	Band     float64 `json:"band" yaml:"band"`

	TetherWeight float64 `json:"tetherWeight" yaml:"tether_weight"`
	FollowBias   float64 `json:"followBias" yaml:"follow_bias"`
	FollowMax    float64 `json:"followMax" yaml:"follow_max"`
	FollowRamp   float64 `json:"followRamp" yaml:"follow_ramp"`

	BaseSmoothing   float64 `json:"baseSmoothing" yaml:"base_smoothing"`
	AvoidSmoothing  float64 `json:"avoidSmoothing" yaml:"avoid_smoothing"`
	FollowSmoothing float64 `json:"followSmoothing" yaml:"follow_smoothing"`
	AssistSmoothing float64 `json:"assistSmoothing" yaml:"assist_smoothing"`
	SummonSmoothing float64 `json:"summonSmoothing" yaml:"summon_smoothing"`
	SummonTolerance float64 `json:"summonTolerance" yaml:"summon_tolerance"`

	AssistWindow time.Duration `json:"assistWindow" yaml:"assist_window"`
	SpeakWindow  time.Duration `json:"speakWindow" yaml:"speak_window"`
	IdleAfter    time.Duration `json:"idleAfter" yaml:"idle_after"`

	FloatAmplitudeX  float64       `json:"floatAmplitudeX" yaml:"float_amplitude_x"`
	FloatAmplitudeY  float64       `json:"floatAmplitudeY" yaml:"float_amplitude_y"`
	FloatPeriodX     time.Duration `json:"floatPeriodX" yaml:"float_period_x"`
	FloatPeriodY     time.Duration `json:"floatPeriodY" yaml:"float_period_y"`
	DriftOffsetRatio float64       `json:"driftOffsetRatio" yaml:"drift_offset_ratio"`
}

// DefaultTuning mirrors the feel of the original overlay: a 160px standoff
// ring, a 140px loose-tether band, and a gentle base glide.
func DefaultTuning() Tuning {
	return Tuning{
		Margin:           40,
		KeepAway:         160,
		Band:             140,
		TetherWeight:     0.05,
		FollowBias:       0.25,
		FollowMax:        0.85,
		FollowRamp:       600,
		BaseSmoothing:    0.08,
		AvoidSmoothing:   0.22,
		FollowSmoothing:  0.12,
		AssistSmoothing:  0.06,
		SummonSmoothing:  0.28,
		SummonTolerance:  6,
		AssistWindow:     2 * time.Second,
		SpeakWindow:      1500 * time.Millisecond,
		IdleAfter:        2500 * time.Millisecond,
		FloatAmplitudeX:  120,
		FloatAmplitudeY:  80,
		FloatPeriodX:     11 * time.Second,
		FloatPeriodY:     7 * time.Second,
		DriftOffsetRatio: 0.25,
	}
}

// Normalized returns a tuning with defaults applied for any field outside
// its valid range. Invalid knobs never reach the controller.
func (t Tuning) Normalized() Tuning {
	def := DefaultTuning()
	n := t
	if n.Margin < 0 {
		n.Margin = def.Margin
	}
	if n.KeepAway <= 0 {
		n.KeepAway = def.KeepAway
	}
	if n.Band < 0 {
		n.Band = def.Band
	}
	if n.TetherWeight <= 0 || n.TetherWeight > 1 {
		n.TetherWeight = def.TetherWeight
	}
	if n.FollowBias <= 0 || n.FollowBias > 1 {
		n.FollowBias = def.FollowBias
	}
	if n.FollowMax <= 0 || n.FollowMax >= 1 {
		n.FollowMax = def.FollowMax
	}
	if n.FollowMax < n.FollowBias {
		n.FollowMax = n.FollowBias
	}
	if n.FollowRamp <= 0 {
		n.FollowRamp = def.FollowRamp
	}
	for _, f := range []*float64{&n.BaseSmoothing, &n.AvoidSmoothing, &n.FollowSmoothing, &n.AssistSmoothing, &n.SummonSmoothing} {
		if *f <= 0 || *f > 1 {
			*f = 0
		}
	}
	if n.BaseSmoothing == 0 {
		n.BaseSmoothing = def.BaseSmoothing
	}
	if n.AvoidSmoothing == 0 {
		n.AvoidSmoothing = def.AvoidSmoothing
	}
	if n.FollowSmoothing == 0 {
		n.FollowSmoothing = def.FollowSmoothing
	}
	if n.AssistSmoothing == 0 {
		n.AssistSmoothing = def.AssistSmoothing
	}
	if n.SummonSmoothing == 0 {
		n.SummonSmoothing = def.SummonSmoothing
	}
	if n.SummonTolerance <= 0 {
		n.SummonTolerance = def.SummonTolerance
	}
	if n.AssistWindow <= 0 {
		n.AssistWindow = def.AssistWindow
	}
	if n.SpeakWindow <= 0 {
		n.SpeakWindow = def.SpeakWindow
	}
	if n.IdleAfter <= 0 {
		n.IdleAfter = def.IdleAfter
	}
	if n.FloatAmplitudeX < 0 {
		n.FloatAmplitudeX = def.FloatAmplitudeX
	}
	if n.FloatAmplitudeY < 0 {
		n.FloatAmplitudeY = def.FloatAmplitudeY
	}
	if n.FloatPeriodX <= 0 {
		n.FloatPeriodX = def.FloatPeriodX
	}
	if n.FloatPeriodY <= 0 {
		n.FloatPeriodY = def.FloatPeriodY
	}
	if n.DriftOffsetRatio <= 0 || n.DriftOffsetRatio >= 0.5 {
		n.DriftOffsetRatio = def.DriftOffsetRatio
	}
	return n
}

// smoothingFor resolves the per-mode factor; idle falls through to the
// base (externally overridable) factor.
func (t Tuning) smoothingFor(mode Mode, base float64) float64 {
	switch mode {
	case ModeAvoiding:
		return t.AvoidSmoothing
	case ModeFollowing:
		return t.FollowSmoothing
	case ModeAssisting:
		return t.AssistSmoothing
	case ModeSummoned:
		return t.SummonSmoothing
	default:
		return base
	}
}
