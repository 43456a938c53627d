package motion

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// tuningDoc mirrors Tuning for YAML decoding; durations are written as Go
// duration strings ("2s", "1500ms").
type tuningDoc struct {
	Margin           *float64 `yaml:"margin"`
	KeepAway         *float64 `yaml:"keep_away"`
	Band             *float64 `yaml:"band"`
	TetherWeight     *float64 `yaml:"tether_weight"`
	FollowBias       *float64 `yaml:"follow_bias"`
	FollowMax        *float64 `yaml:"follow_max"`
	FollowRamp       *float64 `yaml:"follow_ramp"`
	BaseSmoothing    *float64 `yaml:"base_smoothing"`
	AvoidSmoothing   *float64 `yaml:"avoid_smoothing"`
	FollowSmoothing  *float64 `yaml:"follow_smoothing"`
	AssistSmoothing  *float64 `yaml:"assist_smoothing"`
	SummonSmoothing  *float64 `yaml:"summon_smoothing"`
	SummonTolerance  *float64 `yaml:"summon_tolerance"`
	AssistWindow     string   `yaml:"assist_window"`
	SpeakWindow      string   `yaml:"speak_window"`
	IdleAfter        string   `yaml:"idle_after"`
	FloatAmplitudeX  *float64 `yaml:"float_amplitude_x"`
	FloatAmplitudeY  *float64 `yaml:"float_amplitude_y"`
	FloatPeriodX     string   `yaml:"float_period_x"`
	FloatPeriodY     string   `yaml:"float_period_y"`
	DriftOffsetRatio *float64 `yaml:"drift_offset_ratio"`
}

// UnmarshalYAML decodes on top of the receiver so absent keys keep their
// current (usually default) values.
func (t *Tuning) UnmarshalYAML(node *yaml.Node) error {
	var doc tuningDoc
	if err := node.Decode(&doc); err != nil {
		return err
	}

	assign := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	assign(&t.Margin, doc.Margin)
	assign(&t.KeepAway, doc.KeepAway)
	assign(&t.Band, doc.Band)
	assign(&t.TetherWeight, doc.TetherWeight)
	assign(&t.FollowBias, doc.FollowBias)
	assign(&t.FollowMax, doc.FollowMax)
	assign(&t.FollowRamp, doc.FollowRamp)
	assign(&t.BaseSmoothing, doc.BaseSmoothing)
	assign(&t.AvoidSmoothing, doc.AvoidSmoothing)
	assign(&t.FollowSmoothing, doc.FollowSmoothing)
	assign(&t.AssistSmoothing, doc.AssistSmoothing)
	assign(&t.SummonSmoothing, doc.SummonSmoothing)
	assign(&t.SummonTolerance, doc.SummonTolerance)
	assign(&t.FloatAmplitudeX, doc.FloatAmplitudeX)
	assign(&t.FloatAmplitudeY, doc.FloatAmplitudeY)
	assign(&t.DriftOffsetRatio, doc.DriftOffsetRatio)

	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{doc.AssistWindow, &t.AssistWindow},
		{doc.SpeakWindow, &t.SpeakWindow},
		{doc.IdleAfter, &t.IdleAfter},
		{doc.FloatPeriodX, &t.FloatPeriodX},
		{doc.FloatPeriodY, &t.FloatPeriodY},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse tuning duration %q: %w", d.raw, err)
		}
		*d.dst = parsed
	}
	return nil
}
