package server

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"sf-orb/server/internal/motion"
)

const defaultOrbID = "sf-orb"

// Config captures everything the daemon needs at startup: where to listen,
// where the upstream cognitive module lives, and the motion tuning.
type Config struct {
	OrbID       string        `json:"orbId" yaml:"orb_id"`
	ListenAddr  string        `json:"listenAddr" yaml:"listen_addr"`
	UpstreamURL string        `json:"upstreamUrl" yaml:"upstream_url"`
	TickRate    int           `json:"tickRate" yaml:"tick_rate"`
	Viewport    ViewportSize  `json:"viewport" yaml:"viewport"`
	Tuning      motion.Tuning `json:"tuning" yaml:"tuning"`
	LogJSONPath string        `json:"logJsonPath" yaml:"log_json_path"`
}

// ViewportSize seeds the controller before the first renderer resize.
type ViewportSize struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Normalized returns a config with defaults applied.
func (cfg Config) Normalized() Config {
	normalized := cfg
	normalized.OrbID = strings.TrimSpace(normalized.OrbID)
	if normalized.OrbID == "" {
		normalized.OrbID = defaultOrbID
	}
	if strings.TrimSpace(normalized.ListenAddr) == "" {
		normalized.ListenAddr = ":8090"
	}
	if normalized.TickRate <= 0 || normalized.TickRate > 240 {
		normalized.TickRate = defaultTickRate
	}
	if normalized.Viewport.Width <= 0 {
		normalized.Viewport.Width = defaultViewportWidth
	}
	if normalized.Viewport.Height <= 0 {
		normalized.Viewport.Height = defaultViewportHeight
	}
	normalized.Tuning = normalized.Tuning.Normalized()
	return normalized
}

// DefaultConfig runs standalone on localhost with no upstream configured.
func DefaultConfig() Config {
	return Config{
		OrbID:      defaultOrbID,
		ListenAddr: ":8090",
		TickRate:   defaultTickRate,
		Viewport:   ViewportSize{Width: defaultViewportWidth, Height: defaultViewportHeight},
		Tuning:     motion.DefaultTuning(),
	}.Normalized()
}

// LoadConfig reads a YAML config file and normalizes it. A missing path
// yields the defaults.
func LoadConfig(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.Normalized(), nil
}
