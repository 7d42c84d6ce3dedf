// Package config loads the simulation-wide tunables: PFC watermark
// thresholds, the loopback socket cache limit, and the MTU-derived
// internal cache limit. Decoding uses goccy/go-json, a drop-in
// encoding/json replacement.
package config

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
)

// Defaults match spec.md §6's "Recognized configuration" table.
const (
	DefaultPauseThreshold  = 0.9
	DefaultResumeThreshold = 0.5
	DefaultSocketCacheLimit = 212_992
	DefaultMTUSize          = 1492
)

// Config bundles the recognized tunables; fields absent from the JSON
// document are filled from the spec defaults by Load/Parse.
type Config struct {
	PFCPauseThreshold  float64 `json:"pfc_pause_threshold"`
	PFCResumeThreshold float64 `json:"pfc_resume_threshold"`
	SocketCacheLimit   int     `json:"socket_cache_limit"`
	MTUSize            int     `json:"mtu_size"`
}

// CacheLimitFromMTU is the internal cache limit derived from mtu_size
// (spec.md §6: "internal cache limit is mtu_size × 100").
func (c Config) CacheLimitFromMTU() int { return c.MTUSize * 100 }

// Default returns the spec's built-in defaults.
func Default() Config {
	return Config{
		PFCPauseThreshold:  DefaultPauseThreshold,
		PFCResumeThreshold: DefaultResumeThreshold,
		SocketCacheLimit:   DefaultSocketCacheLimit,
		MTUSize:            DefaultMTUSize,
	}
}

// Load reads a JSON config file, applying spec defaults for any field
// left absent, and validates the pfc thresholds are within [0,1].
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes raw JSON the same way Load does, for callers that already
// have the bytes (e.g. embedded config, test fixtures).
func Parse(b []byte) (Config, error) {
	cfg := Default()
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	if v, ok := raw["pfc_pause_threshold"]; ok {
		if err := json.Unmarshal(v, &cfg.PFCPauseThreshold); err != nil {
			return Config{}, fmt.Errorf("config: pfc_pause_threshold: %w", err)
		}
	}
	if v, ok := raw["pfc_resume_threshold"]; ok {
		if err := json.Unmarshal(v, &cfg.PFCResumeThreshold); err != nil {
			return Config{}, fmt.Errorf("config: pfc_resume_threshold: %w", err)
		}
	}
	if v, ok := raw["socket_cache_limit"]; ok {
		if err := json.Unmarshal(v, &cfg.SocketCacheLimit); err != nil {
			return Config{}, fmt.Errorf("config: socket_cache_limit: %w", err)
		}
	}
	if v, ok := raw["mtu_size"]; ok {
		if err := json.Unmarshal(v, &cfg.MTUSize); err != nil {
			return Config{}, fmt.Errorf("config: mtu_size: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the thresholds and sizes are in-range.
func (c Config) Validate() error {
	if c.PFCPauseThreshold < 0 || c.PFCPauseThreshold > 1 {
		return fmt.Errorf("config: pfc_pause_threshold %v out of [0,1]", c.PFCPauseThreshold)
	}
	if c.PFCResumeThreshold < 0 || c.PFCResumeThreshold > 1 {
		return fmt.Errorf("config: pfc_resume_threshold %v out of [0,1]", c.PFCResumeThreshold)
	}
	if c.PFCResumeThreshold > c.PFCPauseThreshold {
		return fmt.Errorf("config: pfc_resume_threshold %v must not exceed pfc_pause_threshold %v", c.PFCResumeThreshold, c.PFCPauseThreshold)
	}
	if c.SocketCacheLimit <= 0 {
		return fmt.Errorf("config: socket_cache_limit must be positive, got %d", c.SocketCacheLimit)
	}
	if c.MTUSize <= 0 {
		return fmt.Errorf("config: mtu_size must be positive, got %d", c.MTUSize)
	}
	return nil
}
