package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is a deployment-specific configuration profile. Values present in
// the profile override the environment-derived Config.
type Profile struct {
	Name                  string `yaml:"name" json:"name"`
	AutoApplyPrecedents   *bool  `yaml:"auto_apply_precedents,omitempty" json:"auto_apply_precedents,omitempty"`
	EnableWaivers         *bool  `yaml:"enable_waivers,omitempty" json:"enable_waivers,omitempty"`
	EnableAppeals         *bool  `yaml:"enable_appeals,omitempty" json:"enable_appeals,omitempty"`
	MaxConcurrentSessions int    `yaml:"max_concurrent_sessions,omitempty" json:"max_concurrent_sessions,omitempty"`
	SessionTimeoutMs      int    `yaml:"session_timeout_ms,omitempty" json:"session_timeout_ms,omitempty"`
	TrackPerformance      *bool  `yaml:"track_performance,omitempty" json:"track_performance,omitempty"`

	NonWaivableCategories []string `yaml:"non_waivable_categories,omitempty" json:"non_waivable_categories,omitempty"`
	MajorityThreshold     float64  `yaml:"majority_threshold,omitempty" json:"majority_threshold,omitempty"`
}

// LoadProfile loads a profile YAML by name from the profiles directory,
// searching for profile_<name>.yaml.
func LoadProfile(profilesDir, name string) (*Profile, error) {
	name = strings.ToLower(name)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", name))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", name, err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", name, err)
	}

	if profile.Name == "" {
		profile.Name = name
	}
	return &profile, nil
}

// Apply overlays the profile's set values onto cfg.
func (p *Profile) Apply(cfg *Config) {
	if p.AutoApplyPrecedents != nil {
		cfg.AutoApplyPrecedents = *p.AutoApplyPrecedents
	}
	if p.EnableWaivers != nil {
		cfg.EnableWaivers = *p.EnableWaivers
	}
	if p.EnableAppeals != nil {
		cfg.EnableAppeals = *p.EnableAppeals
	}
	if p.MaxConcurrentSessions > 0 {
		cfg.MaxConcurrentSessions = p.MaxConcurrentSessions
	}
	if p.SessionTimeoutMs > 0 {
		cfg.SessionTimeout = time.Duration(p.SessionTimeoutMs) * time.Millisecond
	}
	if p.TrackPerformance != nil {
		cfg.TrackPerformance = *p.TrackPerformance
	}
}
