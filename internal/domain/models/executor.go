package models

import (
	"strings"
	"time"
)

// ExecutorProfile is the static routing configuration of one executor
// endpoint. Dynamic state (risk level, halts) lives in RiskState.
type ExecutorProfile struct {
	ID              string        `json:"id"`
	Family          string        `json:"family"`
	Endpoint        string        `json:"endpoint"`
	StreamURL       string        `json:"stream_url,omitempty"`
	MinConfidence   float64       `json:"min_confidence"`
	ExcludedRegimes []string      `json:"excluded_regimes,omitempty"`
	Timeout         time.Duration `json:"timeout"`
	Disabled        bool          `json:"disabled"`
}

// ExcludesRegime reports whether the profile's regime-exclusion rules reject
// the given regime tag. An empty tag is never excluded.
func (p *ExecutorProfile) ExcludesRegime(regime string) bool {
	if regime == "" {
		return false
	}
	for _, r := range p.ExcludedRegimes {
		if strings.EqualFold(r, regime) {
			return true
		}
	}
	return false
}
