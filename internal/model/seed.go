// Package model defines the core record types shared across the pipeline.
package model

import "time"

// SeedCandidate is an unresolved flight school discovered from a bulk or
// external source, pending domain resolution.
type SeedCandidate struct {
	ID      int64  `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	City    string `json:"city,omitempty" db:"city"`
	State   string `json:"state,omitempty" db:"state"`
	Country string `json:"country,omitempty" db:"country"`
	Phone   string `json:"phone,omitempty" db:"phone"`

	// Resolution state. Confidence is nil until a resolver pass has run;
	// once set it only advances across passes.
	Website          string         `json:"website,omitempty" db:"website"`
	ResolutionMethod string         `json:"resolution_method,omitempty" db:"resolution_method"`
	Confidence       *float64       `json:"confidence,omitempty" db:"confidence"`
	Evidence         map[string]any `json:"evidence,omitempty" db:"evidence"`

	FirstSeenAt time.Time  `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty" db:"last_seen_at"`
}

// ResolvedThreshold is the confidence at or above which a seed is considered
// resolved and is skipped by subsequent resolution passes.
const ResolvedThreshold = 0.7
