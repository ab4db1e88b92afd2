package model

import "time"

// School is the canonical identity record for a flight school. A confirmed
// domain is the primary dedup key; schools without one are more dedupe-prone.
type School struct {
	ID            string `json:"id" db:"id"`
	CanonicalName string `json:"canonical_name" db:"canonical_name"`
	Domain        string `json:"domain,omitempty" db:"domain"`
	Phone         string `json:"phone,omitempty" db:"phone"`
	City          string `json:"city,omitempty" db:"city"`
	State         string `json:"state,omitempty" db:"state"`

	// MergedInto is set when this record lost a dedupe merge. Tombstoned
	// records are excluded from all pipeline scans.
	MergedInto *string `json:"merged_into,omitempty" db:"merged_into"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Tombstoned reports whether this record has been merged away.
func (s *School) Tombstoned() bool {
	return s.MergedInto != nil
}
