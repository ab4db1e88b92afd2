package model

import "time"

// Snapshot is an immutable capture of a single crawl of a domain at a point in
// time. Snapshots are never mutated; superseded ones remain for audit.
type Snapshot struct {
	ID                int64     `json:"id" db:"id"`
	SchoolID          string    `json:"school_id" db:"school_id"`
	Domain            string    `json:"domain" db:"domain"`
	AsOf              time.Time `json:"as_of" db:"as_of"`
	RawPayload        []byte    `json:"raw_payload" db:"raw_payload"` // JSONB
	ExtractConfidence *float64  `json:"extract_confidence,omitempty" db:"extract_confidence"`
}
