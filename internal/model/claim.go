package model

import "time"

// ClaimStatus is the verification state of an ownership claim.
type ClaimStatus string

// Claim states. PENDING -> VERIFIED is a one-time transition.
const (
	ClaimPending  ClaimStatus = "PENDING"
	ClaimVerified ClaimStatus = "VERIFIED"
)

// ClaimTokenTTL is the validity window of a verification token.
const ClaimTokenTTL = 24 * time.Hour

// Claim is a verified-email-based assertion of ownership over a school.
// At most one claim row exists per school; a new request overwrites the prior
// row in place, rotating the token and resetting status to PENDING.
type Claim struct {
	SchoolID  string      `json:"school_id" db:"school_id"`
	Email     string      `json:"email" db:"email"`
	Token     string      `json:"token" db:"token"`
	Status    ClaimStatus `json:"status" db:"status"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// TokenExpired reports whether the claim's token is outside its validity
// window at the given time. UpdatedAt marks the last token rotation.
func (c *Claim) TokenExpired(now time.Time) bool {
	return now.Sub(c.UpdatedAt) > ClaimTokenTTL
}
