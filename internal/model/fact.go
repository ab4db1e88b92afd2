package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// Provenance is the origin category of a fact.
type Provenance string

// Fact provenance categories. Each ingestion path assigns exactly one.
const (
	ProvenanceCrawl  Provenance = "CRAWL"
	ProvenanceClaim  Provenance = "CLAIM"
	ProvenanceGoogle Provenance = "GOOGLE"
	ProvenanceAdmin  Provenance = "ADMIN"
)

// ModerationStatus is the review state of a fact version. PENDING transitions
// once to APPROVED or REJECTED; both are terminal.
type ModerationStatus string

// Moderation states.
const (
	ModerationPending  ModerationStatus = "PENDING"
	ModerationApproved ModerationStatus = "APPROVED"
	ModerationRejected ModerationStatus = "REJECTED"
)

// ValueKind is the declared type of a fact key's value.
type ValueKind string

// Fact value kinds.
const (
	KindString     ValueKind = "string"
	KindNumber     ValueKind = "number"
	KindStringList ValueKind = "string_list"
	KindEnum       ValueKind = "enum"
)

// FactVocabulary maps every recognized fact key to its declared value kind.
// Keys outside this map are rejected at normalization time.
var FactVocabulary = map[string]ValueKind{
	"phone":              KindString,
	"email":              KindString,
	"description":        KindString,
	"website":            KindString,
	"fleet_size":         KindNumber,
	"instructor_count":   KindNumber,
	"hourly_rate_c172":   KindNumber,
	"year_founded":       KindNumber,
	"rating":             KindNumber,
	"review_count":       KindNumber,
	"aircraft_types":     KindStringList,
	"programs_offered":   KindStringList,
	"certification_part": KindEnum,
}

// enumValues lists the allowed values for each enum-kinded fact key.
var enumValues = map[string][]string{
	"certification_part": {"part61", "part141", "both"},
}

// Fact is a single versioned, provenance-tagged, moderatable attribute value
// about a school. Natural key: (SchoolID, FactKey, AsOf).
type Fact struct {
	SchoolID         string           `json:"school_id" db:"school_id"`
	FactKey          string           `json:"fact_key" db:"fact_key"`
	FactValue        FactValue        `json:"fact_value" db:"fact_value"`
	Provenance       Provenance       `json:"provenance" db:"provenance"`
	ModerationStatus ModerationStatus `json:"moderation_status" db:"moderation_status"`
	AsOf             time.Time        `json:"as_of" db:"as_of"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}

// FactValue is a tagged variant holding exactly one of the vocabulary's value
// kinds. Values are passed through typed, never coerced across kinds.
type FactValue struct {
	Kind ValueKind `json:"kind"`
	Str  string    `json:"str,omitempty"`
	Num  float64   `json:"num,omitempty"`
	List []string  `json:"list,omitempty"`
}

// StringValue builds a string-kinded fact value.
func StringValue(s string) FactValue { return FactValue{Kind: KindString, Str: s} }

// NumberValue builds a number-kinded fact value.
func NumberValue(n float64) FactValue { return FactValue{Kind: KindNumber, Num: n} }

// ListValue builds a string-list fact value.
func ListValue(xs []string) FactValue { return FactValue{Kind: KindStringList, List: xs} }

// EnumValue builds an enum-kinded fact value.
func EnumValue(s string) FactValue { return FactValue{Kind: KindEnum, Str: s} }

// ValidateFactValue checks that key is in the vocabulary and that v carries a
// value of the key's declared kind.
func ValidateFactValue(key string, v FactValue) error {
	kind, ok := FactVocabulary[key]
	if !ok {
		return eris.Errorf("model: unknown fact key %q", key)
	}
	if v.Kind != kind {
		return eris.Errorf("model: fact key %q expects kind %s, got %s", key, kind, v.Kind)
	}
	if kind == KindStringList && len(v.List) == 0 {
		return eris.Errorf("model: fact key %q: empty list", key)
	}
	if kind == KindEnum {
		for _, allowed := range enumValues[key] {
			if v.Str == allowed {
				return nil
			}
		}
		return eris.Errorf("model: fact key %q: value %q not in enum", key, v.Str)
	}
	return nil
}

// MarshalValue encodes the variant for JSONB storage.
func (v FactValue) MarshalValue() ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "model: marshal fact value")
	}
	return b, nil
}

// UnmarshalValue decodes a JSONB payload back into the variant.
func UnmarshalValue(data []byte) (FactValue, error) {
	var v FactValue
	if err := json.Unmarshal(data, &v); err != nil {
		return FactValue{}, eris.Wrap(err, "model: unmarshal fact value")
	}
	return v, nil
}
