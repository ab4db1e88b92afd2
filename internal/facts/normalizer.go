// Package facts normalizes extraction payloads into typed fact versions and
// persists the append-only, moderated fact store.
package facts

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
)

// Normalizer converts raw extraction payloads into typed fact versions.
// Unknown keys, null values, and empty arrays are dropped, not errors.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize parses a snapshot payload (a flat JSON object of fact keys) and
// returns one fact version per recognized key, typed per the vocabulary. The
// moderation status is fixed by provenance: CLAIM facts always enter PENDING,
// everything else enters APPROVED.
func (n *Normalizer) Normalize(schoolID string, payload []byte, prov model.Provenance, asOf time.Time) ([]model.Fact, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, eris.Wrap(err, "facts: parse extraction payload")
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []model.Fact
	for _, key := range keys {
		kind, ok := model.FactVocabulary[key]
		if !ok {
			zap.L().Debug("facts: dropping unrecognized key", zap.String("key", key))
			continue
		}

		value, ok, err := decodeValue(kind, raw[key])
		if err != nil {
			return nil, eris.Wrapf(err, "facts: key %q", key)
		}
		if !ok {
			continue
		}
		if err := model.ValidateFactValue(key, value); err != nil {
			return nil, err
		}

		out = append(out, model.Fact{
			SchoolID:         schoolID,
			FactKey:          key,
			FactValue:        value,
			Provenance:       prov,
			ModerationStatus: initialStatus(prov),
			AsOf:             asOf,
		})
	}
	return out, nil
}

// initialStatus fixes the entry moderation state per provenance. Owner-claimed
// edits always await review; machine and admin paths are pre-approved.
func initialStatus(prov model.Provenance) model.ModerationStatus {
	if prov == model.ProvenanceClaim {
		return model.ModerationPending
	}
	return model.ModerationApproved
}

// decodeValue parses one raw JSON value as the key's declared kind. The
// second return is false when the value is null or an empty array, which
// callers skip silently.
func decodeValue(kind model.ValueKind, raw json.RawMessage) (model.FactValue, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return model.FactValue{}, false, nil
	}

	switch kind {
	case model.KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return model.FactValue{}, false, eris.Wrap(err, "expected string")
		}
		if s == "" {
			return model.FactValue{}, false, nil
		}
		return model.StringValue(s), true, nil

	case model.KindNumber:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return model.FactValue{}, false, eris.Wrap(err, "expected number")
		}
		return model.NumberValue(f), true, nil

	case model.KindStringList:
		var xs []string
		if err := json.Unmarshal(raw, &xs); err != nil {
			return model.FactValue{}, false, eris.Wrap(err, "expected string array")
		}
		if len(xs) == 0 {
			return model.FactValue{}, false, nil
		}
		return model.ListValue(xs), true, nil

	case model.KindEnum:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return model.FactValue{}, false, eris.Wrap(err, "expected enum string")
		}
		if s == "" {
			return model.FactValue{}, false, nil
		}
		return model.EnumValue(s), true, nil
	}

	return model.FactValue{}, false, eris.Errorf("unsupported value kind %s", kind)
}
