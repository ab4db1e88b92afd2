package facts

import (
	"context"

	"go.uber.org/zap"

	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
)

// Ingest ties the normalizer to the store: it is the sink the crawl worker
// feeds snapshots into.
type Ingest struct {
	normalizer *Normalizer
	store      Store
}

// NewIngest wires a snapshot ingestor.
func NewIngest(normalizer *Normalizer, store Store) *Ingest {
	return &Ingest{normalizer: normalizer, store: store}
}

// IngestSnapshot normalizes the snapshot payload into CRAWL-provenance facts
// and appends them. Returns the number of fact versions written; re-ingesting
// the same snapshot writes zero.
func (i *Ingest) IngestSnapshot(ctx context.Context, snap *model.Snapshot) (int, error) {
	facts, err := i.normalizer.Normalize(snap.SchoolID, snap.RawPayload, model.ProvenanceCrawl, snap.AsOf)
	if err != nil {
		return 0, err
	}
	if len(facts) == 0 {
		zap.L().Debug("facts: snapshot produced no recognized facts",
			zap.String("school_id", snap.SchoolID),
			zap.String("domain", snap.Domain))
		return 0, nil
	}

	return i.store.Append(ctx, facts)
}
