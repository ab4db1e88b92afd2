package crawl

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
)

// Extraction is the structured result of crawling one domain.
type Extraction struct {
	Payload    []byte
	Confidence float64
}

// Extractor fetches a domain and returns its structured extraction payload.
// pkg/extractor provides the production implementation.
type Extractor interface {
	Extract(ctx context.Context, domain string) (*Extraction, error)
}

// Ingestor turns a stored snapshot into normalized fact versions.
type Ingestor interface {
	IngestSnapshot(ctx context.Context, snap *model.Snapshot) (int, error)
}

// Worker drains the crawl queue: it claims due entries, extracts each domain,
// persists the snapshot, and hands the payload to the fact ingestor.
type Worker struct {
	queue     QueueStore
	snapshots SnapshotStore
	extractor Extractor
	ingestor  Ingestor
	now       func() time.Time
}

// processingLease is how long a claimed entry may sit in processing before a
// later pass treats its worker as dead and fails it for retry.
const processingLease = 15 * time.Minute

// NewWorker wires a crawl worker.
func NewWorker(queue QueueStore, snapshots SnapshotStore, extractor Extractor, ingestor Ingestor) *Worker {
	return &Worker{
		queue:     queue,
		snapshots: snapshots,
		extractor: extractor,
		ingestor:  ingestor,
		now:       time.Now,
	}
}

// BatchResult summarizes one worker pass.
type BatchResult struct {
	Claimed   int         `json:"claimed"`
	Completed int         `json:"completed"`
	Failed    int         `json:"failed"`
	Facts     int         `json:"facts"`
	Errors    []ItemError `json:"errors,omitempty"`
}

// ItemError records one failed queue entry inside a pass.
type ItemError struct {
	EntryID  int64  `json:"entry_id"`
	SchoolID string `json:"school_id"`
	Err      string `json:"error"`
}

// RunBatch claims up to limit due entries and processes them sequentially.
// A failing entry is marked failed with its reason and produces no snapshot;
// the pass continues with the remaining entries. Each pass first reaps
// entries stranded in processing by a dead worker.
func (w *Worker) RunBatch(ctx context.Context, limit int) (*BatchResult, error) {
	reaped, err := w.queue.ReapStale(ctx, w.now().Add(-processingLease))
	if err != nil {
		return nil, eris.Wrap(err, "crawl: reap stale entries")
	}
	if reaped > 0 {
		zap.L().Warn("crawl: reaped stale processing entries", zap.Int64("reaped", reaped))
	}

	entries, err := w.queue.Claim(ctx, limit)
	if err != nil {
		return nil, eris.Wrap(err, "crawl: claim entries")
	}

	res := &BatchResult{Claimed: len(entries)}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "crawl: batch interrupted")
		}

		facts, err := w.processEntry(ctx, entry)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, ItemError{
				EntryID:  entry.ID,
				SchoolID: entry.SchoolID,
				Err:      err.Error(),
			})
			if ferr := w.queue.Fail(ctx, entry.ID, err.Error()); ferr != nil {
				zap.L().Error("crawl: mark entry failed",
					zap.Int64("entry_id", entry.ID), zap.Error(ferr))
			}
			continue
		}

		// Aborting here would strand the remaining claims in processing;
		// count the entry as failed and keep draining the batch.
		if err := w.queue.Complete(ctx, entry.ID); err != nil {
			err = eris.Wrapf(err, "crawl: complete entry %d", entry.ID)
			res.Failed++
			res.Errors = append(res.Errors, ItemError{
				EntryID:  entry.ID,
				SchoolID: entry.SchoolID,
				Err:      err.Error(),
			})
			if ferr := w.queue.Fail(ctx, entry.ID, err.Error()); ferr != nil {
				zap.L().Error("crawl: mark entry failed",
					zap.Int64("entry_id", entry.ID), zap.Error(ferr))
			}
			continue
		}
		res.Completed++
		res.Facts += facts
	}

	zap.L().Info("crawl batch finished",
		zap.Int("claimed", res.Claimed),
		zap.Int("completed", res.Completed),
		zap.Int("failed", res.Failed),
		zap.Int("facts", res.Facts),
	)
	return res, nil
}

// processEntry runs extract -> snapshot -> ingest for one claimed entry. Any
// error before the snapshot insert leaves no snapshot behind.
func (w *Worker) processEntry(ctx context.Context, entry model.CrawlQueueEntry) (int, error) {
	ext, err := w.extractor.Extract(ctx, entry.Domain)
	if err != nil {
		return 0, eris.Wrapf(err, "crawl: extract %s", entry.Domain)
	}

	snap := &model.Snapshot{
		SchoolID:          entry.SchoolID,
		Domain:            entry.Domain,
		AsOf:              w.now().UTC(),
		RawPayload:        ext.Payload,
		ExtractConfidence: &ext.Confidence,
	}
	id, err := w.snapshots.Insert(ctx, snap)
	if err != nil {
		return 0, err
	}
	snap.ID = id

	facts, err := w.ingestor.IngestSnapshot(ctx, snap)
	if err != nil {
		return 0, eris.Wrapf(err, "crawl: ingest snapshot %d", id)
	}
	return facts, nil
}
