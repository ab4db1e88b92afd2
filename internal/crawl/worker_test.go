package crawl

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
)

type fakeQueue struct {
	claimable   []model.CrawlQueueEntry
	completed   []int64
	failed      map[int64]string
	completeErr map[int64]error
	reapCutoffs []time.Time
}

func newFakeQueue(entries ...model.CrawlQueueEntry) *fakeQueue {
	return &fakeQueue{claimable: entries, failed: map[int64]string{}}
}

func (f *fakeQueue) Enqueue(ctx context.Context, schoolID, domain string, at time.Time) (*model.CrawlQueueEntry, bool, error) {
	return nil, false, nil
}

func (f *fakeQueue) Claim(ctx context.Context, limit int) ([]model.CrawlQueueEntry, error) {
	if limit > len(f.claimable) {
		limit = len(f.claimable)
	}
	out := f.claimable[:limit]
	f.claimable = f.claimable[limit:]
	return out, nil
}

func (f *fakeQueue) Complete(ctx context.Context, id int64) error {
	if err := f.completeErr[id]; err != nil {
		return err
	}
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeQueue) Fail(ctx context.Context, id int64, reason string) error {
	f.failed[id] = reason
	return nil
}

func (f *fakeQueue) Retry(ctx context.Context, id int64) (*model.CrawlQueueEntry, error) {
	return nil, nil
}

func (f *fakeQueue) RetryFailed(ctx context.Context, limit int) (int64, error) { return 0, nil }

func (f *fakeQueue) ReapStale(ctx context.Context, cutoff time.Time) (int64, error) {
	f.reapCutoffs = append(f.reapCutoffs, cutoff)
	return 0, nil
}

func (f *fakeQueue) HasActive(ctx context.Context, schoolID string) (bool, error) {
	return false, nil
}

type fakeSnapshots struct {
	inserted []*model.Snapshot
}

func (f *fakeSnapshots) Insert(ctx context.Context, snap *model.Snapshot) (int64, error) {
	f.inserted = append(f.inserted, snap)
	return int64(len(f.inserted)), nil
}

func (f *fakeSnapshots) LatestForSchool(ctx context.Context, schoolID string) (*model.Snapshot, error) {
	return nil, nil
}

type fakeExtractor struct {
	payloads map[string][]byte
}

func (f *fakeExtractor) Extract(ctx context.Context, domain string) (*Extraction, error) {
	payload, ok := f.payloads[domain]
	if !ok {
		return nil, eris.New("extract: upstream returned 502")
	}
	return &Extraction{Payload: payload, Confidence: 0.9}, nil
}

type fakeIngestor struct {
	snapshots []*model.Snapshot
}

func (f *fakeIngestor) IngestSnapshot(ctx context.Context, snap *model.Snapshot) (int, error) {
	f.snapshots = append(f.snapshots, snap)
	var payload map[string]any
	if err := json.Unmarshal(snap.RawPayload, &payload); err != nil {
		return 0, err
	}
	return len(payload), nil
}

func TestWorker_RunBatch_CompletesAndIngests(t *testing.T) {
	queue := newFakeQueue(model.CrawlQueueEntry{
		ID: 1, SchoolID: "sch-1", Domain: "sunriseaviation.com", Status: model.CrawlProcessing,
	})
	snaps := &fakeSnapshots{}
	ingest := &fakeIngestor{}
	extractor := &fakeExtractor{payloads: map[string][]byte{
		"sunriseaviation.com": []byte(`{"phone":"+13865550199","fleet_size":12}`),
	}}

	w := NewWorker(queue, snaps, extractor, ingest)
	res, err := w.RunBatch(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Claimed)
	assert.Equal(t, 1, res.Completed)
	assert.Zero(t, res.Failed)
	assert.Equal(t, 2, res.Facts)
	assert.Equal(t, []int64{1}, queue.completed)
	require.Len(t, snaps.inserted, 1)
	assert.Equal(t, "sch-1", snaps.inserted[0].SchoolID)
	require.Len(t, ingest.snapshots, 1)
}

func TestWorker_RunBatch_ExtractFailureLeavesNoSnapshot(t *testing.T) {
	queue := newFakeQueue(model.CrawlQueueEntry{
		ID: 2, SchoolID: "sch-2", Domain: "down.example.com", Status: model.CrawlProcessing,
	})
	snaps := &fakeSnapshots{}
	ingest := &fakeIngestor{}

	w := NewWorker(queue, snaps, &fakeExtractor{}, ingest)
	res, err := w.RunBatch(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, res.Completed)
	assert.Empty(t, snaps.inserted)
	assert.Empty(t, ingest.snapshots)
	assert.Contains(t, queue.failed[2], "502")
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "sch-2", res.Errors[0].SchoolID)
}

func TestWorker_RunBatch_ContinuesPastFailures(t *testing.T) {
	queue := newFakeQueue(
		model.CrawlQueueEntry{ID: 3, SchoolID: "sch-3", Domain: "down.example.com"},
		model.CrawlQueueEntry{ID: 4, SchoolID: "sch-4", Domain: "fly.example.com"},
	)
	snaps := &fakeSnapshots{}
	ingest := &fakeIngestor{}
	extractor := &fakeExtractor{payloads: map[string][]byte{
		"fly.example.com": []byte(`{"email":"info@fly.example.com"}`),
	}}

	w := NewWorker(queue, snaps, extractor, ingest)
	res, err := w.RunBatch(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Claimed)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []int64{4}, queue.completed)
}

func TestWorker_RunBatch_CompleteFailureDoesNotStrandClaims(t *testing.T) {
	queue := newFakeQueue(
		model.CrawlQueueEntry{ID: 5, SchoolID: "sch-5", Domain: "a.example.com"},
		model.CrawlQueueEntry{ID: 6, SchoolID: "sch-6", Domain: "b.example.com"},
	)
	queue.completeErr = map[int64]error{5: eris.New("connection reset")}
	snaps := &fakeSnapshots{}
	ingest := &fakeIngestor{}
	extractor := &fakeExtractor{payloads: map[string][]byte{
		"a.example.com": []byte(`{"phone":"+13865550199"}`),
		"b.example.com": []byte(`{"phone":"+13865550198"}`),
	}}

	w := NewWorker(queue, snaps, extractor, ingest)
	res, err := w.RunBatch(context.Background(), 10)

	// Entry 5 is marked failed rather than stranded in processing, and the
	// pass drains entry 6.
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []int64{6}, queue.completed)
	assert.Contains(t, queue.failed[5], "connection reset")
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "sch-5", res.Errors[0].SchoolID)
}

func TestWorker_RunBatch_ReapsStaleBeforeClaiming(t *testing.T) {
	queue := newFakeQueue()

	w := NewWorker(queue, &fakeSnapshots{}, &fakeExtractor{}, &fakeIngestor{})
	start := time.Now()
	_, err := w.RunBatch(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, queue.reapCutoffs, 1)
	assert.WithinDuration(t, start.Add(-processingLease), queue.reapCutoffs[0], time.Second)
}
