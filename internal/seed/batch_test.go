package seed

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
	"github.com/e-roy/find-a-flight-school-sub001/internal/resolve"
)

type fakeStore struct {
	seeds   []model.SeedCandidate
	updates map[int64]ResolutionUpdate
	touched []int64
}

func newFakeStore(seeds ...model.SeedCandidate) *fakeStore {
	return &fakeStore{seeds: seeds, updates: map[int64]ResolutionUpdate{}}
}

func (f *fakeStore) BulkImport(ctx context.Context, seeds []model.SeedCandidate) (int64, error) {
	return int64(len(seeds)), nil
}

func (f *fakeStore) ListUnresolved(ctx context.Context, limit int) ([]model.SeedCandidate, error) {
	if limit < len(f.seeds) {
		return f.seeds[:limit], nil
	}
	return f.seeds, nil
}

func (f *fakeStore) UpdateResolution(ctx context.Context, id int64, upd ResolutionUpdate) error {
	f.updates[id] = upd
	return nil
}

func (f *fakeStore) TouchLastSeen(ctx context.Context, id int64, at time.Time) error {
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeStore) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	return len(f.seeds), nil
}

// scriptedProber serves canned probe results keyed by domain and fails
// everything else with a transient error.
type scriptedProber struct {
	pages map[string]resolve.ProbeResult
}

func (p *scriptedProber) Probe(ctx context.Context, domain string) (*resolve.ProbeResult, error) {
	if pr, ok := p.pages[domain]; ok {
		return &pr, nil
	}
	return &resolve.ProbeResult{Live: false}, nil
}

type downProber struct{}

func (downProber) Probe(ctx context.Context, domain string) (*resolve.ProbeResult, error) {
	return nil, eris.New("probe: connection refused")
}

type fakePromoter struct {
	promoted []string
}

func (f *fakePromoter) PromoteSeed(ctx context.Context, sd model.SeedCandidate, domain string, confidence float64) error {
	f.promoted = append(f.promoted, domain)
	return nil
}

func TestBatch_Run_ResolvesAndPromotes(t *testing.T) {
	store := newFakeStore(model.SeedCandidate{
		ID:    1,
		Name:  "Sunrise Aviation",
		City:  "Austin",
		State: "TX",
		Phone: "512-555-0100",
	})
	prober := &scriptedProber{pages: map[string]resolve.ProbeResult{
		"sunriseaviation.com": {
			Live:  true,
			Title: "Learn to Fly",
			Body:  "Flight training in Austin. Call (512) 555-0100 today.",
		},
	}}
	promoter := &fakePromoter{}

	batch := NewBatch(store, resolve.NewResolver(prober, 0.25), promoter)
	res, err := batch.Run(context.Background(), 50)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Resolved)
	assert.Empty(t, res.Errors)

	upd, ok := store.updates[1]
	require.True(t, ok)
	assert.Equal(t, "sunriseaviation.com", upd.Website)
	require.NotNil(t, upd.Confidence)
	assert.InDelta(t, 0.82, *upd.Confidence, 0.001)
	assert.Equal(t, []string{"sunriseaviation.com"}, promoter.promoted)
}

func TestBatch_Run_BelowFloorLeavesDomainEmpty(t *testing.T) {
	store := newFakeStore(model.SeedCandidate{ID: 2, Name: "Ghost Flyers", City: "Nowhere", State: "ZZ"})
	prober := &scriptedProber{pages: map[string]resolve.ProbeResult{}}
	promoter := &fakePromoter{}

	batch := NewBatch(store, resolve.NewResolver(prober, 0.25), promoter)
	res, err := batch.Run(context.Background(), 50)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Missed)
	assert.Zero(t, res.Resolved)
	assert.Empty(t, promoter.promoted)

	upd := store.updates[2]
	assert.Empty(t, upd.Website)
}

func TestBatch_Run_ResolverFailureStillAdvancesLastSeen(t *testing.T) {
	store := newFakeStore(model.SeedCandidate{ID: 3, Name: "Cloudbase Flight School"})

	batch := NewBatch(store, resolve.NewResolver(downProber{}, 0.25), nil)
	res, err := batch.Run(context.Background(), 50)

	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, int64(3), res.Errors[0].SeedID)
	assert.Equal(t, []int64{3}, store.touched)
	assert.Empty(t, store.updates)
}

func TestBatch_Run_SkipsAlreadyResolved(t *testing.T) {
	conf := 0.9
	store := newFakeStore(model.SeedCandidate{ID: 4, Name: "Done Aviation", Confidence: &conf})

	batch := NewBatch(store, resolve.NewResolver(&scriptedProber{}, 0.25), nil)
	res, err := batch.Run(context.Background(), 50)

	require.NoError(t, err)
	assert.Zero(t, res.Processed)
	assert.Empty(t, store.updates)
}
