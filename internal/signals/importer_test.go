package signals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e-roy/find-a-flight-school-sub001/internal/model"
	"github.com/e-roy/find-a-flight-school-sub001/pkg/places"
)

type fakeSchools struct {
	active []model.School
}

func (f *fakeSchools) Create(ctx context.Context, sc *model.School) (string, error) { return "", nil }

func (f *fakeSchools) GetByID(ctx context.Context, id string) (*model.School, error) {
	return nil, nil
}

func (f *fakeSchools) GetByDomain(ctx context.Context, domain string) (*model.School, error) {
	return nil, nil
}

func (f *fakeSchools) ListActive(ctx context.Context) ([]model.School, error) {
	return f.active, nil
}

func (f *fakeSchools) PromoteSeed(ctx context.Context, sd model.SeedCandidate, domain string, confidence float64) error {
	return nil
}

type factSink struct {
	appended []model.Fact
}

func (f *factSink) Append(ctx context.Context, facts []model.Fact) (int, error) {
	f.appended = append(f.appended, facts...)
	return len(facts), nil
}

func (f *factSink) Moderate(ctx context.Context, schoolID, factKey string, asOf time.Time, decision model.ModerationStatus) error {
	return nil
}

func (f *factSink) Current(ctx context.Context, schoolID string) ([]model.Fact, error) {
	return nil, nil
}

func (f *factSink) History(ctx context.Context, schoolID, factKey string) ([]model.Fact, error) {
	return nil, nil
}

func (f *factSink) CountApproved(ctx context.Context, schoolID string) (int, error) {
	return 0, nil
}

type fakePlaces struct {
	byQuery map[string][]places.Place
}

func (f *fakePlaces) TextSearch(ctx context.Context, query string) (*places.TextSearchResponse, error) {
	return &places.TextSearchResponse{Places: f.byQuery[query]}, nil
}

func TestImporter_Run(t *testing.T) {
	schools := &fakeSchools{active: []model.School{
		{ID: "sch-1", CanonicalName: "Sunrise Aviation", City: "Ormond Beach", State: "FL"},
		{ID: "sch-2", CanonicalName: "Ghost Flyers", City: "Nowhere", State: "ZZ"},
	}}
	factStore := &factSink{}
	client := &fakePlaces{byQuery: map[string][]places.Place{
		"Sunrise Aviation Ormond Beach FL": {
			{
				DisplayName:     places.DisplayName{Text: "Sunrise Aviation Inc"},
				Rating:          4.8,
				UserRatingCount: 132,
			},
			{
				DisplayName: places.DisplayName{Text: "Totally Unrelated Diner"},
				Rating:      3.1,
			},
		},
	}}

	imp := NewImporter(schools, factStore, client)
	res, err := imp.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, res.Schools)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.Unmatched)
	assert.Empty(t, res.Errors)

	require.Len(t, factStore.appended, 2)
	byKey := map[string]model.Fact{}
	for _, f := range factStore.appended {
		byKey[f.FactKey] = f
		assert.Equal(t, "sch-1", f.SchoolID)
		assert.Equal(t, model.ProvenanceGoogle, f.Provenance)
		assert.Equal(t, model.ModerationApproved, f.ModerationStatus)
	}
	assert.Equal(t, 4.8, byKey["rating"].FactValue.Num)
	assert.Equal(t, float64(132), byKey["review_count"].FactValue.Num)
}

func TestBestMatch_RejectsWeakNames(t *testing.T) {
	m := bestMatch("Sunrise Aviation", []places.Place{
		{DisplayName: places.DisplayName{Text: "Sunset Diner"}},
	})
	assert.Nil(t, m)
}

func TestNameSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, nameSimilarity("SUNRISE AVIATION", "SUNRISE AVIATION"))
	assert.Equal(t, 0.0, nameSimilarity("", "SUNRISE AVIATION"))
	assert.Greater(t, nameSimilarity("SUNRISE AVIATION", "SUNRISE AVIATION ORMOND"), 0.5)
}
