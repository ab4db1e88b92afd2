package quota

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

// noon is the fixed "now" the tests pin the guard to; the day window then
// starts at the preceding UTC midnight.
var noon = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeCounter struct {
	perMinute int
	perDay    int
	err       error
}

func (f *fakeCounter) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if noon.Sub(since) <= time.Minute {
		return f.perMinute, nil
	}
	return f.perDay, nil
}

func newTestGuard(c *fakeCounter, failOpen bool) *Guard {
	g := NewGuard(c, 60, 5000, failOpen)
	g.now = func() time.Time { return noon }
	return g
}

func TestGuard_Allow(t *testing.T) {
	g := newTestGuard(&fakeCounter{perMinute: 10, perDay: 100}, true)
	assert.True(t, g.Allow(context.Background(), 5))
}

func TestGuard_DeniesOverPerMinute(t *testing.T) {
	g := newTestGuard(&fakeCounter{perMinute: 58, perDay: 58}, true)
	assert.False(t, g.Allow(context.Background(), 5))
}

func TestGuard_DeniesOverPerDay(t *testing.T) {
	g := newTestGuard(&fakeCounter{perMinute: 0, perDay: 4999}, true)
	assert.False(t, g.Allow(context.Background(), 5))
}

func TestGuard_FailsOpenOnCounterError(t *testing.T) {
	g := newTestGuard(&fakeCounter{err: eris.New("connection refused")}, true)
	assert.True(t, g.Allow(context.Background(), 5))
}

func TestGuard_FailClosedWhenConfigured(t *testing.T) {
	g := newTestGuard(&fakeCounter{err: eris.New("connection refused")}, false)
	assert.False(t, g.Allow(context.Background(), 5))
}
