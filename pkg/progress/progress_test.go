package progress

import (
	"context"
	"sync"
	"testing"

	"github.com/chazu/cocone/pkg/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerFraction(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, 0.0, tr.Fraction())
	tr.SetFraction(0.25)
	assert.Equal(t, 0.25, tr.Fraction())
	tr.SetFraction(3)
	assert.Equal(t, 1.0, tr.Fraction())
	tr.SetFraction(-1)
	assert.Equal(t, 0.0, tr.Fraction())
}

func TestTrackerConcurrentUse(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				tr.SetFraction(float64(j) / 1000)
				_ = tr.ShouldCancel()
				_ = tr.Fraction()
			}
		}(i)
	}
	tr.Cancel()
	wg.Wait()
	assert.True(t, tr.ShouldCancel())
}

func TestSubRange(t *testing.T) {
	tr := NewTracker()
	s := Sub(tr, 0.6, 0.85)
	s.SetFraction(0)
	assert.InDelta(t, 0.6, tr.Fraction(), 1e-12)
	s.SetFraction(1)
	assert.InDelta(t, 0.85, tr.Fraction(), 1e-12)
	s.SetFraction(0.5)
	assert.InDelta(t, 0.725, tr.Fraction(), 1e-12)

	tr.Cancel()
	assert.True(t, s.ShouldCancel())
}

func TestPollerTicks(t *testing.T) {
	tr := NewTracker()
	p := NewPoller(context.Background(), tr, "hull", 4)
	for i := 1; i <= 3; i++ {
		require.NoError(t, p.Tick(i, 8))
	}
	assert.Equal(t, 0.0, tr.Fraction(), "no report before the period elapses")
	require.NoError(t, p.Tick(4, 8))
	assert.Equal(t, 0.5, tr.Fraction())
}

func TestPollerCancellation(t *testing.T) {
	tr := NewTracker()
	p := NewPoller(context.Background(), tr, "cocone", 1)
	tr.Cancel()
	err := p.Tick(1, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrCancelled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewPoller(ctx, nil, "orient", 1).Check()
	assert.ErrorIs(t, err, failure.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
