package orient

import (
	"context"
	"testing"

	"github.com/chazu/cocone/pkg/cocone"
	"github.com/chazu/cocone/pkg/delaunay"
	"github.com/chazu/cocone/pkg/failure"
	"github.com/chazu/cocone/pkg/geom"
	"github.com/chazu/cocone/pkg/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func classify(t *testing.T, rows [][]float32, opts cocone.Options) *cocone.Result {
	t.Helper()
	tr, err := delaunay.Build(context.Background(), geom.MustPoints(rows), delaunay.Options{})
	require.NoError(t, err)
	c, err := cocone.Classify(context.Background(), tr, opts)
	require.NoError(t, err)
	return c
}

// facing returns sign(Sign * ortho . (centroid - center)) for facet fid.
func facing(c *cocone.Result, r *Result, fid int, center []float64) float64 {
	var rows [][]float64
	for _, v := range c.Facets[fid].Vertices {
		rows = append(rows, c.Triangulation.Points.Coord(v))
	}
	out := floats.SubTo(make([]float64, len(center)), geom.Centroid(rows), center)
	return float64(r.Sign[fid]) * floats.Dot(out, c.Facets[fid].Ortho)
}

func assertWinding(t *testing.T, c *cocone.Result, r *Result) {
	t.Helper()
	for _, e := range Edges(c) {
		if e.Manifold {
			assert.Equal(t, e.Tau()*r.Sign[e.A], r.Sign[e.B], "facets %d and %d wind inconsistently", e.A, e.B)
		}
	}
}

func TestOrientConvexPolytopesFaceOutward(t *testing.T) {
	tests := []struct {
		name string
		rows [][]float32
	}{
		{"tetrahedron", [][]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}},
		{"cube", [][]float32{{-1, -1, -1}, {1, -1, -1}, {-1, 1, -1}, {1, 1, -1}, {-1, -1, 1}, {1, -1, 1}, {-1, 1, 1}, {1, 1, 1}}},
		{"octahedron", [][]float32{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}},
		{"fibonacci sphere", geom.FibonacciSphere(300, 2, [3]float64{1, 0, -1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := classify(t, tt.rows, cocone.DefaultOptions())
			r, err := Orient(context.Background(), c, Options{})
			require.NoError(t, err)
			require.Len(t, r.Components, 1)

			var all [][]float64
			for i := 0; i < c.Triangulation.Points.Len(); i++ {
				all = append(all, c.Triangulation.Points.Coord(i))
			}
			center := geom.Centroid(all)
			for _, fid := range c.Accepted {
				assert.Greater(t, facing(c, r, fid, center), 0.0, "facet %d faces inward", fid)
				assert.Equal(t, c.Facets[fid].Outward, r.Sign[fid], "facet %d", fid)
			}
			assertWinding(t, c, r)
		})
	}
}

func TestOrientSmoothNeighboursAgree(t *testing.T) {
	c := classify(t, geom.FibonacciSphere(400, 1, [3]float64{}), cocone.DefaultOptions())
	r, err := Orient(context.Background(), c, Options{})
	require.NoError(t, err)
	for _, e := range Edges(c) {
		na := floats.ScaleTo(make([]float64, 3), float64(r.Sign[e.A]), c.Facets[e.A].Ortho)
		nb := floats.ScaleTo(make([]float64, 3), float64(r.Sign[e.B]), c.Facets[e.B].Ortho)
		assert.Greater(t, floats.Dot(na, nb), 0.0)
	}
	assert.Positive(t, r.TreeWeight)
}

func TestOrientTwoCircles(t *testing.T) {
	rows := append(geom.Circle(64, 1, [2]float64{-3, 0}), geom.Circle(64, 1, [2]float64{3, 0})...)
	c := classify(t, rows, cocone.DefaultOptions())
	r, err := Orient(context.Background(), c, Options{})
	require.NoError(t, err)
	require.Len(t, r.Components, 2)

	for _, comp := range r.Components {
		assert.Len(t, comp.Facets, 64)
		center := []float64{-3, 0}
		if c.Facets[comp.Root].Vertices[0] >= 64 {
			center = []float64{3, 0}
		}
		for _, fid := range comp.Facets {
			assert.Greater(t, facing(c, r, fid, center), 0.0, "facet %d faces inward", fid)
		}
	}
	assertWinding(t, c, r)

	// Oriented edges chain head to tail around each circle.
	heads := map[int]int{}
	tails := map[int]int{}
	for _, fid := range c.Accepted {
		v := c.Facets[fid].Vertices
		from, to := v[0], v[1]
		if r.Sign[fid] < 0 {
			from, to = to, from
		}
		tails[from]++
		heads[to]++
	}
	for v := range rows {
		assert.Equal(t, 1, heads[v], "vertex %d", v)
		assert.Equal(t, 1, tails[v], "vertex %d", v)
	}
}

func TestOrientRawCandidatesFaceAwayFromCentroid(t *testing.T) {
	rows := append(geom.Circle(64, 1, [2]float64{-3, 0}), geom.Circle(64, 1, [2]float64{3, 0})...)
	opts := cocone.DefaultOptions()
	opts.RawCandidates = true
	c := classify(t, rows, opts)
	r, err := Orient(context.Background(), c, Options{})
	require.NoError(t, err)
	require.Len(t, r.Components, 2)
	for _, comp := range r.Components {
		center := []float64{-3, 0}
		if c.Facets[comp.Root].Vertices[0] >= 64 {
			center = []float64{3, 0}
		}
		for _, fid := range comp.Facets {
			assert.Greater(t, facing(c, r, fid, center), 0.0, "facet %d faces inward", fid)
		}
	}
}

func TestOrientEmpty(t *testing.T) {
	opts := cocone.DefaultOptions()
	opts.Quorum = 4
	opts.RawCandidates = true
	c := classify(t, [][]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, opts)
	r, err := Orient(context.Background(), c, Options{})
	require.NoError(t, err)
	assert.Empty(t, r.Components)
	assert.Equal(t, []int{0, 0, 0, 0}, r.Sign)
}

func TestOrientCancelled(t *testing.T) {
	c := classify(t, geom.FibonacciSphere(50, 1, [3]float64{}), cocone.DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Orient(ctx, c, Options{Sink: progress.NewTracker()})
	assert.ErrorIs(t, err, failure.ErrCancelled)
}

func TestChildSign(t *testing.T) {
	tests := []struct {
		name string
		edge Edge
		want int
	}{
		{"manifold even slots", Edge{SlotA: 0, SlotB: 2, Dot: 0.9, Manifold: true}, -1},
		{"manifold odd slots", Edge{SlotA: 1, SlotB: 2, Dot: -0.9, Manifold: true}, 1},
		{"non-manifold agreeing", Edge{SlotA: 0, SlotB: 0, Dot: 0.5}, 1},
		{"non-manifold opposed", Edge{SlotA: 1, SlotB: 0, Dot: -0.5}, -1},
		{"non-manifold perpendicular", Edge{SlotA: 1, SlotB: 1, Dot: 1e-9}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, childSign(tt.edge, 1, DefaultEpsilon))
			assert.Equal(t, -tt.want, childSign(tt.edge, -1, DefaultEpsilon))
		})
	}
}
