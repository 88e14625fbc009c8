package surface

import (
	"context"
	"testing"

	"github.com/chazu/cocone/pkg/cocone"
	"github.com/chazu/cocone/pkg/delaunay"
	"github.com/chazu/cocone/pkg/failure"
	"github.com/chazu/cocone/pkg/geom"
	"github.com/chazu/cocone/pkg/kernel"
	"github.com/chazu/cocone/pkg/orient"
	"github.com/chazu/cocone/pkg/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func pipeline(t *testing.T, rows [][]float32) (*cocone.Result, *orient.Result) {
	t.Helper()
	ctx := context.Background()
	tr, err := delaunay.Build(ctx, geom.MustPoints(rows), delaunay.Options{})
	require.NoError(t, err)
	c, err := cocone.Classify(ctx, tr, cocone.DefaultOptions())
	require.NoError(t, err)
	o, err := orient.Orient(ctx, c, orient.Options{})
	require.NoError(t, err)
	return c, o
}

func checkMesh(t *testing.T, m *kernel.Mesh) {
	t.Helper()
	require.Len(t, m.Materials, m.FacetCount())
	require.Len(t, m.FacetNormals, m.FacetCount()*m.Dim)
	require.Len(t, m.NormalIndices, m.FacetCount()*m.Dim)
	require.Len(t, m.SourceIndex, m.VertexCount())
	for i := 0; i < m.FacetCount(); i++ {
		rows := make([][]float64, m.Dim)
		for j, v := range m.Facet(i) {
			require.Less(t, int(v), m.VertexCount())
			rows[j] = m.Vertex(int(v))
		}
		// The facet normal follows the winding of the emitted vertex order.
		geometric := geom.FacetComplement(rows)
		geom.Unit(geometric)
		assert.InDeltaSlice(t, geometric, m.FacetNormal(i), 1e-9, "facet %d", i)
		for j := 0; j < m.Dim; j++ {
			assert.Greater(t, floats.Dot(m.CornerNormal(i, j), m.FacetNormal(i)), 0.0, "facet %d corner %d", i, j)
		}
	}
}

func TestExtractTetrahedron(t *testing.T) {
	rows := [][]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	c, o := pipeline(t, rows)
	m, err := Extract(context.Background(), c, o, Options{PartName: "tet"})
	require.NoError(t, err)
	assert.Equal(t, "tet", m.PartName)
	assert.Equal(t, 4, m.FacetCount())
	assert.Equal(t, 4, m.VertexCount())
	assert.Equal(t, []uint32{0, 0, 0, 0}, m.Materials)
	checkMesh(t, m)

	center := []float64{0.25, 0.25, 0.25}
	for i := 0; i < m.FacetCount(); i++ {
		out := floats.SubTo(make([]float64, 3), m.Vertex(int(m.Facet(i)[0])), center)
		assert.Greater(t, floats.Dot(out, m.FacetNormal(i)), 0.0)
	}
}

func TestExtractCompactsVertices(t *testing.T) {
	// The centre and the duplicate of point 0 are left out of the mesh.
	rows := geom.FibonacciSphere(200, 1, [3]float64{})
	rows = append(rows, []float32{0, 0, 0}, rows[0])
	c, o := pipeline(t, rows)
	m, err := Extract(context.Background(), c, o, Options{})
	require.NoError(t, err)
	assert.Equal(t, 396, m.FacetCount())
	want := make([]int, 200)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, m.SourceIndex)
	checkMesh(t, m)
}

func TestExtractShadingNormals(t *testing.T) {
	rows := append(geom.Circle(64, 1, [2]float64{-3, 0}), geom.Circle(64, 1, [2]float64{3, 0})...)
	c, o := pipeline(t, rows)
	m, err := Extract(context.Background(), c, o, Options{})
	require.NoError(t, err)
	assert.Equal(t, 128, m.FacetCount())
	assert.Equal(t, 128, m.VertexCount())
	checkMesh(t, m)

	// Pole normals are shared between the facets around a vertex.
	assert.Less(t, len(m.Normals)/m.Dim, 2*m.FacetCount())
	shaded := 0
	for _, fid := range c.Accepted {
		if _, ok := c.Facets[fid].Shading.(cocone.Flat); !ok {
			shaded++
		}
	}
	assert.Positive(t, shaded)
}

func TestExtractEmpty(t *testing.T) {
	ctx := context.Background()
	tr, err := delaunay.Build(ctx, geom.MustPoints([][]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}), delaunay.Options{})
	require.NoError(t, err)
	opts := cocone.DefaultOptions()
	opts.Quorum = 4
	opts.RawCandidates = true
	c, err := cocone.Classify(ctx, tr, opts)
	require.NoError(t, err)
	o, err := orient.Orient(ctx, c, orient.Options{})
	require.NoError(t, err)
	m, err := Extract(ctx, c, o, Options{})
	require.NoError(t, err)
	assert.True(t, m.IsEmpty())
	assert.Zero(t, m.VertexCount())
}

func TestExtractCancelled(t *testing.T) {
	c, o := pipeline(t, geom.FibonacciSphere(40, 1, [3]float64{}))
	sink := progress.NewTracker()
	sink.Cancel()
	_, err := Extract(context.Background(), c, o, Options{Sink: sink})
	assert.ErrorIs(t, err, failure.ErrCancelled)
}
