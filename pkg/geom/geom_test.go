package geom

import (
	"math"
	"math/big"
	"math/rand"
	"testing"

	"github.com/chazu/cocone/pkg/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestNewPointsValidation(t *testing.T) {
	_, err := NewPoints(3, []float32{0, 0, 0, 1})
	assert.ErrorIs(t, err, failure.ErrDegenerateInput)

	_, err = NewPoints(2, []float32{0, float32(math.NaN())})
	assert.ErrorIs(t, err, failure.ErrDegenerateInput)

	_, err = FromRows([][]float32{{0, 0}, {1}})
	assert.ErrorIs(t, err, failure.ErrDegenerateInput)

	p, err := FromRows([][]float32{{0, 1}, {2, 3}})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, []float32{2, 3}, p.At(1))
	assert.Equal(t, []float64{2, 3}, p.Coord(1))
}

func TestBoundsAndCenter(t *testing.T) {
	p := MustPoints([][]float32{{-1, 4}, {3, 0}, {1, 2}})
	lo, hi := p.Bounds()
	assert.Equal(t, []float32{-1, 0}, lo)
	assert.Equal(t, []float32{3, 4}, hi)
	assert.Equal(t, []float32{1, 2}, p.Center())
	assert.InDelta(t, math.Sqrt(32), p.Diagonal(), 1e-12)
}

func TestOrientSigns(t *testing.T) {
	p := MustPoints([][]float32{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {2, 0}})
	for _, prec := range []Precision{PrecisionAuto, PrecisionFloat64, PrecisionExact} {
		t.Run(prec.String(), func(t *testing.T) {
			pred := NewPredicates(p, prec)
			s, err := pred.Orient([]int{0, 1, 2})
			require.NoError(t, err)
			assert.Equal(t, 1, s)
			s, err = pred.Orient([]int{0, 2, 1})
			require.NoError(t, err)
			assert.Equal(t, -1, s)
			s, err = pred.Orient([]int{0, 1, 4})
			require.NoError(t, err)
			assert.Equal(t, 0, s)
		})
	}
}

func TestOrientNearlyDegenerateUsesExactPath(t *testing.T) {
	// Three points that are collinear in exact arithmetic.
	p := MustPoints([][]float32{{0.1, 0.1}, {0.2, 0.2}, {0.7, 0.7}})
	pred := NewPredicates(p, PrecisionAuto)
	s, err := pred.Orient([]int{0, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, 0, s)
	assert.Equal(t, 1, pred.Exacts)
}

func TestOrientFilterAgreesWithExact(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for dim := 2; dim <= 5; dim++ {
		rows := make([][]float32, 40)
		for i := range rows {
			rows[i] = make([]float32, dim)
			for k := range rows[i] {
				rows[i][k] = float32(rng.Float64()*2 - 1)
			}
		}
		p := MustPoints(rows)
		auto := NewPredicates(p, PrecisionAuto)
		exact := NewPredicates(p, PrecisionExact)
		for trial := 0; trial < 50; trial++ {
			idx := rng.Perm(len(rows))[:dim+1]
			a, err := auto.Orient(idx)
			require.NoError(t, err)
			e, err := exact.Orient(idx)
			require.NoError(t, err)
			assert.Equal(t, e, a, "dim %d indices %v", dim, idx)
		}
		assert.Positive(t, auto.Filtered)
	}
}

// hugeSet exercises coordinates whose differences overflow float64.
type hugeSet struct{ rows [][]float64 }

func (h hugeSet) Len() int              { return len(h.rows) }
func (h hugeSet) Dim() int              { return len(h.rows[0]) }
func (h hugeSet) Coord(i int) []float64 { return h.rows[i] }
func (h hugeSet) ErrBound(int) float64  { return 0 }
func (h hugeSet) Exact(i int) []*big.Rat {
	out := make([]*big.Rat, len(h.rows[i]))
	for k, v := range h.rows[i] {
		out[k] = new(big.Rat).SetFloat64(v)
	}
	return out
}

func TestOrientOverflow(t *testing.T) {
	big := math.MaxFloat64
	set := hugeSet{rows: [][]float64{{-big, 0}, {big, 0}, {0, big}}}

	_, err := NewPredicates(set, PrecisionFloat64).Orient([]int{0, 1, 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrNumericOverflow)

	s, err := NewPredicates(set, PrecisionAuto).Orient([]int{0, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, 1, s)
}

func TestParsePrecision(t *testing.T) {
	for in, want := range map[string]Precision{"": PrecisionAuto, "AUTO": PrecisionAuto, "float64": PrecisionFloat64, "exact": PrecisionExact} {
		got, err := ParsePrecision(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePrecision("quad")
	assert.Error(t, err)
}

func TestLiftExactMatchesFloat(t *testing.T) {
	p := MustPoints([][]float32{{1, 2}, {-3, 0.5}, {0.25, -1}})
	l := Lift(p)
	require.Equal(t, 3, l.Dim())
	for i := 0; i < l.Len(); i++ {
		c := l.Coord(i)
		e := l.Exact(i)
		for k := range c {
			f, _ := e[k].Float64()
			assert.InDelta(t, f, c[k], l.ErrBound(i)+1e-300)
		}
		// Height is the squared distance to the centre.
		var h float64
		for k := 0; k < 2; k++ {
			h += c[k] * c[k]
		}
		assert.InDelta(t, h, c[2], 1e-12)
	}
}

func TestLiftApex(t *testing.T) {
	p := MustPoints([][]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}})
	l := Lift(p)
	// Four cocircular points lift onto one plane.
	assert.Len(t, AffineBasis(l, 4), 3)

	a := l.WithApex(0)
	assert.True(t, a.HasApex())
	assert.Equal(t, 4, a.Apex())
	assert.Equal(t, 5, a.Len())
	assert.Len(t, AffineBasis(a, 4), 4)
	assert.Greater(t, a.Coord(4)[2], l.Coord(0)[2])
	assert.False(t, l.HasApex())
}

func TestAffineBasis(t *testing.T) {
	p := MustPoints([][]float32{{0, 0, 0}, {0, 0, 0}, {1, 1, 0}, {2, 2, 0}, {0, 1, 0}, {5, 5, 5}})
	b := AffineBasis(p, 4)
	assert.Len(t, b, 4)
	assert.Len(t, AffineBasis(p, 2), 2)

	flat := MustPoints([][]float32{{0, 0, 1}, {1, 0, 1}, {0, 1, 1}, {3, 3, 1}})
	assert.Len(t, AffineBasis(flat, 4), 3)
}

func TestComplement(t *testing.T) {
	c := Complement([][]float64{{1, 0, 0}, {0, 1, 0}})
	assert.InDeltaSlice(t, []float64{0, 0, 1}, c, 1e-12)

	c = Complement([][]float64{{1, 0}})
	assert.InDeltaSlice(t, []float64{0, 1}, c, 1e-12)

	// det[rows..., c] > 0 in 4D.
	rows := [][]float64{{1, 2, 0, 1}, {0, 1, 3, 0}, {2, 0, 1, 1}}
	c = Complement(rows)
	for _, r := range rows {
		assert.InDelta(t, 0, floats.Dot(r, c), 1e-9)
	}
	pred := NewPredicates(hugeSet{rows: [][]float64{
		{0, 0, 0, 0}, rows[0], rows[1], rows[2], c,
	}}, PrecisionExact)
	s, err := pred.Orient([]int{0, 1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, 1, s)
}

func TestCircumcenter(t *testing.T) {
	c, r, err := Circumcenter([][]float64{{0, 0}, {2, 0}, {0, 2}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1}, c, 1e-12)
	assert.InDelta(t, math.Sqrt2, r, 1e-12)

	_, _, err = Circumcenter([][]float64{{0, 0}, {1, 1}, {2, 2}})
	assert.ErrorIs(t, err, ErrSingular)
}

func TestFacetCircumradius(t *testing.T) {
	r, err := FacetCircumradius([][]float64{{0, 0, 0}, {2, 0, 0}})
	require.NoError(t, err)
	assert.InDelta(t, 1, r, 1e-12)

	r, err = FacetCircumradius([][]float64{{0, 0, 5}, {2, 0, 5}, {0, 2, 5}})
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt2, r, 1e-12)
}

func TestTorus(t *testing.T) {
	rows := Torus(12, 8, 3, 1, 0.25, 1)
	require.Len(t, rows, 96)
	for _, p := range rows {
		ring := math.Hypot(float64(p[0]), float64(p[1]))
		assert.InDelta(t, 1, math.Hypot(ring-3, float64(p[2])), 1e-5)
	}
	assert.Equal(t, rows, Torus(12, 8, 3, 1, 0.25, 1))
}
