// Package geom holds the dimension-generic geometric primitives the
// reconstruction stages share: immutable point sets, the paraboloid lift,
// robust orientation predicates and small linear-algebra helpers.
package geom

import (
	"fmt"
	"math"
	"math/big"

	"github.com/chazu/cocone/pkg/failure"
	"github.com/chewxy/math32"
)

// PointSet is an indexed, immutable collection of points. Index is identity.
type PointSet interface {
	Len() int
	Dim() int
	// Coord returns the float64 coordinates of point i. Callers must not
	// modify the returned slice.
	Coord(i int) []float64
	// Exact returns freshly allocated exact coordinates of point i.
	Exact(i int) []*big.Rat
	// ErrBound is an absolute bound on the error of every Coord(i) entry
	// relative to Exact(i).
	ErrBound(i int) float64
}

// Points is the raw single-precision input cloud.
type Points struct {
	dim    int
	data   []float32
	coords []float64
}

var _ PointSet = (*Points)(nil)

// NewPoints copies a flat coordinate array of len(data)/dim points.
// NaN and infinite coordinates are rejected.
func NewPoints(dim int, data []float32) (*Points, error) {
	if dim < 1 {
		return nil, failure.Degenerate("points", "dimension must be positive, got %d", dim)
	}
	if len(data)%dim != 0 {
		return nil, failure.Degenerate("points", "%d coordinates do not divide into points of dimension %d", len(data), dim)
	}
	p := &Points{
		dim:    dim,
		data:   make([]float32, len(data)),
		coords: make([]float64, len(data)),
	}
	for i, v := range data {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return nil, failure.Degenerate("points", "point %d has a non-finite coordinate", i/dim)
		}
		p.data[i] = v
		p.coords[i] = float64(v)
	}
	return p, nil
}

// FromRows builds Points from one slice per point. All rows must share a
// length.
func FromRows(rows [][]float32) (*Points, error) {
	if len(rows) == 0 {
		return nil, failure.Degenerate("points", "no points")
	}
	dim := len(rows[0])
	flat := make([]float32, 0, len(rows)*dim)
	for i, r := range rows {
		if len(r) != dim {
			return nil, failure.Degenerate("points", "point %d has dimension %d, want %d", i, len(r), dim)
		}
		flat = append(flat, r...)
	}
	return NewPoints(dim, flat)
}

// MustPoints is FromRows for literals in tests and examples.
func MustPoints(rows [][]float32) *Points {
	p, err := FromRows(rows)
	if err != nil {
		panic(fmt.Sprintf("geom: %v", err))
	}
	return p
}

func (p *Points) Len() int { return len(p.data) / p.dim }
func (p *Points) Dim() int { return p.dim }

// At returns the single-precision coordinates of point i. Do not modify.
func (p *Points) At(i int) []float32 {
	return p.data[i*p.dim : (i+1)*p.dim]
}

func (p *Points) Coord(i int) []float64 {
	return p.coords[i*p.dim : (i+1)*p.dim]
}

func (p *Points) Exact(i int) []*big.Rat {
	out := make([]*big.Rat, p.dim)
	for k, v := range p.Coord(i) {
		out[k] = new(big.Rat).SetFloat64(v)
	}
	return out
}

// ErrBound is zero: float32 inputs widen to float64 exactly.
func (p *Points) ErrBound(int) float64 { return 0 }

// Raw returns the flat coordinate array. Do not modify.
func (p *Points) Raw() []float32 { return p.data }

// Bounds returns the per-axis minimum and maximum.
func (p *Points) Bounds() (lo, hi []float32) {
	lo = make([]float32, p.dim)
	hi = make([]float32, p.dim)
	for k := range lo {
		lo[k] = math32.Inf(1)
		hi[k] = math32.Inf(-1)
	}
	for i := 0; i < p.Len(); i++ {
		for k, v := range p.At(i) {
			lo[k] = math32.Min(lo[k], v)
			hi[k] = math32.Max(hi[k], v)
		}
	}
	return lo, hi
}

// Center returns the bounding-box midpoint rounded to float32, so that it is
// exactly representable in both arithmetic paths.
func (p *Points) Center() []float32 {
	lo, hi := p.Bounds()
	c := make([]float32, p.dim)
	for k := range c {
		c[k] = float32((float64(lo[k]) + float64(hi[k])) / 2)
	}
	return c
}

// Diagonal returns the bounding-box diagonal length.
func (p *Points) Diagonal() float64 {
	lo, hi := p.Bounds()
	var s float64
	for k := range lo {
		d := float64(hi[k]) - float64(lo[k])
		s += d * d
	}
	return math.Sqrt(s)
}
