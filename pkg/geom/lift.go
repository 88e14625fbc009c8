package geom

import (
	"math"
	"math/big"
)

// Lifted is the paraboloid lift of a base cloud: point i maps to
// (p_i - c, |p_i - c|^2) in dimension N+1, where c is the base cloud's
// float32 bounding-box centre. Lifting about c rather than the origin leaves
// the lower hull unchanged and keeps the lifted coordinates small.
//
// An optional apex (index Len()-1) sits strictly above the lift of an anchor
// point. It is only needed when every lifted point lies on one hyperplane.
type Lifted struct {
	base   *Points
	center []float64
	dim    int // base dimension N
	coords []float64
	errs   []float64
	apex   []float64 // nil without apex
}

var _ PointSet = (*Lifted)(nil)

// Lift computes the float lift of base.
func Lift(base *Points) *Lifted {
	n := base.Dim()
	m := base.Len()
	c32 := base.Center()
	l := &Lifted{
		base:   base,
		center: make([]float64, n),
		dim:    n,
		coords: make([]float64, m*(n+1)),
		errs:   make([]float64, m),
	}
	for k, v := range c32 {
		l.center[k] = float64(v)
	}
	const u = 0x1p-52
	for i := 0; i < m; i++ {
		row := l.coords[i*(n+1) : (i+1)*(n+1)]
		var h, maxAbs float64
		for k, v := range base.Coord(i) {
			d := v - l.center[k]
			row[k] = d
			h += d * d
			maxAbs = math.Max(maxAbs, math.Abs(d))
		}
		row[n] = h
		l.errs[i] = 4 * u * (maxAbs + float64(n+2)*h)
	}
	return l
}

// WithApex returns a copy of l with an apex above the lift of anchor.
func (l *Lifted) WithApex(anchor int) *Lifted {
	cp := *l
	a := make([]float64, l.dim+1)
	copy(a, l.Coord(anchor))
	h := a[l.dim]
	// Well above the float lift, and above the exact lift despite its rounding.
	a[l.dim] = h + math.Abs(h)*0x1p-20 + 1
	cp.apex = a
	return &cp
}

// HasApex reports whether the last index is the apex.
func (l *Lifted) HasApex() bool { return l.apex != nil }

// Apex returns the apex index, or -1.
func (l *Lifted) Apex() int {
	if l.apex == nil {
		return -1
	}
	return l.base.Len()
}

// Base returns the unlifted cloud.
func (l *Lifted) Base() *Points { return l.base }

func (l *Lifted) Len() int {
	if l.apex != nil {
		return l.base.Len() + 1
	}
	return l.base.Len()
}

func (l *Lifted) Dim() int { return l.dim + 1 }

func (l *Lifted) Coord(i int) []float64 {
	if l.apex != nil && i == l.base.Len() {
		return l.apex
	}
	return l.coords[i*(l.dim+1) : (i+1)*(l.dim+1)]
}

func (l *Lifted) Exact(i int) []*big.Rat {
	out := make([]*big.Rat, l.dim+1)
	if l.apex != nil && i == l.base.Len() {
		for k, v := range l.apex {
			out[k] = new(big.Rat).SetFloat64(v)
		}
		return out
	}
	h := new(big.Rat)
	sq := new(big.Rat)
	for k, v := range l.base.Coord(i) {
		d := new(big.Rat).SetFloat64(v)
		d.Sub(d, new(big.Rat).SetFloat64(l.center[k]))
		out[k] = d
		h.Add(h, sq.Mul(d, d))
	}
	out[l.dim] = h
	return out
}

func (l *Lifted) ErrBound(i int) float64 {
	if l.apex != nil && i == l.base.Len() {
		return 0
	}
	return l.errs[i]
}
