package geom

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/chazu/cocone/pkg/failure"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Precision selects the arithmetic behind orientation tests.
type Precision int

const (
	// PrecisionAuto filters with float64 and falls back to exact rationals
	// when the filter cannot certify the sign. Above FilterMaxDim it always
	// uses rationals.
	PrecisionAuto Precision = iota
	// PrecisionFloat64 trusts plain float64 elimination. Non-finite
	// intermediates are reported as numeric overflow.
	PrecisionFloat64
	// PrecisionExact always uses rationals.
	PrecisionExact
)

// FilterMaxDim is the largest matrix order the float filter is trusted for.
const FilterMaxDim = 6

func (p Precision) String() string {
	switch p {
	case PrecisionAuto:
		return "auto"
	case PrecisionFloat64:
		return "float64"
	case PrecisionExact:
		return "exact"
	}
	return fmt.Sprintf("Precision(%d)", int(p))
}

// ParsePrecision accepts "auto", "float64" or "exact".
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return PrecisionAuto, nil
	case "float64", "float", "double":
		return PrecisionFloat64, nil
	case "exact", "rational":
		return PrecisionExact, nil
	}
	return 0, fmt.Errorf("unknown precision %q", s)
}

// Predicates evaluates orientation signs over one PointSet. It keeps scratch
// buffers and is not safe for concurrent use.
type Predicates struct {
	set  PointSet
	prec Precision

	// Counters for tests and stats.
	Filtered int
	Exacts   int

	m    *mat.Dense
	rows [][]float64
}

// NewPredicates binds a precision policy to a point set.
func NewPredicates(set PointSet, prec Precision) *Predicates {
	d := set.Dim()
	p := &Predicates{set: set, prec: prec, m: mat.NewDense(d, d, nil)}
	p.rows = make([][]float64, d)
	for i := range p.rows {
		p.rows[i] = make([]float64, d)
	}
	return p
}

// Set returns the bound point set.
func (p *Predicates) Set() PointSet { return p.set }

// Precision returns the bound precision.
func (p *Predicates) Precision() Precision { return p.prec }

// Orient returns the sign of det[p1-p0, ..., pD-p0] for the D+1 points
// named by idx, D being the set's dimension. Positive means idx[D] lies on
// the positive side of the oriented hyperplane through idx[0:D].
func (p *Predicates) Orient(idx []int) (int, error) {
	d := p.set.Dim()
	if len(idx) != d+1 {
		panic(fmt.Sprintf("geom: Orient needs %d indices, got %d", d+1, len(idx)))
	}
	switch p.prec {
	case PrecisionFloat64:
		s, ok := detSign(floatField{}, p.floatRows(idx))
		if !ok {
			return 0, failure.Overflow("", "orientation determinant of order %d is not finite in float64", d)
		}
		return s, nil
	case PrecisionAuto:
		if d <= FilterMaxDim {
			if s, ok := p.filter(idx); ok {
				p.Filtered++
				return s, nil
			}
		}
	}
	p.Exacts++
	s, _ := detSign(ratField{}, p.exactRows(idx))
	return s, nil
}

func (p *Predicates) floatRows(idx []int) [][]float64 {
	q0 := p.set.Coord(idx[0])
	for i := 1; i < len(idx); i++ {
		floats.SubTo(p.rows[i-1], p.set.Coord(idx[i]), q0)
	}
	return p.rows
}

func (p *Predicates) exactRows(idx []int) [][]*big.Rat {
	q0 := p.set.Exact(idx[0])
	rows := make([][]*big.Rat, len(idx)-1)
	for i := 1; i < len(idx); i++ {
		qi := p.set.Exact(idx[i])
		for k := range qi {
			qi[k].Sub(qi[k], q0[k])
		}
		rows[i-1] = qi
	}
	return rows
}

// filter computes the determinant with gonum and accepts its sign only when
// it clears an a-priori bound on input and rounding error.
func (p *Predicates) filter(idx []int) (int, bool) {
	d := p.set.Dim()
	const u = 0x1p-52
	e0 := p.set.ErrBound(idx[0])
	q0 := p.set.Coord(idx[0])
	norms := make([]float64, d)
	errs := make([]float64, d)
	sqrtD := math.Sqrt(float64(d))
	for i := 1; i <= d; i++ {
		row := p.rows[i-1]
		floats.SubTo(row, p.set.Coord(idx[i]), q0)
		var maxAbs float64
		for k, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, false
			}
			maxAbs = math.Max(maxAbs, math.Abs(v))
			p.m.Set(i-1, k, v)
		}
		norms[i-1] = floats.Norm(row, 2)
		errs[i-1] = sqrtD * (u*maxAbs + e0 + p.set.ErrBound(idx[i]))
	}
	det := mat.Det(p.m)
	if math.IsNaN(det) || math.IsInf(det, 0) {
		return 0, false
	}

	// Hadamard bound on the perturbed rows, first-order input error and a
	// generous multiple of the elimination rounding error.
	hadamard := 1.0
	for i := range norms {
		hadamard *= norms[i] + errs[i]
	}
	var pert float64
	for i := range norms {
		t := errs[i]
		for j := range norms {
			if j != i {
				t *= norms[j] + errs[j]
			}
		}
		pert += t
	}
	bound := 2*pert + float64(8*(d*d+64))*u*hadamard
	if math.IsInf(bound, 0) || math.IsNaN(bound) {
		return 0, false
	}
	switch {
	case det > bound:
		return 1, true
	case det < -bound:
		return -1, true
	}
	return 0, false
}
