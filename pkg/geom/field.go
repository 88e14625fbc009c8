package geom

import (
	"math"
	"math/big"
)

// field abstracts the arithmetic detSign needs, so one elimination routine
// serves both the float64 and the exact rational path.
type field[T any] interface {
	isZero(a T) bool
	// better reports whether a is a preferable pivot to b.
	better(a, b T) bool
	// subMul returns a - f*b.
	subMul(a, f, b T) T
	quo(a, b T) T
	sign(a T) int
	finite(a T) bool
}

type floatField struct{}

func (floatField) isZero(a float64) bool          { return a == 0 }
func (floatField) better(a, b float64) bool       { return math.Abs(a) > math.Abs(b) }
func (floatField) subMul(a, f, b float64) float64 { return a - f*b }
func (floatField) quo(a, b float64) float64       { return a / b }
func (floatField) finite(a float64) bool          { return !math.IsNaN(a) && !math.IsInf(a, 0) }

func (floatField) sign(a float64) int {
	switch {
	case a > 0:
		return 1
	case a < 0:
		return -1
	}
	return 0
}

type ratField struct{}

func (ratField) isZero(a *big.Rat) bool { return a.Sign() == 0 }

// Any non-zero pivot is exact; keep the first one found.
func (ratField) better(_, b *big.Rat) bool { return b.Sign() == 0 }

func (ratField) subMul(a, f, b *big.Rat) *big.Rat {
	t := new(big.Rat).Mul(f, b)
	return t.Sub(a, t)
}

func (ratField) quo(a, b *big.Rat) *big.Rat { return new(big.Rat).Quo(a, b) }
func (ratField) sign(a *big.Rat) int        { return a.Sign() }
func (ratField) finite(*big.Rat) bool       { return true }

// detSign returns the sign of the determinant of the square matrix rows by
// Gaussian elimination with pivoting. rows is overwritten. ok is false when
// an entry stops being finite.
func detSign[T any, F field[T]](f F, rows [][]T) (sign int, ok bool) {
	n := len(rows)
	for _, r := range rows {
		for _, v := range r {
			if !f.finite(v) {
				return 0, false
			}
		}
	}
	sign = 1
	for col := 0; col < n; col++ {
		piv := -1
		for r := col; r < n; r++ {
			if f.isZero(rows[r][col]) {
				continue
			}
			if piv < 0 || f.better(rows[r][col], rows[piv][col]) {
				piv = r
			}
		}
		if piv < 0 {
			return 0, true
		}
		if piv != col {
			rows[piv], rows[col] = rows[col], rows[piv]
			sign = -sign
		}
		pv := rows[col][col]
		sign *= f.sign(pv)
		for r := col + 1; r < n; r++ {
			if f.isZero(rows[r][col]) {
				continue
			}
			factor := f.quo(rows[r][col], pv)
			for c := col + 1; c < n; c++ {
				rows[r][c] = f.subMul(rows[r][c], factor, rows[col][c])
				if !f.finite(rows[r][c]) {
					return 0, false
				}
			}
		}
	}
	return sign, true
}
