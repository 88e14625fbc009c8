package geom

import (
	"math/big"

	"gonum.org/v1/gonum/floats"
)

// AffineBasis greedily picks up to limit affinely independent points of set.
// Candidates are ranked by float distance from the affine span of the points
// picked so far (lowest index on ties) and accepted only after an exact
// independence check, so the result is always truly independent. The length
// of the result is the affine rank, capped at limit.
func AffineBasis(set PointSet, limit int) []int {
	m := set.Len()
	if m == 0 || limit <= 0 {
		return nil
	}
	d := set.Dim()

	// Start at the lowest point along axis 0.
	first := 0
	for i := 1; i < m; i++ {
		if set.Coord(i)[0] < set.Coord(first)[0] {
			first = i
		}
	}
	picked := []int{first}
	used := map[int]bool{first: true}
	q0 := set.Coord(first)
	x0 := set.Exact(first)

	var ortho [][]float64 // float orthonormal basis of the span
	var echelon []ratRow  // exact row-echelon basis of the span

	diff := make([]float64, d)
	for len(picked) < limit {
		best, bestDist := -1, 0.0
		for i := 0; i < m; i++ {
			if used[i] {
				continue
			}
			floats.SubTo(diff, set.Coord(i), q0)
			dist := floats.Dot(diff, diff)
			for _, e := range ortho {
				t := floats.Dot(diff, e)
				dist -= t * t
			}
			if dist > bestDist {
				best, bestDist = i, dist
			}
		}

		var row ratRow
		if best >= 0 {
			row = reduce(echelon, exactDiff(set.Exact(best), x0))
		}
		if row.pivot < 0 || best < 0 {
			// The float ranking can be fooled near degeneracy; scan exactly.
			best = -1
			for i := 0; i < m && best < 0; i++ {
				if used[i] {
					continue
				}
				if r := reduce(echelon, exactDiff(set.Exact(i), x0)); r.pivot >= 0 {
					best, row = i, r
				}
			}
			if best < 0 {
				break
			}
		}

		picked = append(picked, best)
		used[best] = true
		echelon = append(echelon, row)

		e := floats.SubTo(make([]float64, d), set.Coord(best), q0)
		for _, o := range ortho {
			floats.AddScaled(e, -floats.Dot(e, o), o)
		}
		if Unit(e) > 0 {
			ortho = append(ortho, e)
		}
	}
	return picked
}

type ratRow struct {
	v     []*big.Rat
	pivot int // first non-zero column, -1 for a zero row
}

func exactDiff(a, b []*big.Rat) []*big.Rat {
	for k := range a {
		a[k].Sub(a[k], b[k])
	}
	return a
}

// reduce eliminates v against the echelon rows and returns the remainder.
func reduce(echelon []ratRow, v []*big.Rat) ratRow {
	t := new(big.Rat)
	for _, r := range echelon {
		if v[r.pivot].Sign() == 0 {
			continue
		}
		f := new(big.Rat).Quo(v[r.pivot], r.v[r.pivot])
		for k := r.pivot; k < len(v); k++ {
			v[k].Sub(v[k], t.Mul(f, r.v[k]))
		}
	}
	for k, x := range v {
		if x.Sign() != 0 {
			return ratRow{v: v, pivot: k}
		}
	}
	return ratRow{v: v, pivot: -1}
}
