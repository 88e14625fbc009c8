package geom

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when a circumsphere does not exist.
var ErrSingular = errors.New("geom: singular simplex")

// Complement returns the generalised cross product of the D-1 vectors in
// rows, each of length D: the vector c with det[rows..., c] = |c|^2 > 0
// whenever rows are independent. Component j is det[rows..., e_j].
func Complement(rows [][]float64) []float64 {
	d := len(rows) + 1
	for _, r := range rows {
		if len(r) != d {
			panic(fmt.Sprintf("geom: Complement needs %d-vectors, got %d", d, len(r)))
		}
	}
	c := make([]float64, d)
	if d == 1 {
		c[0] = 1
		return c
	}
	m := mat.NewDense(d, d, nil)
	for i, r := range rows {
		m.SetRow(i, r)
	}
	for j := 0; j < d; j++ {
		for k := 0; k < d; k++ {
			m.Set(d-1, k, 0)
		}
		m.Set(d-1, j, 1)
		c[j] = mat.Det(m)
	}
	return c
}

// FacetComplement returns the complement of the edge vectors v_i - v_0 of
// the D points in verts (each of dimension D).
func FacetComplement(verts [][]float64) []float64 {
	rows := make([][]float64, len(verts)-1)
	for i := 1; i < len(verts); i++ {
		rows[i-1] = floats.SubTo(make([]float64, len(verts[0])), verts[i], verts[0])
	}
	return Complement(rows)
}

// Unit scales v to unit length in place and returns its former norm.
// A zero vector is left unchanged.
func Unit(v []float64) float64 {
	n := floats.Norm(v, 2)
	if n > 0 {
		floats.Scale(1/n, v)
	}
	return n
}

// Centroid returns the mean of the given points.
func Centroid(pts [][]float64) []float64 {
	c := make([]float64, len(pts[0]))
	for _, p := range pts {
		floats.Add(c, p)
	}
	floats.Scale(1/float64(len(pts)), c)
	return c
}

// Circumcenter returns the centre and radius of the sphere through the N+1
// points of an N-simplex.
func Circumcenter(verts [][]float64) ([]float64, float64, error) {
	n := len(verts) - 1
	if n < 1 || len(verts[0]) != n {
		return nil, 0, fmt.Errorf("geom: circumcenter needs %d+1 points of dimension %d", n, n)
	}
	a := mat.NewDense(n, n, nil)
	b := mat.NewVecDense(n, nil)
	edge := make([]float64, n)
	for i := 1; i <= n; i++ {
		floats.SubTo(edge, verts[i], verts[0])
		a.SetRow(i-1, edge)
		b.SetVec(i-1, floats.Dot(edge, edge)/2)
	}
	var x mat.VecDense
	if err := solve(&x, a, b); err != nil {
		return nil, 0, err
	}
	off := make([]float64, n)
	for k := range off {
		off[k] = x.AtVec(k)
	}
	r := floats.Norm(off, 2)
	return floats.AddTo(off, off, verts[0]), r, nil
}

// FacetCircumradius returns the radius of the smallest sphere through the
// k+1 points of a k-simplex embedded in any dimension.
func FacetCircumradius(verts [][]float64) (float64, error) {
	k := len(verts) - 1
	if k < 1 {
		return 0, nil
	}
	edges := make([][]float64, k)
	for i := 1; i <= k; i++ {
		edges[i-1] = floats.SubTo(make([]float64, len(verts[0])), verts[i], verts[0])
	}
	g := mat.NewDense(k, k, nil)
	b := mat.NewVecDense(k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j <= i; j++ {
			v := floats.Dot(edges[i], edges[j])
			g.Set(i, j, v)
			g.Set(j, i, v)
		}
		b.SetVec(i, g.At(i, i)/2)
	}
	var lambda mat.VecDense
	if err := solve(&lambda, g, b); err != nil {
		return 0, err
	}
	off := make([]float64, len(verts[0]))
	for i, e := range edges {
		floats.AddScaled(off, lambda.AtVec(i), e)
	}
	return floats.Norm(off, 2), nil
}

// solve accepts ill-conditioned but finite solutions; only a singular
// system is an error.
func solve(x *mat.VecDense, a mat.Matrix, b mat.Vector) error {
	err := x.SolveVec(a, b)
	if err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return ErrSingular
		}
	}
	for i := 0; i < x.Len(); i++ {
		if v := x.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrSingular
		}
	}
	return nil
}
