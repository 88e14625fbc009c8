package geom

import (
	"math"
	"math/rand"
)

// FibonacciSphere returns n points spread evenly over the sphere of the
// given radius and centre.
func FibonacciSphere(n int, radius float64, center [3]float64) [][]float32 {
	golden := math.Pi * (3 - math.Sqrt(5))
	rows := make([][]float32, n)
	for i := range rows {
		y := 1 - 2*(float64(i)+0.5)/float64(n)
		r := math.Sqrt(1 - y*y)
		theta := golden * float64(i)
		rows[i] = []float32{
			float32(center[0] + radius*r*math.Cos(theta)),
			float32(center[1] + radius*y),
			float32(center[2] + radius*r*math.Sin(theta)),
		}
	}
	return rows
}

// Circle returns n points evenly spaced on a circle in the plane.
func Circle(n int, radius float64, center [2]float64) [][]float32 {
	rows := make([][]float32, n)
	for i := range rows {
		a := 2 * math.Pi * float64(i) / float64(n)
		rows[i] = []float32{
			float32(center[0] + radius*math.Cos(a)),
			float32(center[1] + radius*math.Sin(a)),
		}
	}
	return rows
}

// RandomBall returns n points drawn uniformly from the dim-dimensional ball.
// The same seed always yields the same points.
func RandomBall(n, dim int, radius float64, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	rows := make([][]float32, n)
	v := make([]float64, dim)
	for i := range rows {
		var norm float64
		for norm == 0 {
			for k := range v {
				v[k] = rng.NormFloat64()
				norm += v[k] * v[k]
			}
		}
		scale := radius * math.Pow(rng.Float64(), 1/float64(dim)) / math.Sqrt(norm)
		rows[i] = make([]float32, dim)
		for k := range v {
			rows[i][k] = float32(v[k] * scale)
		}
	}
	return rows
}

// Torus returns nu*nv points on the torus around the z axis with the given
// major and minor radii. Each point sits on an nu by nv grid of ring and
// tube angles, moved by up to jitter cells in each angle. The same seed
// always yields the same points.
func Torus(nu, nv int, major, minor, jitter float64, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	rows := make([][]float32, 0, nu*nv)
	for i := 0; i < nu; i++ {
		for j := 0; j < nv; j++ {
			u := 2 * math.Pi * (float64(i) + jitter*(2*rng.Float64()-1)) / float64(nu)
			v := 2 * math.Pi * (float64(j) + jitter*(2*rng.Float64()-1)) / float64(nv)
			w := major + minor*math.Cos(v)
			rows = append(rows, []float32{
				float32(w * math.Cos(u)),
				float32(w * math.Sin(u)),
				float32(minor * math.Sin(v)),
			})
		}
	}
	return rows
}
