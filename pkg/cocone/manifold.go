package cocone

import (
	"math"
	"slices"

	"github.com/chazu/cocone/pkg/progress"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// candidateBias pushes the vote of a candidate facet towards separating its
// two sides.
const candidateBias = 0.5

// weightBits is the resolution of the quantised labelling weights.
const weightBits = 20

// vote joins the two sides of one facet: two simplices, or a simplex and
// the outside.
type vote struct {
	a, b  int64
	score float64 // > 0 puts a and b on different sides
}

// label sorts the simplices into inside and outside. Each facet votes with
// the intersection angle of the circumballs on either side: balls that
// overlap deeply lie on the same side, balls that barely meet straddle the
// surface. A maximum spanning tree of the votes, rooted at the outside,
// settles every simplex.
func (r *Result) label(poll *progress.Poller, done, total int) ([]bool, error) {
	tr := r.Triangulation
	outside := int64(len(tr.Simplices))

	index := make(map[[2]int64]int)
	var votes []vote
	for fid := range tr.Facets {
		if err := poll.Tick(done+fid, total); err != nil {
			return nil, err
		}
		df := &tr.Facets[fid]
		vt := vote{a: int64(df.Simplices[0]), b: outside, score: -r.overlap(fid)}
		if !df.Boundary {
			vt.b = int64(df.Simplices[1])
		}
		if r.Facets[fid].Candidate {
			vt.score += candidateBias
		}
		// A simplex with several hull facets meets the outside once, through
		// its most decided facet.
		key := [2]int64{min(vt.a, vt.b), max(vt.a, vt.b)}
		if i, ok := index[key]; ok {
			if math.Abs(vt.score) > math.Abs(votes[i].score) {
				votes[i] = vt
			}
			continue
		}
		index[key] = len(votes)
		votes = append(votes, vt)
	}

	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for sid := int64(0); sid <= outside; sid++ {
		g.AddNode(simple.Node(sid))
	}
	scale := float64(int64(1) << weightBits)
	for i, vt := range votes {
		w := 2 - math.Abs(vt.score)
		key := math.Floor(w*scale)*float64(len(votes)) + float64(i)
		g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(vt.a), simple.Node(vt.b), key))
	}
	tree := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	path.Kruskal(tree, g)

	in := make([]bool, outside+1)
	seen := make([]bool, outside+1)
	seen[outside] = true
	walk := traverse.DepthFirst{
		Traverse: func(e graph.Edge) bool {
			a, b := e.From().ID(), e.To().ID()
			if !seen[a] {
				a, b = b, a
			}
			if !seen[b] {
				vt := votes[index[[2]int64{min(a, b), max(a, b)}]]
				in[b] = in[a] != (vt.score > 0)
				seen[b] = true
			}
			return true
		},
	}
	walk.Walk(tree, simple.Node(outside), nil)
	return in[:outside], nil
}

// overlap is the cosine of the intersection angle of the circumballs on the
// two sides of facet fid: 1 for coincident balls, -1 for balls that only
// touch. Beyond a hull facet lies the half-space behind it.
func (r *Result) overlap(fid int) float64 {
	tr := r.Triangulation
	df := &tr.Facets[fid]
	a := &tr.Simplices[df.Simplices[0]]
	if df.Boundary {
		p := tr.Points.Coord(df.Vertices[0])
		d := floats.SubTo(make([]float64, len(p)), a.Circumcenter, p)
		return clamp(floats.Dot(d, a.Orthos[slices.Index(a.Facets, fid)]) / a.Circumradius)
	}
	b := &tr.Simplices[df.Simplices[1]]
	d := floats.Distance(a.Circumcenter, b.Circumcenter, 2)
	ra, rb := a.Circumradius, b.Circumradius
	return clamp((ra*ra + rb*rb - d*d) / (2 * ra * rb))
}

func clamp(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}

// repair moves inside simplices out until the inside is connected through
// facets around every vertex and every crowded ridge of its boundary. Only
// the largest group around a pinch stays. It returns how many moved.
func (r *Result) repair(in []bool) int {
	tr := r.Triangulation
	moved := 0
	for {
		n := 0
		for v, inc := range tr.Incident {
			n += r.keepLargest(in, inc, []int{v})
		}
		for _, ridge := range r.crowded(in) {
			n += r.keepLargest(in, r.around(ridge), ridge)
		}
		if n == 0 {
			return moved
		}
		moved += n
	}
}

// keepLargest groups the inside simplices among sids by adjacency across
// facets that contain face, and moves every group but the largest out.
func (r *Result) keepLargest(in []bool, sids []int, face []int) int {
	tr := r.Triangulation
	group := make(map[int]int)
	var sizes []int
	for _, s := range sids {
		if !in[s] {
			continue
		}
		if _, ok := group[s]; ok {
			continue
		}
		id := len(sizes)
		group[s] = id
		size := 0
		stack := []int{s}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			sx := &tr.Simplices[cur]
			for j, nb := range sx.Neighbors {
				if nb < 0 || !in[nb] || slices.Contains(face, sx.Vertices[j]) {
					continue
				}
				if _, ok := group[nb]; ok {
					continue
				}
				group[nb] = id
				stack = append(stack, nb)
			}
		}
		sizes = append(sizes, size)
	}
	if len(sizes) < 2 {
		return 0
	}
	keep := 0
	for id, size := range sizes {
		if size > sizes[keep] {
			keep = id
		}
	}
	moved := 0
	for s, id := range group {
		if id != keep {
			in[s] = false
			moved++
		}
	}
	return moved
}

// crowded lists the ridges shared by more than two separating facets.
func (r *Result) crowded(in []bool) [][]int {
	tr := r.Triangulation
	count := make(map[string]int)
	var order []string
	var ridges [][]int
	var buf []byte
	for fid := range tr.Facets {
		if !separates(tr.Facets[fid].Simplices, in) {
			continue
		}
		verts := tr.Facets[fid].Vertices
		for k := range verts {
			buf = ridgeKey(buf[:0], verts, k)
			key := string(buf)
			if count[key] == 0 {
				order = append(order, key)
				ridges = append(ridges, slices.Delete(slices.Clone(verts), k, k+1))
			}
			count[key]++
		}
	}
	var out [][]int
	for i, key := range order {
		if count[key] > 2 {
			out = append(out, ridges[i])
		}
	}
	return out
}

// around lists the simplices containing every vertex of face.
func (r *Result) around(face []int) []int {
	tr := r.Triangulation
	var out []int
	for _, s := range tr.Incident[face[0]] {
		verts := tr.Simplices[s].Vertices
		if !slices.ContainsFunc(face, func(v int) bool { return !slices.Contains(verts, v) }) {
			out = append(out, s)
		}
	}
	return out
}

func separates(sides [2]int, in []bool) bool {
	return in[sides[0]] != (sides[1] >= 0 && in[sides[1]])
}

// separate accepts the facets between inside and outside and records which
// way their orthos face.
func (r *Result) separate(in []bool) {
	tr := r.Triangulation
	for fid := range tr.Facets {
		df := &tr.Facets[fid]
		if !separates(df.Simplices, in) {
			continue
		}
		a := &tr.Simplices[df.Simplices[0]]
		d := floats.Dot(df.Ortho, a.Orthos[slices.Index(a.Facets, fid)])
		if !in[df.Simplices[0]] {
			d = -d
		}
		outward := 1
		if d < 0 {
			outward = -1
		}
		r.accept(fid, outward)
	}
}
