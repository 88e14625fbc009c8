// Package delaunay triangulates N-dimensional point sets as the lower convex
// hull of their paraboloid lift.
package delaunay

import (
	"context"
	"slices"

	"github.com/chazu/cocone/pkg/failure"
	"github.com/chazu/cocone/pkg/geom"
	"github.com/chazu/cocone/pkg/hull"
	"github.com/chazu/cocone/pkg/progress"
	"gonum.org/v1/gonum/floats"
)

const stage = "delaunay"

// Options configures Build.
type Options struct {
	Precision geom.Precision
	Sink      progress.Sink
}

// Simplex is one Delaunay N-simplex.
type Simplex struct {
	Vertices []int // sorted, len N+1
	// Orthos[j] is the outward unit normal of the facet opposite Vertices[j].
	Orthos [][]float64
	// Neighbors[j] is the simplex across that facet, -1 on the hull.
	Neighbors    []int
	Facets       []int // Facets[j] is the id of the facet opposite Vertices[j]
	Circumcenter []float64
	Circumradius float64
}

// Facet is an (N-1)-simplex of the triangulation.
type Facet struct {
	Vertices     []int     // sorted, len N
	Ortho        []float64 // unit Complement of the sorted vertices
	Simplices    [2]int    // incident simplices, second is -1 on the hull
	Boundary     bool
	Circumradius float64
}

// Triangulation is the immutable result of Build.
type Triangulation struct {
	Dim       int
	Points    *geom.Points
	Simplices []Simplex
	Facets    []Facet
	// Incident lists the simplices around each input point. Points that are
	// duplicates of others are not vertices and have no incident simplices.
	Incident [][]int
	Apex     bool // the lift needed an apex to stay full-dimensional
	Stats    hull.Stats
}

// Build computes the Delaunay triangulation of pts.
func Build(ctx context.Context, pts *geom.Points, opts Options) (*Triangulation, error) {
	n := pts.Dim()
	m := pts.Len()
	if m < n+1 {
		return nil, failure.Degenerate(stage, "%d points cannot span dimension %d", m, n)
	}
	if rank := len(geom.AffineBasis(pts, n+1)); rank < n+1 {
		return nil, failure.Degenerate(stage, "only %d affinely independent points, need %d", rank, n+1)
	}

	lifted := geom.Lift(pts)
	if basis := geom.AffineBasis(lifted, n+2); len(basis) < n+2 {
		// Cospherical input lifts onto a hyperplane.
		lifted = lifted.WithApex(basis[0])
	}

	sink := progress.OrDiscard(opts.Sink)
	h, err := hull.Build(ctx, lifted, hull.Options{
		Precision: opts.Precision,
		Sink:      progress.Sub(sink, 0, 0.9),
		Stage:     stage,
	})
	if err != nil {
		return nil, err
	}

	x := &extractor{
		pts:   pts,
		base:  geom.NewPredicates(pts, opts.Precision),
		h:     h,
		apex:  lifted.Apex(),
		n:     n,
		poll:  progress.NewPoller(ctx, progress.Sub(sink, 0.9, 1), stage, progress.DefaultEvery),
		idx:   make([]int, n+1),
		lower: make([]int, len(h.Facets)),
	}
	t, err := x.run()
	if err != nil {
		return nil, err
	}
	t.Apex = lifted.HasApex()
	t.Stats = h.Stats
	x.poll.Done()
	return t, nil
}

// Hull computes the plain N-dimensional convex hull of pts.
func Hull(ctx context.Context, pts *geom.Points, opts Options) (*hull.Hull, error) {
	return hull.Build(ctx, pts, hull.Options{Precision: opts.Precision, Sink: opts.Sink})
}

type extractor struct {
	pts   *geom.Points
	base  *geom.Predicates
	h     *hull.Hull
	apex  int
	n     int
	poll  *progress.Poller
	idx   []int
	lower []int // hull facet -> simplex id, -1 when not lower
}

func (x *extractor) run() (*Triangulation, error) {
	t := &Triangulation{Dim: x.n, Points: x.pts, Incident: make([][]int, x.pts.Len())}
	total := 2 * len(x.h.Facets)

	for i, f := range x.h.Facets {
		x.lower[i] = -1
		if err := x.poll.Tick(i, total); err != nil {
			return nil, err
		}
		if x.apex >= 0 && slices.Contains(f.Vertices, x.apex) {
			continue
		}
		// The last component of the lifted outward normal has the sign of
		// Sign * orient(base projection).
		s, err := x.base.Orient(f.Vertices)
		if err != nil {
			return nil, failure.WithStage(err, stage)
		}
		if f.Sign*s >= 0 {
			continue
		}
		x.lower[i] = len(t.Simplices)
		t.Simplices = append(t.Simplices, Simplex{Vertices: f.Vertices})
	}

	for i, f := range x.h.Facets {
		sid := x.lower[i]
		if sid < 0 {
			continue
		}
		if err := x.poll.Tick(len(x.h.Facets)+i, total); err != nil {
			return nil, err
		}
		s := &t.Simplices[sid]
		s.Neighbors = make([]int, x.n+1)
		s.Facets = make([]int, x.n+1)
		s.Orthos = make([][]float64, x.n+1)
		for k, g := range f.Neighbors {
			s.Neighbors[k] = x.lower[g]
		}
		if err := x.geometry(s); err != nil {
			return nil, err
		}
		for _, v := range s.Vertices {
			t.Incident[v] = append(t.Incident[v], sid)
		}
	}

	for sid := range t.Simplices {
		s := &t.Simplices[sid]
		for k, nb := range s.Neighbors {
			if nb >= 0 && nb < sid {
				back := slices.Index(t.Simplices[nb].Neighbors, sid)
				if back < 0 {
					panic("delaunay: simplex adjacency is not symmetric")
				}
				fid := t.Simplices[nb].Facets[back]
				s.Facets[k] = fid
				t.Facets[fid].Simplices[1] = sid
				t.Facets[fid].Boundary = false
				continue
			}
			f, err := x.facet(s, k, sid)
			if err != nil {
				return nil, err
			}
			s.Facets[k] = len(t.Facets)
			t.Facets = append(t.Facets, f)
		}
	}
	return t, nil
}

func (x *extractor) rows(verts []int) [][]float64 {
	rows := make([][]float64, len(verts))
	for i, v := range verts {
		rows[i] = x.pts.Coord(v)
	}
	return rows
}

// geometry fills the circumsphere and the outward facet orthos of s.
func (x *extractor) geometry(s *Simplex) error {
	c, r, err := geom.Circumcenter(x.rows(s.Vertices))
	if err != nil {
		return failure.Overflow(stage, "circumsphere of simplex %v: %v", s.Vertices, err)
	}
	s.Circumcenter, s.Circumradius = c, r

	for j, v := range s.Vertices {
		verts := slices.Delete(slices.Clone(s.Vertices), j, j+1)
		o := geom.FacetComplement(x.rows(verts))
		copy(x.idx, verts)
		x.idx[x.n] = v
		side, err := x.base.Orient(x.idx)
		if err != nil {
			return failure.WithStage(err, stage)
		}
		// The complement points to the positive side; v lies inside.
		floats.Scale(float64(-side), o)
		geom.Unit(o)
		s.Orthos[j] = o
	}
	return nil
}

func (x *extractor) facet(s *Simplex, k, sid int) (Facet, error) {
	verts := slices.Delete(slices.Clone(s.Vertices), k, k+1)
	rows := x.rows(verts)
	o := geom.FacetComplement(rows)
	geom.Unit(o)
	r, err := geom.FacetCircumradius(rows)
	if err != nil {
		return Facet{}, failure.Overflow(stage, "circumradius of facet %v: %v", verts, err)
	}
	return Facet{
		Vertices:     verts,
		Ortho:        o,
		Simplices:    [2]int{sid, -1},
		Boundary:     true,
		Circumradius: r,
	}, nil
}

// Vertices returns the ids of input points that are triangulation vertices.
func (t *Triangulation) Vertices() []int {
	var out []int
	for v, inc := range t.Incident {
		if len(inc) > 0 {
			out = append(out, v)
		}
	}
	return out
}
