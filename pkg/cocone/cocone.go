// Package cocone classifies Delaunay facets as candidate manifold facets
// using pole vectors: the farthest Voronoi vertex of a sample approximates
// the surface normal there, and a facet belongs to the surface when its
// ortho agrees with the poles of its vertices. The accepted facets are the
// boundary of an inside/outside labelling of the simplices, so they close
// up into a manifold even where the candidates leave gaps.
package cocone

import (
	"context"
	"math"
	"slices"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/chazu/cocone/pkg/delaunay"
	"github.com/chazu/cocone/pkg/geom"
	"github.com/chazu/cocone/pkg/progress"
	"gonum.org/v1/gonum/floats"
)

const stage = "cocone"

// DefaultCosThreshold is the smallest |cos| between a facet ortho and a pole
// that still counts as agreement, just above 45 degrees.
const DefaultCosThreshold = 0.7

// coconeAngle is the half-width of the band around the tangent hyperplane of
// a sample that the dual Voronoi edge of a cocone facet must meet.
const coconeAngle = math.Pi / 8

var (
	// bandCos bounds |cos| between the pole and a direction inside the band.
	bandCos = math.Cos(math.Pi/2 - coconeAngle)
	// alignedCos is the agreement above which the size check is waived.
	alignedCos = math.Cos(coconeAngle)
)

// Options tunes the classification heuristics.
type Options struct {
	CosThreshold float64 // <= 0 means DefaultCosThreshold
	// Quorum is the number of reliable or abstaining vertices a facet needs.
	// 0 means the facet vertex count N.
	Quorum int
	// MaxRadiusRatio bounds a facet's circumradius by this multiple of each
	// vertex's local feature size. 0 disables the check.
	MaxRadiusRatio float64
	// SameSign also requires the reliable vertices of a candidate to agree
	// on the sign of their cosines. Interior poles may sit on either side of
	// the surface, so it is off by default.
	SameSign bool
	// RawCandidates accepts exactly the candidate facets and skips the
	// inside/outside labelling. The result may have holes and is unoriented.
	RawCandidates bool
	Sink          progress.Sink
}

// DefaultOptions returns the classification defaults.
func DefaultOptions() Options {
	return Options{CosThreshold: DefaultCosThreshold, MaxRadiusRatio: 1}
}

// State is one vertex's verdict on one facet.
type State int

const (
	Abstain    State = iota // no pole, no objection
	Reliable                // pole agrees with the facet
	Unreliable              // pole disagrees, or the facet is too large
)

func (s State) String() string {
	switch s {
	case Reliable:
		return "reliable"
	case Unreliable:
		return "unreliable"
	default:
		return "abstain"
	}
}

// Vertex is the pole analysis of one input point. Hull vertices have their
// pole at infinity: Pole is nil and Height is +Inf.
type Vertex struct {
	HasPole      bool
	Pole         []float64 // positive pole position, nil at infinity
	PositiveNorm []float64 // unit direction towards the pole
	Height       float64   // distance to Pole
	Radius       float64   // local feature size estimate
	OnHull       bool
	Facets       *roaring.Bitmap // accepted incident facet ids
}

// Facet is the classification of one Delaunay facet.
type Facet struct {
	Vertices     []int
	Ortho        []float64
	States       []State
	Cosines      []float64 // ortho . PositiveNorm, 0 for pole-less vertices
	CoconeVertex []bool    // States[i] == Reliable
	Candidate    bool      // passed the quorum
	Accepted     bool
	// Outward is +1 when Ortho points from the inside to the outside of the
	// labelling, -1 when it points inward and 0 for raw candidates.
	Outward int
	Shading Shading // nil unless Accepted
}

// Neighbor is an accepted facet sharing a ridge with another.
type Neighbor struct {
	Facet     int
	Slot      int // slot of the vertex missing from the ridge in this facet
	OtherSlot int // same for the neighbouring facet
	Manifold  bool
}

// Stats summarises a classification.
type Stats struct {
	Poles       int // interior vertices with a finite pole
	HullPoles   int // hull vertices with a pole at infinity
	Candidates  int
	Accepted    int
	Filled      int // accepted facets that were not candidates
	Relabelled  int // inside simplices moved out to remove pinches
	Flat        int
	Reversed    int
	NonManifold int // ridges shared by more than two accepted facets
}

// Result is the immutable output of Classify. Facets is parallel to the
// triangulation's facets and Vertices to its points.
type Result struct {
	Dim           int
	Triangulation *delaunay.Triangulation
	Vertices      []Vertex
	Facets        []Facet
	Accepted      []int        // ascending accepted facet ids
	Neighbors     [][]Neighbor // by facet id, nil for rejected facets
	Stats         Stats
}

// Classify runs pole analysis over tr, marks candidate facets and accepts
// the boundary of the inside simplices. A result without accepted facets is
// not an error.
func Classify(ctx context.Context, tr *delaunay.Triangulation, opts Options) (*Result, error) {
	if opts.CosThreshold <= 0 {
		opts.CosThreshold = DefaultCosThreshold
	}
	if opts.Quorum <= 0 {
		opts.Quorum = tr.Dim
	}
	m := tr.Points.Len()
	nf := len(tr.Facets)
	poll := progress.NewPoller(ctx, opts.Sink, stage, progress.DefaultEvery)
	if err := poll.Check(); err != nil {
		return nil, err
	}
	total := m + 2*nf

	r := &Result{
		Dim:           tr.Dim,
		Triangulation: tr,
		Vertices:      make([]Vertex, m),
		Facets:        make([]Facet, nf),
		Neighbors:     make([][]Neighbor, nf),
	}
	for _, f := range tr.Facets {
		if f.Boundary {
			for _, v := range f.Vertices {
				r.Vertices[v].OnHull = true
			}
		}
	}
	for v := 0; v < m; v++ {
		if err := poll.Tick(v, total); err != nil {
			return nil, err
		}
		r.pole(v)
	}

	for fid := range tr.Facets {
		if err := poll.Tick(m+fid, total); err != nil {
			return nil, err
		}
		r.Facets[fid] = r.classify(fid, opts)
		if r.Facets[fid].Candidate {
			r.Stats.Candidates++
		}
	}

	if opts.RawCandidates {
		for fid := range r.Facets {
			if r.Facets[fid].Candidate {
				r.accept(fid, 0)
			}
		}
	} else {
		in, err := r.label(poll, m+nf, total)
		if err != nil {
			return nil, err
		}
		if err := poll.Check(); err != nil {
			return nil, err
		}
		r.Stats.Relabelled = r.repair(in)
		r.separate(in)
	}
	r.Stats.Accepted = len(r.Accepted)
	r.link()
	poll.Done()
	return r, nil
}

func (r *Result) accept(fid, outward int) {
	f := &r.Facets[fid]
	f.Accepted = true
	f.Outward = outward
	f.Shading = shadingFor(f.States, f.Cosines)
	r.Accepted = append(r.Accepted, fid)
	for _, v := range f.Vertices {
		r.Vertices[v].Facets.Add(uint32(fid))
	}
	switch f.Shading.(type) {
	case Flat:
		r.Stats.Flat++
	case Reversed:
		r.Stats.Reversed++
	}
	if !f.Candidate {
		r.Stats.Filled++
	}
}

// pole finds the positive and negative poles of vertex v among the
// circumcentres of its incident simplices. The Voronoi cell of a hull vertex
// is unbounded, and its pole lies at infinity along the mean outward normal
// of the incident hull facets.
func (r *Result) pole(v int) {
	tr := r.Triangulation
	vx := &r.Vertices[v]
	vx.Facets = roaring.New()
	vx.Height = math.Inf(1)
	vx.Radius = math.Inf(1)
	inc := tr.Incident[v]
	if len(inc) == 0 {
		return
	}
	p := tr.Points.Coord(v)
	n := make([]float64, len(p))

	if vx.OnHull {
		for _, s := range inc {
			sx := &tr.Simplices[s]
			for j, nb := range sx.Neighbors {
				if nb < 0 && sx.Vertices[j] != v {
					floats.Add(n, sx.Orthos[j])
				}
			}
		}
		if geom.Unit(n) == 0 {
			return
		}
		r.Stats.HullPoles++
	} else {
		best, bestDist := -1, -1.0
		for _, s := range inc {
			if d := floats.Distance(tr.Simplices[s].Circumcenter, p, 2); d > bestDist {
				best, bestDist = s, d
			}
		}
		if bestDist <= 0 {
			return
		}
		vx.Pole = tr.Simplices[best].Circumcenter
		vx.Height = bestDist
		floats.SubTo(n, vx.Pole, p)
		floats.Scale(1/bestDist, n)
		r.Stats.Poles++
	}
	vx.HasPole = true
	vx.PositiveNorm = n

	neg := -1.0
	diff := make([]float64, len(p))
	for _, s := range inc {
		floats.SubTo(diff, tr.Simplices[s].Circumcenter, p)
		if floats.Dot(diff, n) >= 0 {
			continue
		}
		neg = math.Max(neg, floats.Norm(diff, 2))
	}
	switch {
	case neg > 0:
		vx.Radius = math.Min(vx.Height, neg)
	case vx.OnHull:
		for _, s := range inc {
			vx.Radius = math.Min(vx.Radius, tr.Simplices[s].Circumradius)
		}
	default:
		vx.Radius = vx.Height
	}
}

func (r *Result) classify(fid int, opts Options) Facet {
	tr := r.Triangulation
	df := &tr.Facets[fid]
	n := len(df.Vertices)
	f := Facet{
		Vertices:     df.Vertices,
		Ortho:        df.Ortho,
		States:       make([]State, n),
		Cosines:      make([]float64, n),
		CoconeVertex: make([]bool, n),
	}
	for i, v := range df.Vertices {
		vx := &r.Vertices[v]
		sized := opts.MaxRadiusRatio <= 0 || df.Circumradius <= opts.MaxRadiusRatio*vx.Radius
		switch {
		case vx.HasPole:
			f.Cosines[i] = floats.Dot(df.Ortho, vx.PositiveNorm)
			f.States[i] = verdict(f.Cosines[i], opts.CosThreshold, r.inBand(fid, v), sized)
		case !sized:
			f.States[i] = Unreliable
		}
		f.CoconeVertex[i] = f.States[i] == Reliable
	}
	f.Candidate = candidate(f.States, f.Cosines, opts)
	return f
}

// verdict rates a vertex with a pole against one facet. A facet larger than
// the local feature size is still trusted when its ortho lies within the
// cocone angle of the pole.
func verdict(cos, threshold float64, banded, sized bool) State {
	c := math.Abs(cos)
	if c >= threshold && banded && (sized || c >= alignedCos) {
		return Reliable
	}
	return Unreliable
}

// candidate applies the quorum to one facet's verdicts. At least one vertex
// must be reliable, and with SameSign the reliable cosines must agree.
func candidate(states []State, cosines []float64, opts Options) bool {
	reliable, abstain, pos, neg := 0, 0, 0, 0
	for i, s := range states {
		switch s {
		case Reliable:
			reliable++
			if cosines[i] < 0 {
				neg++
			} else {
				pos++
			}
		case Abstain:
			abstain++
		}
	}
	if reliable == 0 || reliable+abstain < opts.Quorum {
		return false
	}
	return !opts.SameSign || pos == 0 || neg == 0
}

// inBand reports whether the Voronoi edge dual to facet fid meets the
// cocone band of v: the points whose direction from v lies within
// coconeAngle of the tangent hyperplane. The dual of a hull facet is a ray
// leaving the hull.
func (r *Result) inBand(fid, v int) bool {
	tr := r.Triangulation
	df := &tr.Facets[fid]
	p := tr.Points.Coord(v)
	s0 := &tr.Simplices[df.Simplices[0]]
	a := floats.SubTo(make([]float64, len(p)), s0.Circumcenter, p)
	if df.Boundary {
		return meetsBand(a, s0.Orthos[slices.Index(s0.Facets, fid)], r.Vertices[v].PositiveNorm, true)
	}
	b := floats.SubTo(make([]float64, len(p)), tr.Simplices[df.Simplices[1]].Circumcenter, s0.Circumcenter)
	return meetsBand(a, b, r.Vertices[v].PositiveNorm, false)
}

// meetsBand reports whether a + t*b, for t in [0, 1] or t >= 0 on a ray,
// has |cos| to n of at most bandCos. q(t) <= 0 exactly inside the band.
func meetsBand(a, b, n []float64, ray bool) bool {
	k2 := bandCos * bandCos
	alpha, beta := floats.Dot(a, n), floats.Dot(b, n)
	c2 := beta*beta - k2*floats.Dot(b, b)
	c1 := alpha*beta - k2*floats.Dot(a, b)
	c0 := alpha*alpha - k2*floats.Dot(a, a)
	q := func(t float64) float64 { return (c2*t+2*c1)*t + c0 }

	switch {
	case c0 <= 0:
		return true
	case !ray && q(1) <= 0:
		return true
	case ray && (c2 < 0 || (c2 == 0 && c1 < 0)):
		return true
	case c2 > 0:
		t := -c1 / c2
		return t > 0 && (ray || t < 1) && q(t) <= 0
	}
	return false
}

func ridgeKey(buf []byte, verts []int, skip int) []byte {
	for i, v := range verts {
		if i != skip {
			buf = strconv.AppendInt(buf, int64(v), 36)
			buf = append(buf, ',')
		}
	}
	return buf
}

// link records cocone neighbours across the ridges of accepted facets.
func (r *Result) link() {
	type end struct{ facet, slot int }
	ridges := make(map[string][]end)
	var order []string
	var buf []byte
	for _, fid := range r.Accepted {
		verts := r.Facets[fid].Vertices
		for k := range verts {
			buf = ridgeKey(buf[:0], verts, k)
			key := string(buf)
			if _, ok := ridges[key]; !ok {
				order = append(order, key)
			}
			ridges[key] = append(ridges[key], end{fid, k})
		}
	}
	for _, key := range order {
		ends := ridges[key]
		manifold := len(ends) == 2
		if len(ends) > 2 {
			r.Stats.NonManifold++
		}
		for i, a := range ends {
			for j, b := range ends {
				if i == j {
					continue
				}
				r.Neighbors[a.facet] = append(r.Neighbors[a.facet], Neighbor{
					Facet:     b.facet,
					Slot:      a.slot,
					OtherSlot: b.slot,
					Manifold:  manifold,
				})
			}
		}
	}
}
