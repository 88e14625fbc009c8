// Package hull computes convex hulls of point sets in any dimension D >= 2
// by incremental beneath-beyond insertion over outside sets, with every
// visibility decision taken by geom's robust orientation predicate.
package hull

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/chazu/cocone/pkg/failure"
	"github.com/chazu/cocone/pkg/geom"
	"github.com/chazu/cocone/pkg/progress"
	"gonum.org/v1/gonum/floats"
)

// Options configures Build.
type Options struct {
	Precision geom.Precision
	Sink      progress.Sink // nil discards progress
	Stage     string        // failure stage name, "hull" when empty
}

// Facet is one (D-1)-simplex of the hull boundary.
type Facet struct {
	Vertices  []int     // sorted point indices, len D
	Neighbors []int     // Neighbors[k] shares the ridge without Vertices[k]
	Sign      int       // outward = Sign * Complement(Vertices)
	Normal    []float64 // outward unit ortho
}

// Stats summarises one build.
type Stats struct {
	Inserted int // points that became hull vertices
	Interior int // points discarded as inside or on the boundary
	Created  int // facets created, including ones later removed
	Filtered int // orientation tests settled by the float filter
	Exact    int // orientation tests settled by rational arithmetic
}

// Hull is the immutable result of Build.
type Hull struct {
	Dim      int
	Facets   []Facet
	Vertices []int // sorted indices of points on the hull
	Stats    Stats
}

// Build computes the convex hull of set. Fewer than D+1 affinely independent
// points is a degenerate-input failure. Points coinciding with the current
// boundary are treated as interior, so duplicates are harmless.
func Build(ctx context.Context, set geom.PointSet, opts Options) (*Hull, error) {
	stage := opts.Stage
	if stage == "" {
		stage = "hull"
	}
	d := set.Dim()
	m := set.Len()
	if d < 2 {
		return nil, failure.Degenerate(stage, "hull dimension must be at least 2, got %d", d)
	}
	if m < d+1 {
		return nil, failure.Degenerate(stage, "%d points cannot span dimension %d", m, d)
	}

	b := &builder{
		set:   set,
		pred:  geom.NewPredicates(set, opts.Precision),
		dim:   d,
		poll:  progress.NewPoller(ctx, opts.Sink, stage, progress.DefaultEvery),
		stage: stage,
		idx:   make([]int, d+1),
		keys:  make(map[string]ridgeEnd),
	}
	if err := b.poll.Check(); err != nil {
		return nil, err
	}

	basis := geom.AffineBasis(set, d+1)
	if len(basis) < d+1 {
		return nil, failure.Degenerate(stage, "only %d affinely independent points, need %d", len(basis), d+1)
	}
	if err := b.seed(basis); err != nil {
		return nil, err
	}
	if err := b.run(); err != nil {
		return nil, err
	}
	h := b.result()
	b.poll.Done()
	return h, nil
}

type facet struct {
	verts   []int
	nbr     []int
	sign    int
	normal  []float64
	outside []int
	alive   bool
	queued  bool
}

type ridgeEnd struct {
	facet, slot int
}

type builder struct {
	set   geom.PointSet
	pred  *geom.Predicates
	dim   int
	poll  *progress.Poller
	stage string

	facets []facet
	queue  []int

	// Per-insertion visibility cache.
	round     int
	seenRound []int
	visible   []bool

	idx      []int
	keys     map[string]ridgeEnd
	keyBuf   []byte
	resolved int
	stats    Stats
}

// side is positive when q lies strictly outside facet f.
func (b *builder) side(f int, q int) (int, error) {
	fc := &b.facets[f]
	copy(b.idx, fc.verts)
	b.idx[b.dim] = q
	s, err := b.pred.Orient(b.idx)
	if err != nil {
		return 0, failure.WithStage(err, b.stage)
	}
	return fc.sign * s, nil
}

func (b *builder) newFacet(verts []int, sign int) int {
	id := len(b.facets)
	rows := make([][]float64, len(verts))
	for i, v := range verts {
		rows[i] = b.set.Coord(v)
	}
	n := geom.FacetComplement(rows)
	floats.Scale(float64(sign), n)
	geom.Unit(n)
	nbr := make([]int, len(verts))
	for i := range nbr {
		nbr[i] = -1
	}
	b.facets = append(b.facets, facet{verts: verts, nbr: nbr, sign: sign, normal: n, alive: true})
	b.seenRound = append(b.seenRound, 0)
	b.visible = append(b.visible, false)
	b.stats.Created++
	return id
}

// seed builds the initial simplex and distributes the remaining points.
func (b *builder) seed(basis []int) error {
	d := b.dim
	ids := make([]int, d+1)
	for j := range basis {
		verts := make([]int, 0, d)
		for i, v := range basis {
			if i != j {
				verts = append(verts, v)
			}
		}
		slices.Sort(verts)
		copy(b.idx, verts)
		b.idx[d] = basis[j]
		s, err := b.pred.Orient(b.idx)
		if err != nil {
			return failure.WithStage(err, b.stage)
		}
		if s == 0 {
			panic("hull: initial simplex is flat")
		}
		ids[j] = b.newFacet(verts, -s)
	}
	for j := range basis {
		f := &b.facets[ids[j]]
		for i := range basis {
			if i == j {
				continue
			}
			k := slices.Index(f.verts, basis[i])
			f.nbr[k] = ids[i]
		}
	}

	inBasis := make(map[int]bool, len(basis))
	for _, v := range basis {
		inBasis[v] = true
	}
	b.resolved = len(basis)
	b.stats.Inserted = len(basis)
	m := b.set.Len()
	for q := 0; q < m; q++ {
		if inBasis[q] {
			continue
		}
		if err := b.assign(q, ids); err != nil {
			return err
		}
		if err := b.poll.Tick(b.resolved, m); err != nil {
			return err
		}
	}
	for _, id := range ids {
		b.enqueue(id)
	}
	return nil
}

// assign puts q in the outside set of the first candidate facet that sees it,
// or counts it as interior.
func (b *builder) assign(q int, candidates []int) error {
	for _, f := range candidates {
		s, err := b.side(f, q)
		if err != nil {
			return err
		}
		if s > 0 {
			b.facets[f].outside = append(b.facets[f].outside, q)
			return nil
		}
	}
	b.resolved++
	b.stats.Interior++
	return nil
}

func (b *builder) enqueue(f int) {
	fc := &b.facets[f]
	if fc.alive && !fc.queued && len(fc.outside) > 0 {
		fc.queued = true
		b.queue = append(b.queue, f)
	}
}

func (b *builder) run() error {
	m := b.set.Len()
	for len(b.queue) > 0 {
		f := b.queue[0]
		b.queue = b.queue[1:]
		b.facets[f].queued = false
		if !b.facets[f].alive || len(b.facets[f].outside) == 0 {
			continue
		}
		p := b.furthest(f)
		if err := b.insert(f, p); err != nil {
			return err
		}
		b.resolved++
		b.stats.Inserted++
		if err := b.poll.Report(b.resolved, m); err != nil {
			return err
		}
	}
	return nil
}

// furthest returns the outside point of f with the largest float distance to
// its hyperplane, lowest index on ties.
func (b *builder) furthest(f int) int {
	fc := &b.facets[f]
	v0 := b.set.Coord(fc.verts[0])
	diff := make([]float64, b.dim)
	best, bestDist := -1, 0.0
	for _, q := range fc.outside {
		floats.SubTo(diff, b.set.Coord(q), v0)
		dist := floats.Dot(diff, fc.normal)
		if best < 0 || dist > bestDist || (dist == bestDist && q < best) {
			best, bestDist = q, dist
		}
	}
	return best
}

type horizonEdge struct {
	facet, slot int
}

// insert adds p, seen from facet start, to the hull.
func (b *builder) insert(start, p int) error {
	b.round++
	visible := []int{start}
	b.seenRound[start] = b.round
	b.visible[start] = true
	var horizon []horizonEdge

	for i := 0; i < len(visible); i++ {
		f := visible[i]
		for k, g := range b.facets[f].nbr {
			if b.seenRound[g] != b.round {
				b.seenRound[g] = b.round
				s, err := b.side(g, p)
				if err != nil {
					return err
				}
				b.visible[g] = s > 0
				if s > 0 {
					visible = append(visible, g)
				}
			}
			if !b.visible[g] {
				horizon = append(horizon, horizonEdge{facet: f, slot: k})
			}
		}
	}

	clear(b.keys)
	created := make([]int, 0, len(horizon))
	for _, h := range horizon {
		created = append(created, b.cone(h, p))
	}
	if len(b.keys) != 0 {
		panic(fmt.Sprintf("hull: %d unmatched ridges after inserting point %d", len(b.keys), p))
	}

	var orphans []int
	for _, f := range visible {
		fc := &b.facets[f]
		for _, q := range fc.outside {
			if q != p {
				orphans = append(orphans, q)
			}
		}
		fc.outside = nil
		fc.alive = false
	}
	m := b.set.Len()
	for _, q := range orphans {
		if err := b.assign(q, created); err != nil {
			return err
		}
		if err := b.poll.Tick(b.resolved, m); err != nil {
			return err
		}
	}
	for _, f := range created {
		b.enqueue(f)
	}
	return nil
}

// cone creates the facet joining p to the horizon ridge h and links it to
// the hidden neighbour and to its sibling cone facets.
func (b *builder) cone(h horizonEdge, p int) int {
	old := &b.facets[h.facet]
	u := old.verts[h.slot]
	hidden := old.nbr[h.slot]

	verts := make([]int, 0, b.dim)
	for _, v := range old.verts {
		if v != u {
			verts = append(verts, v)
		}
	}
	verts = append(verts, p)
	slices.Sort(verts)
	ip := slices.Index(verts, p)

	// Swapping u for p and re-sorting permutes the orientation determinant
	// by (-1)^(ip+slot).
	sign := old.sign
	if (ip+h.slot)%2 == 1 {
		sign = -sign
	}
	id := b.newFacet(verts, sign)
	nf := &b.facets[id]

	nf.nbr[ip] = hidden
	hf := &b.facets[hidden]
	k := slices.Index(hf.nbr, h.facet)
	if k < 0 {
		panic("hull: hidden neighbour does not point back at the visible facet")
	}
	hf.nbr[k] = id

	for t := range verts {
		if t == ip {
			continue
		}
		key := b.ridgeKey(verts, t)
		if other, ok := b.keys[key]; ok {
			nf.nbr[t] = other.facet
			b.facets[other.facet].nbr[other.slot] = id
			delete(b.keys, key)
		} else {
			b.keys[key] = ridgeEnd{facet: id, slot: t}
		}
	}
	return id
}

func (b *builder) ridgeKey(verts []int, skip int) string {
	b.keyBuf = b.keyBuf[:0]
	for i, v := range verts {
		if i == skip {
			continue
		}
		b.keyBuf = strconv.AppendInt(b.keyBuf, int64(v), 36)
		b.keyBuf = append(b.keyBuf, ',')
	}
	return string(b.keyBuf)
}

func (b *builder) result() *Hull {
	remap := make([]int, len(b.facets))
	n := 0
	for i := range b.facets {
		if b.facets[i].alive {
			remap[i] = n
			n++
		} else {
			remap[i] = -1
		}
	}
	h := &Hull{Dim: b.dim, Facets: make([]Facet, 0, n)}
	onHull := make(map[int]bool)
	for i := range b.facets {
		fc := &b.facets[i]
		if !fc.alive {
			continue
		}
		nbr := make([]int, len(fc.nbr))
		for k, g := range fc.nbr {
			nbr[k] = remap[g]
			if nbr[k] < 0 {
				panic("hull: live facet adjacent to a removed facet")
			}
		}
		for _, v := range fc.verts {
			onHull[v] = true
		}
		h.Facets = append(h.Facets, Facet{
			Vertices:  fc.verts,
			Neighbors: nbr,
			Sign:      fc.sign,
			Normal:    fc.normal,
		})
	}
	for v := range onHull {
		h.Vertices = append(h.Vertices, v)
	}
	slices.Sort(h.Vertices)
	b.stats.Filtered = b.pred.Filtered
	b.stats.Exact = b.pred.Exacts
	h.Stats = b.stats
	return h
}
