// Package orient assigns a consistent orientation to the accepted cocone
// facets by walking a minimum spanning tree of their adjacency graph.
package orient

import (
	"context"
	"math"
	"slices"

	"github.com/chazu/cocone/pkg/cocone"
	"github.com/chazu/cocone/pkg/geom"
	"github.com/chazu/cocone/pkg/progress"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"
)

const stage = "orient"

// DefaultEpsilon is the |dot| below which two orthos are treated as
// perpendicular on a non-manifold ridge.
const DefaultEpsilon = 1e-6

// weightBits is the resolution of the quantised edge weights.
const weightBits = 20

// Options configures Orient.
type Options struct {
	Epsilon float64 // <= 0 means DefaultEpsilon
	Sink    progress.Sink
}

// Edge joins two cocone neighbours in the facet graph.
type Edge struct {
	A, B   int // facet ids, A < B
	SlotA  int
	SlotB  int
	Dot    float64 // ortho_A . ortho_B
	Weight float64 // (1 - tau*Dot) / 2
	// Manifold is set when A and B are the only accepted facets on the ridge.
	Manifold bool
}

// Tau is the winding parity of the shared ridge: a consistent orientation
// has Sign[B] == Tau() * Sign[A].
func (e Edge) Tau() int {
	if (e.SlotA+e.SlotB)%2 == 0 {
		return -1
	}
	return 1
}

// Component is one connected group of accepted facets.
type Component struct {
	Root   int
	Facets []int // ascending
}

// Result carries the orientation of every accepted facet.
type Result struct {
	// Sign is +1 when a facet keeps its sorted vertex order, -1 when the
	// first two vertices swap, 0 for rejected facets.
	Sign       []int
	Components []Component
	TreeWeight float64
}

// Orient orients every component of the accepted facets of c independently.
// No accepted facets gives an empty result.
func Orient(ctx context.Context, c *cocone.Result, opts Options) (*Result, error) {
	if opts.Epsilon <= 0 {
		opts.Epsilon = DefaultEpsilon
	}
	poll := progress.NewPoller(ctx, opts.Sink, stage, progress.DefaultEvery)
	if err := poll.Check(); err != nil {
		return nil, err
	}
	res := &Result{Sign: make([]int, len(c.Facets))}
	if len(c.Accepted) == 0 {
		poll.Done()
		return res, nil
	}

	edges := Edges(c)
	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for _, fid := range c.Accepted {
		g.AddNode(simple.Node(fid))
	}
	lookup := make(map[[2]int]int, len(edges))
	scale := float64(int64(1) << weightBits)
	for i, e := range edges {
		if err := poll.Tick(i, 2*len(edges)); err != nil {
			return nil, err
		}
		// Distinct keys keep Kruskal deterministic under its unstable sort.
		key := math.Floor(e.Weight*scale)*float64(len(edges)) + float64(i)
		g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(e.A), simple.Node(e.B), key))
		lookup[[2]int{e.A, e.B}] = i
	}

	tree := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	path.Kruskal(tree, g)
	it := tree.WeightedEdges()
	for it.Next() {
		e := it.WeightedEdge()
		res.TreeWeight += edges[lookup[pair(e.From().ID(), e.To().ID())]].Weight
	}

	comps := topo.ConnectedComponents(tree)
	for _, nodes := range comps {
		ids := make([]int, len(nodes))
		for i, n := range nodes {
			ids[i] = int(n.ID())
		}
		slices.Sort(ids)
		res.Components = append(res.Components, Component{Facets: ids})
	}
	slices.SortFunc(res.Components, func(a, b Component) int { return a.Facets[0] - b.Facets[0] })

	done := 0
	for i := range res.Components {
		comp := &res.Components[i]
		comp.Root = root(c, comp.Facets, res.Sign)
		walk := traverse.DepthFirst{
			Traverse: func(ge graph.Edge) bool {
				a, b := int(ge.From().ID()), int(ge.To().ID())
				if res.Sign[a] == 0 {
					a, b = b, a
				}
				if res.Sign[b] == 0 {
					e := edges[lookup[pair(int64(a), int64(b))]]
					res.Sign[b] = childSign(e, res.Sign[a], opts.Epsilon)
				}
				return true
			},
		}
		walk.Walk(tree, simple.Node(comp.Root), nil)
		done += len(comp.Facets)
		if err := poll.Report(len(edges)+done*len(edges)/len(c.Accepted), 2*len(edges)); err != nil {
			return nil, err
		}
	}
	for _, fid := range c.Accepted {
		if res.Sign[fid] == 0 {
			panic("orient: spanning tree did not reach every accepted facet")
		}
	}
	poll.Done()
	return res, nil
}

func pair(a, b int64) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{int(a), int(b)}
}

// Edges lists the cocone-neighbour pairs of c with their weights, ordered by
// A then by position in A's neighbour list.
func Edges(c *cocone.Result) []Edge {
	var out []Edge
	for _, a := range c.Accepted {
		for _, nb := range c.Neighbors[a] {
			if nb.Facet < a {
				continue
			}
			e := Edge{
				A:        a,
				B:        nb.Facet,
				SlotA:    nb.Slot,
				SlotB:    nb.OtherSlot,
				Dot:      floats.Dot(c.Facets[a].Ortho, c.Facets[nb.Facet].Ortho),
				Manifold: nb.Manifold,
			}
			e.Weight = (1 - float64(e.Tau())*e.Dot) / 2
			out = append(out, e)
		}
	}
	return out
}

// childSign orients the far end of e from the sign of the near end. Winding
// is exact on manifold ridges; where more than two facets meet it is
// ambiguous and the facet normals decide.
func childSign(e Edge, parent int, eps float64) int {
	if !e.Manifold && math.Abs(e.Dot) >= eps {
		if e.Dot < 0 {
			return -parent
		}
		return parent
	}
	return e.Tau() * parent
}

// root picks the facet whose centroid is farthest from the component
// centroid. It faces the way the labelling put it, or away from the
// centroid for raw candidates.
func root(c *cocone.Result, ids []int, sign []int) int {
	pts := c.Triangulation.Points
	centroids := make([][]float64, len(ids))
	for i, fid := range ids {
		verts := c.Facets[fid].Vertices
		rows := make([][]float64, len(verts))
		for k, v := range verts {
			rows[k] = pts.Coord(v)
		}
		centroids[i] = geom.Centroid(rows)
	}
	center := geom.Centroid(centroids)

	best, bestDist := 0, -1.0
	for i, ct := range centroids {
		if d := floats.Distance(ct, center, 2); d > bestDist {
			best, bestDist = i, d
		}
	}
	fid := ids[best]
	if o := c.Facets[fid].Outward; o != 0 {
		sign[fid] = o
		return fid
	}
	out := floats.SubTo(make([]float64, len(center)), centroids[best], center)
	sign[fid] = 1
	if floats.Dot(out, c.Facets[fid].Ortho) < 0 {
		sign[fid] = -1
	}
	return fid
}
