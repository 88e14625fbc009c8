// Package surface turns oriented cocone facets into the output mesh.
package surface

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/chazu/cocone/pkg/cocone"
	"github.com/chazu/cocone/pkg/kernel"
	"github.com/chazu/cocone/pkg/orient"
	"github.com/chazu/cocone/pkg/progress"
)

const stage = "surface"

// Options configures Extract.
type Options struct {
	PartName string
	Sink     progress.Sink
}

type poleKey struct {
	vertex int
	sign   int
}

// Extract emits every accepted facet of c, oriented by o, in facet-id
// order. Only vertices used by some facet are kept.
func Extract(ctx context.Context, c *cocone.Result, o *orient.Result, opts Options) (*kernel.Mesh, error) {
	poll := progress.NewPoller(ctx, opts.Sink, stage, progress.DefaultEvery)
	if err := poll.Check(); err != nil {
		return nil, err
	}
	dim := c.Dim
	pts := c.Triangulation.Points
	m := &kernel.Mesh{Dim: dim, PartName: opts.PartName}

	used := roaring.New()
	for v := range c.Vertices {
		if !c.Vertices[v].Facets.IsEmpty() {
			used.Add(uint32(v))
		}
	}
	remap := make(map[int]uint32, used.GetCardinality())
	for i, v := range used.ToArray() {
		remap[int(v)] = uint32(i)
		m.Vertices = append(m.Vertices, pts.Coord(int(v))...)
		m.SourceIndex = append(m.SourceIndex, int(v))
	}

	poles := make(map[poleKey]uint32)
	nNormals := uint32(0)
	addNormal := func(n []float64, sign int) uint32 {
		for _, x := range n {
			m.Normals = append(m.Normals, float64(sign)*x)
		}
		nNormals++
		return nNormals - 1
	}

	for i, fid := range c.Accepted {
		if err := poll.Tick(i, len(c.Accepted)); err != nil {
			return nil, err
		}
		f := &c.Facets[fid]
		sigma := o.Sign[fid]
		if sigma == 0 {
			panic("surface: accepted facet without orientation")
		}

		order := make([]int, dim) // positions into f.Vertices
		for j := range order {
			order[j] = j
		}
		if sigma < 0 {
			order[0], order[1] = order[1], order[0]
		}

		for _, x := range f.Ortho {
			m.FacetNormals = append(m.FacetNormals, float64(sigma)*x)
		}
		flat := uint32(0)
		if _, ok := f.Shading.(cocone.Flat); ok {
			flat = addNormal(f.Ortho, sigma)
		}

		for _, j := range order {
			v := f.Vertices[j]
			m.Facets = append(m.Facets, remap[v])
			var ni uint32
			switch sh := f.Shading.(type) {
			case cocone.Flat:
				ni = flat
			case cocone.Interpolated:
				ni = poleNormal(c, poles, addNormal, v, sigma)
			case cocone.Reversed:
				s := sigma
				if sh.Flip[j] {
					s = -s
				}
				ni = poleNormal(c, poles, addNormal, v, s)
			}
			m.NormalIndices = append(m.NormalIndices, ni)
		}
		m.Materials = append(m.Materials, 0)
	}
	poll.Done()
	return m, nil
}

func poleNormal(c *cocone.Result, poles map[poleKey]uint32, add func([]float64, int) uint32, v, sign int) uint32 {
	k := poleKey{vertex: v, sign: sign}
	if ni, ok := poles[k]; ok {
		return ni
	}
	ni := add(c.Vertices[v].PositiveNorm, sign)
	poles[k] = ni
	return ni
}
