// Package sample walks a scene graph and produces one point cloud per cloud
// root. Solids are built with a geometry kernel and sampled on their
// surface; point sources are generated directly.
package sample

import (
	"fmt"
	"math"

	"github.com/chazu/cocone/pkg/config"
	"github.com/chazu/cocone/pkg/geom"
	"github.com/chazu/cocone/pkg/graph"
	"github.com/chazu/cocone/pkg/kernel"
	"github.com/golang/geo/r3"
)

// Cloud is the reconstruction input gathered from one cloud root.
type Cloud struct {
	Name   string
	Points *geom.Points
}

// frame is an affine map p -> rot*p + shift.
type frame struct {
	rot   [3]r3.Vector // rows
	shift r3.Vector
}

var identity = frame{rot: [3]r3.Vector{{X: 1}, {Y: 1}, {Z: 1}}}

func (f frame) apply(p r3.Vector) r3.Vector {
	return r3.Vector{X: f.rot[0].Dot(p), Y: f.rot[1].Dot(p), Z: f.rot[2].Dot(p)}.Add(f.shift)
}

func (f frame) isIdentity() bool { return f == identity }

// then returns the map that applies local first and f second.
func (f frame) then(local frame) frame {
	var out frame
	cols := [3]r3.Vector{
		{X: local.rot[0].X, Y: local.rot[1].X, Z: local.rot[2].X},
		{X: local.rot[0].Y, Y: local.rot[1].Y, Z: local.rot[2].Y},
		{X: local.rot[0].Z, Y: local.rot[1].Z, Z: local.rot[2].Z},
	}
	for i := range out.rot {
		out.rot[i] = r3.Vector{X: f.rot[i].Dot(cols[0]), Y: f.rot[i].Dot(cols[1]), Z: f.rot[i].Dot(cols[2])}
	}
	out.shift = f.apply(local.shift)
	return out
}

// rotation builds Rz*Ry*Rx from Euler angles in degrees, matching the
// kernel's Rotate.
func rotation(deg graph.Vec3) frame {
	sx, cx := math.Sincos(deg.X * math.Pi / 180)
	sy, cy := math.Sincos(deg.Y * math.Pi / 180)
	sz, cz := math.Sincos(deg.Z * math.Pi / 180)
	return frame{rot: [3]r3.Vector{
		{X: cz * cy, Y: cz*sy*sx - sz*cx, Z: cz*sy*cx + sz*sx},
		{X: sz * cy, Y: sz*sy*sx + cz*cx, Z: sz*sy*cx - cz*sx},
		{X: -sy, Y: cy * sx, Z: cy * cx},
	}}
}

// local returns the map of a transform node: rotation first, then
// translation.
func local(td graph.TransformData) frame {
	f := identity
	if td.Rotation != nil {
		f = rotation(*td.Rotation)
	}
	if td.Translation != nil {
		f.shift = r3.Vector{X: td.Translation.X, Y: td.Translation.Y, Z: td.Translation.Z}
	}
	return f
}

// frameStack accumulates transforms during graph traversal.
type frameStack struct {
	frames []frame
}

func (s *frameStack) top() frame {
	if len(s.frames) == 0 {
		return identity
	}
	return s.frames[len(s.frames)-1]
}

func (s *frameStack) push(td graph.TransformData) {
	s.frames = append(s.frames, s.top().then(local(td)))
}

func (s *frameStack) pop() {
	if len(s.frames) > 0 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// Collect walks the cloud roots of g in declaration order and returns one
// cloud per root. Sample nodes without an explicit cell count use
// defaultCells, or config.DefaultCells when that is zero. The graph must
// have passed graph.ValidateAll.
func Collect(g *graph.SceneGraph, k kernel.Kernel, defaultCells int) ([]Cloud, error) {
	if g == nil {
		return nil, nil
	}
	if defaultCells <= 0 {
		defaultCells = config.DefaultCells
	}
	w := &walker{g: g, k: k, cells: defaultCells}

	var clouds []Cloud
	for _, root := range g.Clouds() {
		dim := 0
		var rows [][]float32
		for _, child := range g.Children(root) {
			if dim == 0 {
				dim = g.Dim(child)
			}
			collected, err := w.points(child, dim, &frameStack{})
			if err != nil {
				return nil, fmt.Errorf("sample: cloud %q: %w", root.Name, err)
			}
			rows = append(rows, collected...)
		}
		pts, err := geom.FromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("sample: cloud %q: %w", root.Name, err)
		}
		clouds = append(clouds, Cloud{Name: root.Name, Points: pts})
	}
	return clouds, nil
}

type walker struct {
	g     *graph.SceneGraph
	k     kernel.Kernel
	cells int
}

// points generates the rows of a point source node in world coordinates.
func (w *walker) points(n *graph.Node, dim int, fs *frameStack) ([][]float32, error) {
	var rows [][]float32
	switch d := n.Data.(type) {
	case graph.PointsData:
		rows = make([][]float32, d.Count())
		for i := range rows {
			rows[i] = d.Coords[i*d.Dim : (i+1)*d.Dim]
		}
	case graph.FibonacciData:
		rows = geom.FibonacciSphere(d.Count, d.Radius, [3]float64{d.Center.X, d.Center.Y, d.Center.Z})
	case graph.CircleData:
		rows = geom.Circle(d.Count, d.Radius, d.Center)
	case graph.RandomBallData:
		rows = geom.RandomBall(d.Count, d.Dim, d.Radius, d.Seed)
	case graph.SampleData:
		children := w.g.Children(n)
		if len(children) != 1 {
			return nil, fmt.Errorf("sample node %s needs exactly 1 child", n.ID.Short())
		}
		solid, err := w.solid(children[0])
		if err != nil {
			return nil, err
		}
		cells := d.Cells
		if cells == 0 {
			cells = w.cells
		}
		flat, err := w.k.Sample(solid, cells)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.ID.Short(), err)
		}
		rows = make([][]float32, len(flat)/3)
		for i := range rows {
			rows[i] = flat[i*3 : i*3+3]
		}
	case graph.TransformData:
		fs.push(d)
		defer fs.pop()
		for _, c := range w.g.Children(n) {
			collected, err := w.points(c, dim, fs)
			if err != nil {
				return nil, err
			}
			rows = append(rows, collected...)
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("node %s is a %s, not a point source", n.ID.Short(), n.Kind)
	}

	if len(rows) > 0 && len(rows[0]) != dim {
		return nil, fmt.Errorf("node %s has dimension %d, want %d", n.ID.Short(), len(rows[0]), dim)
	}
	return transform(rows, fs.top()), nil
}

// transform maps 2D and 3D rows through f, copying them. Planar rows stay
// in the XY plane.
func transform(rows [][]float32, f frame) [][]float32 {
	if f.isIdentity() || len(rows) == 0 || len(rows[0]) > 3 {
		return rows
	}
	out := make([][]float32, len(rows))
	for i, r := range rows {
		p := r3.Vector{X: float64(r[0]), Y: float64(r[1])}
		if len(r) == 3 {
			p.Z = float64(r[2])
		}
		q := f.apply(p)
		if len(r) == 3 {
			out[i] = []float32{float32(q.X), float32(q.Y), float32(q.Z)}
		} else {
			out[i] = []float32{float32(q.X), float32(q.Y)}
		}
	}
	return out
}

// solid builds the kernel solid for a solid subtree.
func (w *walker) solid(n *graph.Node) (kernel.Solid, error) {
	switch d := n.Data.(type) {
	case graph.SphereData:
		return w.k.Sphere(d.Radius), nil
	case graph.BoxData:
		return w.k.Box(d.Size.X, d.Size.Y, d.Size.Z), nil
	case graph.CylinderData:
		return w.k.Cylinder(d.Height, d.Radius), nil
	case graph.BooleanData:
		children := w.g.Children(n)
		if len(children) < 2 {
			return nil, fmt.Errorf("%s node %s needs at least 2 solids", d.Op, n.ID.Short())
		}
		acc, err := w.solid(children[0])
		if err != nil {
			return nil, err
		}
		for _, c := range children[1:] {
			s, err := w.solid(c)
			if err != nil {
				return nil, err
			}
			switch d.Op {
			case graph.OpUnion:
				acc = w.k.Union(acc, s)
			case graph.OpDifference:
				acc = w.k.Difference(acc, s)
			case graph.OpIntersection:
				acc = w.k.Intersection(acc, s)
			default:
				return nil, fmt.Errorf("node %s has unknown boolean op %d", n.ID.Short(), int(d.Op))
			}
		}
		return acc, nil
	case graph.TransformData:
		children := w.g.Children(n)
		if len(children) != 1 {
			return nil, fmt.Errorf("transform node %s needs exactly 1 child", n.ID.Short())
		}
		s, err := w.solid(children[0])
		if err != nil {
			return nil, err
		}
		// Rotation first, then translation.
		if r := d.Rotation; r != nil && !r.IsZero() {
			s = w.k.Rotate(s, r.X, r.Y, r.Z)
		}
		if t := d.Translation; t != nil && !t.IsZero() {
			s = w.k.Translate(s, t.X, t.Y, t.Z)
		}
		return s, nil
	}
	return nil, fmt.Errorf("node %s is a %s, not a solid", n.ID.Short(), n.Kind)
}
