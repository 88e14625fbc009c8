package kernel

import "testing"

// --- Mesh helper method tests ---

func square() *Mesh {
	// Unit square outline in 2D, counter-clockwise.
	return &Mesh{
		Dim:           2,
		Vertices:      []float64{0, 0, 1, 0, 1, 1, 0, 1},
		Normals:       []float64{0, -1, 1, 0, 0, 1, -1, 0},
		NormalIndices: []uint32{0, 0, 1, 1, 2, 2, 3, 3},
		FacetNormals:  []float64{0, -1, 1, 0, 0, 1, -1, 0},
		Facets:        []uint32{0, 1, 1, 2, 2, 3, 3, 0},
		Materials:     []uint32{0, 0, 0, 0},
		SourceIndex:   []int{0, 1, 2, 3},
	}
}

func TestMeshCounts(t *testing.T) {
	tests := []struct {
		name     string
		mesh     *Mesh
		vertices int
		facets   int
	}{
		{"zero value", &Mesh{}, 0, 0},
		{"square", square(), 4, 4},
		{"triangle", &Mesh{Dim: 3, Vertices: make([]float64, 9), Facets: []uint32{0, 1, 2}}, 3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mesh.VertexCount(); got != tt.vertices {
				t.Errorf("VertexCount() = %d, want %d", got, tt.vertices)
			}
			if got := tt.mesh.FacetCount(); got != tt.facets {
				t.Errorf("FacetCount() = %d, want %d", got, tt.facets)
			}
		})
	}
}

func TestMeshIsEmpty(t *testing.T) {
	t.Run("empty mesh", func(t *testing.T) {
		m := &Mesh{Dim: 3}
		if !m.IsEmpty() {
			t.Error("IsEmpty() = false for empty mesh, want true")
		}
	})
	t.Run("non-empty mesh", func(t *testing.T) {
		if square().IsEmpty() {
			t.Error("IsEmpty() = true for non-empty mesh, want false")
		}
	})
}

func TestMeshAccessors(t *testing.T) {
	m := square()
	if got := m.Vertex(2); got[0] != 1 || got[1] != 1 {
		t.Errorf("Vertex(2) = %v, want [1 1]", got)
	}
	if got := m.Facet(3); got[0] != 3 || got[1] != 0 {
		t.Errorf("Facet(3) = %v, want [3 0]", got)
	}
	if got := m.FacetNormal(1); got[0] != 1 || got[1] != 0 {
		t.Errorf("FacetNormal(1) = %v, want [1 0]", got)
	}
	if got := m.CornerNormal(2, 1); got[0] != 0 || got[1] != 1 {
		t.Errorf("CornerNormal(2, 1) = %v, want [0 1]", got)
	}
}

func TestMeshTriangles(t *testing.T) {
	m := &Mesh{
		Dim:           3,
		Vertices:      []float64{0, 0, 0, 1, 0, 0, 0, 1, 0},
		Normals:       []float64{0, 0, 1},
		NormalIndices: []uint32{0, 0, 0},
		FacetNormals:  []float64{0, 0, 1},
		Facets:        []uint32{0, 1, 2},
	}
	pos, nrm, err := m.Triangles()
	if err != nil {
		t.Fatalf("Triangles() error = %v", err)
	}
	if len(pos) != 9 || len(nrm) != 9 {
		t.Fatalf("Triangles() lengths = %d, %d, want 9, 9", len(pos), len(nrm))
	}
	if pos[3] != 1 || nrm[2] != 1 {
		t.Errorf("Triangles() = %v, %v", pos, nrm)
	}

	if _, _, err := square().Triangles(); err == nil {
		t.Error("Triangles() on a 2D mesh should fail")
	}
}

// --- Compile-time interface check with a stub kernel ---

// stubSolid is a minimal Solid implementation for testing.
type stubSolid struct {
	minBB, maxBB [3]float64
}

func (s *stubSolid) BoundingBox() (min, max [3]float64) {
	return s.minBB, s.maxBB
}

// stubKernel is a minimal Kernel implementation that proves the interface
// is satisfiable. All methods return trivial results.
type stubKernel struct{}

func (k *stubKernel) Sphere(r float64) Solid {
	return &stubSolid{minBB: [3]float64{-r, -r, -r}, maxBB: [3]float64{r, r, r}}
}

func (k *stubKernel) Box(x, y, z float64) Solid {
	return &stubSolid{
		minBB: [3]float64{0, 0, 0},
		maxBB: [3]float64{x, y, z},
	}
}

func (k *stubKernel) Cylinder(height, radius float64) Solid {
	return &stubSolid{
		minBB: [3]float64{-radius, -radius, 0},
		maxBB: [3]float64{radius, radius, height},
	}
}

func (k *stubKernel) Union(a, _ Solid) Solid        { return a }
func (k *stubKernel) Difference(a, _ Solid) Solid   { return a }
func (k *stubKernel) Intersection(a, _ Solid) Solid { return a }

func (k *stubKernel) Translate(s Solid, _, _, _ float64) Solid { return s }
func (k *stubKernel) Rotate(s Solid, _, _, _ float64) Solid    { return s }

func (k *stubKernel) Sample(s Solid, _ int) ([]float32, error) {
	lo, hi := s.BoundingBox()
	return []float32{float32(lo[0]), float32(lo[1]), float32(lo[2]), float32(hi[0]), float32(hi[1]), float32(hi[2])}, nil
}

// Compile-time checks that the stubs implement the interfaces.
var _ Solid = (*stubSolid)(nil)
var _ Kernel = (*stubKernel)(nil)

func TestStubKernelBoxBoundingBox(t *testing.T) {
	var k Kernel = &stubKernel{}
	s := k.Box(10, 20, 30)
	min, max := s.BoundingBox()
	if min != [3]float64{0, 0, 0} {
		t.Errorf("Box min = %v, want [0 0 0]", min)
	}
	if max != [3]float64{10, 20, 30} {
		t.Errorf("Box max = %v, want [10 20 30]", max)
	}
}

func TestStubKernelSample(t *testing.T) {
	var k Kernel = &stubKernel{}
	pts, err := k.Sample(k.Sphere(2), 10)
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if len(pts) != 6 || pts[0] != -2 || pts[5] != 2 {
		t.Errorf("Sample() = %v", pts)
	}
}
