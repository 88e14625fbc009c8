package kernel

import "fmt"

// Mesh is an oriented simplicial surface in Dim dimensions: each facet has
// Dim corners. All arrays are flat.
type Mesh struct {
	Dim      int       `json:"dim"`
	Vertices []float64 `json:"vertices"` // Dim floats per vertex
	// Normals holds Dim floats per shading normal; NormalIndices picks one
	// per facet corner.
	Normals       []float64 `json:"normals"`
	NormalIndices []uint32  `json:"normalIndices"`
	FacetNormals  []float64 `json:"facetNormals"` // Dim floats per facet
	TexCoords     []float64 `json:"texCoords,omitempty"`
	Facets        []uint32  `json:"facets"`    // Dim vertex indices per facet
	Materials     []uint32  `json:"materials"` // one per facet
	// SourceIndex maps each vertex to the input point it came from.
	SourceIndex []int  `json:"sourceIndex"`
	PartName    string `json:"partName"` // which scene cloud this came from
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	if m.Dim == 0 {
		return 0
	}
	return len(m.Vertices) / m.Dim
}

// FacetCount returns the number of facets.
func (m *Mesh) FacetCount() int {
	if m.Dim == 0 {
		return 0
	}
	return len(m.Facets) / m.Dim
}

// IsEmpty returns true if the mesh has no facets.
func (m *Mesh) IsEmpty() bool {
	return len(m.Facets) == 0
}

// Vertex returns the coordinates of vertex i.
func (m *Mesh) Vertex(i int) []float64 {
	return m.Vertices[i*m.Dim : (i+1)*m.Dim]
}

// Facet returns the vertex indices of facet i in orientation order.
func (m *Mesh) Facet(i int) []uint32 {
	return m.Facets[i*m.Dim : (i+1)*m.Dim]
}

// FacetNormal returns the outward unit normal of facet i.
func (m *Mesh) FacetNormal(i int) []float64 {
	return m.FacetNormals[i*m.Dim : (i+1)*m.Dim]
}

// CornerNormal returns the shading normal of corner j of facet i.
func (m *Mesh) CornerNormal(i, j int) []float64 {
	n := int(m.NormalIndices[i*m.Dim+j])
	return m.Normals[n*m.Dim : (n+1)*m.Dim]
}

// Triangles flattens a 3D mesh into unindexed float32 render arrays: three
// corners per triangle, each with its position and shading normal.
func (m *Mesh) Triangles() (positions, normals []float32, err error) {
	if m.Dim != 3 {
		return nil, nil, fmt.Errorf("triangles need a 3D mesh, got dimension %d", m.Dim)
	}
	n := m.FacetCount()
	positions = make([]float32, 0, n*9)
	normals = make([]float32, 0, n*9)
	for i := 0; i < n; i++ {
		for j, v := range m.Facet(i) {
			for _, x := range m.Vertex(int(v)) {
				positions = append(positions, float32(x))
			}
			for _, x := range m.CornerNormal(i, j) {
				normals = append(normals, float32(x))
			}
		}
	}
	return positions, normals, nil
}
