// Package kernel defines the abstract geometry kernel interface and the
// output mesh. Kernel implementations (sdfx) provide solid modeling and
// surface sampling behind the interface, so scene evaluation can produce
// point clouds without depending on a particular backend.
package kernel

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Primitives
	Sphere(radius float64) Solid
	Box(x, y, z float64) Solid
	Cylinder(height, radius float64) Solid

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	// Sample returns points on the surface of s as flat xyz triples, at a
	// resolution of cells along the longest bounding-box axis.
	Sample(s Solid, cells int) ([]float32, error)
}
