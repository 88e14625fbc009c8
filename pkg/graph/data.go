package graph

// Vec3 is a 3D vector in scene units.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// IsZero reports whether every component is zero.
func (v Vec3) IsZero() bool { return v == Vec3{} }

// ---------------------------------------------------------------------------
// Solids
// ---------------------------------------------------------------------------

// SphereData is a sphere centred on the origin.
type SphereData struct {
	Radius float64 `json:"radius"`
}

func (SphereData) nodeData() {}

// BoxData is a box centred on the origin.
type BoxData struct {
	Size Vec3 `json:"size"`
}

func (BoxData) nodeData() {}

// CylinderData is a Z-aligned cylinder centred on the origin.
type CylinderData struct {
	Height float64 `json:"height"`
	Radius float64 `json:"radius"`
}

func (CylinderData) nodeData() {}

// BooleanOp enumerates CSG operations.
type BooleanOp int

const (
	OpUnion BooleanOp = iota
	OpDifference
	OpIntersection
)

func (op BooleanOp) String() string {
	switch op {
	case OpUnion:
		return "union"
	case OpDifference:
		return "difference"
	case OpIntersection:
		return "intersection"
	default:
		return "unknown"
	}
}

// BooleanData folds its children left to right with Op. Difference
// subtracts every later child from the first.
type BooleanData struct {
	Op BooleanOp `json:"op"`
}

func (BooleanData) nodeData() {}

// ---------------------------------------------------------------------------
// Transform
// ---------------------------------------------------------------------------

// TransformData moves its single child. Rotation is applied before
// translation. Planar point sources only accept X/Y translation and
// rotation about Z.
type TransformData struct {
	Translation *Vec3 `json:"translation,omitempty"`
	Rotation    *Vec3 `json:"rotation,omitempty"` // Euler angles in degrees
}

func (TransformData) nodeData() {}

// ---------------------------------------------------------------------------
// Point sources
// ---------------------------------------------------------------------------

// PointsData is an explicit point list of any dimension.
type PointsData struct {
	Dim    int       `json:"dim"`
	Coords []float32 `json:"coords"` // Dim values per point
}

func (PointsData) nodeData() {}

// Count returns the number of points.
func (d PointsData) Count() int {
	if d.Dim <= 0 {
		return 0
	}
	return len(d.Coords) / d.Dim
}

// FibonacciData samples a 3D sphere surface on a Fibonacci lattice.
type FibonacciData struct {
	Count  int     `json:"count"`
	Radius float64 `json:"radius"`
	Center Vec3    `json:"center"`
}

func (FibonacciData) nodeData() {}

// CircleData samples a planar circle at equal angles.
type CircleData struct {
	Count  int        `json:"count"`
	Radius float64    `json:"radius"`
	Center [2]float64 `json:"center"`
}

func (CircleData) nodeData() {}

// RandomBallData draws points uniformly from a ball of any dimension with a
// fixed seed, so evaluation stays deterministic.
type RandomBallData struct {
	Count  int     `json:"count"`
	Dim    int     `json:"dim"`
	Radius float64 `json:"radius"`
	Seed   int64   `json:"seed"`
}

func (RandomBallData) nodeData() {}

// ---------------------------------------------------------------------------
// Sampling and clouds
// ---------------------------------------------------------------------------

// SampleData samples the surface of its single solid child with marching
// cubes at Cells resolution. Zero means the configured default.
type SampleData struct {
	Cells int `json:"cells,omitempty"`
}

func (SampleData) nodeData() {}

// CloudData names a root whose point sources are concatenated into one
// reconstruction input.
type CloudData struct {
	Description string `json:"description,omitempty"`
}

func (CloudData) nodeData() {}
