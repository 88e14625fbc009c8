package graph

import (
	"fmt"
	"sort"
)

// ValidationSeverity indicates whether a validation finding blocks evaluation
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks evaluation
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID             // which node has the problem (zero if graph-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID.Short(), e.Message)
}

// ValidationResult separates blocking errors from warnings.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// OK reports whether no blocking error was found.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// Validate runs every check and returns all findings, errors and warnings
// alike. It never mutates the graph. Shape and dimension checks only run on
// an acyclic graph with resolvable references.
func Validate(g *SceneGraph) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateDAG(g)...)
	errs = append(errs, validateReferences(g)...)
	structural := len(errs) > 0
	errs = append(errs, validateNames(g)...)
	errs = append(errs, validateRoots(g)...)
	if !structural {
		errs = append(errs, validateShapes(g)...)
		errs = append(errs, validateDimensions(g)...)
	}
	return errs
}

// ValidateAll runs Validate and splits the findings by severity.
func ValidateAll(g *SceneGraph) ValidationResult {
	var res ValidationResult
	for _, e := range Validate(g) {
		if e.Severity == SeverityWarning {
			res.Warnings = append(res.Warnings, e)
		} else {
			res.Errors = append(res.Errors, e)
		}
	}
	return res
}

// sortedIDs returns the node IDs in a stable order so findings come out
// deterministically.
func sortedIDs(g *SceneGraph) []NodeID {
	ids := make([]NodeID, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// validateDAG checks for cycles using DFS with 3-color marking.
// White (0) = unvisited, gray (1) = in current DFS path, black (2) = fully explored.
func validateDAG(g *SceneGraph) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[NodeID]int)
	var errs []ValidationError

	var visit func(id NodeID) bool // returns true if cycle found
	visit = func(id NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("cycle detected: node %s is part of a cycle", id.Short()),
				Severity: SeverityError,
			})
			return true
		}

		color[id] = gray
		node, ok := g.Nodes[id]
		if !ok {
			// Dangling reference; handled by validateReferences.
			color[id] = black
			return false
		}
		for _, childID := range node.Children {
			if visit(childID) {
				return true
			}
		}
		color[id] = black
		return false
	}

	for _, id := range sortedIDs(g) {
		if color[id] == white && visit(id) {
			break
		}
	}
	return errs
}

// validateReferences checks that every child ID resolves to a node.
func validateReferences(g *SceneGraph) []ValidationError {
	var errs []ValidationError
	for _, id := range sortedIDs(g) {
		n := g.Nodes[id]
		if n.ID != id {
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("node stored under %s carries id %s", id.Short(), n.ID.Short()),
				Severity: SeverityError,
			})
		}
		for _, cid := range n.Children {
			if _, ok := g.Nodes[cid]; !ok {
				errs = append(errs, ValidationError{
					NodeID:   id,
					Message:  fmt.Sprintf("child %s does not exist", cid.Short()),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

func validateNames(g *SceneGraph) []ValidationError {
	var errs []ValidationError

	names := make([]string, 0, len(g.NameIndex))
	for name := range g.NameIndex {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := g.Nodes[g.NameIndex[name]]; !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("name index entry %q references non-existent node %s", name, g.NameIndex[name].Short()),
				Severity: SeverityError,
			})
		}
	}

	count := make(map[string]int)
	for _, n := range g.Nodes {
		if n.Name != "" {
			count[n.Name]++
		}
	}
	dup := make([]string, 0)
	for name, c := range count {
		if c > 1 {
			dup = append(dup, name)
		}
	}
	sort.Strings(dup)
	for _, name := range dup {
		errs = append(errs, ValidationError{
			Message:  fmt.Sprintf("duplicate name %q assigned to %d nodes", name, count[name]),
			Severity: SeverityError,
		})
	}
	return errs
}

// validateRoots checks that roots exist and are clouds, and warns about
// nodes no root reaches.
func validateRoots(g *SceneGraph) []ValidationError {
	var errs []ValidationError
	reachable := make(map[NodeID]bool)
	var queue []NodeID
	for _, rid := range g.Roots {
		n, ok := g.Nodes[rid]
		if !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("root reference %s does not exist", rid.Short()),
				Severity: SeverityError,
			})
			continue
		}
		if n.Kind != NodeCloud {
			errs = append(errs, ValidationError{
				NodeID:   rid,
				Message:  fmt.Sprintf("root must be a cloud, got %s", n.Kind),
				Severity: SeverityError,
			})
		}
		if !reachable[rid] {
			reachable[rid] = true
			queue = append(queue, rid)
		}
	}
	for len(queue) > 0 {
		n := g.Nodes[queue[0]]
		queue = queue[1:]
		if n == nil {
			continue
		}
		for _, cid := range n.Children {
			if !reachable[cid] {
				reachable[cid] = true
				queue = append(queue, cid)
			}
		}
	}
	for _, id := range sortedIDs(g) {
		if !reachable[id] {
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  "node is not reachable from any cloud",
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}

// validateShapes checks payload values and child arity per node.
func validateShapes(g *SceneGraph) []ValidationError {
	var errs []ValidationError
	fail := func(id NodeID, format string, args ...any) {
		errs = append(errs, ValidationError{NodeID: id, Message: fmt.Sprintf(format, args...), Severity: SeverityError})
	}

	for _, id := range sortedIDs(g) {
		n := g.Nodes[id]
		children := g.Children(n)
		leaf := func() {
			if len(children) != 0 {
				fail(id, "%s node takes no children, got %d", n.Kind, len(children))
			}
		}

		switch d := n.Data.(type) {
		case SphereData:
			leaf()
			if d.Radius <= 0 {
				fail(id, "sphere radius must be positive, got %g", d.Radius)
			}
		case BoxData:
			leaf()
			if d.Size.X <= 0 || d.Size.Y <= 0 || d.Size.Z <= 0 {
				fail(id, "box size must be positive, got %gx%gx%g", d.Size.X, d.Size.Y, d.Size.Z)
			}
		case CylinderData:
			leaf()
			if d.Height <= 0 || d.Radius <= 0 {
				fail(id, "cylinder height and radius must be positive, got %g and %g", d.Height, d.Radius)
			}
		case BooleanData:
			if len(children) < 2 {
				fail(id, "%s needs at least 2 solids, got %d", d.Op, len(children))
			}
			for _, c := range children {
				if !g.IsSolid(c) {
					fail(id, "%s operand %s is a %s, not a solid", d.Op, c.ID.Short(), c.Kind)
				}
			}
		case TransformData:
			if len(children) != 1 {
				fail(id, "transform needs exactly 1 child, got %d", len(children))
			} else if !g.IsSolid(children[0]) && g.Dim(children[0]) == 0 {
				fail(id, "transform child %s is a %s", children[0].ID.Short(), children[0].Kind)
			}
		case PointsData:
			leaf()
			if d.Dim <= 0 {
				fail(id, "points dimension must be positive, got %d", d.Dim)
			} else if len(d.Coords)%d.Dim != 0 {
				fail(id, "%d coordinates do not divide into points of dimension %d", len(d.Coords), d.Dim)
			} else if d.Count() == 0 {
				fail(id, "points list is empty")
			}
		case FibonacciData:
			leaf()
			if d.Count <= 0 || d.Radius <= 0 {
				fail(id, "fibonacci sphere needs a positive count and radius, got %d and %g", d.Count, d.Radius)
			}
		case CircleData:
			leaf()
			if d.Count <= 0 || d.Radius <= 0 {
				fail(id, "circle needs a positive count and radius, got %d and %g", d.Count, d.Radius)
			}
		case RandomBallData:
			leaf()
			if d.Count <= 0 || d.Dim <= 0 || d.Radius <= 0 {
				fail(id, "random ball needs a positive count, dimension and radius, got %d, %d and %g", d.Count, d.Dim, d.Radius)
			}
		case SampleData:
			if d.Cells != 0 && d.Cells < 2 {
				fail(id, "sample cells must be at least 2, got %d", d.Cells)
			}
			if len(children) != 1 || !g.IsSolid(children[0]) {
				fail(id, "sample needs exactly 1 solid child")
			}
		case CloudData:
			if len(children) == 0 {
				fail(id, "cloud %q has no point sources", n.Name)
			}
		case nil:
			fail(id, "%s node has no data", n.Kind)
		default:
			fail(id, "unsupported data type %T", n.Data)
		}
		if n.Data != nil && kindOf(n.Data) != n.Kind {
			fail(id, "%s node carries %s data", n.Kind, kindOf(n.Data))
		}
	}
	return errs
}

func kindOf(d NodeData) NodeKind {
	switch d.(type) {
	case SphereData, BoxData, CylinderData:
		return NodePrimitive
	case BooleanData:
		return NodeBoolean
	case TransformData:
		return NodeTransform
	case PointsData, FibonacciData, CircleData, RandomBallData:
		return NodePoints
	case SampleData:
		return NodeSample
	case CloudData:
		return NodeCloud
	}
	return -1
}

// validateDimensions checks that each cloud mixes only sources of one
// dimension of at least 2, and that transforms suit their point sources.
func validateDimensions(g *SceneGraph) []ValidationError {
	var errs []ValidationError
	fail := func(id NodeID, format string, args ...any) {
		errs = append(errs, ValidationError{NodeID: id, Message: fmt.Sprintf(format, args...), Severity: SeverityError})
	}

	for _, cloud := range g.Clouds() {
		dim := 0
		for _, c := range g.Children(cloud) {
			d := g.Dim(c)
			if d == 0 {
				fail(cloud.ID, "cloud %q child %s is a %s, not a point source", cloud.Name, c.ID.Short(), c.Kind)
				continue
			}
			if dim == 0 {
				dim = d
			} else if d != dim {
				fail(cloud.ID, "cloud %q mixes dimensions %d and %d", cloud.Name, dim, d)
			}
		}
		if dim == 1 {
			fail(cloud.ID, "cloud %q has dimension 1; surfaces need at least 2", cloud.Name)
		}
	}

	for _, id := range sortedIDs(g) {
		n := g.Nodes[id]
		td, ok := n.Data.(TransformData)
		if !ok || g.IsSolid(n) {
			continue
		}
		switch g.Dim(n) {
		case 0, 3:
		case 2:
			if (td.Translation != nil && td.Translation.Z != 0) ||
				(td.Rotation != nil && (td.Rotation.X != 0 || td.Rotation.Y != 0)) {
				fail(id, "planar points only move within the XY plane")
			}
		default:
			fail(id, "transforms apply to 2D or 3D points, got dimension %d", g.Dim(n))
		}
	}
	return errs
}
