package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/cocone/pkg/graph"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms scene source code before passing it to
// zygomys. It performs three transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: random-ball -> random_ball
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator).
//
//  3. Line comments: ; comment -> // comment
//
// All transformations respect string literal boundaries.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, kwPrefix...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Only a hyphen between identifier characters is rewritten; a
		// minus operator or negative literal is left alone.
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpNodeRef wraps a graph.NodeID so it can be passed between builtins.
type sexpNodeRef struct {
	id   graph.NodeID
	name string // human-readable name for error messages
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	if n.name != "" {
		return fmt.Sprintf("(noderef %q)", n.name)
	}
	return fmt.Sprintf("(noderef %s)", n.id.Short())
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a graph.Vec3.
type sexpVec3 struct {
	vec graph.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpPoint is a single point of any dimension, consumed by `points`.
type sexpPoint struct {
	coords []float64
}

func (p *sexpPoint) SexpString(ps *zygo.PrintState) string {
	parts := make([]string, len(p.coords))
	for i, c := range p.coords {
		parts[i] = strconv.FormatFloat(c, 'g', -1, 64)
	}
	return "(point " + strings.Join(parts, " ") + ")"
}
func (p *sexpPoint) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	op         string
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(op string, args []zygo.Sexp) kwArgs {
	result := kwArgs{op: op, kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// float reads a numeric keyword argument, returning def when it is absent.
func (a kwArgs) float(name string, def float64) (float64, error) {
	v, ok := a.kw[name]
	if !ok {
		return def, nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %s: %w", a.op, name, err)
	}
	return f, nil
}

// int reads an integral keyword argument, returning def when it is absent.
func (a kwArgs) int(name string, def int) (int, error) {
	v, ok := a.kw[name]
	if !ok {
		return def, nil
	}
	n, err := toInt(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %s: %w", a.op, name, err)
	}
	return n, nil
}

// vec3 reads a vector keyword argument, returning def when it is absent.
func (a kwArgs) vec3(name string, def graph.Vec3) (graph.Vec3, error) {
	v, ok := a.kw[name]
	if !ok {
		return def, nil
	}
	vec, err := toVec3(v)
	if err != nil {
		return graph.Vec3{}, fmt.Errorf("%s: %s: %w", a.op, name, err)
	}
	return vec, nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts an int from a SexpInt.
func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toNodeRef extracts a NodeID from a sexpNodeRef.
func toNodeRef(s zygo.Sexp) (graph.NodeID, error) {
	if ref, ok := s.(*sexpNodeRef); ok {
		return ref.id, nil
	}
	return graph.ZeroID, fmt.Errorf("expected node reference, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a Vec3 from a sexpVec3.
func toVec3(s zygo.Sexp) (graph.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return graph.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// flattenArgs expands list and array arguments in place so builtins accept
// both (union a b) and (union (list a b)).
func flattenArgs(args []zygo.Sexp) []zygo.Sexp {
	var out []zygo.Sexp
	for _, a := range args {
		switch a.(type) {
		case *zygo.SexpPair, *zygo.SexpArray:
			items, err := sexpListToSlice(a)
			if err == nil {
				out = append(out, flattenArgs(items)...)
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

// ---------------------------------------------------------------------------
// Graph builder
// ---------------------------------------------------------------------------

// builder accumulates nodes for one evaluation. Anonymous nodes get
// per-operation sequence numbers, so the same source always yields the same
// node IDs.
type builder struct {
	g   *graph.SceneGraph
	seq map[string]int
}

func newBuilder() *builder {
	return &builder{g: graph.New(), seq: make(map[string]int)}
}

// add inserts an anonymous node and returns a reference to it.
func (b *builder) add(op string, kind graph.NodeKind, data graph.NodeData, children ...graph.NodeID) *sexpNodeRef {
	b.seq[op]++
	id := graph.NewNodeID(fmt.Sprintf("%s/%d", op, b.seq[op]))
	b.g.AddNode(&graph.Node{ID: id, Kind: kind, Data: data, Children: children})
	return &sexpNodeRef{id: id}
}

// refs converts every argument to a node reference.
func refs(op string, args []zygo.Sexp) ([]graph.NodeID, error) {
	ids := make([]graph.NodeID, 0, len(args))
	for i, a := range args {
		id, err := toNodeRef(a)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", op, i+1, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs all scene builtins into a zygomys environment.
// The builtins populate b's graph during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// (vec3 1 2 3)
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: graph.Vec3{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// (point 0 1 2 3)
	env.AddFunction("point", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) == 0 {
			return zygo.SexpNull, fmt.Errorf("point requires at least one coordinate")
		}
		p := &sexpPoint{coords: make([]float64, len(args))}
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("point: coordinate %d: %w", i+1, err)
			}
			p.coords[i] = f
		}
		return p, nil
	})

	// (points (point 0 0) (point 1 0) (point 0 1))
	env.AddFunction("points", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		args = flattenArgs(args)
		if len(args) == 0 {
			return zygo.SexpNull, fmt.Errorf("points requires at least one point")
		}
		var d graph.PointsData
		for i, a := range args {
			var coords []float64
			switch p := a.(type) {
			case *sexpPoint:
				coords = p.coords
			case *sexpVec3:
				coords = []float64{p.vec.X, p.vec.Y, p.vec.Z}
			default:
				return zygo.SexpNull, fmt.Errorf("points: entry %d: expected point, got %T (%s)", i+1, a, a.SexpString(nil))
			}
			if i == 0 {
				d.Dim = len(coords)
			} else if len(coords) != d.Dim {
				return zygo.SexpNull, fmt.Errorf("points: entry %d has dimension %d, want %d", i+1, len(coords), d.Dim)
			}
			for _, c := range coords {
				d.Coords = append(d.Coords, float32(c))
			}
		}
		return b.add("points", graph.NodePoints, d), nil
	})

	// (sphere :radius 10)
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs("sphere", args)
		r, err := pa.float("radius", 0)
		if err != nil {
			return zygo.SexpNull, err
		}
		return b.add("sphere", graph.NodePrimitive, graph.SphereData{Radius: r}), nil
	})

	// (box :size (vec3 20 10 5))
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs("box", args)
		size, err := pa.vec3("size", graph.Vec3{})
		if err != nil {
			return zygo.SexpNull, err
		}
		return b.add("box", graph.NodePrimitive, graph.BoxData{Size: size}), nil
	})

	// (cylinder :height 20 :radius 4)
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs("cylinder", args)
		h, err := pa.float("height", 0)
		if err != nil {
			return zygo.SexpNull, err
		}
		r, err := pa.float("radius", 0)
		if err != nil {
			return zygo.SexpNull, err
		}
		return b.add("cylinder", graph.NodePrimitive, graph.CylinderData{Height: h, Radius: r}), nil
	})

	// (union a b ...), (difference a b ...), (intersection a b ...)
	for _, op := range []graph.BooleanOp{graph.OpUnion, graph.OpDifference, graph.OpIntersection} {
		op := op
		env.AddFunction(op.String(), func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			ids, err := refs(op.String(), flattenArgs(args))
			if err != nil {
				return zygo.SexpNull, err
			}
			return b.add(op.String(), graph.NodeBoolean, graph.BooleanData{Op: op}, ids...), nil
		})
	}

	// (translate child (vec3 1 2 3)) or (translate child :by (vec3 1 2 3))
	// (rotate child (vec3 0 0 90)) rotates by Euler angles in degrees.
	transform := func(op string, set func(*graph.TransformData, graph.Vec3)) {
		env.AddFunction(op, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(op, args)
			if len(pa.positional) < 1 {
				return zygo.SexpNull, fmt.Errorf("%s requires a child as first argument", op)
			}
			child, err := toNodeRef(pa.positional[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: child: %w", op, err)
			}
			var vec graph.Vec3
			switch {
			case len(pa.positional) >= 2:
				if vec, err = toVec3(pa.positional[1]); err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: %w", op, err)
				}
			case pa.kw["by"] != nil:
				if vec, err = pa.vec3("by", graph.Vec3{}); err != nil {
					return zygo.SexpNull, err
				}
			default:
				return zygo.SexpNull, fmt.Errorf("%s requires a vec3 argument", op)
			}
			var td graph.TransformData
			set(&td, vec)
			return b.add(op, graph.NodeTransform, td, child), nil
		})
	}
	transform("translate", func(td *graph.TransformData, v graph.Vec3) { td.Translation = &v })
	transform("rotate", func(td *graph.TransformData, v graph.Vec3) { td.Rotation = &v })

	// (sample solid :cells 48)
	env.AddFunction("sample", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs("sample", args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("sample requires exactly one solid, got %d arguments", len(pa.positional))
		}
		child, err := toNodeRef(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sample: %w", err)
		}
		cells, err := pa.int("cells", 0)
		if err != nil {
			return zygo.SexpNull, err
		}
		return b.add("sample", graph.NodeSample, graph.SampleData{Cells: cells}, child), nil
	})

	// (fibonacci-sphere :count 200 :radius 1 :center (vec3 0 0 0))
	env.AddFunction("fibonacci_sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs("fibonacci-sphere", args)
		var d graph.FibonacciData
		var err error
		if d.Count, err = pa.int("count", 0); err != nil {
			return zygo.SexpNull, err
		}
		if d.Radius, err = pa.float("radius", 1); err != nil {
			return zygo.SexpNull, err
		}
		if d.Center, err = pa.vec3("center", graph.Vec3{}); err != nil {
			return zygo.SexpNull, err
		}
		return b.add("fibonacci-sphere", graph.NodePoints, d), nil
	})

	// (circle :count 64 :radius 1 :center (vec3 0 0 0))
	env.AddFunction("circle", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs("circle", args)
		var d graph.CircleData
		var err error
		if d.Count, err = pa.int("count", 0); err != nil {
			return zygo.SexpNull, err
		}
		if d.Radius, err = pa.float("radius", 1); err != nil {
			return zygo.SexpNull, err
		}
		center, err := pa.vec3("center", graph.Vec3{})
		if err != nil {
			return zygo.SexpNull, err
		}
		if center.Z != 0 {
			return zygo.SexpNull, fmt.Errorf("circle: center must lie in the XY plane")
		}
		d.Center = [2]float64{center.X, center.Y}
		return b.add("circle", graph.NodePoints, d), nil
	})

	// (random-ball :count 500 :dim 4 :radius 1 :seed 7)
	env.AddFunction("random_ball", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs("random-ball", args)
		var d graph.RandomBallData
		var err error
		if d.Count, err = pa.int("count", 0); err != nil {
			return zygo.SexpNull, err
		}
		if d.Dim, err = pa.int("dim", 3); err != nil {
			return zygo.SexpNull, err
		}
		if d.Radius, err = pa.float("radius", 1); err != nil {
			return zygo.SexpNull, err
		}
		seed, err := pa.int("seed", 1)
		if err != nil {
			return zygo.SexpNull, err
		}
		d.Seed = int64(seed)
		return b.add("random-ball", graph.NodePoints, d), nil
	})

	// (defcloud "name" source ...)
	env.AddFunction("defcloud", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("defcloud requires a name argument")
		}
		cloudName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defcloud: name: %w", err)
		}
		if cloudName == "" {
			return zygo.SexpNull, fmt.Errorf("defcloud: name must not be empty")
		}
		if b.g.Lookup(cloudName) != nil {
			return zygo.SexpNull, fmt.Errorf("defcloud: cloud %q is already defined", cloudName)
		}
		children, err := refs("defcloud", flattenArgs(args[1:]))
		if err != nil {
			return zygo.SexpNull, err
		}

		id := graph.NewNodeID("defcloud/" + cloudName)
		b.g.AddNode(&graph.Node{
			ID:       id,
			Kind:     graph.NodeCloud,
			Name:     cloudName,
			Children: children,
			Data:     graph.CloudData{},
		})
		b.g.AddRoot(id)
		return &sexpNodeRef{id: id, name: cloudName}, nil
	})

	// (cloud "name")
	env.AddFunction("cloud", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("cloud requires a name argument")
		}
		cloudName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cloud: name: %w", err)
		}
		n := b.g.Lookup(cloudName)
		if n == nil {
			return zygo.SexpNull, fmt.Errorf("cloud: no cloud named %q", cloudName)
		}
		return &sexpNodeRef{id: n.ID, name: cloudName}, nil
	})
}
