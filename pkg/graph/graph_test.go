package graph

import (
	"encoding/json"
	"strings"
	"testing"
)

func node(path string, kind NodeKind, data NodeData, children ...NodeID) *Node {
	return &Node{ID: NewNodeID(path), Kind: kind, Data: data, Children: children}
}

func cloud(g *SceneGraph, name string, children ...NodeID) *Node {
	n := &Node{ID: NewNodeID("defcloud/" + name), Kind: NodeCloud, Name: name, Data: CloudData{}, Children: children}
	g.AddNode(n)
	g.AddRoot(n.ID)
	return n
}

func TestNewSceneGraph(t *testing.T) {
	g := New()
	if g.Nodes == nil {
		t.Fatal("Nodes map should be initialized")
	}
	if g.NameIndex == nil {
		t.Fatal("NameIndex map should be initialized")
	}
	if g.NodeCount() != 0 {
		t.Errorf("empty graph should have 0 nodes, got %d", g.NodeCount())
	}
	if len(Validate(g)) != 0 {
		t.Errorf("empty graph should validate cleanly")
	}
}

func TestNodeID(t *testing.T) {
	a := NewNodeID("defcloud/ball")
	b := NewNodeID("defcloud/ball")
	c := NewNodeID("defcloud/ring")
	if a != b {
		t.Error("same path should give the same id")
	}
	if a == c {
		t.Error("different paths should give different ids")
	}
	if a.IsZero() || !ZeroID.IsZero() {
		t.Error("IsZero mismatch")
	}
	if len(a.Short()) != 8 || !strings.HasPrefix(a.String(), a.Short()) {
		t.Errorf("Short() = %q, String() = %q", a.Short(), a.String())
	}

	text, err := a.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	var back NodeID
	if err := back.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if back != a {
		t.Error("text round trip changed the id")
	}
	if err := back.UnmarshalText([]byte("abc")); err == nil {
		t.Error("expected error for short id")
	}
}

func TestAddNodeAndLookup(t *testing.T) {
	g := New()
	ball := node("fibonacci/1", NodePoints, FibonacciData{Count: 50, Radius: 1})
	g.AddNode(ball)
	root := cloud(g, "ball", ball.ID)

	if g.NodeCount() != 2 {
		t.Errorf("node count = %d, want 2", g.NodeCount())
	}
	if found := g.Lookup("ball"); found == nil || found.ID != root.ID {
		t.Fatal("Lookup('ball') returned the wrong node")
	}
	if g.MustLookup("ball").ID != root.ID {
		t.Errorf("MustLookup returned wrong node")
	}
	if g.Lookup("missing") != nil {
		t.Error("Lookup of a missing name should return nil")
	}
	if g.Get(ball.ID) != ball {
		t.Error("Get returned wrong node")
	}
	children := g.Children(root)
	if len(children) != 1 || children[0] != ball {
		t.Errorf("Children = %v", children)
	}
	if clouds := g.Clouds(); len(clouds) != 1 || clouds[0] != root {
		t.Errorf("Clouds = %v", clouds)
	}
}

func TestMustLookupPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustLookup should panic on a missing name")
		}
	}()
	New().MustLookup("nope")
}

func TestDimAndSolid(t *testing.T) {
	g := New()
	sphere := node("sphere/1", NodePrimitive, SphereData{Radius: 1})
	box := node("box/1", NodePrimitive, BoxData{Size: Vec3{1, 1, 1}})
	union := node("union/1", NodeBoolean, BooleanData{Op: OpUnion}, sphere.ID, box.ID)
	moved := node("translate/1", NodeTransform, TransformData{Translation: &Vec3{X: 1}}, union.ID)
	sample := node("sample/1", NodeSample, SampleData{Cells: 16}, moved.ID)
	ring := node("circle/1", NodePoints, CircleData{Count: 8, Radius: 1})
	ringMoved := node("translate/2", NodeTransform, TransformData{Translation: &Vec3{X: 2}}, ring.ID)
	ball := node("random-ball/1", NodePoints, RandomBallData{Count: 8, Dim: 4, Radius: 1})
	for _, n := range []*Node{sphere, box, union, moved, sample, ring, ringMoved, ball} {
		g.AddNode(n)
	}

	tests := []struct {
		n     *Node
		solid bool
		dim   int
	}{
		{sphere, true, 0},
		{union, true, 0},
		{moved, true, 0},
		{sample, false, 3},
		{ring, false, 2},
		{ringMoved, false, 2},
		{ball, false, 4},
	}
	for _, tt := range tests {
		if got := g.IsSolid(tt.n); got != tt.solid {
			t.Errorf("%s: IsSolid = %v, want %v", tt.n.Kind, got, tt.solid)
		}
		if got := g.Dim(tt.n); got != tt.dim {
			t.Errorf("%s: Dim = %d, want %d", tt.n.Kind, got, tt.dim)
		}
	}
}

func TestGraphJSON(t *testing.T) {
	g := New()
	pts := node("points/1", NodePoints, PointsData{Dim: 2, Coords: []float32{0, 0, 1, 0, 0, 1}})
	g.AddNode(pts)
	cloud(g, "tri", pts.ID)

	data, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), pts.ID.String()) {
		t.Errorf("JSON should key nodes by hex id: %s", data)
	}
	if !strings.Contains(string(data), `"name_index":{"tri":`) {
		t.Errorf("JSON should carry the name index: %s", data)
	}
}

func TestVec3(t *testing.T) {
	v := Vec3{1, 2, 3}.Add(Vec3{-1, 0, 1})
	if v != (Vec3{0, 2, 4}) {
		t.Errorf("Add = %v", v)
	}
	if v.IsZero() || !(Vec3{}).IsZero() {
		t.Error("IsZero mismatch")
	}
	if (PointsData{Dim: 3, Coords: make([]float32, 9)}).Count() != 3 {
		t.Error("PointsData.Count")
	}
	if (PointsData{}).Count() != 0 {
		t.Error("PointsData.Count with zero dim")
	}
}
