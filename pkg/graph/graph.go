package graph

import "fmt"

// SceneGraph is the top-level immutable data structure produced by scene
// evaluation. It is never mutated in place; each evaluation produces a new
// graph.
type SceneGraph struct {
	Nodes     map[NodeID]*Node  `json:"nodes"`
	Roots     []NodeID          `json:"roots"`
	NameIndex map[string]NodeID `json:"name_index"`
	Version   uint64            `json:"version"`
}

// New creates an empty SceneGraph.
func New() *SceneGraph {
	return &SceneGraph{
		Nodes:     make(map[NodeID]*Node),
		NameIndex: make(map[string]NodeID),
	}
}

// AddNode adds a node to the graph. It does not check for duplicates.
func (g *SceneGraph) AddNode(n *Node) {
	g.Nodes[n.ID] = n
	if n.Name != "" {
		g.NameIndex[n.Name] = n.ID
	}
}

// AddRoot registers a node ID as a root of the graph.
func (g *SceneGraph) AddRoot(id NodeID) {
	g.Roots = append(g.Roots, id)
}

// Lookup returns the node with the given user-assigned name, or nil.
func (g *SceneGraph) Lookup(name string) *Node {
	id, ok := g.NameIndex[name]
	if !ok {
		return nil
	}
	return g.Nodes[id]
}

// MustLookup returns the node with the given name, or panics.
func (g *SceneGraph) MustLookup(name string) *Node {
	n := g.Lookup(name)
	if n == nil {
		panic(fmt.Sprintf("graph: no node named %q", name))
	}
	return n
}

// Get returns the node with the given ID, or nil.
func (g *SceneGraph) Get(id NodeID) *Node {
	return g.Nodes[id]
}

// Clouds returns the cloud roots in declaration order.
func (g *SceneGraph) Clouds() []*Node {
	var clouds []*Node
	for _, id := range g.Roots {
		if n := g.Nodes[id]; n != nil && n.Kind == NodeCloud {
			clouds = append(clouds, n)
		}
	}
	return clouds
}

// Children returns the child nodes of the given node.
func (g *SceneGraph) Children(n *Node) []*Node {
	children := make([]*Node, 0, len(n.Children))
	for _, cid := range n.Children {
		if c := g.Nodes[cid]; c != nil {
			children = append(children, c)
		}
	}
	return children
}

// NodeCount returns the total number of nodes.
func (g *SceneGraph) NodeCount() int {
	return len(g.Nodes)
}

// IsSolid reports whether n evaluates to a solid.
func (g *SceneGraph) IsSolid(n *Node) bool {
	switch n.Kind {
	case NodePrimitive, NodeBoolean:
		return true
	case NodeTransform:
		if len(n.Children) != 1 {
			return false
		}
		c := g.Nodes[n.Children[0]]
		return c != nil && g.IsSolid(c)
	}
	return false
}

// Dim returns the dimension of the points n produces, or 0 when n is not a
// point source or its dimension cannot be determined.
func (g *SceneGraph) Dim(n *Node) int {
	switch d := n.Data.(type) {
	case PointsData:
		return d.Dim
	case FibonacciData:
		return 3
	case CircleData:
		return 2
	case RandomBallData:
		return d.Dim
	case SampleData:
		return 3
	case TransformData:
		if len(n.Children) != 1 {
			return 0
		}
		if c := g.Nodes[n.Children[0]]; c != nil {
			return g.Dim(c)
		}
	}
	return 0
}
