package scenegraph

// Kind tags a node's role in the graph.
type Kind string

const (
	KindGroup       Kind = "group"
	KindMesh        Kind = "mesh"
	KindSkinnedMesh Kind = "skinned-mesh"
	KindCamera      Kind = "camera"
	KindLight       Kind = "light"
)

// Transform is a node's local placement.
type Transform struct {
	Position [3]float64 `json:"position"`
	Rotation [4]float64 `json:"rotation"` // quaternion xyzw
	Scale    [3]float64 `json:"scale"`
}

// Identity is the neutral transform.
func Identity() Transform {
	return Transform{
		Rotation: [4]float64{0, 0, 0, 1},
		Scale:    [3]float64{1, 1, 1},
	}
}

// Geometry is shared vertex data. Multiple nodes may reference one
// Geometry; the encoding stores it once in a side table.
type Geometry struct {
	Name      string    `json:"name"`
	Positions []float32 `json:"positions"`
	Normals   []float32 `json:"normals,omitempty"`
	UVs       []float32 `json:"uvs,omitempty"`
	Indices   []uint32  `json:"indices,omitempty"`
}

// Material is shared surface appearance data.
type Material struct {
	Name      string     `json:"name"`
	Color     [4]float32 `json:"color"`
	Metalness float64    `json:"metalness"`
	Roughness float64    `json:"roughness"`
	Texture   string     `json:"texture,omitempty"`
}

// Track animates one property of one target node.
type Track struct {
	Target   string    `json:"target"`
	Property string    `json:"property"`
	Times    []float32 `json:"times"`
	Values   []float32 `json:"values"`
}

// Clip is a named animation spanning several tracks.
type Clip struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration"`
	Tracks   []Track `json:"tracks"`
}

// Node is one live scene-graph object. Nodes form a tree; Geometry and
// Material pointers may be shared between nodes but the child structure
// must stay acyclic.
type Node struct {
	Kind      Kind
	Name      string
	Transform Transform
	Geometry  *Geometry
	Material  *Material
	Children  []*Node
}

// Graph is a decoded scene: the root node plus the animation clips that
// accompanied it. A decoded graph is independently owned: it shares no
// memory with the document it came from.
type Graph struct {
	Root  *Node
	Clips []*Clip
}

// Walk visits nodes in pre-order.
func (n *Node) Walk(visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, child := range n.Children {
		child.Walk(visit)
	}
}

// Kinds returns the pre-order kind sequence, handy for comparing
// hierarchy shape across an encode/decode round trip.
func (n *Node) Kinds() []Kind {
	var kinds []Kind
	n.Walk(func(node *Node) { kinds = append(kinds, node.Kind) })
	return kinds
}
