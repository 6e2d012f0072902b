package scenegraph

import (
	"strconv"

	"github.com/offstagehq/offstage/errors"
)

// Encode converts a live node tree (plus any accompanying clips) into a
// Document that can cross the context boundary. Shared geometry and
// material referenced from several nodes are stored once and referenced
// by index. A tree that references an ancestor is rejected: the encoding
// is strictly acyclic.
func Encode(root *Node, clips ...*Clip) (*Document, error) {
	if root == nil {
		return nil, errors.InvalidData(errors.PhaseEncode, "nil root node")
	}

	enc := &encoder{
		geomIndex: make(map[*Geometry]int),
		matIndex:  make(map[*Material]int),
		onPath:    make(map[*Node]bool),
	}

	encodedRoot, err := enc.node(root, []string{"root"})
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Root:       encodedRoot,
		Geometries: enc.geometries,
		Materials:  enc.materials,
	}
	for _, clip := range clips {
		if clip != nil {
			doc.Clips = append(doc.Clips, *clip)
		}
	}
	return doc, nil
}

type encoder struct {
	geomIndex  map[*Geometry]int
	matIndex   map[*Material]int
	geometries []Geometry
	materials  []Material
	onPath     map[*Node]bool
}

func (e *encoder) node(n *Node, path []string) (*EncodedNode, error) {
	if e.onPath[n] {
		return nil, errors.CyclicGraph(path)
	}
	e.onPath[n] = true
	defer delete(e.onPath, n)

	out := &EncodedNode{
		Kind:      n.Kind,
		Name:      n.Name,
		Transform: n.Transform,
		Geometry:  e.geometry(n.Geometry),
		Material:  e.material(n.Material),
	}

	for i, child := range n.Children {
		if child == nil {
			continue
		}
		encoded, err := e.node(child, append(path, childLabel(i)))
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, encoded)
	}
	return out, nil
}

func (e *encoder) geometry(g *Geometry) int {
	if g == nil {
		return -1
	}
	if idx, ok := e.geomIndex[g]; ok {
		return idx
	}
	idx := len(e.geometries)
	e.geomIndex[g] = idx
	e.geometries = append(e.geometries, *g)
	return idx
}

func (e *encoder) material(m *Material) int {
	if m == nil {
		return -1
	}
	if idx, ok := e.matIndex[m]; ok {
		return idx
	}
	idx := len(e.materials)
	e.matIndex[m] = idx
	e.materials = append(e.materials, *m)
	return idx
}

func childLabel(i int) string {
	return "children[" + strconv.Itoa(i) + "]"
}
