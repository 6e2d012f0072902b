package scenegraph

import (
	"github.com/offstagehq/offstage/errors"
)

// Decode rebuilds a live graph from a document. Every side-table index
// is validated before use; an index outside its table fails the whole
// decode. The returned graph is freshly allocated: mutating it never
// touches the document, and nodes that referenced the same table entry
// share one rebuilt pointer.
func Decode(doc *Document) (*Graph, error) {
	if doc == nil || doc.Root == nil {
		return nil, errors.InvalidData(errors.PhaseDecode, "document has no root node")
	}

	dec := &decoder{
		doc:        doc,
		geometries: make([]*Geometry, len(doc.Geometries)),
		materials:  make([]*Material, len(doc.Materials)),
	}

	root, err := dec.node(doc.Root, []string{"root"})
	if err != nil {
		return nil, err
	}

	graph := &Graph{Root: root}
	for _, clip := range doc.Clips {
		c := clip
		c.Tracks = make([]Track, len(clip.Tracks))
		for i, track := range clip.Tracks {
			track.Times = append([]float32(nil), track.Times...)
			track.Values = append([]float32(nil), track.Values...)
			c.Tracks[i] = track
		}
		graph.Clips = append(graph.Clips, &c)
	}
	return graph, nil
}

type decoder struct {
	doc        *Document
	geometries []*Geometry
	materials  []*Material
}

func (d *decoder) node(in *EncodedNode, path []string) (*Node, error) {
	out := &Node{
		Kind:      in.Kind,
		Name:      in.Name,
		Transform: in.Transform,
	}

	if in.Geometry >= 0 {
		g, err := d.geometry(in.Geometry, path)
		if err != nil {
			return nil, err
		}
		out.Geometry = g
	}
	if in.Material >= 0 {
		m, err := d.material(in.Material, path)
		if err != nil {
			return nil, err
		}
		out.Material = m
	}

	for i, child := range in.Children {
		if child == nil {
			continue
		}
		decoded, err := d.node(child, append(path, childLabel(i)))
		if err != nil {
			return nil, err
		}
		out.Children = append(out.Children, decoded)
	}
	return out, nil
}

// geometry resolves a geometry index, rebuilding the entry on first use
// so that later references to the same index share the pointer.
func (d *decoder) geometry(idx int, path []string) (*Geometry, error) {
	if idx >= len(d.doc.Geometries) {
		return nil, errors.DanglingRef(path, "geometry", idx, len(d.doc.Geometries))
	}
	if d.geometries[idx] == nil {
		g := d.doc.Geometries[idx]
		g.Positions = append([]float32(nil), g.Positions...)
		g.Normals = append([]float32(nil), g.Normals...)
		g.UVs = append([]float32(nil), g.UVs...)
		g.Indices = append([]uint32(nil), g.Indices...)
		d.geometries[idx] = &g
	}
	return d.geometries[idx], nil
}

func (d *decoder) material(idx int, path []string) (*Material, error) {
	if idx >= len(d.doc.Materials) {
		return nil, errors.DanglingRef(path, "material", idx, len(d.doc.Materials))
	}
	if d.materials[idx] == nil {
		m := d.doc.Materials[idx]
		d.materials[idx] = &m
	}
	return d.materials[idx], nil
}
