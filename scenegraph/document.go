package scenegraph

import (
	"github.com/offstagehq/offstage/errors"
	"github.com/offstagehq/offstage/json"
)

// EncodedNode is the boundary-safe form of one node. Shared data is
// referenced by side-table index; -1 means none. Children keep their
// original order.
type EncodedNode struct {
	Kind      Kind           `json:"kind"`
	Name      string         `json:"name,omitempty"`
	Transform Transform      `json:"transform"`
	Geometry  int            `json:"geometry"`
	Material  int            `json:"material"`
	Children  []*EncodedNode `json:"children,omitempty"`
}

// Document is the complete acyclic encoding of a scene graph: the node
// tree plus side tables for everything shared. Decoding never needs a
// reference that is not in the document itself.
type Document struct {
	Root       *EncodedNode `json:"root"`
	Geometries []Geometry   `json:"geometries,omitempty"`
	Materials  []Material   `json:"materials,omitempty"`
	Clips      []Clip       `json:"clips,omitempty"`
}

// Marshal serializes the document for the transfer channel.
func (d *Document) Marshal() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, errors.Unserializable(errors.PhaseEncode, "scene document", err)
	}
	return data, nil
}

// UnmarshalDocument parses an encoded scene document.
func UnmarshalDocument(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "scene document")
	}
	return &d, nil
}
