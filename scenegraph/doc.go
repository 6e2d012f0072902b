// Package scenegraph converts live scene-object trees to and from an
// acyclic document form that can cross the worker boundary as plain data.
//
// A live graph is a tree of Node values whose Geometry and Material
// pointers may be shared. Encode walks the tree, moves every shared
// value into a side table, and replaces pointers with table indices:
//
//	Node tree                Document
//	┌─────────┐              ┌──────────────────────┐
//	│  *Node  │   Encode     │ Root  *EncodedNode   │
//	│  ├─*Geo │ ───────────▶ │ Geometries []Geometry│
//	│  └─*Mat │              │ Materials  []Material│
//	└─────────┘   Decode     │ Clips      []Clip    │
//	     ▲       ◀─────────── └──────────────────────┘
//
// Encoding dedupes by pointer identity: two nodes pointing at the same
// Geometry produce one table entry and two equal indices. A tree that
// reaches back to an ancestor is rejected with a cyclic-graph error.
//
// Decode validates every index against its table before use and builds
// an entirely fresh Graph. Nothing in the result aliases the document,
// so the receiving side owns the graph outright.
package scenegraph
