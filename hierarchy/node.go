package hierarchy

import (
	"encoding/json"
	"fmt"

	"github.com/jacentio/lattice/store"
)

// latticeFormat is the metadata document format version.
const latticeFormat = 1

// NodeKind tags a node's metadata document as a group or an array.
type NodeKind string

const (
	// KindGroup marks a group node.
	KindGroup NodeKind = "group"
	// KindArray marks an array node.
	KindArray NodeKind = "array"
)

// Node is a materialized hierarchy node: a *Group or an *Array. The kind
// is decoded once from the metadata tag at open time; callers switch on
// the concrete type.
type Node interface {
	// NodePath returns the node's hierarchy path ("" for root).
	NodePath() string

	// Kind returns the node's metadata tag.
	Kind() NodeKind
}

// Group is a hierarchy node holding zero or more children.
type Group struct {
	// Path is the group's hierarchy path ("" for root).
	Path string

	// ID is the identifier stamped at create time.
	ID string

	// Attributes holds arbitrary user metadata.
	Attributes map[string]any
}

// NodePath returns the group's path.
func (g *Group) NodePath() string { return g.Path }

// Kind returns KindGroup.
func (g *Group) Kind() NodeKind { return KindGroup }

// ArraySpec declares an array's shape and storage layout.
type ArraySpec struct {
	// Shape is the array's extent per dimension. Dimensions may be zero.
	Shape []int

	// ChunkShape is the chunk extent per dimension; same rank as Shape,
	// every dimension positive.
	ChunkShape []int

	// DataType names the element type (e.g. "int64", "float32").
	DataType string

	// FillValue is the JSON-encoded value implied for unwritten chunks.
	FillValue json.RawMessage
}

// Validate checks the spec's internal consistency.
func (s ArraySpec) Validate() error {
	if len(s.Shape) != len(s.ChunkShape) {
		return fmt.Errorf("%w: shape rank %d != chunk rank %d",
			store.ErrInvalidPath, len(s.Shape), len(s.ChunkShape))
	}
	for i, dim := range s.Shape {
		if dim < 0 {
			return fmt.Errorf("%w: shape dimension %d is negative", store.ErrInvalidPath, i)
		}
	}
	for i, dim := range s.ChunkShape {
		if dim <= 0 {
			return fmt.Errorf("%w: chunk dimension %d is not positive", store.ErrInvalidPath, i)
		}
	}
	if s.DataType == "" {
		return fmt.Errorf("%w: data type is required", store.ErrInvalidPath)
	}
	return nil
}

// GridShape returns the number of chunks per dimension.
func (s ArraySpec) GridShape() []int {
	grid := make([]int, len(s.Shape))
	for i := range s.Shape {
		grid[i] = (s.Shape[i] + s.ChunkShape[i] - 1) / s.ChunkShape[i]
	}
	return grid
}

// Array is a leaf hierarchy node holding chunked n-dimensional data.
// Chunk keys exist only for written chunks; absent chunks read as the
// fill value at the compute layer.
type Array struct {
	// Path is the array's hierarchy path.
	Path string

	// ID is the identifier stamped at create time.
	ID string

	// Spec is the array's shape and layout.
	Spec ArraySpec

	// Attributes holds arbitrary user metadata.
	Attributes map[string]any
}

// NodePath returns the array's path.
func (a *Array) NodePath() string { return a.Path }

// Kind returns KindArray.
func (a *Array) Kind() NodeKind { return KindArray }

// metadataDoc is the on-store JSON form of a node's metadata key.
type metadataDoc struct {
	Format     int             `json:"lattice_format"`
	NodeType   NodeKind        `json:"node_type"`
	ID         string          `json:"id"`
	Attributes map[string]any  `json:"attributes,omitempty"`
	Shape      []int           `json:"shape,omitempty"`
	ChunkShape []int           `json:"chunk_shape,omitempty"`
	DataType   string          `json:"data_type,omitempty"`
	FillValue  json.RawMessage `json:"fill_value,omitempty"`
}

// encodeNode serializes a node's metadata document.
func encodeNode(n Node) ([]byte, error) {
	var doc metadataDoc
	switch node := n.(type) {
	case *Group:
		doc = metadataDoc{
			Format:     latticeFormat,
			NodeType:   KindGroup,
			ID:         node.ID,
			Attributes: node.Attributes,
		}
	case *Array:
		doc = metadataDoc{
			Format:     latticeFormat,
			NodeType:   KindArray,
			ID:         node.ID,
			Attributes: node.Attributes,
			Shape:      node.Spec.Shape,
			ChunkShape: node.Spec.ChunkShape,
			DataType:   node.Spec.DataType,
			FillValue:  node.Spec.FillValue,
		}
	default:
		return nil, fmt.Errorf("lattice: unknown node type %T", n)
	}
	return json.Marshal(doc)
}

// decodeNode deserializes a metadata document for the node at path,
// classifying it by the node_type tag.
func decodeNode(path string, raw []byte) (Node, error) {
	var doc metadataDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("lattice: corrupt metadata at %q: %w", path, err)
	}
	switch doc.NodeType {
	case KindGroup:
		return &Group{Path: path, ID: doc.ID, Attributes: doc.Attributes}, nil
	case KindArray:
		spec := ArraySpec{
			Shape:      doc.Shape,
			ChunkShape: doc.ChunkShape,
			DataType:   doc.DataType,
			FillValue:  doc.FillValue,
		}
		// The engine only writes validated specs, but archive and
		// directory backends read externally-produced key sets whose
		// metadata may carry dimensions the chunk grid cannot handle.
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("lattice: corrupt metadata at %q: %w", path, err)
		}
		return &Array{Path: path, ID: doc.ID, Spec: spec, Attributes: doc.Attributes}, nil
	default:
		return nil, fmt.Errorf("lattice: unknown node_type %q at %q", doc.NodeType, path)
	}
}
