// Package keys maps hierarchy paths to flat store keys and back.
//
// Each node owns a key scope: the node's metadata document lives at
// <path>/meta.json and an array's chunks live at <path>/c/<d0>/<d1>/...
// Because a node's scope prefix (<path>/) covers every descendant key,
// one delete-by-prefix call removes a subtree.
package keys

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jacentio/lattice/store"
)

// MetadataName is the final key segment holding a node's metadata
// document. It is reserved: no node may carry it as a name.
const MetadataName = "meta.json"

// chunkMarker separates an array path from its chunk coordinates. It is
// reserved as a node name so decoding stays unambiguous.
const chunkMarker = "c"

// Kind classifies a decoded store key.
type Kind int

const (
	// KindMetadata marks a node metadata key.
	KindMetadata Kind = iota
	// KindChunk marks an array chunk key.
	KindChunk
)

func (k Kind) String() string {
	if k == KindChunk {
		return "chunk"
	}
	return "metadata"
}

// Ref is the decoded form of a store key.
type Ref struct {
	// Path is the owning node's hierarchy path ("" for root).
	Path string

	// Kind is the key's namespace.
	Kind Kind

	// Coord holds the chunk coordinate for KindChunk keys; nil otherwise.
	// A rank-0 array's single chunk has an empty, non-nil coordinate.
	Coord []int
}

// ValidatePath checks a hierarchy path: `/`-delimited, no leading or
// trailing slash, no empty segment, and no reserved segment names.
// The empty path denotes the root and is always valid.
func ValidatePath(path string) error {
	if path == "" {
		return nil
	}
	if strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return fmt.Errorf("%w: %q has a leading or trailing slash", store.ErrInvalidPath, path)
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			return fmt.Errorf("%w: %q has an empty segment", store.ErrInvalidPath, path)
		}
		if seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q has a relative segment", store.ErrInvalidPath, path)
		}
		if seg == chunkMarker || seg == MetadataName {
			return fmt.Errorf("%w: %q uses reserved segment %q", store.ErrInvalidPath, path, seg)
		}
	}
	return nil
}

// Split returns a path's parent prefix and final name. The root splits
// into ("", "").
func Split(path string) (parent, name string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// Join appends name to a parent path.
func Join(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// Metadata returns the metadata key for the node at path.
func Metadata(path string) string {
	if path == "" {
		return MetadataName
	}
	return path + "/" + MetadataName
}

// Chunk returns the chunk key for the given coordinate of the array at
// path. A rank-0 array's coordinate is empty.
func Chunk(path string, coord []int) string {
	var b strings.Builder
	if path != "" {
		b.WriteString(path)
		b.WriteByte('/')
	}
	b.WriteString(chunkMarker)
	for _, c := range coord {
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(c))
	}
	return b.String()
}

// NodePrefix returns the key prefix scoping every key owned by the node
// at path and its descendants. The root scope is the whole key space.
func NodePrefix(path string) string {
	if path == "" {
		return ""
	}
	return path + "/"
}

// Decode maps a store key back to its owning node and kind. It is the
// exact inverse of Metadata and Chunk for valid paths.
func Decode(key string) (Ref, error) {
	segs := strings.Split(key, "/")
	last := segs[len(segs)-1]

	if last == MetadataName {
		path := strings.Join(segs[:len(segs)-1], "/")
		if err := ValidatePath(path); err != nil {
			return Ref{}, err
		}
		return Ref{Path: path, Kind: KindMetadata}, nil
	}

	// Chunk keys hold the reserved marker segment followed only by
	// non-negative decimal coordinates.
	for i, seg := range segs {
		if seg != chunkMarker {
			continue
		}
		coord := make([]int, 0, len(segs)-i-1)
		for _, c := range segs[i+1:] {
			n, err := strconv.Atoi(c)
			if err != nil || n < 0 || (len(c) > 1 && c[0] == '0') {
				return Ref{}, fmt.Errorf("%w: %q has malformed chunk coordinate %q", store.ErrInvalidPath, key, c)
			}
			coord = append(coord, n)
		}
		path := strings.Join(segs[:i], "/")
		if err := ValidatePath(path); err != nil {
			return Ref{}, err
		}
		return Ref{Path: path, Kind: KindChunk, Coord: coord}, nil
	}

	return Ref{}, fmt.Errorf("%w: %q is neither a metadata nor a chunk key", store.ErrInvalidPath, key)
}
