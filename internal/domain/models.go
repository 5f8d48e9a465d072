package domain

import (
	"encoding/json"

	"github.com/quantmind-br/bomgate/internal/workspace"
)

// SourceTree is a directory holding a project's source for one request.
// Ephemeral trees carry the workspace directory they were created in.
type SourceTree struct {
	Path     string
	Strategy string
	Dir      *workspace.Dir
}

// NewLocalTree returns a non-ephemeral tree for an existing path
func NewLocalTree(path string) *SourceTree {
	return &SourceTree{Path: path, Strategy: "local"}
}

// NewEphemeralTree returns a tree backed by a workspace directory
func NewEphemeralTree(dir *workspace.Dir, strategy string) *SourceTree {
	return &SourceTree{Path: dir.Path(), Strategy: strategy, Dir: dir}
}

// Ephemeral reports whether the tree must be deleted when the request ends
func (t *SourceTree) Ephemeral() bool {
	return t != nil && t.Dir != nil
}

// BomResult is a generated bill of materials. Raw holds the document as
// produced by the generator; Document holds a structured form when no raw
// bytes exist.
type BomResult struct {
	Raw      []byte
	Document any
}

// Empty reports whether the result holds no document
func (b *BomResult) Empty() bool {
	return b == nil || (len(b.Raw) == 0 && b.Document == nil)
}

// Bytes returns the raw document verbatim, or the structured document
// serialized with two-space indentation.
func (b *BomResult) Bytes() ([]byte, error) {
	if b.Empty() {
		return nil, nil
	}
	if len(b.Raw) > 0 {
		return b.Raw, nil
	}
	return json.MarshalIndent(b.Document, "", "  ")
}
