package output

import (
	"path/filepath"
	"strings"
)

// SavedContextID is the reserved context holding the last persisted outputs.
const SavedContextID = "saved"

// LibraryDir is the folder shared by all units of a document for HTML dependencies.
const LibraryDir = "lib"

// Layout computes the base cache folder for a document in a context.
type Layout interface {
	CacheFolder(docPath, docID, ctxID string) string
}

// DirLayout places every context under a single root: <root>/<ctxID>/<docID>.
// docPath is accepted for layouts that key on the document location and is unused here.
type DirLayout struct {
	Root string
}

func NewDirLayout(root string) DirLayout {
	return DirLayout{Root: strings.TrimSpace(root)}
}

func (l DirLayout) CacheFolder(_ string, docID, ctxID string) string {
	return filepath.Join(l.Root, strings.TrimSpace(ctxID), strings.TrimSpace(docID))
}

// ValidSegment reports whether s is safe to use as a single path component.
func ValidSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`) && !strings.Contains(s, "\x00")
}
