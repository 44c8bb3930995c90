package output

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Fallback controls whether a lookup in the exact context may degrade to the saved one.
type Fallback int

const (
	FallbackNone Fallback = iota
	FallbackToSaved
)

// DocumentPaths maps a document ID to its on-disk path. Unsaved documents have none.
type DocumentPaths interface {
	Path(ctx context.Context, docID string) (string, error)
}

// Location is a resolved output directory and the context it belongs to.
type Location struct {
	Dir       string
	ContextID string
}

// Exists reports whether the directory is present on disk.
func (l Location) Exists() bool {
	info, err := os.Stat(l.Dir)
	return err == nil && info.IsDir()
}

// Resolver names output directories for (document, unit, context) triples.
type Resolver struct {
	layout    Layout
	docs      DocumentPaths
	contextID func() string
	logger    *zap.Logger
}

// NewResolver builds a resolver. docs may be nil, in which case documents have no path.
func NewResolver(layout Layout, docs DocumentPaths, contextID func() string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if contextID == nil {
		contextID = func() string { return SavedContextID }
	}
	return &Resolver{layout: layout, docs: docs, contextID: contextID, logger: logger}
}

// Layout returns the cache folder layout.
func (r *Resolver) Layout() Layout {
	return r.layout
}

// ContextID returns the live execution context.
func (r *Resolver) ContextID() string {
	return r.contextID()
}

// DocumentPath looks up the document's path. Lookup failures yield "".
func (r *Resolver) DocumentPath(ctx context.Context, docID string) string {
	if r.docs == nil {
		return ""
	}
	path, err := r.docs.Path(ctx, docID)
	if err != nil {
		r.logger.Debug("document path unavailable", zap.String("doc_id", docID), zap.Error(err))
		return ""
	}
	return path
}

// ResolveOutputDirectory returns the exact directory when it exists. Otherwise, with
// FallbackToSaved, it returns the saved-context directory whether or not it exists.
func (r *Resolver) ResolveOutputDirectory(docPath, docID, unitID, ctxID string, fallback Fallback) Location {
	exact := Location{
		Dir:       filepath.Join(r.layout.CacheFolder(docPath, docID, ctxID), unitID),
		ContextID: ctxID,
	}
	if exact.Exists() || fallback != FallbackToSaved {
		return exact
	}
	return Location{
		Dir:       filepath.Join(r.layout.CacheFolder(docPath, docID, SavedContextID), unitID),
		ContextID: SavedContextID,
	}
}

// UnitDirectory resolves a unit in the live context.
func (r *Resolver) UnitDirectory(ctx context.Context, key UnitKey, fallback Fallback) Location {
	docPath := r.DocumentPath(ctx, key.DocumentID)
	return r.ResolveOutputDirectory(docPath, key.DocumentID, key.UnitID, r.ContextID(), fallback)
}
