// Package docs maps document IDs to the on-disk paths of their source files.
package docs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

var ErrNotFound = errors.New("document not found")

// Registry resolves a document ID to its path. Unsaved documents are ErrNotFound.
type Registry interface {
	Path(ctx context.Context, docID string) (string, error)
}

// Writer is a Registry that can record documents.
type Writer interface {
	Registry
	Set(ctx context.Context, docID, path string) error
}

// Document is a registry row.
type Document struct {
	DocID string `json:"doc_id"`
	Path  string `json:"path"`
}

func normalizeDocument(d Document) Document {
	return Document{DocID: strings.TrimSpace(d.DocID), Path: strings.TrimSpace(d.Path)}
}

// MemoryRegistry keeps documents in process memory.
type MemoryRegistry struct {
	mu   sync.RWMutex
	byID map[string]string
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{byID: make(map[string]string)}
}

func (r *MemoryRegistry) Set(_ context.Context, docID, path string) error {
	d := normalizeDocument(Document{DocID: docID, Path: path})
	if d.DocID == "" {
		return fmt.Errorf("doc_id is required")
	}
	r.mu.Lock()
	r.byID[d.DocID] = d.Path
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) Path(_ context.Context, docID string) (string, error) {
	r.mu.RLock()
	path, ok := r.byID[strings.TrimSpace(docID)]
	r.mu.RUnlock()
	if !ok || path == "" {
		return "", ErrNotFound
	}
	return path, nil
}

// CachedRegistry fronts a slower registry with a fixed-size LRU. Misses are not cached
// so a document saved later becomes visible on the next lookup.
type CachedRegistry struct {
	origin Registry
	cache  *lru.Cache[string, string]
}

func NewCachedRegistry(origin Registry, size int) (*CachedRegistry, error) {
	if origin == nil {
		return nil, fmt.Errorf("origin registry is nil")
	}
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &CachedRegistry{origin: origin, cache: cache}, nil
}

func (r *CachedRegistry) Path(ctx context.Context, docID string) (string, error) {
	docID = strings.TrimSpace(docID)
	if path, ok := r.cache.Get(docID); ok {
		return path, nil
	}
	path, err := r.origin.Path(ctx, docID)
	if err != nil {
		return "", err
	}
	r.cache.Add(docID, path)
	return path, nil
}

// Set records the document in the origin when it supports writes.
func (r *CachedRegistry) Set(ctx context.Context, docID, path string) error {
	w, ok := r.origin.(Writer)
	if !ok {
		return fmt.Errorf("origin registry is read-only")
	}
	if err := w.Set(ctx, docID, path); err != nil {
		return err
	}
	r.Invalidate(docID)
	return nil
}

// Invalidate drops a cached entry, e.g. after a document was renamed.
func (r *CachedRegistry) Invalidate(docID string) {
	r.cache.Remove(strings.TrimSpace(docID))
}
