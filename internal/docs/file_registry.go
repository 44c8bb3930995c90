package docs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FileRegistry persists documents as a JSON array in a single file.
type FileRegistry struct {
	path string

	loadOnce sync.Once
	loadErr  error
	mu       sync.RWMutex
	byID     map[string]string
}

func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{path: strings.TrimSpace(path), byID: make(map[string]string)}
}

func (r *FileRegistry) ensureLoaded() error {
	r.loadOnce.Do(func() {
		b, err := os.ReadFile(r.path)
		if err != nil {
			if os.IsNotExist(err) {
				return
			}
			r.loadErr = err
			return
		}
		var rows []Document
		if err := json.Unmarshal(b, &rows); err != nil {
			r.loadErr = fmt.Errorf("parse %s: %w", r.path, err)
			return
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, row := range rows {
			row = normalizeDocument(row)
			if row.DocID == "" {
				continue
			}
			r.byID[row.DocID] = row.Path
		}
	})
	return r.loadErr
}

func (r *FileRegistry) Path(_ context.Context, docID string) (string, error) {
	if err := r.ensureLoaded(); err != nil {
		return "", err
	}
	r.mu.RLock()
	path, ok := r.byID[strings.TrimSpace(docID)]
	r.mu.RUnlock()
	if !ok || path == "" {
		return "", ErrNotFound
	}
	return path, nil
}

// Set records a document and rewrites the registry file.
func (r *FileRegistry) Set(_ context.Context, docID, path string) error {
	if err := r.ensureLoaded(); err != nil {
		return err
	}
	d := normalizeDocument(Document{DocID: docID, Path: path})
	if d.DocID == "" {
		return fmt.Errorf("doc_id is required")
	}
	r.mu.Lock()
	r.byID[d.DocID] = d.Path
	rows := make([]Document, 0, len(r.byID))
	for id, p := range r.byID {
		rows = append(rows, Document{DocID: id, Path: p})
	}
	r.mu.Unlock()
	sort.Slice(rows, func(i, j int) bool { return rows[i].DocID < rows[j].DocID })

	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}
