package handler

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"nbcache/internal/output"
	"nbcache/internal/safeio"
	"nbcache/internal/widget"
)

// ContentHandler serves stored outputs under /chunk_output/<ctx-id>/<doc-id>/...
type ContentHandler struct {
	resolver   *output.Resolver
	serverMode bool
	logger     *zap.Logger
}

func NewContentHandler(resolver *output.Resolver, serverMode bool, logger *zap.Logger) *ContentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentHandler{resolver: resolver, serverMode: serverMode, logger: logger}
}

// contentRequest is a parsed content path.
type contentRequest struct {
	ctxID string
	docID string
	parts []string // path below the document's cache folder
}

func (c contentRequest) library() bool {
	return len(c.parts) > 0 && c.parts[0] == output.LibraryDir
}

// parseContentPath splits a decoded URL path; net/http has already removed the query.
func parseContentPath(urlPath string) (contentRequest, bool) {
	parts := strings.Split(urlPath, "/")
	if len(parts) < 5 {
		return contentRequest{}, false
	}
	req := contentRequest{
		ctxID: parts[2],
		docID: parts[3],
		parts: append([]string(nil), parts[4:]...),
	}
	// units share one library folder; redirect unit-scoped library requests to it
	if len(req.parts) > 2 && req.parts[1] == output.LibraryDir {
		req.parts = req.parts[1:]
	}
	return req, true
}

func (c contentRequest) valid() bool {
	if !output.ValidSegment(c.ctxID) || !output.ValidSegment(c.docID) {
		return false
	}
	for _, p := range c.parts {
		if !output.ValidSegment(p) {
			return false
		}
	}
	return true
}

func (h *ContentHandler) cacheFolder(ctx context.Context, req contentRequest) string {
	docPath := h.resolver.DocumentPath(ctx, req.docID)
	return h.resolver.Layout().CacheFolder(docPath, req.docID, req.ctxID)
}

func (h *ContentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	req, ok := parseContentPath(r.URL.Path)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	if !req.valid() {
		http.NotFound(w, r)
		return
	}

	f, info, err := safeio.OpenFile(h.cacheFolder(r.Context(), req), req.parts...)
	if err != nil {
		if errors.Is(err, safeio.ErrOutsideRoot) {
			h.logger.Warn("rejected output path", zap.String("path", r.URL.Path))
		}
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	target := f.Name()

	w.Header().Set("Content-Type", contentType(target))
	if req.library() || h.serverMode {
		lastMod := info.ModTime().UTC().Truncate(time.Second)
		w.Header().Set("Last-Modified", lastMod.Format(http.TimeFormat))
		w.Header().Set("Cache-Control", "private, must-revalidate")
		if notModified(r, lastMod) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	} else {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, widget.NewFilter(f, h.logger)); err != nil {
		h.logger.Warn("stream output failed", zap.String("path", target), zap.Error(err))
	}
}

func notModified(r *http.Request, lastMod time.Time) bool {
	ims := r.Header.Get("If-Modified-Since")
	if ims == "" {
		return false
	}
	t, err := http.ParseTime(ims)
	if err != nil {
		return false
	}
	return !lastMod.After(t)
}

func contentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return mt.String()
}
