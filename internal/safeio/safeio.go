// Package safeio opens files below a fixed directory without following paths or
// symlinks out of it.
package safeio

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	ErrOutsideRoot = errors.New("safeio: path resolves outside root")
	ErrIsDir       = errors.New("safeio: path is a directory")
)

// Resolve joins parts below root and returns the symlink-free result. Neither the
// joined path nor any symlink along it may leave root.
func Resolve(root string, parts ...string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", errors.New("safeio: empty root")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", err
	}
	joined := filepath.Join(append([]string{absRoot}, parts...)...)
	if !hasPathPrefix(joined, absRoot) {
		return "", ErrOutsideRoot
	}
	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return "", err
	}
	if !hasPathPrefix(resolved, absRoot) {
		return "", ErrOutsideRoot
	}
	return resolved, nil
}

// OpenFile opens a regular file below root for reading.
func OpenFile(root string, parts ...string) (*os.File, fs.FileInfo, error) {
	p, err := Resolve(root, parts...)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, nil, ErrIsDir
	}
	return f, info, nil
}

func hasPathPrefix(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		root = strings.ToLower(root)
	}
	if path == root {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(path, root)
}
