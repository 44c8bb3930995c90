package output

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// Store reads and writes the output files of execution units.
type Store struct {
	resolver *Resolver
	tracker  *Tracker
	logger   *zap.Logger
}

// NewStore wires a store to the resolver and tracker owned by the host.
func NewStore(resolver *Resolver, tracker *Tracker, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{resolver: resolver, tracker: tracker, logger: logger}
}

// NewTrackerFor builds a tracker scanning the resolver's exact-context directories.
func NewTrackerFor(resolver *Resolver, logger *zap.Logger) *Tracker {
	return NewTracker(func(key UnitKey) string {
		return resolver.UnitDirectory(context.Background(), key, FallbackNone).Dir
	}, logger)
}

func (s *Store) Resolver() *Resolver { return s.resolver }

func (s *Store) Tracker() *Tracker { return s.tracker }

// OutputFilePath names the file for an identity in the unit's exact-context directory.
func (s *Store) OutputFilePath(ctx context.Context, key UnitKey, id Identity) string {
	dir := s.resolver.UnitDirectory(ctx, key, FallbackNone).Dir
	return filepath.Join(dir, id.FileName())
}

// AllocateOutputFile returns the file a new output of the given kind must be written to.
// The unit directory is created if needed.
func (s *Store) AllocateOutputFile(ctx context.Context, key UnitKey, kind Kind) (string, error) {
	id := s.tracker.Next(key, kind)
	path := s.OutputFilePath(ctx, key, id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	return path, nil
}

// WriteOutput allocates a file for a plot, HTML or error output and writes content to it.
func (s *Store) WriteOutput(ctx context.Context, key UnitKey, kind Kind, content []byte) (string, error) {
	if kind == KindNone {
		return "", ErrUnknownKind
	}
	path, err := s.AllocateOutputFile(ctx, key, kind)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write output %s: %w", filepath.Base(path), err)
	}
	return path, nil
}

// AppendConsoleRecord appends one console event to target, creating it if absent.
func (s *Store) AppendConsoleRecord(kind int, text string, target string) error {
	line, err := EncodeConsoleRecord(kind, text)
	if err != nil {
		return fmt.Errorf("encode console record: %w", err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open console output: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append console output: %w", err)
	}
	return f.Close()
}

// AppendConsole appends a console event to the unit's current text output, starting a
// new text file when the unit's last output was of another kind.
func (s *Store) AppendConsole(ctx context.Context, key UnitKey, kind int, text string) (string, error) {
	path, err := s.AllocateOutputFile(ctx, key, KindText)
	if err != nil {
		return "", err
	}
	if err := s.AppendConsoleRecord(kind, text, path); err != nil {
		return "", err
	}
	return path, nil
}

// Clear removes the unit's exact-context outputs. With preserveDirectory the directory
// is recreated empty, which records that output was explicitly cleared.
func (s *Store) Clear(ctx context.Context, key UnitKey, preserveDirectory bool) error {
	loc := s.resolver.UnitDirectory(ctx, key, FallbackNone)
	if !loc.Exists() {
		return nil
	}
	s.tracker.ResetIfExhausted(key)

	if err := os.RemoveAll(loc.Dir); err != nil {
		return fmt.Errorf("remove output directory: %w", err)
	}
	if preserveDirectory {
		if err := os.MkdirAll(loc.Dir, 0o755); err != nil {
			return fmt.Errorf("recreate output directory: %w", err)
		}
	}
	s.logger.Debug("outputs cleared",
		zap.String("doc_id", key.DocumentID),
		zap.String("unit_id", key.UnitID),
		zap.Bool("preserve", preserveDirectory))
	return nil
}

// ListOutputs returns the known-kind files of a resolved unit directory, sorted by name.
func (s *Store) ListOutputs(ctx context.Context, key UnitKey, fallback Fallback) (Location, []string, error) {
	loc := s.resolver.UnitDirectory(ctx, key, fallback)
	names, err := listOutputFiles(loc.Dir)
	return loc, names, err
}

func listOutputFiles(dir string) ([]string, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		if item.IsDir() || KindOf(item.Name()) == KindNone {
			continue
		}
		names = append(names, item.Name())
	}
	sort.Strings(names)
	return names, nil
}
