package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// RoutePrefix is the URL path under which plot and HTML outputs are served.
const RoutePrefix = "chunk_output"

// Output is the client-facing form of one stored output.
type Output struct {
	Type  Kind `json:"output_type"`
	Value any  `json:"output_val"`
}

// Serializer turns output files into client values.
type Serializer struct {
	resolver *Resolver
	logger   *zap.Logger
}

func NewSerializer(resolver *Resolver, logger *zap.Logger) *Serializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Serializer{resolver: resolver, logger: logger}
}

// OutputURL is the reference a viewer dereferences to fetch a plot or HTML output.
func OutputURL(ctxID, docID, unitID, fileName string) string {
	return strings.Join([]string{RoutePrefix, ctxID, docID, unitID, fileName}, "/")
}

// SerializeOutput converts one output file according to its extension.
func (s *Serializer) SerializeOutput(docID, unitID, ctxID, file string) (Output, error) {
	kind := KindOf(file)
	out := Output{Type: kind}
	switch kind {
	case KindError:
		raw, err := os.ReadFile(file)
		if err != nil {
			return Output{}, fmt.Errorf("read error output: %w", err)
		}
		raw = bytes.TrimSpace(raw)
		if !json.Valid(raw) {
			return Output{}, fmt.Errorf("%w: error output %s is not valid json", ErrDecode, filepath.Base(file))
		}
		out.Value = json.RawMessage(raw)
	case KindText:
		f, err := os.Open(file)
		if err != nil {
			return Output{}, fmt.Errorf("read console output: %w", err)
		}
		defer f.Close()
		records, err := ParseConsoleRecords(f)
		if err != nil {
			return Output{}, err
		}
		events := make([][]any, 0, len(records))
		for _, rec := range records {
			if rec.Kind == ConsoleInput {
				continue
			}
			events = append(events, []any{rec.Kind, rec.Text})
		}
		out.Value = events
	case KindPlot, KindHtml:
		name := filepath.Base(file)
		url := OutputURL(ctxID, docID, unitID, name)
		if kind == KindPlot {
			stem := strings.TrimSuffix(name, filepath.Ext(name))
			if _, err := os.Stat(filepath.Join(filepath.Dir(file), stem+DisplayListExt)); err != nil {
				url += "?fixed_size=1"
			}
		}
		out.Value = url
	default:
		return Output{}, fmt.Errorf("%w: %s", ErrUnknownKind, filepath.Base(file))
	}
	return out, nil
}

// SerializeDirectory lists a unit's outputs in ordinal order, falling back to the saved
// context. Files that fail to serialize are logged and left out.
func (s *Serializer) SerializeDirectory(docPath, docID, unitID, ctxID string) (Location, []Output) {
	loc := s.resolver.ResolveOutputDirectory(docPath, docID, unitID, ctxID, FallbackToSaved)
	names, err := listOutputFiles(loc.Dir)
	if err != nil {
		s.logger.Warn("list outputs failed", zap.String("dir", loc.Dir), zap.Error(err))
		return loc, []Output{}
	}
	outputs := make([]Output, 0, len(names))
	for _, name := range names {
		out, err := s.SerializeOutput(docID, unitID, loc.ContextID, filepath.Join(loc.Dir, name))
		if err != nil {
			s.logger.Warn("serialize output failed",
				zap.String("doc_id", docID),
				zap.String("unit_id", unitID),
				zap.String("file", name),
				zap.Error(err))
			continue
		}
		outputs = append(outputs, out)
	}
	return loc, outputs
}

// SerializeUnit lists a unit's outputs in the live context.
func (s *Serializer) SerializeUnit(ctx context.Context, key UnitKey) (Location, []Output) {
	docPath := s.resolver.DocumentPath(ctx, key.DocumentID)
	return s.SerializeDirectory(docPath, key.DocumentID, key.UnitID, s.resolver.ContextID())
}
