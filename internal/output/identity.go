package output

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// MaxOrdinal bounds the ordinal space; six hex digits keep lexical and numeric order equal.
const MaxOrdinal = 0xFFFFFF

// Kind is the type of a stored output, derived from its file extension.
type Kind int

const (
	KindNone  Kind = 0
	KindText  Kind = 1
	KindPlot  Kind = 2
	KindHtml  Kind = 3
	KindError Kind = 4
)

// DisplayListExt marks the vector replay data stored next to a plot.
const DisplayListExt = ".snapshot"

var kindExtensions = map[Kind]string{
	KindText:  ".csv",
	KindPlot:  ".png",
	KindHtml:  ".html",
	KindError: ".error",
}

var extensionKinds = func() map[string]Kind {
	out := make(map[string]Kind, len(kindExtensions))
	for kind, ext := range kindExtensions {
		out[ext] = kind
	}
	return out
}()

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPlot:
		return "plot"
	case KindHtml:
		return "html"
	case KindError:
		return "error"
	default:
		return "none"
	}
}

// KindFromExtension maps ".csv", ".png", ".html" and ".error" (any case) to their kinds.
func KindFromExtension(ext string) Kind {
	return extensionKinds[strings.ToLower(ext)]
}

// ExtensionFromKind is the inverse of KindFromExtension; KindNone maps to "".
func ExtensionFromKind(kind Kind) string {
	return kindExtensions[kind]
}

// KindOf classifies a file path by its extension.
func KindOf(path string) Kind {
	return KindFromExtension(filepath.Ext(path))
}

// Identity names one output of an execution unit.
type Identity struct {
	Ordinal uint32
	Kind    Kind
}

// FileName renders the identity as "<ordinal:06x><ext>".
func (id Identity) FileName() string {
	return fmt.Sprintf("%06x%s", id.Ordinal%MaxOrdinal, ExtensionFromKind(id.Kind))
}

// ParseOrdinal parses a base-16 file stem. Stems outside [0, MaxOrdinal) are rejected.
func ParseOrdinal(stem string) (uint32, bool) {
	if stem == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(stem, 16, 32)
	if err != nil || v >= MaxOrdinal {
		return 0, false
	}
	return uint32(v), true
}

// ParseFileName splits an output file name into its identity.
func ParseFileName(name string) (Identity, bool) {
	ext := filepath.Ext(name)
	ordinal, ok := ParseOrdinal(strings.TrimSuffix(name, ext))
	if !ok {
		return Identity{}, false
	}
	return Identity{Ordinal: ordinal, Kind: KindFromExtension(ext)}, true
}

// UnitKey identifies one executable region within a document.
type UnitKey struct {
	DocumentID string
	UnitID     string
}

func (k UnitKey) String() string {
	return k.DocumentID + "/" + k.UnitID
}
