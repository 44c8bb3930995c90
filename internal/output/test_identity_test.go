package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindExtensionRoundTrip(t *testing.T) {
	for _, kind := range []Kind{KindText, KindPlot, KindHtml, KindError} {
		ext := ExtensionFromKind(kind)
		require.NotEmpty(t, ext, "kind %s", kind)
		assert.Equal(t, kind, KindFromExtension(ext))
	}
	assert.Equal(t, "", ExtensionFromKind(KindNone))
}

func TestKindFromExtensionIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, KindPlot, KindFromExtension(".PNG"))
	assert.Equal(t, KindHtml, KindFromExtension(".Html"))
	assert.Equal(t, KindNone, KindFromExtension(".snapshot"))
	assert.Equal(t, KindNone, KindFromExtension(".txt"))
	assert.Equal(t, KindNone, KindFromExtension(""))
}

func TestFileNameRoundTrip(t *testing.T) {
	ordinals := []uint32{0, 1, 15, 16, 255, 4096, MaxOrdinal - 1}
	for o := uint32(0); o < MaxOrdinal; o += 40961 {
		ordinals = append(ordinals, o)
	}
	for _, o := range ordinals {
		id := Identity{Ordinal: o, Kind: KindText}
		name := id.FileName()
		require.Len(t, name, 6+len(".csv"), "ordinal %d", o)
		got, ok := ParseFileName(name)
		require.True(t, ok, "parse %s", name)
		assert.Equal(t, id, got)
	}
}

func TestFileNameSortsNumerically(t *testing.T) {
	a := Identity{Ordinal: 9, Kind: KindPlot}.FileName()
	b := Identity{Ordinal: 10, Kind: KindText}.FileName()
	c := Identity{Ordinal: 0x100, Kind: KindText}.FileName()
	assert.Less(t, a, b)
	assert.Less(t, b, c)
	assert.Equal(t, "000009.png", a)
	assert.Equal(t, "00000a.csv", b)
}

func TestParseOrdinalRejectsInvalidStems(t *testing.T) {
	for _, stem := range []string{"", "xyz", "-1", "ffffff", "1000000", "00 01"} {
		_, ok := ParseOrdinal(stem)
		assert.False(t, ok, "stem %q", stem)
	}
	v, ok := ParseOrdinal("00001f")
	require.True(t, ok)
	assert.Equal(t, uint32(31), v)
}

func TestValidSegment(t *testing.T) {
	assert.True(t, ValidSegment("chunk-1"))
	for _, s := range []string{"", ".", "..", "a/b", `a\b`} {
		assert.False(t, ValidSegment(s), "segment %q", s)
	}
}
