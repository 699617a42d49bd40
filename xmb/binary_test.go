package xmb

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// itemsDocument is a root with two item children that differ only by
// attribute value.
func itemsDocument() *Document {
	b := NewBuilder()
	root := b.Element("items", "")
	root.Line = 2
	for i, id := range []string{"1", "2"} {
		item := b.Append(root, b.Element("item", ""))
		item.Line = int32(3 + i)
		b.Attr(item, "id", id)
	}
	return b.Build(root)
}

func nestedDocument() *Document {
	b := NewBuilder()
	root := b.Element("protounit", "")
	b.Attr(root, "name", "Villager")
	b.Attr(root, "id", "42")
	hp := b.Append(root, b.Element("maxhitpoints", "25.0000"))
	hp.Line = 3
	flags := b.Append(root, b.Element("flags", "\r\n\t\t"))
	for _, f := range []string{"CollidesWithProjectiles", "Tracked", "DontRotateObstruction"} {
		b.Append(flags, b.Element("flag", f))
	}
	tactics := b.Append(root, b.Element("tactics", "villager.tactics"))
	b.Attr(tactics, "mode", "é & <ü>")
	return b.Build(root)
}

func TestItemsInterning(t *testing.T) {
	t.Parallel()

	doc := itemsDocument()
	assert.Equal(t, []string{"items", "item"}, doc.ElementNames)
	assert.Equal(t, []string{"id"}, doc.AttributeNames)
	assert.Equal(t, int32(1), doc.Root.Children[0].NameID)
	assert.Equal(t, int32(1), doc.Root.Children[1].NameID)
	assert.Equal(t, 3, doc.ElementCount())

	xml, err := doc.XML()
	require.NoError(t, err)
	assert.Equal(t, Declaration+"\r\n<items>\r\n\t<item id=\"1\"/>\r\n\t<item id=\"2\"/>\r\n</items>", xml)
}

func TestBinaryRoundTrip(t *testing.T) {
	t.Parallel()

	for name, doc := range map[string]*Document{
		"items":  itemsDocument(),
		"nested": nestedDocument(),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			data, err := doc.MarshalBinary()
			require.NoError(t, err)

			got, err := Unmarshal(data, WithStrictLengths())
			require.NoError(t, err)
			assert.Equal(t, doc, got)

			again, err := got.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, data, again)
		})
	}
}

func TestBinaryLayout(t *testing.T) {
	t.Parallel()

	data, err := itemsDocument().MarshalBinary()
	require.NoError(t, err)

	assert.Equal(t, "X1", string(data[0:2]))
	assert.Equal(t, uint32(len(data)-6), binary.LittleEndian.Uint32(data[2:6]))
	assert.Equal(t, "XR", string(data[6:8]))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(data[8:12]))
	assert.Equal(t, uint32(8), binary.LittleEndian.Uint32(data[12:16]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[16:20]), "element name count")
	// "items" as five UTF-16 code units
	assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(data[20:24]))
	assert.Equal(t, []byte{'i', 0, 't', 0, 'e', 0, 'm', 0, 's', 0}, data[24:34])
	assert.True(t, IsXMB(data))
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()

	valid, err := itemsDocument().MarshalBinary()
	require.NoError(t, err)

	patch := func(off int, b ...byte) []byte {
		out := append([]byte(nil), valid...)
		copy(out[off:], b)
		return out
	}

	tests := []struct {
		name     string
		data     []byte
		headerOK bool
	}{
		{name: "document tag", data: patch(0, 'X', '2')},
		{name: "root tag", data: patch(6, 'X', 'X')},
		{name: "format version", data: patch(8, 5)},
		{name: "older game id", data: patch(12, 7)},
		{name: "negative name count", data: patch(16, 0xFF, 0xFF, 0xFF, 0xFF), headerOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Unmarshal(tt.data)
			require.ErrorIs(t, err, ErrInvalidDocument)
			assert.Equal(t, tt.headerOK, IsXMB(tt.data))
		})
	}
}

func TestDecodeBadNameIndex(t *testing.T) {
	t.Parallel()

	doc := itemsDocument()
	doc.Root.Children[1].NameID = 9
	_, err := doc.MarshalBinary()
	require.ErrorIs(t, err, ErrInvalidDocument)

	doc = itemsDocument()
	data, err := doc.MarshalBinary()
	require.NoError(t, err)
	// the root node follows the two name tables; its name index sits after
	// the node tag, length and empty text
	rootOff := 16 + 4 + (4 + 10) + (4 + 8) + 4 + (4 + 4)
	require.Equal(t, "XN", string(data[rootOff:rootOff+2]))
	binary.LittleEndian.PutUint32(data[rootOff+10:], 5)
	_, err = Unmarshal(data)
	require.ErrorIs(t, err, ErrInvalidDocument)
}

func TestDecodeTruncated(t *testing.T) {
	t.Parallel()

	data, err := nestedDocument().MarshalBinary()
	require.NoError(t, err)
	for n := 0; n < len(data); n++ {
		_, err := Unmarshal(data[:n])
		require.Error(t, err, "prefix of %d bytes", n)
	}
	_, err = Unmarshal(data[:len(data)-1])
	require.ErrorIs(t, err, ErrTruncated)
}

func TestStrictLengths(t *testing.T) {
	t.Parallel()

	data, err := itemsDocument().MarshalBinary()
	require.NoError(t, err)
	binary.LittleEndian.PutUint32(data[2:6], 1)

	doc, err := Unmarshal(data)
	require.NoError(t, err, "length fields only delimit by default")
	assert.Equal(t, 3, doc.ElementCount())

	_, err = Unmarshal(data, WithStrictLengths())
	require.ErrorIs(t, err, ErrLengthMismatch)

	withTrailer := append(append([]byte(nil), data...), 0, 0)
	binary.LittleEndian.PutUint32(withTrailer[2:6], uint32(len(data)-6))
	_, err = Unmarshal(withTrailer)
	require.NoError(t, err)
	_, err = Unmarshal(withTrailer, WithStrictLengths())
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestValidateMissingRoot(t *testing.T) {
	t.Parallel()

	_, err := (&Document{ElementNames: []string{"a"}}).MarshalBinary()
	require.ErrorIs(t, err, ErrInvalidDocument)
}

func TestUnmarshalBinary(t *testing.T) {
	t.Parallel()

	data, err := nestedDocument().MarshalBinary()
	require.NoError(t, err)

	var doc Document
	require.NoError(t, doc.UnmarshalBinary(data))
	v, ok := doc.Attr(doc.Root, "name")
	assert.True(t, ok)
	assert.Equal(t, "Villager", v)
	_, ok = doc.Attr(doc.Root, "missing")
	assert.False(t, ok)
}

func FuzzUnmarshal(f *testing.F) {
	for _, doc := range []*Document{itemsDocument(), nestedDocument()} {
		data, err := doc.MarshalBinary()
		require.NoError(f, err)
		f.Add(data)
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		doc, err := Unmarshal(data)
		if err != nil {
			return
		}
		out, err := doc.MarshalBinary()
		require.NoError(t, err)
		again, err := Unmarshal(out, WithStrictLengths())
		require.NoError(t, err)
		assert.Equal(t, doc.ElementCount(), again.ElementCount())
	})
}
