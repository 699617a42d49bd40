package xmb

import (
	"fmt"
	"io"

	"github.com/meigma/gamefiles/internal/binio"
	"github.com/meigma/gamefiles/internal/sizing"
)

// DefaultMaxSize bounds the input Decode reads into memory.
const DefaultMaxSize = 256 << 20

// headerSize covers both tags, the length field and the two constants.
const headerSize = 2 + 4 + 2 + 4 + 4

// minNodeSize is the smallest encoded element: tag, length, text length,
// name index, line, attribute count and child count.
const minNodeSize = 2 + 4 + 4 + 4 + 4 + 4 + 4

// minAttrSize is the smallest encoded attribute: name index and value length.
const minAttrSize = 4 + 4

// DecodeOption configures decoding.
type DecodeOption func(*decodeConfig)

type decodeConfig struct {
	strict  bool
	maxSize uint64
}

// WithStrictLengths makes decoding verify the document and node length
// fields against the bytes actually consumed.
func WithStrictLengths() DecodeOption {
	return func(c *decodeConfig) {
		c.strict = true
	}
}

// WithMaxSize caps the number of bytes Decode reads from its reader.
func WithMaxSize(n uint64) DecodeOption {
	return func(c *decodeConfig) {
		c.maxSize = n
	}
}

// IsXMB reports whether data starts with a header this package accepts.
func IsXMB(data []byte) bool {
	_, err := readHeader(binio.NewReader(data))
	return err == nil
}

// Decode reads a document from r.
func Decode(r io.Reader, opts ...DecodeOption) (*Document, error) {
	cfg := decodeConfig{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	tooLarge := fmt.Errorf("%w: larger than %d bytes", ErrInvalidDocument, cfg.maxSize)
	data, err := sizing.ReadAllWithLimit(r, cfg.maxSize, tooLarge)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data, opts...)
}

// Unmarshal decodes a document from data.
//
// Length fields only delimit the data unless WithStrictLengths is given.
// Bytes after the root element are ignored.
func Unmarshal(data []byte, opts ...DecodeOption) (*Document, error) {
	var cfg decodeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	d := &decoder{r: binio.NewReader(data), strict: cfg.strict}
	return d.document()
}

// readHeader consumes the document header and returns the declared body
// length.
func readHeader(r *binio.Reader) (int32, error) {
	tag := r.Tag(2)
	if r.Err() == nil && tag != Magic {
		return 0, fmt.Errorf("%w: tag %q, want %q", ErrInvalidDocument, tag, Magic)
	}
	bodyLen := r.Int32()
	tag = r.Tag(2)
	if r.Err() == nil && tag != RootMagic {
		return 0, fmt.Errorf("%w: root tag %q, want %q", ErrInvalidDocument, tag, RootMagic)
	}
	if v := r.Int32(); r.Err() == nil && v != FormatVersion {
		return 0, fmt.Errorf("%w: format version %d, want %d", ErrInvalidDocument, v, FormatVersion)
	}
	if v := r.Int32(); r.Err() == nil && v != GameID {
		return 0, fmt.Errorf("%w: game id %d, want %d", ErrInvalidDocument, v, GameID)
	}
	return bodyLen, r.Err()
}

type decoder struct {
	r      *binio.Reader
	strict bool
	doc    *Document
}

func (d *decoder) document() (*Document, error) {
	bodyLen, err := readHeader(d.r)
	if err != nil {
		return nil, err
	}
	d.doc = &Document{}
	d.doc.ElementNames = d.names("element")
	d.doc.AttributeNames = d.names("attribute")
	if err := d.r.Err(); err != nil {
		return nil, err
	}
	root, err := d.element(0)
	if err != nil {
		return nil, err
	}
	if d.strict {
		if consumed := d.r.Offset() - 6; int64(bodyLen) != int64(consumed) || d.r.Len() != 0 {
			return nil, fmt.Errorf("%w: document declares %d body bytes, has %d", ErrLengthMismatch, bodyLen, consumed+d.r.Len())
		}
	}
	d.doc.Root = root
	return d.doc, nil
}

func (d *decoder) names(kind string) []string {
	n := d.count(kind+" names", 4)
	var names []string
	for range n {
		names = append(names, d.r.String())
		if d.r.Err() != nil {
			return nil
		}
	}
	return names
}

// count reads a non-negative int32 count whose items need at least minSize
// bytes each, failing early when the remaining data cannot hold them.
func (d *decoder) count(what string, minSize int) int {
	n := d.r.Int32()
	if d.r.Err() != nil {
		return 0
	}
	if n < 0 {
		d.r.Fail(fmt.Errorf("%w: negative %s count %d at offset %d", ErrInvalidDocument, what, n, d.r.Offset()-4))
		return 0
	}
	if int64(n)*int64(minSize) > int64(d.r.Len()) {
		d.r.Fail(fmt.Errorf("%w: %d %s at offset %d", ErrTruncated, n, what, d.r.Offset()-4))
		return 0
	}
	return int(n)
}

func (d *decoder) element(depth int) (*Element, error) {
	if depth >= maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrInvalidDocument, maxDepth)
	}
	r := d.r
	start := r.Offset()
	tag := r.Tag(2)
	if err := r.Err(); err != nil {
		return nil, err
	}
	if tag != NodeMagic {
		return nil, fmt.Errorf("%w: node tag %q at offset %d, want %q", ErrInvalidDocument, tag, start, NodeMagic)
	}
	bodyLen := r.Int32()

	e := &Element{}
	e.Text = r.String()
	e.NameID = r.Int32()
	e.Line = r.Int32()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if err := checkIndex("element", e.NameID, len(d.doc.ElementNames)); err != nil {
		return nil, err
	}

	nattrs := d.count("attributes", minAttrSize)
	for range nattrs {
		a := Attribute{NameID: r.Int32(), Value: r.String()}
		if err := r.Err(); err != nil {
			return nil, err
		}
		if err := checkIndex("attribute", a.NameID, len(d.doc.AttributeNames)); err != nil {
			return nil, err
		}
		e.Attributes = append(e.Attributes, a)
	}

	nchildren := d.count("children", minNodeSize)
	if err := r.Err(); err != nil {
		return nil, err
	}
	for range nchildren {
		child, err := d.element(depth + 1)
		if err != nil {
			return nil, err
		}
		e.Children = append(e.Children, child)
	}

	if d.strict {
		if consumed := r.Offset() - start - 6; int64(bodyLen) != int64(consumed) {
			return nil, fmt.Errorf("%w: node at offset %d declares %d body bytes, has %d", ErrLengthMismatch, start, bodyLen, consumed)
		}
	}
	return e, nil
}

// MarshalBinary encodes the document. Name tables are written in their
// stored order and every length field is recomputed.
func (d *Document) MarshalBinary() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	w := binio.NewWriter(headerSize + 64*len(d.ElementNames))
	w.Tag(Magic)
	docLen := w.Reserve32()
	w.Tag(RootMagic)
	w.Int32(FormatVersion)
	w.Int32(GameID)
	if err := writeNames(w, d.ElementNames); err != nil {
		return nil, err
	}
	if err := writeNames(w, d.AttributeNames); err != nil {
		return nil, err
	}
	if err := writeElement(w, d.Root); err != nil {
		return nil, err
	}
	if err := w.Err(); err != nil {
		return nil, err
	}
	n, err := bodyLength(w, docLen)
	if err != nil {
		return nil, err
	}
	w.Patch32(docLen, n)
	return w.Bytes(), nil
}

// Encode writes the binary form of the document to w.
func (d *Document) Encode(w io.Writer) error {
	data, err := d.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// UnmarshalBinary decodes data into d.
func (d *Document) UnmarshalBinary(data []byte) error {
	doc, err := Unmarshal(data)
	if err != nil {
		return err
	}
	*d = *doc
	return nil
}

func writeNames(w *binio.Writer, names []string) error {
	n, err := sizing.ToInt32(len(names), fmt.Errorf("%w: %d names", ErrInvalidDocument, len(names)))
	if err != nil {
		return err
	}
	w.Int32(n)
	for _, name := range names {
		w.String(name)
	}
	return nil
}

func writeElement(w *binio.Writer, e *Element) error {
	w.Tag(NodeMagic)
	lenPos := w.Reserve32()
	w.String(e.Text)
	w.Int32(e.NameID)
	w.Int32(e.Line)

	nattrs, err := sizing.ToInt32(len(e.Attributes), fmt.Errorf("%w: %d attributes", ErrInvalidDocument, len(e.Attributes)))
	if err != nil {
		return err
	}
	w.Int32(nattrs)
	for _, a := range e.Attributes {
		w.Int32(a.NameID)
		w.String(a.Value)
	}

	nchildren, err := sizing.ToInt32(len(e.Children), fmt.Errorf("%w: %d children", ErrInvalidDocument, len(e.Children)))
	if err != nil {
		return err
	}
	w.Int32(nchildren)
	for _, c := range e.Children {
		if err := writeElement(w, c); err != nil {
			return err
		}
	}

	n, err := bodyLength(w, lenPos)
	if err != nil {
		return err
	}
	w.Patch32(lenPos, n)
	return nil
}

// bodyLength returns the number of bytes written after the length field
// reserved at pos.
func bodyLength(w *binio.Writer, pos int) (uint32, error) {
	n, err := sizing.ToInt32(w.Len()-pos-4, fmt.Errorf("%w: section exceeds 2 GiB", ErrInvalidDocument))
	if err != nil {
		return 0, err
	}
	return uint32(n), nil //nolint:gosec // non-negative by construction
}
