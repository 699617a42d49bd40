// Package xmb encodes and decodes XMB, the binary form of the game's XML
// data files, and converts documents to and from XML text.
//
// A document stores every element name and attribute name once, in two
// interned tables, and refers to them by index from the element tree.
package xmb

import (
	"errors"
	"fmt"

	"github.com/meigma/gamefiles/internal/binio"
)

// Section tags and format constants.
const (
	Magic     = "X1"
	RootMagic = "XR"
	NodeMagic = "XN"

	// FormatVersion is the first constant after the root tag.
	FormatVersion int32 = 4

	// GameID identifies the schema variant. Only this variant is accepted;
	// 7 marks an older game whose files share the layout but not the meaning.
	GameID int32 = 8
)

// maxDepth bounds element nesting on decode.
const maxDepth = 1 << 12

var (
	// ErrInvalidDocument is returned when a tag, constant or name index is wrong.
	ErrInvalidDocument = errors.New("xmb: invalid document")

	// ErrLengthMismatch is returned by strict decoding when a length field
	// disagrees with the bytes it delimits.
	ErrLengthMismatch = errors.New("xmb: length field mismatch")

	// ErrInvalidXML is returned when XML text is not well formed.
	ErrInvalidXML = errors.New("xmb: malformed xml")

	// ErrInvalidChar is returned when text or an attribute value holds a
	// control character that XML cannot represent.
	ErrInvalidChar = errors.New("xmb: character not allowed in xml")

	// ErrTruncated is returned when the data ends inside a field.
	ErrTruncated = binio.ErrTruncated
)

// Document is a decoded XMB file.
type Document struct {
	ElementNames   []string
	AttributeNames []string
	Root           *Element
}

// Element is one node of the tree. Children and attributes are owned by
// the element.
type Element struct {
	NameID     int32
	Text       string
	Line       int32
	Attributes []Attribute
	Children   []*Element
}

// Attribute is a name index and value pair.
type Attribute struct {
	NameID int32
	Value  string
}

// ElementName returns the name of e.
func (d *Document) ElementName(e *Element) string {
	if e == nil || e.NameID < 0 || int(e.NameID) >= len(d.ElementNames) {
		return ""
	}
	return d.ElementNames[e.NameID]
}

// AttributeName returns the name of a.
func (d *Document) AttributeName(a Attribute) string {
	if a.NameID < 0 || int(a.NameID) >= len(d.AttributeNames) {
		return ""
	}
	return d.AttributeNames[a.NameID]
}

// Attr returns the value of the attribute named name on e.
func (d *Document) Attr(e *Element, name string) (string, bool) {
	for _, a := range e.Attributes {
		if d.AttributeName(a) == name {
			return a.Value, true
		}
	}
	return "", false
}

// ElementCount returns the number of elements in the tree.
func (d *Document) ElementCount() int {
	if d == nil || d.Root == nil {
		return 0
	}
	n := 0
	stack := []*Element{d.Root}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n++
		stack = append(stack, e.Children...)
	}
	return n
}

// Validate checks that the document has a root and that every name index
// is valid within its table.
func (d *Document) Validate() error {
	if d == nil || d.Root == nil {
		return fmt.Errorf("%w: missing root element", ErrInvalidDocument)
	}
	type frame struct {
		e     *Element
		depth int
	}
	stack := []frame{{e: d.Root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.e == nil {
			return fmt.Errorf("%w: nil element", ErrInvalidDocument)
		}
		if f.depth >= maxDepth {
			return fmt.Errorf("%w: nesting deeper than %d", ErrInvalidDocument, maxDepth)
		}
		if err := checkIndex("element", f.e.NameID, len(d.ElementNames)); err != nil {
			return err
		}
		for _, a := range f.e.Attributes {
			if err := checkIndex("attribute", a.NameID, len(d.AttributeNames)); err != nil {
				return err
			}
		}
		for _, c := range f.e.Children {
			stack = append(stack, frame{e: c, depth: f.depth + 1})
		}
	}
	return nil
}

func checkIndex(kind string, id int32, n int) error {
	if id < 0 || int(id) >= n {
		return fmt.Errorf("%w: %s name index %d out of range [0,%d)", ErrInvalidDocument, kind, id, n)
	}
	return nil
}
