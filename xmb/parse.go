package xmb

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseXML builds a document from XML text.
//
// Element and attribute names are interned independently in first-seen
// order. A name with a namespace prefix is stored as "prefix:local". An
// element's text is its first direct run of character data that is not
// all whitespace; later runs are dropped. Each element records the line
// its start tag begins on.
//
// Input may carry a byte order mark. Encodings other than UTF-8 named in
// the XML declaration are decoded before parsing.
func ParseXML(r io.Reader) (*Document, error) {
	p := &parser{b: NewBuilder()}
	dec := xml.NewDecoder(p.prepare(r))
	dec.Strict = true
	dec.CharsetReader = p.charsetReader
	doc, err := p.parse(dec)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// IsXML reports whether r holds a well-formed XML document with a single
// root element.
func IsXML(r io.Reader) bool {
	_, err := ParseXML(r)
	return err == nil
}

type parser struct {
	b          *Builder
	transcoded bool
}

// prepare strips a UTF-8 byte order mark and transcodes UTF-16 input,
// which is only recognizable by its byte order mark.
func (p *parser) prepare(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, _ := br.Peek(3) //nolint:errcheck // short input is handled by the decoder
	switch {
	case bytes.HasPrefix(head, utf8BOM):
		_, _ = br.Discard(len(utf8BOM)) //nolint:errcheck // peeked above
		return br
	case bytes.HasPrefix(head, []byte{0xFF, 0xFE}), bytes.HasPrefix(head, []byte{0xFE, 0xFF}):
		p.transcoded = true
		return transform.NewReader(br, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	default:
		return br
	}
}

func (p *parser) charsetReader(label string, input io.Reader) (io.Reader, error) {
	if p.transcoded && strings.HasPrefix(strings.ToLower(label), "utf-16") {
		return input, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

func (p *parser) parse(dec *xml.Decoder) (*Document, error) {
	var (
		root  *Element
		stack []*Element
		names []string
	)
	for {
		line, _ := dec.InputPos()
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidXML, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if root != nil && len(stack) == 0 {
				return nil, fmt.Errorf("%w: line %d: second root element <%s>", ErrInvalidXML, line, qualified(t.Name))
			}
			name := qualified(t.Name)
			e := p.b.Element(name, "")
			e.Line = clampLine(line)
			for _, a := range t.Attr {
				p.b.Attr(e, qualified(a.Name), a.Value)
			}
			if len(stack) == 0 {
				root = e
			} else {
				p.b.Append(stack[len(stack)-1], e)
			}
			stack = append(stack, e)
			names = append(names, name)

		case xml.EndElement:
			name := qualified(t.Name)
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: line %d: unexpected </%s>", ErrInvalidXML, line, name)
			}
			if open := names[len(names)-1]; open != name {
				return nil, fmt.Errorf("%w: line %d: </%s> closes <%s>", ErrInvalidXML, line, name, open)
			}
			stack = stack[:len(stack)-1]
			names = names[:len(names)-1]

		case xml.CharData:
			blank := len(bytes.TrimSpace(t)) == 0
			if len(stack) == 0 {
				if !blank {
					return nil, fmt.Errorf("%w: line %d: text outside the root element", ErrInvalidXML, line)
				}
				continue
			}
			if top := stack[len(stack)-1]; top.Text == "" && !blank {
				top.Text = string(t)
			}
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("%w: <%s> is not closed", ErrInvalidXML, names[len(names)-1])
	}
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrInvalidXML)
	}
	return p.b.Build(root), nil
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func clampLine(line int) int32 {
	if line > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(line) //nolint:gosec // clamped above
}
