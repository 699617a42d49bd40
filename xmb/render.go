package xmb

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Declaration is the XML declaration written before the root element.
const Declaration = `<?xml version="1.0" encoding="utf-8"?>`

const newline = "\r\n"

// WriteXML renders the document as UTF-8 XML text with CRLF line breaks
// and tab indentation.
//
// Elements with neither text nor children are self-closing. Text of an
// element without children is written inline; when an element has both,
// the text goes on its own line ahead of the children. Whitespace-only
// text is treated as absent, and text is trimmed before it is written.
func (d *Document) WriteXML(w io.Writer) error {
	if err := d.Validate(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	r := renderer{doc: d, w: bw}
	r.str(Declaration)
	r.element(d.Root, "")
	if r.err != nil {
		return r.err
	}
	return bw.Flush()
}

// XML returns the rendered document text.
func (d *Document) XML() (string, error) {
	var buf bytes.Buffer
	if err := d.WriteXML(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type renderer struct {
	doc     *Document
	w       *bufio.Writer
	scratch []byte
	err     error
}

func (r *renderer) str(s string) {
	if r.err == nil {
		_, r.err = r.w.WriteString(s)
	}
}

func (r *renderer) escaped(s string, attr bool) {
	if r.err != nil {
		return
	}
	r.scratch, r.err = appendEscaped(r.scratch[:0], s, attr)
	if r.err == nil {
		_, r.err = r.w.Write(r.scratch)
	}
}

func (r *renderer) element(e *Element, indent string) {
	name := r.doc.ElementName(e)
	r.str(newline)
	r.str(indent)
	r.str("<")
	r.str(name)
	for _, a := range e.Attributes {
		r.str(" ")
		r.str(r.doc.AttributeName(a))
		r.str(`="`)
		r.escaped(a.Value, true)
		r.str(`"`)
	}

	text := strings.TrimSpace(e.Text)
	switch {
	case text != "" && len(e.Children) > 0:
		r.str(">" + newline)
		r.str(indent + "\t")
		r.escaped(text, false)
		r.children(e, indent)
		r.end(name, indent)
	case text != "":
		r.str(">")
		r.escaped(text, false)
		r.str("</" + name + ">")
	case len(e.Children) > 0:
		r.str(">")
		r.children(e, indent)
		r.end(name, indent)
	default:
		r.str("/>")
	}
}

func (r *renderer) children(e *Element, indent string) {
	for _, c := range e.Children {
		if r.err != nil {
			return
		}
		r.element(c, indent+"\t")
	}
}

func (r *renderer) end(name, indent string) {
	r.str(newline)
	r.str(indent)
	r.str("</" + name + ">")
}

// EscapeText escapes s for use as element text. Only '<', '>' and '&' are
// replaced; quotes and whitespace are written literally.
func EscapeText(s string) (string, error) {
	b, err := appendEscaped(nil, s, false)
	return string(b), err
}

// EscapeAttr escapes s for use inside a double-quoted attribute value.
// In addition to the text escapes it encodes both quote characters and
// tab, line feed and carriage return as character references.
func EscapeAttr(s string) (string, error) {
	b, err := appendEscaped(nil, s, true)
	return string(b), err
}

func appendEscaped(dst []byte, s string, attr bool) ([]byte, error) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '<':
			dst = append(dst, "&lt;"...)
		case '>':
			dst = append(dst, "&gt;"...)
		case '&':
			dst = append(dst, "&amp;"...)
		case '"':
			dst = appendEither(dst, attr, "&quot;", c)
		case '\'':
			dst = appendEither(dst, attr, "&apos;", c)
		case '\n':
			dst = appendEither(dst, attr, "&#xA;", c)
		case '\r':
			dst = appendEither(dst, attr, "&#xD;", c)
		case '\t':
			dst = appendEither(dst, attr, "&#x9;", c)
		default:
			if c < 0x20 {
				return dst, fmt.Errorf("%w: control character %#02x at byte %d", ErrInvalidChar, c, i)
			}
			dst = append(dst, c)
		}
	}
	return dst, nil
}

func appendEither(dst []byte, escape bool, ref string, c byte) []byte {
	if escape {
		return append(dst, ref...)
	}
	return append(dst, c)
}
