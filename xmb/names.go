package xmb

// nameTable assigns each distinct name one index, in first-seen order.
type nameTable struct {
	names []string
	index map[string]int32
}

func (t *nameTable) intern(name string) int32 {
	if id, ok := t.index[name]; ok {
		return id
	}
	if t.index == nil {
		t.index = make(map[string]int32)
	}
	id := int32(len(t.names)) //nolint:gosec // tables never approach MaxInt32 names
	t.names = append(t.names, name)
	t.index[name] = id
	return id
}

// Builder constructs a Document, interning element and attribute names
// into independent tables.
type Builder struct {
	elements   nameTable
	attributes nameTable
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Element returns a new element named name with the given text.
func (b *Builder) Element(name, text string) *Element {
	return &Element{NameID: b.elements.intern(name), Text: text}
}

// Attr appends an attribute to e.
func (b *Builder) Attr(e *Element, name, value string) {
	e.Attributes = append(e.Attributes, Attribute{NameID: b.attributes.intern(name), Value: value})
}

// Append adds child to parent and returns child.
func (b *Builder) Append(parent, child *Element) *Element {
	parent.Children = append(parent.Children, child)
	return child
}

// Build returns a Document rooted at root. The name tables are shared
// with the Builder until it is discarded.
func (b *Builder) Build(root *Element) *Document {
	return &Document{
		ElementNames:   b.elements.names,
		AttributeNames: b.attributes.names,
		Root:           root,
	}
}
