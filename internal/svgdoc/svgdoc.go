package svgdoc

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Namespace is the SVG XML namespace written on new documents.
const Namespace = "http://www.w3.org/2000/svg"

// ErrNotSVG is returned when a parsed document's root element is not <svg>.
var ErrNotSVG = errors.New("root element is not <svg>")

// NodeKind identifies the type of a Node.
type NodeKind int

const (
	ElementNode NodeKind = iota
	TextNode
	CommentNode
	ProcInstNode
	DirectiveNode
)

// Attr is a single attribute. Name includes any namespace prefix.
type Attr struct {
	Name  string
	Value string
}

// Node is an element, text run, comment, processing instruction or directive.
//
// For elements, Name and Attrs describe the tag and Children its content.
// For every other kind, Data holds the raw content; ProcInst nodes also
// carry their Target.
type Node struct {
	Kind     NodeKind
	Name     string
	Attrs    []Attr
	Children []*Node
	Data     string
	Target   string
}

// Document is a parsed or constructed SVG document.
type Document struct {
	// Prolog holds nodes that precede the root element (XML declaration,
	// DOCTYPE, comments).
	Prolog []*Node

	// Root is the <svg> element.
	Root *Node
}

// Element creates an element node. attrs alternates names and values;
// a trailing unpaired name is ignored.
func Element(name string, attrs ...string) *Node {
	n := &Node{Kind: ElementNode, Name: name}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attrs = append(n.Attrs, Attr{Name: attrs[i], Value: attrs[i+1]})
	}
	return n
}

// Text creates a text node.
func Text(data string) *Node {
	return &Node{Kind: TextNode, Data: data}
}

// New creates an empty SVG document with the given canvas size.
func New(width, height int) *Document {
	w := strconv.Itoa(width)
	h := strconv.Itoa(height)
	root := Element("svg",
		"xmlns", Namespace,
		"width", w,
		"height", h,
		"viewBox", "0 0 "+w+" "+h,
		"version", "1.1",
	)
	return &Document{Root: root}
}

// Append adds children to the end of n and returns n.
func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr replaces the named attribute or appends it if absent.
func (n *Node) SetAttr(name, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
}

// Elements returns the direct element children of n named name. An empty
// name matches every element.
func (n *Node) Elements(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == ElementNode && (name == "" || c.Name == name) {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many elements named name exist anywhere below n.
func (n *Node) Count(name string) int {
	count := 0
	for _, c := range n.Children {
		if c.Kind != ElementNode {
			continue
		}
		if c.Name == name {
			count++
		}
		count += c.Count(name)
	}
	return count
}

// TextContent concatenates all descendant text.
func (n *Node) TextContent() string {
	if n.Kind == TextNode {
		return n.Data
	}
	var b strings.Builder
	for _, c := range n.Children {
		if c.Kind == TextNode || c.Kind == ElementNode {
			b.WriteString(c.TextContent())
		}
	}
	return b.String()
}

// Size returns the declared canvas width and height. Unit suffixes such as
// "px" are ignored. ok is false when either dimension is missing or is not
// a number.
func (d *Document) Size() (width, height float64, ok bool) {
	if d == nil || d.Root == nil {
		return 0, 0, false
	}
	w, wok := parseLength(d.Root, "width")
	h, hok := parseLength(d.Root, "height")
	return w, h, wok && hok
}

func parseLength(n *Node, name string) (float64, bool) {
	v, ok := n.Attr(name)
	if !ok {
		return 0, false
	}
	v = strings.TrimSpace(v)
	v = strings.TrimRightFunc(v, func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '%'
	})
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Parse reads an SVG document. The root element must be <svg> (with or
// without a namespace prefix).
func Parse(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	doc := &Document{}
	var stack []*Node

	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse svg: %w", err)
		}

		var node *Node
		switch t := tok.(type) {
		case xml.StartElement:
			el := &Node{Kind: ElementNode, Name: qualified(t.Name)}
			for _, a := range t.Attr {
				el.Attrs = append(el.Attrs, Attr{Name: qualified(a.Name), Value: a.Value})
			}
			if len(stack) == 0 {
				if doc.Root != nil {
					return nil, fmt.Errorf("failed to parse svg: multiple root elements")
				}
				doc.Root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
			continue
		case xml.EndElement:
			if len(stack) == 0 || stack[len(stack)-1].Name != qualified(t.Name) {
				return nil, fmt.Errorf("failed to parse svg: unexpected closing tag </%s>", qualified(t.Name))
			}
			stack = stack[:len(stack)-1]
			continue
		case xml.CharData:
			node = &Node{Kind: TextNode, Data: string(t)}
		case xml.Comment:
			node = &Node{Kind: CommentNode, Data: string(t)}
		case xml.ProcInst:
			node = &Node{Kind: ProcInstNode, Target: t.Target, Data: string(t.Inst)}
		case xml.Directive:
			node = &Node{Kind: DirectiveNode, Data: string(t)}
		}

		if node == nil {
			continue
		}
		if len(stack) > 0 {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, node)
			continue
		}
		// Outside the root only markup matters; whitespace and trailing
		// content after the root are dropped.
		if node.Kind == TextNode {
			if strings.TrimSpace(node.Data) != "" {
				return nil, fmt.Errorf("failed to parse svg: text outside root element")
			}
			continue
		}
		if doc.Root == nil {
			doc.Prolog = append(doc.Prolog, node)
		}
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("failed to parse svg: unclosed element <%s>", stack[len(stack)-1].Name)
	}
	if doc.Root == nil {
		return nil, fmt.Errorf("failed to parse svg: no root element")
	}
	if localName(doc.Root.Name) != "svg" {
		return nil, ErrNotSVG
	}
	return doc, nil
}

// ParseString parses an SVG document held in a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// String serializes the document.
func (d *Document) String() string {
	var b strings.Builder
	for _, n := range d.Prolog {
		writeNode(&b, n)
		b.WriteByte('\n')
	}
	if d.Root != nil {
		writeNode(&b, d.Root)
	}
	return b.String()
}

// WriteTo writes the serialized document to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, d.String())
	return int64(n), err
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{}
	for _, n := range d.Prolog {
		out.Prolog = append(out.Prolog, n.clone())
	}
	if d.Root != nil {
		out.Root = d.Root.clone()
	}
	return out
}

func (n *Node) clone() *Node {
	c := *n
	if n.Attrs != nil {
		c.Attrs = append([]Attr(nil), n.Attrs...)
	}
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.clone()
		}
	}
	return &c
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer(
		"&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;",
		"\n", "&#xA;", "\r", "&#xD;", "\t", "&#x9;",
	)
)

func writeNode(b *strings.Builder, n *Node) {
	switch n.Kind {
	case TextNode:
		textEscaper.WriteString(b, n.Data)
	case CommentNode:
		b.WriteString("<!--")
		b.WriteString(n.Data)
		b.WriteString("-->")
	case ProcInstNode:
		b.WriteString("<?")
		b.WriteString(n.Target)
		if n.Data != "" {
			b.WriteByte(' ')
			b.WriteString(n.Data)
		}
		b.WriteString("?>")
	case DirectiveNode:
		b.WriteString("<!")
		b.WriteString(n.Data)
		b.WriteByte('>')
	case ElementNode:
		b.WriteByte('<')
		b.WriteString(n.Name)
		for _, a := range n.Attrs {
			b.WriteByte(' ')
			b.WriteString(a.Name)
			b.WriteString(`="`)
			attrEscaper.WriteString(b, a.Value)
			b.WriteByte('"')
		}
		if len(n.Children) == 0 {
			b.WriteString("/>")
			return
		}
		b.WriteByte('>')
		for _, c := range n.Children {
			writeNode(b, c)
		}
		b.WriteString("</")
		b.WriteString(n.Name)
		b.WriteByte('>')
	}
}

func qualified(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

func localName(name string) string {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}
