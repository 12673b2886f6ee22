package vectorize

import (
	"strings"
	"unicode"

	"github.com/ironsheep/patent-diagram-mcp/internal/svgdoc"
)

const indentUnit = "  "

// strippedElements are removed wherever they appear.
var strippedElements = map[string]bool{
	"metadata": true,
	"title":    true,
	"desc":     true,
}

// Optimize returns a cleaned copy of doc. Comments, processing
// instructions (including the XML declaration) and metadata, title and desc
// elements are removed. Elements that contain only other elements are
// re-indented two spaces per level; text-only elements have runs of
// whitespace collapsed to a single space. In mixed content each text run
// keeps its position but its whitespace runs are collapsed to one space.
//
// The input document is not modified.
func Optimize(doc *svgdoc.Document) *svgdoc.Document {
	out := doc.Clone()

	var prolog []*svgdoc.Node
	for _, n := range out.Prolog {
		if n.Kind == svgdoc.DirectiveNode {
			prolog = append(prolog, n)
		}
	}
	out.Prolog = prolog

	if out.Root != nil {
		tidy(out.Root, 0)
	}
	return out
}

func tidy(n *svgdoc.Node, depth int) {
	// Drop unwanted children and merge the text runs they separated.
	kept := make([]*svgdoc.Node, 0, len(n.Children))
	for _, c := range n.Children {
		switch c.Kind {
		case svgdoc.CommentNode, svgdoc.ProcInstNode, svgdoc.DirectiveNode:
			continue
		case svgdoc.ElementNode:
			if strippedElements[localName(c.Name)] {
				continue
			}
		case svgdoc.TextNode:
			if last := len(kept) - 1; last >= 0 && kept[last].Kind == svgdoc.TextNode {
				kept[last] = svgdoc.Text(kept[last].Data + c.Data)
				continue
			}
		}
		kept = append(kept, c)
	}

	hasElement, hasText := false, false
	for _, c := range kept {
		if c.Kind == svgdoc.ElementNode {
			hasElement = true
		} else if strings.TrimSpace(c.Data) != "" {
			hasText = true
		}
	}

	switch {
	case hasElement && hasText:
		for i, c := range kept {
			if c.Kind == svgdoc.TextNode {
				kept[i] = svgdoc.Text(collapseSpace(c.Data))
			}
		}
		n.Children = kept
	case hasElement:
		inner := "\n" + strings.Repeat(indentUnit, depth+1)
		children := make([]*svgdoc.Node, 0, 2*len(kept)+1)
		for _, c := range kept {
			if c.Kind != svgdoc.ElementNode {
				continue
			}
			children = append(children, svgdoc.Text(inner), c)
		}
		n.Children = append(children, svgdoc.Text("\n"+strings.Repeat(indentUnit, depth)))
	case hasText:
		n.Children = []*svgdoc.Node{svgdoc.Text(strings.Join(strings.Fields(kept[0].Data), " "))}
	default:
		n.Children = nil
	}

	for _, c := range n.Children {
		if c.Kind == svgdoc.ElementNode {
			tidy(c, depth+1)
		}
	}
}

// collapseSpace replaces every whitespace run in s with a single space,
// keeping a space at either end if s had one there.
func collapseSpace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	if space {
		b.WriteByte(' ')
	}
	return b.String()
}

func localName(name string) string {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}
