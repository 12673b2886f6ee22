package svgdoc

import (
	"errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	doc := New(800, 600)

	w, h, ok := doc.Size()
	if !ok || w != 800 || h != 600 {
		t.Fatalf("Size() = %v, %v, %v; want 800, 600, true", w, h, ok)
	}
	if v, _ := doc.Root.Attr("viewBox"); v != "0 0 800 600" {
		t.Errorf("viewBox = %q", v)
	}

	want := `<svg xmlns="http://www.w3.org/2000/svg" width="800" height="600" viewBox="0 0 800 600" version="1.1"/>`
	if got := doc.String(); got != want {
		t.Errorf("String() =\n%s\nwant\n%s", got, want)
	}
}

func TestParse_RoundTrip(t *testing.T) {
	src := `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="10px" height="20"><!-- note --><g id="a"><use xlink:href="#p"/><text x="1">A &amp; B</text></g></svg>`

	doc, err := ParseString(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(doc.Prolog) != 1 || doc.Prolog[0].Kind != ProcInstNode || doc.Prolog[0].Target != "xml" {
		t.Errorf("unexpected prolog: %+v", doc.Prolog)
	}

	w, h, ok := doc.Size()
	if !ok || w != 10 || h != 20 {
		t.Errorf("Size() = %v, %v, %v", w, h, ok)
	}

	g := doc.Root.Elements("g")
	if len(g) != 1 {
		t.Fatalf("expected one <g>, got %d", len(g))
	}
	use := g[0].Elements("use")
	if href, _ := use[0].Attr("xlink:href"); href != "#p" {
		t.Errorf("prefixed attribute lost: %q", href)
	}
	if txt := g[0].Elements("text")[0].TextContent(); txt != "A & B" {
		t.Errorf("TextContent = %q", txt)
	}

	out := doc.String()
	again, err := ParseString(out)
	if err != nil {
		t.Fatalf("re-parse failed: %v", err)
	}
	if again.String() != out {
		t.Errorf("serialization is not stable:\n%s\n%s", out, again.String())
	}
	if !strings.Contains(out, "A &amp; B") {
		t.Errorf("text not escaped: %s", out)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"unclosed", `<svg><g></svg>`},
		{"garbage", `not xml at all`},
		{"mismatched", `<svg><g></text></svg>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseString(tt.src); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestParse_NotSVG(t *testing.T) {
	_, err := ParseString(`<html><body/></html>`)
	if !errors.Is(err, ErrNotSVG) {
		t.Errorf("expected ErrNotSVG, got %v", err)
	}
}

func TestSize_Missing(t *testing.T) {
	doc, err := ParseString(`<svg xmlns="http://www.w3.org/2000/svg"/>`)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, ok := doc.Size(); ok {
		t.Error("Size() should report missing dimensions")
	}
}

func TestNodeHelpers(t *testing.T) {
	root := Element("svg")
	g := Element("g", "class", "patent-label")
	g.Append(Element("circle", "r", "12"), Element("text").Append(Text("10")))
	root.Append(g, Element("line"))

	if got := root.Count("circle"); got != 1 {
		t.Errorf("Count(circle) = %d", got)
	}
	if got := len(root.Elements("")); got != 2 {
		t.Errorf("Elements(\"\") = %d, want 2", got)
	}

	g.SetAttr("class", "other")
	g.SetAttr("id", "x")
	if v, _ := g.Attr("class"); v != "other" {
		t.Errorf("SetAttr did not replace: %q", v)
	}
	if len(g.Attrs) != 2 {
		t.Errorf("SetAttr should append new attribute, got %d attrs", len(g.Attrs))
	}
}

func TestClone_IsDeep(t *testing.T) {
	doc := New(100, 100)
	doc.Root.Append(Element("path", "d", "M 0,0 Z"))

	c := doc.Clone()
	c.Root.Append(Element("line"))
	c.Root.Children[0].SetAttr("d", "changed")

	if doc.Root.Count("line") != 0 {
		t.Error("appending to clone modified original")
	}
	if d, _ := doc.Root.Children[0].Attr("d"); d != "M 0,0 Z" {
		t.Errorf("attribute change leaked into original: %q", d)
	}
}
