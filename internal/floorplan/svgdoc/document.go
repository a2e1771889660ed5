package svgdoc

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"floorplan/internal/floorplan/geometry"
)

const svgNS = "http://www.w3.org/2000/svg"

// WorldGroupID is the id of the group whose coordinate system is real
// world (diagram) space. Things are drawn into it.
const WorldGroupID = "real-world"

// ============================================================
// Document
// ============================================================

type Document struct {
	Root *Element
}

// New creates an empty floor plan with a bare world group.
func New(width, height float64) *Document {
	root := NewElement("svg",
		Attr{Name: "xmlns", Value: svgNS},
		Attr{Name: "width", Value: geometry.FormatFloat(width)},
		Attr{Name: "height", Value: geometry.FormatFloat(height)},
		Attr{Name: "viewBox", Value: fmt.Sprintf("0 0 %s %s", geometry.FormatFloat(width), geometry.FormatFloat(height))},
	)
	root.AppendChild(NewElement("g", Attr{Name: "id", Value: WorldGroupID}))
	return &Document{Root: root}
}

// Parse reads an SVG document into a mutable tree. Comments, processing
// instructions and directives are dropped.
func Parse(r io.Reader) (*Document, error) {
	decoder := xml.NewDecoder(r)
	var root *Element
	var stack []*Element

	for {
		tok, err := decoder.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse svg: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := NewElement(qualified(t.Name))
			for _, a := range t.Attr {
				el.Attrs = append(el.Attrs, Attr{Name: qualified(a.Name), Value: a.Value})
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("parse svg: multiple root elements")
				}
				root = el
			} else {
				stack[len(stack)-1].AppendChild(el)
			}
			stack = append(stack, el)

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("parse svg: unexpected </%s>", qualified(t.Name))
			}
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].AppendText(string(t))
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("parse svg: no root element")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("parse svg: unclosed <%s>", stack[len(stack)-1].Tag)
	}
	if root.Tag != "svg" && !strings.HasSuffix(root.Tag, ":svg") {
		return nil, fmt.Errorf("parse svg: root element is <%s>", root.Tag)
	}
	return &Document{Root: root}, nil
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// WorldGroup returns the real-world group, creating it under the root when
// the floor plan lacks one.
func (d *Document) WorldGroup() *Element {
	if g := d.Root.FindByID(WorldGroupID); g != nil {
		return g
	}
	g := NewElement("g", Attr{Name: "id", Value: WorldGroupID})
	d.Root.AppendChild(g)
	return g
}

// WorldTransform composes the transforms from the root down to the world
// group: the mapping from diagram space to root user space.
func (d *Document) WorldTransform() (geometry.Matrix, error) {
	m := geometry.Identity()
	var chain []*Element
	for el := d.WorldGroup(); el != nil; el = el.Parent {
		chain = append(chain, el)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		v, ok := chain[i].Attr("transform")
		if !ok {
			continue
		}
		t, err := geometry.ParseTransform(v)
		if err != nil {
			return geometry.Matrix{}, fmt.Errorf("%s transform: %w", chain[i].Tag, err)
		}
		m = m.Multiply(t)
	}
	return m, nil
}

// ============================================================
// Serialization
// ============================================================

func (d *Document) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	writeElement(&buf, d.Root)
	buf.WriteString("\n")
	return buf.WriteTo(w)
}

func (d *Document) String() string {
	var b strings.Builder
	_, _ = d.WriteTo(&b)
	return b.String()
}

// Markup serializes a single element without the XML header.
func Markup(el *Element) string {
	var buf bytes.Buffer
	writeElement(&buf, el)
	return buf.String()
}

func writeElement(buf *bytes.Buffer, el *Element) {
	buf.WriteString("<")
	buf.WriteString(el.Tag)
	for _, a := range el.Attrs {
		buf.WriteString(" ")
		buf.WriteString(a.Name)
		buf.WriteString(`="`)
		_ = xml.EscapeText(buf, []byte(a.Value))
		buf.WriteString(`"`)
	}
	if len(el.Children) == 0 {
		buf.WriteString("/>")
		return
	}
	buf.WriteString(">")
	for _, n := range el.Children {
		switch v := n.(type) {
		case Text:
			_ = xml.EscapeText(buf, []byte(v))
		case *Element:
			writeElement(buf, v)
		}
	}
	buf.WriteString("</")
	buf.WriteString(el.Tag)
	buf.WriteString(">")
}
