package svgdoc

import (
	"strings"
)

// ============================================================
// Element tree
// ============================================================

// Node is either an *Element or a Text.
type Node interface {
	node()
}

// Text is character data inside an element.
type Text string

func (Text) node() {}

// Attr is one attribute. Names keep their namespace prefix ("xlink:href").
type Attr struct {
	Name  string
	Value string
}

// Element is a retained SVG element that can be mutated after creation.
type Element struct {
	Tag      string
	Attrs    []Attr
	Children []Node
	Parent   *Element
}

func (*Element) node() {}

func NewElement(tag string, attrs ...Attr) *Element {
	return &Element{Tag: tag, Attrs: attrs}
}

func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func (e *Element) ID() string {
	id, _ := e.Attr("id")
	return id
}

func (e *Element) SetAttr(name, value string) {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			e.Attrs[i].Value = value
			return
		}
	}
	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})
}

func (e *Element) RemoveAttr(name string) {
	out := e.Attrs[:0]
	for _, a := range e.Attrs {
		if a.Name != name {
			out = append(out, a)
		}
	}
	e.Attrs = out
}

// AppendChild adds n as the last child. Elements are detached from any
// previous parent first.
func (e *Element) AppendChild(n Node) {
	if el, ok := n.(*Element); ok {
		if el.Parent != nil {
			el.Parent.RemoveChild(el)
		}
		el.Parent = e
	}
	e.Children = append(e.Children, n)
}

func (e *Element) AppendText(s string) {
	e.Children = append(e.Children, Text(s))
}

func (e *Element) RemoveChild(child *Element) bool {
	for i, n := range e.Children {
		if el, ok := n.(*Element); ok && el == child {
			e.Children = append(e.Children[:i], e.Children[i+1:]...)
			child.Parent = nil
			return true
		}
	}
	return false
}

// Elements returns the element children, skipping text.
func (e *Element) Elements() []*Element {
	var out []*Element
	for _, n := range e.Children {
		if el, ok := n.(*Element); ok {
			out = append(out, el)
		}
	}
	return out
}

// TextContent concatenates all descendant text.
func (e *Element) TextContent() string {
	var b strings.Builder
	var walk func(*Element)
	walk = func(el *Element) {
		for _, n := range el.Children {
			switch v := n.(type) {
			case Text:
				b.WriteString(string(v))
			case *Element:
				walk(v)
			}
		}
	}
	walk(e)
	return b.String()
}

// FindByID searches the subtree depth-first.
func (e *Element) FindByID(id string) *Element {
	if e.ID() == id {
		return e
	}
	for _, child := range e.Elements() {
		if found := child.FindByID(id); found != nil {
			return found
		}
	}
	return nil
}

// ============================================================
// class attribute
// ============================================================

func (e *Element) Classes() []string {
	v, _ := e.Attr("class")
	return strings.Fields(v)
}

func (e *Element) HasClass(class string) bool {
	for _, c := range e.Classes() {
		if c == class {
			return true
		}
	}
	return false
}

func (e *Element) AddClass(class string) {
	if class == "" || e.HasClass(class) {
		return
	}
	e.SetAttr("class", strings.Join(append(e.Classes(), class), " "))
}

func (e *Element) RemoveClass(class string) {
	var kept []string
	for _, c := range e.Classes() {
		if c != class {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		e.RemoveAttr("class")
		return
	}
	e.SetAttr("class", strings.Join(kept, " "))
}
