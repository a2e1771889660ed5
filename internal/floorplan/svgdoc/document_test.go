package svgdoc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floorplan/internal/floorplan/geometry"
)

const plan = `<?xml version="1.0"?>
<!-- cleaned up -->
<svg xmlns="http://www.w3.org/2000/svg" xmlns:inkscape="http://www.inkscape.org/namespaces/inkscape" width="100" height="50">
  <g id="layer" transform="scale(2)">
    <g id="real-world" inkscape:label="World" transform="translate(10 5)">
      <path id="wall" d="M 0 0 H 40"/>
    </g>
  </g>
</svg>`

func TestParseKeepsStructure(t *testing.T) {
	doc, err := Parse(strings.NewReader(plan))
	require.NoError(t, err)

	world := doc.WorldGroup()
	require.NotNil(t, world)
	label, ok := world.Attr("inkscape:label")
	assert.True(t, ok)
	assert.Equal(t, "World", label)

	wall := doc.Root.FindByID("wall")
	require.NotNil(t, wall)
	assert.Equal(t, world, wall.Parent)

	out := doc.String()
	assert.Contains(t, out, `xmlns:inkscape="http://www.inkscape.org/namespaces/inkscape"`)
	assert.Contains(t, out, `<path id="wall" d="M 0 0 H 40"/>`)
	assert.NotContains(t, out, "cleaned up")
}

func TestWorldTransform(t *testing.T) {
	doc, err := Parse(strings.NewReader(plan))
	require.NoError(t, err)

	m, err := doc.WorldTransform()
	require.NoError(t, err)
	p := m.Apply(geometry.Point{X: 1, Y: 1})
	assert.InDelta(t, 22, p.X, 1e-9)
	assert.InDelta(t, 12, p.Y, 1e-9)
}

func TestParseRejectsNonSVG(t *testing.T) {
	_, err := Parse(strings.NewReader(`<html></html>`))
	assert.Error(t, err)

	_, err = Parse(strings.NewReader(`<svg><g></svg>`))
	assert.Error(t, err)

	_, err = Parse(strings.NewReader(``))
	assert.Error(t, err)
}

func TestNewCreatesWorldGroup(t *testing.T) {
	doc := New(300, 200)
	world := doc.WorldGroup()
	assert.Equal(t, WorldGroupID, world.ID())
	assert.Equal(t, doc.Root, world.Parent)
	assert.Len(t, doc.Root.Elements(), 1)
}

func TestClasses(t *testing.T) {
	el := NewElement("rect", Attr{Name: "class", Value: "thing"})
	el.AddClass("selected")
	el.AddClass("selected")
	v, _ := el.Attr("class")
	assert.Equal(t, "thing selected", v)

	el.RemoveClass("selected")
	v, _ = el.Attr("class")
	assert.Equal(t, "thing", v)

	el.RemoveClass("thing")
	_, ok := el.Attr("class")
	assert.False(t, ok)
}

func TestAppendChildReparents(t *testing.T) {
	a := NewElement("g")
	b := NewElement("g")
	child := NewElement("rect")
	a.AppendChild(child)
	b.AppendChild(child)

	assert.Empty(t, a.Elements())
	assert.Equal(t, b, child.Parent)
}

func TestEscaping(t *testing.T) {
	title := NewElement("title")
	title.AppendText(`Saw & "Router" <big>`)
	assert.Equal(t, `<title>Saw &amp; &#34;Router&#34; &lt;big&gt;</title>`, Markup(title))
	assert.Equal(t, `Saw & "Router" <big>`, title.TextContent())
}
