package geometry

import (
	"math"
	"strconv"
)

// ============================================================
// Geometry primitives
// ============================================================

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Add(o Point) Point { return Point{X: p.X + o.X, Y: p.Y + o.Y} }

func (p Point) Sub(o Point) Point { return Point{X: p.X - o.X, Y: p.Y - o.Y} }

// Box is an axis-aligned bounding box.
type Box struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// XYWH builds a box from its top-left corner and size.
func XYWH(x, y, width, height float64) Box {
	return Box{MinX: x, MinY: y, MaxX: x + width, MaxY: y + height}
}

// BoundsOf returns the smallest box containing every point.
func BoundsOf(points []Point) (Box, bool) {
	if len(points) == 0 {
		return Box{}, false
	}

	b := Box{MinX: math.MaxFloat64, MinY: math.MaxFloat64, MaxX: -math.MaxFloat64, MaxY: -math.MaxFloat64}
	for _, p := range points {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	return b, true
}

func (b Box) Width() float64 { return b.MaxX - b.MinX }

func (b Box) Height() float64 { return b.MaxY - b.MinY }

func (b Box) Center() Point {
	return Point{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}

// BottomCenter is the horizontal center of the bottom edge.
func (b Box) BottomCenter() Point {
	return Point{X: (b.MinX + b.MaxX) / 2, Y: b.MaxY}
}

func (b Box) Contains(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

func (b Box) Corners() []Point {
	return []Point{
		{X: b.MinX, Y: b.MinY},
		{X: b.MaxX, Y: b.MinY},
		{X: b.MaxX, Y: b.MaxY},
		{X: b.MinX, Y: b.MaxY},
	}
}

// Transform returns the bounding box of the box's corners under m.
func (b Box) Transform(m Matrix) Box {
	corners := b.Corners()
	for i, c := range corners {
		corners[i] = m.Apply(c)
	}
	out, _ := BoundsOf(corners)
	return out
}

// ============================================================
// Formatting helpers
// ============================================================

func FormatFloat(val float64) string {
	return strconv.FormatFloat(val, 'f', -1, 64)
}

func FormatPoint(p Point) string {
	return FormatFloat(p.X) + " " + FormatFloat(p.Y)
}
