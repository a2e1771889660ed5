package selection

import (
	"context"

	"floorplan/internal/floorplan/geometry"
)

// ============================================================
// Layout
// ============================================================

// Layout reports on-screen boxes of the description panel and of item
// shapes.
type Layout interface {
	PanelBox() geometry.Box
	ShapeBox(uid string) (geometry.Box, bool)
}

// Settler is implemented by layouts that can tell when the page has
// settled after the description panel changed.
type Settler interface {
	Settled(ctx context.Context) error
}

// Viewport places the diagram on screen: screen = scale * root + offset.
type Viewport struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

func (v Viewport) Matrix() geometry.Matrix {
	return geometry.Translate(v.OffsetX, v.OffsetY).Multiply(geometry.Scale(v.Scale, v.Scale))
}

// Diagram is the part of the renderer the layout measures.
type Diagram interface {
	Bounds(uid string) (geometry.Box, bool)
	WorldTransform() (geometry.Matrix, error)
}

// ViewportLayout is the headless page layout: a fixed viewport for the
// diagram and a fixed box for the description panel. Layout is computed
// synchronously, so it is always settled.
type ViewportLayout struct {
	diagram  Diagram
	viewport Viewport
	panel    geometry.Box
}

func NewViewportLayout(d Diagram, viewport Viewport, panel geometry.Box) *ViewportLayout {
	if viewport.Scale == 0 {
		viewport.Scale = 1
	}
	return &ViewportLayout{diagram: d, viewport: viewport, panel: panel}
}

// CTM maps diagram space to screen space.
func (l *ViewportLayout) CTM() (geometry.Matrix, error) {
	world, err := l.diagram.WorldTransform()
	if err != nil {
		return geometry.Matrix{}, err
	}
	return l.viewport.Matrix().Multiply(world), nil
}

func (l *ViewportLayout) Viewport() Viewport { return l.viewport }

func (l *ViewportLayout) PanelBox() geometry.Box { return l.panel }

func (l *ViewportLayout) ShapeBox(uid string) (geometry.Box, bool) {
	b, ok := l.diagram.Bounds(uid)
	if !ok {
		return geometry.Box{}, false
	}
	ctm, err := l.CTM()
	if err != nil {
		return geometry.Box{}, false
	}
	return b.Transform(ctm), true
}

// ToDiagram maps a screen point into diagram coordinates.
func (l *ViewportLayout) ToDiagram(p geometry.Point) (geometry.Point, error) {
	ctm, err := l.CTM()
	if err != nil {
		return geometry.Point{}, err
	}
	return geometry.ScreenToDiagram(ctm, p)
}

func (l *ViewportLayout) Settled(ctx context.Context) error {
	return ctx.Err()
}
