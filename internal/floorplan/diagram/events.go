package diagram

import (
	"floorplan/internal/floorplan/models"
	"floorplan/internal/floorplan/svgdoc"
)

// ============================================================
// Click delivery
// ============================================================

// Dispatch delivers a click whose event target is el. Only clicks aimed
// directly at a shape outline or at the document root are handled; clicks
// on children (titles, direction ticks) or on base-plan artwork are
// ignored, as they would be when bubbling. Reports whether a handler ran.
func (r *Renderer) Dispatch(el *svgdoc.Element) bool {
	r.mu.Lock()
	var shapeFn func(*models.Item)
	var item *models.Item
	var backgroundFn func()

	if shape, ok := r.owners[el]; ok {
		shapeFn, item = r.onShape, shape.Item
	} else if el == r.doc.Root {
		backgroundFn = r.onBackground
	}
	r.mu.Unlock()

	// Handlers run unlocked: they call back into the renderer.
	switch {
	case shapeFn != nil:
		shapeFn(item)
		return true
	case backgroundFn != nil:
		backgroundFn()
		return true
	}
	return false
}

// DispatchID delivers a click to the element with the given id. An empty id
// targets the document root.
func (r *Renderer) DispatchID(id string) bool {
	r.mu.Lock()
	target := r.doc.Root
	if id != "" {
		target = r.doc.Root.FindByID(id)
	}
	r.mu.Unlock()

	if target == nil {
		return false
	}
	return r.Dispatch(target)
}
