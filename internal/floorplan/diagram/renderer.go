package diagram

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"floorplan/internal/floorplan/geometry"
	"floorplan/internal/floorplan/models"
	"floorplan/internal/floorplan/svgdoc"
)

// SelectedClass is added to the group of the selected item.
const SelectedClass = "selected"

// ============================================================
// Renderer
// ============================================================

// Shape is the rendered form of one placed item.
type Shape struct {
	Item      *models.Item
	Group     *svgdoc.Element
	Outline   *svgdoc.Element
	Local     geometry.Box    // outline bounds in item space
	Placement geometry.Matrix // item space -> diagram space
}

// Bounds is the shape's box in diagram space.
func (s *Shape) Bounds() geometry.Box {
	return s.Local.Transform(s.Placement)
}

// Renderer draws items into the world group of a floor plan document and
// owns every rendered handle.
type Renderer struct {
	mu     sync.Mutex
	doc    *svgdoc.Document
	world  *svgdoc.Element
	shapes map[string]*Shape
	order  []string
	owners map[*svgdoc.Element]*Shape

	onShape      func(*models.Item)
	onBackground func()
	logger       *slog.Logger
}

func New(doc *svgdoc.Document, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		doc:    doc,
		world:  doc.WorldGroup(),
		shapes: make(map[string]*Shape),
		owners: make(map[*svgdoc.Element]*Shape),
		logger: logger.With("component", "diagram"),
	}
}

// OnShapeClick registers the handler for clicks landing on an item's shape.
func (r *Renderer) OnShapeClick(fn func(*models.Item)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onShape = fn
}

// OnBackgroundClick registers the handler for clicks on empty diagram space.
func (r *Renderer) OnBackgroundClick(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onBackground = fn
}

// Draw renders every item of a source. A failing item is logged and
// skipped; the rest are still drawn. Returns the number of shapes drawn.
func (r *Renderer) Draw(items []*models.Item, sourcePath string) int {
	drawn := 0
	for index, it := range items {
		err := r.DrawItem(it, sourcePath, index)
		switch {
		case err == nil:
			drawn++
		case errors.Is(err, errNoPosition):
			r.logger.Debug("item not placed", "name", it.Name, "source", sourcePath, "index", index)
		default:
			r.logger.Warn("draw failed", "name", it.Name, "source", sourcePath, "index", index, "error", err)
		}
	}
	r.logger.Info("source drawn", "source", sourcePath, "shapes", drawn, "items", len(items))
	return drawn
}

var errNoPosition = errors.New("no numeric x/y")

// DrawItem renders one item, replacing any shape it already has.
func (r *Renderer) DrawItem(it *models.Item, sourcePath string, index int) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &models.DrawError{Item: it.Name, Source: sourcePath, Index: index, Reason: fmt.Sprint(rec)}
		}
	}()

	if !it.HasPosition() {
		return errNoPosition
	}

	shape, err := buildShape(it)
	if err != nil {
		return &models.DrawError{Item: it.Name, Source: sourcePath, Index: index, Reason: err.Error()}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(it.UniqueID)
	r.world.AppendChild(shape.Group)
	r.shapes[it.UniqueID] = shape
	r.owners[shape.Outline] = shape
	r.order = append(r.order, it.UniqueID)
	return nil
}

// Remove detaches an item's shape from the document.
func (r *Renderer) Remove(uid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(uid)
}

func (r *Renderer) removeLocked(uid string) bool {
	shape, ok := r.shapes[uid]
	if !ok {
		return false
	}
	if shape.Group.Parent != nil {
		shape.Group.Parent.RemoveChild(shape.Group)
	}
	delete(r.shapes, uid)
	delete(r.owners, shape.Outline)
	for i, id := range r.order {
		if id == uid {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// ============================================================
// Shape construction
// ============================================================

func buildShape(it *models.Item) (*Shape, error) {
	group := svgdoc.NewElement("g", svgdoc.Attr{Name: "id", Value: it.UniqueID})
	if it.StyleClass != "" {
		group.SetAttr("class", it.StyleClass)
	}

	var outline *svgdoc.Element
	var local geometry.Box

	if it.PathOutline != "" {
		box, err := geometry.PathBounds(it.PathOutline)
		if err != nil {
			return nil, fmt.Errorf("path_d: %w", err)
		}
		local = box
		outline = svgdoc.NewElement("path", svgdoc.Attr{Name: "d", Value: it.PathOutline})
		group.AppendChild(outline)
	} else {
		if it.Width == nil || it.Depth == nil {
			return nil, fmt.Errorf("no path_d and no numeric width/depth")
		}
		w, d := *it.Width, *it.Depth
		local = geometry.XYWH(-w/2, -d/2, w, d)
		outline = svgdoc.NewElement("rect",
			svgdoc.Attr{Name: "x", Value: geometry.FormatFloat(-w / 2)},
			svgdoc.Attr{Name: "y", Value: geometry.FormatFloat(-d / 2)},
			svgdoc.Attr{Name: "width", Value: geometry.FormatFloat(w)},
			svgdoc.Attr{Name: "height", Value: geometry.FormatFloat(d)},
		)
		tick := svgdoc.NewElement("path",
			svgdoc.Attr{Name: "class", Value: "direction-indicator"},
			svgdoc.Attr{Name: "d", Value: "M 0 0 v " + geometry.FormatFloat(-d/2)},
		)
		group.AppendChild(outline)
		group.AppendChild(tick)
	}

	outline.SetAttr("id", OutlineID(it.UniqueID))
	// vector-effect does not cascade, so the outline carries the class too.
	if it.StyleClass != "" {
		outline.SetAttr("class", it.StyleClass)
	}
	title := svgdoc.NewElement("title")
	title.AppendText(it.Name)
	outline.AppendChild(title)

	x, y, deg := *it.X, *it.Y, it.RotationDegrees()
	group.SetAttr("transform", fmt.Sprintf("translate(%s %s) rotate(%s)",
		geometry.FormatFloat(x), geometry.FormatFloat(y), geometry.FormatFloat(deg)))

	return &Shape{
		Item:      it,
		Group:     group,
		Outline:   outline,
		Local:     local,
		Placement: geometry.Translate(x, y).Multiply(geometry.Rotate(deg)),
	}, nil
}

// OutlineID is the element id of an item's clickable outline.
func OutlineID(uid string) string {
	return uid + "-outline"
}

// ============================================================
// Queries & emphasis
// ============================================================

func (r *Renderer) Shape(uid string) (*Shape, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shapes[uid]
	return s, ok
}

func (r *Renderer) Bounds(uid string) (geometry.Box, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shapes[uid]
	if !ok {
		return geometry.Box{}, false
	}
	return s.Bounds(), true
}

// Emphasize toggles the selected class on an item's group. Missing shapes
// are ignored.
func (r *Renderer) Emphasize(uid string, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shapes[uid]
	if !ok {
		return
	}
	if on {
		s.Group.AddClass(SelectedClass)
	} else {
		s.Group.RemoveClass(SelectedClass)
	}
}

// HitTest returns the top-most item whose outline contains the diagram
// point. Path outlines are tested against their bounding box.
func (r *Renderer) HitTest(p geometry.Point) *models.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		s := r.shapes[r.order[i]]
		inv, err := s.Placement.Inverse()
		if err != nil {
			continue
		}
		if s.Local.Contains(inv.Apply(p)) {
			return s.Item
		}
	}
	return nil
}

// Len is the number of shapes on the diagram.
func (r *Renderer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shapes)
}

// WriteTo serializes the current document, shapes and emphasis included.
func (r *Renderer) WriteTo(w io.Writer) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.WriteTo(w)
}

// WorldTransform maps diagram space to the root of the document.
func (r *Renderer) WorldTransform() (geometry.Matrix, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.WorldTransform()
}
