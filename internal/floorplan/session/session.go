package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"floorplan/internal/floorplan/describe"
	"floorplan/internal/floorplan/diagram"
	"floorplan/internal/floorplan/export"
	"floorplan/internal/floorplan/geometry"
	"floorplan/internal/floorplan/models"
	"floorplan/internal/floorplan/registry"
	"floorplan/internal/floorplan/selection"
	"floorplan/internal/floorplan/source"
	"floorplan/internal/floorplan/svgdoc"
	"floorplan/internal/floorplan/tree"
)

var (
	ErrUnknownNode = errors.New("unknown list entry")
	ErrNotLinked   = errors.New("list entry is not linked to the diagram")
)

// Deps is everything a session needs from the service.
type Deps struct {
	Fetcher        source.Fetcher
	Sources        []string
	BasePlan       func() (*svgdoc.Document, error)
	Concurrency    int
	SettleDelay    time.Duration
	Viewport       selection.Viewport
	Panel          geometry.Box
	BookingAccount string
	Logger         *slog.Logger
}

// ============================================================
// Session
// ============================================================

// Session is one page view: its own registry, diagram, navigation list
// and selection.
type Session struct {
	ID      string
	Created time.Time

	Registry   *registry.Registry
	Diagram    *diagram.Renderer
	Controller *selection.Controller
	Layout     *selection.ViewportLayout

	mu     sync.Mutex
	tree   *tree.Tree
	logger *slog.Logger
}

// Open loads every source concurrently, drawing each one as soon as it has
// loaded. Once all have settled the registry is sorted, the navigation list
// built and the fragment, if any, selected. Failing sources are logged and
// skipped.
func Open(ctx context.Context, id string, deps Deps, fragment string) (*Session, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session", id)

	doc, err := deps.BasePlan()
	if err != nil {
		return nil, fmt.Errorf("base plan: %w", err)
	}

	s := &Session{
		ID:       id,
		Created:  time.Now(),
		Registry: registry.New(deps.Fetcher, logger),
		Diagram:  diagram.New(doc, logger),
		logger:   logger,
	}
	s.Layout = selection.NewViewportLayout(s.Diagram, deps.Viewport, deps.Panel)
	s.Controller = selection.NewController(selection.Options{
		Items:       s.Registry,
		Shapes:      s.Diagram,
		Loader:      describe.NewLoader(deps.Fetcher, deps.BookingAccount, logger),
		Layout:      s.Layout,
		SettleDelay: deps.SettleDelay,
		Logger:      logger,
	})
	s.Diagram.OnShapeClick(func(it *models.Item) { s.Controller.Select(context.Background(), it) })
	s.Diagram.OnBackgroundClick(func() { s.Controller.Clear(context.Background()) })

	var g errgroup.Group
	if deps.Concurrency > 0 {
		g.SetLimit(deps.Concurrency)
	}
	for _, src := range deps.Sources {
		g.Go(func() error {
			items, err := s.Registry.Load(ctx, src)
			if err != nil {
				logger.Error("source failed", "source", src, "error", err)
				return nil
			}
			s.Diagram.Draw(items, src)
			return nil
		})
	}
	_ = g.Wait()

	s.Registry.SortByName()
	s.tree = tree.Render(s.Registry.Items())
	logger.Info("session ready", "sources", len(deps.Sources), "items", s.Registry.Len(), "shapes", s.Diagram.Len())

	if id := strings.TrimPrefix(fragment, "#"); id != "" {
		if err := s.Controller.SelectByID(ctx, id).Wait(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Items filters the navigation list by name and returns the visible part.
func (s *Session) Items(filter string) []*tree.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pred tree.Predicate
	if filter != "" {
		pred = tree.NameContains(filter)
	}
	s.tree.Filter(pred)
	return s.tree.Visible()
}

// Activate selects the item of a top-level list entry.
func (s *Session) Activate(ctx context.Context, key string) (*selection.Pending, error) {
	s.mu.Lock()
	node := s.tree.Lookup(key)
	s.mu.Unlock()
	if node == nil {
		return nil, ErrUnknownNode
	}
	if !node.Linked {
		return nil, ErrNotLinked
	}
	return s.Controller.Select(ctx, node.Item), nil
}

// Click delivers a click to the diagram element with the given id; an
// empty id is the diagram background. Clicks on anything but an item
// outline or the background change nothing.
func (s *Session) Click(target string) (bool, *selection.Pending) {
	if !s.Diagram.DispatchID(target) {
		return false, nil
	}
	return true, s.Controller.Current()
}

// ClickAt delivers a click at a screen position: the top-most item there
// is selected, empty space clears the selection.
func (s *Session) ClickAt(ctx context.Context, screen geometry.Point) (*selection.Pending, error) {
	p, err := s.Layout.ToDiagram(screen)
	if err != nil {
		return nil, err
	}
	if it := s.Diagram.HitTest(p); it != nil {
		return s.Controller.Select(ctx, it), nil
	}
	return s.Controller.Clear(ctx), nil
}

// Locate converts a screen position to diagram coordinates, rounded to
// thousandths.
func (s *Session) Locate(screen geometry.Point) (geometry.Point, error) {
	p, err := s.Layout.ToDiagram(screen)
	if err != nil {
		return geometry.Point{}, err
	}
	return geometry.Point{X: roundMilli(p.X), Y: roundMilli(p.Y)}, nil
}

func roundMilli(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func (s *Session) WriteDiagram(w io.Writer) error {
	_, err := s.Diagram.WriteTo(w)
	return err
}

func (s *Session) WriteOverlay(w io.Writer) {
	vp := s.Layout.Viewport()
	selection.RenderOverlay(w, int(vp.Width), int(vp.Height), s.Controller.Indicator())
}

func (s *Session) WriteExport(w io.Writer) error {
	return export.WriteTSV(w, s.Registry.Items())
}
