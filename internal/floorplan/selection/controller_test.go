package selection

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floorplan/internal/floorplan/describe"
	"floorplan/internal/floorplan/diagram"
	"floorplan/internal/floorplan/geometry"
	"floorplan/internal/floorplan/models"
	"floorplan/internal/floorplan/registry"
	"floorplan/internal/floorplan/source"
	"floorplan/internal/floorplan/svgdoc"
)

type fixture struct {
	registry *registry.Registry
	diagram  *diagram.Renderer
	ctrl     *Controller
}

func newFixture(t *testing.T, fetcher source.Fetcher, sources ...string) *fixture {
	t.Helper()
	reg := registry.New(fetcher, nil)
	r := diagram.New(svgdoc.New(100, 100), nil)
	for _, src := range sources {
		items, err := reg.Load(context.Background(), src)
		require.NoError(t, err)
		r.Draw(items, src)
	}
	layout := NewViewportLayout(r, Viewport{Scale: 1}, geometry.XYWH(0, 0, 40, 10))
	ctrl := NewController(Options{
		Items:  reg,
		Shapes: r,
		Loader: describe.NewLoader(fetcher, "", nil),
		Layout: layout,
	})
	r.OnShapeClick(func(it *models.Item) { ctrl.Select(context.Background(), it) })
	r.OnBackgroundClick(func() { ctrl.Clear(context.Background()) })
	return &fixture{registry: reg, diagram: r, ctrl: ctrl}
}

func mapFetcher(files map[string]string) source.Fetcher {
	fsys := fstest.MapFS{}
	for name, body := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(body)}
	}
	return source.NewFSFetcher(fsys)
}

func wait(t *testing.T, p *Pending) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Wait(ctx))
}

func TestSelectLatheThenClickBackground(t *testing.T) {
	f := newFixture(t, mapFetcher(map[string]string{
		"things.json": `[{"name":"Lathe","x":5,"y":5,"width":2,"depth":3,"rotation":0.25}]`,
	}), "things.json")

	items := f.registry.Items()
	require.Len(t, items, 1)
	lathe := items[0]
	initial := f.ctrl.State()

	wait(t, f.ctrl.SelectByID(context.Background(), lathe.UniqueID))

	state := f.ctrl.State()
	assert.Equal(t, lathe.UniqueID, state.Selected)
	assert.Equal(t, "#"+lathe.UniqueID, state.Fragment)
	require.NotNil(t, state.Panel)
	assert.Equal(t, "Lathe", state.Panel.Name)
	require.NotNil(t, state.Indicator)
	assert.InDelta(t, 5, state.Indicator.Center.X, 1e-9)
	assert.InDelta(t, 5, state.Indicator.Center.Y, 1e-9)
	assert.InDelta(t, 1.2*geometry.BoxRadius(geometry.XYWH(0, 0, 3, 2)), state.Indicator.Radius, 1e-9)

	shape, _ := f.diagram.Shape(lathe.UniqueID)
	assert.True(t, shape.Group.HasClass(diagram.SelectedClass))

	require.True(t, f.diagram.DispatchID(""))
	wait(t, f.ctrl.Current())

	assert.Nil(t, f.ctrl.Selected())
	assert.Equal(t, initial, f.ctrl.State())
	assert.False(t, shape.Group.HasClass(diagram.SelectedClass))
}

func TestShapeClickSelects(t *testing.T) {
	f := newFixture(t, mapFetcher(map[string]string{
		"things.json": `[{"name":"Saw","unique_id":"s","x":5,"y":5,"width":2,"depth":2,"description":"Table saw"}]`,
	}), "things.json")

	require.True(t, f.diagram.DispatchID(diagram.OutlineID("s")))
	wait(t, f.ctrl.Current())

	state := f.ctrl.State()
	assert.Equal(t, "s", state.Selected)
	assert.Equal(t, describe.KindText, state.Panel.Kind)
	assert.Equal(t, "Table saw", state.Panel.Text)
}

func TestSelectUnplacedOrUnknownClears(t *testing.T) {
	f := newFixture(t, mapFetcher(map[string]string{
		"things.json": `[{"name":"Saw","unique_id":"s","x":5,"y":5,"width":2,"depth":2},{"name":"Glue","unique_id":"g"}]`,
	}), "things.json")

	wait(t, f.ctrl.SelectByID(context.Background(), "s"))
	wait(t, f.ctrl.SelectByID(context.Background(), "g"))
	assert.Equal(t, State{}, f.ctrl.State())

	wait(t, f.ctrl.SelectByID(context.Background(), "s"))
	wait(t, f.ctrl.SelectByID(context.Background(), "nope"))
	assert.Equal(t, State{}, f.ctrl.State())
}

func TestReselectReappliesEmphasis(t *testing.T) {
	f := newFixture(t, mapFetcher(map[string]string{
		"things.json": `[{"name":"Saw","unique_id":"s","x":5,"y":5,"width":2,"depth":2}]`,
	}), "things.json")

	wait(t, f.ctrl.SelectByID(context.Background(), "s"))
	wait(t, f.ctrl.Refresh(context.Background()))

	shape, _ := f.diagram.Shape("s")
	assert.True(t, shape.Group.HasClass(diagram.SelectedClass))
	assert.Equal(t, []string{diagram.SelectedClass}, shape.Group.Classes())
	assert.NotNil(t, f.ctrl.Indicator())
}

func TestDescriptionFetchFailureShowsReference(t *testing.T) {
	f := newFixture(t, mapFetcher(map[string]string{
		"data/things.json": `[{"name":"Drill","unique_id":"d","x":1,"y":1,"width":1,"depth":1,"description_uri":"doc/drill.html"}]`,
	}), "data/things.json")

	wait(t, f.ctrl.SelectByID(context.Background(), "d"))

	panel := f.ctrl.State().Panel
	require.NotNil(t, panel)
	assert.Equal(t, describe.KindText, panel.Kind)
	assert.Equal(t, "doc/drill.html", panel.Text)
}

// gatedFetcher holds description fetches until released.
type gatedFetcher struct {
	source.Fetcher
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
}

func (g *gatedFetcher) Fetch(ctx context.Context, location string) (*source.Document, error) {
	if location == "slow.html" {
		g.once.Do(func() { close(g.started) })
		<-g.gate
	}
	return g.Fetcher.Fetch(ctx, location)
}

func TestStaleDescriptionIsDiscarded(t *testing.T) {
	fetcher := &gatedFetcher{
		Fetcher: mapFetcher(map[string]string{
			"things.json": `[
				{"name":"Slow","unique_id":"a","x":1,"y":1,"width":1,"depth":1,"description_uri":"slow.html"},
				{"name":"Fast","unique_id":"b","x":9,"y":9,"width":1,"depth":1,"description":"fast"}
			]`,
			"slow.html": "<p>slow</p>",
		}),
		gate:    make(chan struct{}),
		started: make(chan struct{}),
	}
	f := newFixture(t, fetcher, "things.json")

	slow := f.ctrl.SelectByID(context.Background(), "a")
	<-fetcher.started
	wait(t, f.ctrl.SelectByID(context.Background(), "b"))
	close(fetcher.gate)
	wait(t, slow)

	state := f.ctrl.State()
	assert.Equal(t, "b", state.Selected)
	assert.Equal(t, "fast", state.Panel.Text)
	require.NotNil(t, state.Indicator)
	assert.InDelta(t, 9, state.Indicator.Center.X, 1e-9)
}

// fixedLayout has no settled signal, so the controller falls back to the
// settle delay.
type fixedLayout struct{ shape geometry.Box }

func (l fixedLayout) PanelBox() geometry.Box { return geometry.XYWH(0, -20, 10, 10) }

func (l fixedLayout) ShapeBox(string) (geometry.Box, bool) { return l.shape, true }

func TestSettleDelayFallback(t *testing.T) {
	it := &models.Item{Name: "Box", UniqueID: "x"}
	one := 1.0
	it.X, it.Y, it.Width, it.Depth = &one, &one, &one, &one

	ctrl := NewController(Options{
		Items:       registry.New(nil, nil),
		Shapes:      diagram.New(svgdoc.New(10, 10), nil),
		Loader:      describe.NewLoader(nil, "", nil),
		Layout:      fixedLayout{shape: geometry.XYWH(0, 0, 10, 10)},
		SettleDelay: 5 * time.Millisecond,
	})

	wait(t, ctrl.Select(context.Background(), it))
	ind := ctrl.Indicator()
	require.NotNil(t, ind)
	assert.InDelta(t, 8.485281374, ind.Radius, 1e-6)
	assert.Equal(t, geometry.Point{X: 5, Y: -10}, ind.Anchor)
	assert.InDelta(t, 5, ind.End.X, 1e-9)
	assert.InDelta(t, 5-ind.Radius, ind.End.Y, 1e-9)
}

func TestRenderOverlay(t *testing.T) {
	ind := ComputeIndicator(geometry.XYWH(0, 0, 10, 10), geometry.XYWH(0, -20, 10, 10))

	var buf bytes.Buffer
	RenderOverlay(&buf, 200, 100, &ind)
	out := buf.String()
	assert.Contains(t, out, `cx="5" cy="5" r="8"`)
	assert.Contains(t, out, `class="target-line"`)
	assert.Contains(t, out, "M 5 -10 L ")

	buf.Reset()
	RenderOverlay(&buf, 200, 100, nil)
	assert.NotContains(t, buf.String(), "<circle")
}

type stubDiagram struct {
	box   geometry.Box
	world geometry.Matrix
}

func (d stubDiagram) Bounds(string) (geometry.Box, bool) { return d.box, true }

func (d stubDiagram) WorldTransform() (geometry.Matrix, error) { return d.world, nil }

func TestViewportLayout(t *testing.T) {
	l := NewViewportLayout(stubDiagram{
		box:   geometry.XYWH(1, 1, 2, 2),
		world: geometry.Translate(1, 0),
	}, Viewport{Scale: 2, OffsetX: 10, OffsetY: 20}, geometry.XYWH(0, 0, 5, 5))

	box, ok := l.ShapeBox("any")
	require.True(t, ok)
	assert.Equal(t, geometry.Box{MinX: 14, MinY: 22, MaxX: 18, MaxY: 26}, box)

	p, err := l.ToDiagram(geometry.Point{X: 14, Y: 22})
	require.NoError(t, err)
	assert.InDelta(t, 1, p.X, 1e-9)
	assert.InDelta(t, 1, p.Y, 1e-9)
	assert.NoError(t, l.Settled(context.Background()))
}
