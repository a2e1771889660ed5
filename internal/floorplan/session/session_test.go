package session

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floorplan/internal/floorplan/diagram"
	"floorplan/internal/floorplan/geometry"
	"floorplan/internal/floorplan/selection"
	"floorplan/internal/floorplan/source"
	"floorplan/internal/floorplan/svgdoc"
	"floorplan/internal/floorplan/tree"
)

var shopFiles = map[string]string{
	"furnashings/tools.json": `[
		{"name":"Saw","unique_id":"s","x":5,"y":5,"width":2,"depth":2,"cssClass":"tool"},
		{"name":"Lathe","x":20,"y":5,"width":2,"depth":3,"rotation":0.25}
	]`,
	"furnashings/storage.json": `[
		{"name":"Cabinet","unique_id":"c","x":40,"y":5,"width":4,"depth":2,"contents":[
			"Screws", {"name":"Drawer","contents":["Drill bits"]}
		]},
		{"name":"Apron"}
	]`,
	"furnashings/broken.json": `[{"name":`,
	"furnashings/slashed.json": `[
		{"name":"Rack","unique_id":"1","x":1,"y":1,"width":1,"depth":1,"contents":["Clamps"]},
		{"name":"Shelf","unique_id":"1/0","x":10,"y":10,"width":1,"depth":1}
	]`,
}

func testDeps(sources ...string) Deps {
	fsys := fstest.MapFS{}
	for name, body := range shopFiles {
		fsys[name] = &fstest.MapFile{Data: []byte(body)}
	}
	return Deps{
		Fetcher:     source.NewFSFetcher(fsys),
		Sources:     sources,
		BasePlan:    func() (*svgdoc.Document, error) { return svgdoc.New(100, 50), nil },
		Concurrency: 2,
		SettleDelay: time.Millisecond,
		Viewport:    selection.Viewport{Scale: 2, OffsetX: 10, OffsetY: 20, Width: 200, Height: 100},
		Panel:       geometry.XYWH(0, 0, 60, 10),
	}
}

func openTest(t *testing.T, fragment string, sources ...string) *Session {
	t.Helper()
	if len(sources) == 0 {
		sources = []string{"furnashings/tools.json", "furnashings/storage.json"}
	}
	s, err := Open(context.Background(), "test", testDeps(sources...), fragment)
	require.NoError(t, err)
	return s
}

func waitFor(t *testing.T, p *selection.Pending) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Wait(ctx))
}

func TestOpenSkipsFailingSources(t *testing.T) {
	s := openTest(t, "", "furnashings/tools.json", "furnashings/broken.json", "furnashings/missing.json", "furnashings/storage.json")

	var names []string
	for _, it := range s.Registry.Items() {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"Apron", "Cabinet", "Lathe", "Saw"}, names)
	assert.Equal(t, 3, s.Diagram.Len())
	assert.Equal(t, selection.State{}, s.Controller.State())
}

func TestActivateSlashIDEntry(t *testing.T) {
	s, err := Open(context.Background(), "test", testDeps("furnashings/slashed.json"), "")
	require.NoError(t, err)

	p, err := s.Activate(context.Background(), tree.RootKey("1/0"))
	require.NoError(t, err)
	waitFor(t, p)
	assert.Equal(t, "1/0", s.Controller.State().Selected)

	_, err = s.Activate(context.Background(), "1/0")
	assert.ErrorIs(t, err, ErrNotLinked)
}

func TestOpenSelectsFragment(t *testing.T) {
	s := openTest(t, "#c")

	state := s.Controller.State()
	assert.Equal(t, "c", state.Selected)
	assert.Equal(t, "#c", state.Fragment)
	require.NotNil(t, state.Indicator)
	require.NotNil(t, state.Panel)
	assert.Equal(t, []string{"Screws", "Drawer"}, state.Panel.Entries)
}

func TestOpenBasePlanFailure(t *testing.T) {
	deps := testDeps("furnashings/tools.json")
	deps.BasePlan = func() (*svgdoc.Document, error) { return svgdoc.Parse(strings.NewReader("<html/>")) }

	_, err := Open(context.Background(), "x", deps, "")
	assert.ErrorContains(t, err, "base plan")
}

func TestItemsFilter(t *testing.T) {
	s := openTest(t, "")

	assert.Len(t, s.Items(""), 4)

	roots := s.Items("BITS")
	require.Len(t, roots, 1)
	assert.Equal(t, "Cabinet", roots[0].Item.Name)
	require.Len(t, roots[0].Children, 1)
	assert.Equal(t, "Drawer", roots[0].Children[0].Item.Name)

	assert.Empty(t, s.Items("nothing like this"))
}

func TestActivate(t *testing.T) {
	s := openTest(t, "")

	p, err := s.Activate(context.Background(), "s")
	require.NoError(t, err)
	waitFor(t, p)
	assert.Equal(t, "s", s.Controller.State().Selected)

	_, err = s.Activate(context.Background(), "c/1")
	assert.ErrorIs(t, err, ErrNotLinked)
	_, err = s.Activate(context.Background(), "zzz")
	assert.ErrorIs(t, err, ErrUnknownNode)

	// An unplaced entry clears the selection.
	var apron string
	for _, it := range s.Registry.Items() {
		if it.Name == "Apron" {
			apron = it.UniqueID
		}
	}
	p, err = s.Activate(context.Background(), apron)
	require.NoError(t, err)
	waitFor(t, p)
	assert.Equal(t, selection.State{}, s.Controller.State())
}

func TestClick(t *testing.T) {
	s := openTest(t, "")

	handled, p := s.Click(diagram.OutlineID("s"))
	require.True(t, handled)
	waitFor(t, p)
	assert.Equal(t, "s", s.Controller.State().Selected)

	handled, _ = s.Click(svgdoc.WorldGroupID)
	assert.False(t, handled)
	assert.Equal(t, "s", s.Controller.State().Selected)

	handled, p = s.Click("")
	require.True(t, handled)
	waitFor(t, p)
	assert.Empty(t, s.Controller.State().Selected)
}

func TestClickAt(t *testing.T) {
	s := openTest(t, "")

	// Saw is centered on (5,5): screen (20,30) under scale 2 offset (10,20).
	p, err := s.ClickAt(context.Background(), geometry.Point{X: 20, Y: 30})
	require.NoError(t, err)
	waitFor(t, p)
	assert.Equal(t, "s", s.Controller.State().Selected)

	p, err = s.ClickAt(context.Background(), geometry.Point{X: 150, Y: 90})
	require.NoError(t, err)
	waitFor(t, p)
	assert.Empty(t, s.Controller.State().Selected)
}

func TestLocate(t *testing.T) {
	s := openTest(t, "")

	p, err := s.Locate(geometry.Point{X: 13, Y: 24.5})
	require.NoError(t, err)
	assert.Equal(t, geometry.Point{X: 1.5, Y: 2.25}, p)

	p, err = s.Locate(geometry.Point{X: 10.0012345, Y: 20})
	require.NoError(t, err)
	assert.Equal(t, 0.001, p.X)
}

func TestWriters(t *testing.T) {
	s := openTest(t, "#s")

	var buf bytes.Buffer
	require.NoError(t, s.WriteDiagram(&buf))
	assert.Contains(t, buf.String(), `id="s"`)
	assert.Contains(t, buf.String(), diagram.SelectedClass)

	buf.Reset()
	s.WriteOverlay(&buf)
	assert.Contains(t, buf.String(), `class="target"`)

	buf.Reset()
	require.NoError(t, s.WriteExport(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Apron\t\t", lines[1][:len("Apron\t\t")])
	assert.Contains(t, lines[4], "Saw\t\ts\t24\t24")
}

func TestManager(t *testing.T) {
	m := NewManager(testDeps("furnashings/tools.json"), 0)

	s, err := m.Create(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Len())

	other, err := m.Create(context.Background(), "#s")
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, other.ID)
	assert.Empty(t, s.Controller.State().Selected)
	assert.Equal(t, "s", other.Controller.State().Selected)

	assert.True(t, m.Close(s.ID))
	assert.False(t, m.Close(s.ID))
	_, ok = m.Get(s.ID)
	assert.False(t, ok)
}

func TestManagerEvictsIdleSessions(t *testing.T) {
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewManager(testDeps("furnashings/tools.json"), 10*time.Minute)
	m.now = func() time.Time { return clock }

	idle, err := m.Create(context.Background(), "")
	require.NoError(t, err)
	busy, err := m.Create(context.Background(), "")
	require.NoError(t, err)

	clock = clock.Add(6 * time.Minute)
	_, ok := m.Get(busy.ID)
	require.True(t, ok)
	assert.Zero(t, m.Sweep())

	clock = clock.Add(6 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	_, ok = m.Get(idle.ID)
	assert.False(t, ok)
	_, ok = m.Get(busy.ID)
	assert.True(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestManagerRunSweepsUntilCancelled(t *testing.T) {
	m := NewManager(testDeps("furnashings/tools.json"), time.Millisecond)
	_, err := m.Create(context.Background(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestManagerWithoutTTLKeepsSessions(t *testing.T) {
	m := NewManager(testDeps("furnashings/tools.json"), 0)
	m.now = func() time.Time { return time.Now().Add(-24 * time.Hour) }
	_, err := m.Create(context.Background(), "")
	require.NoError(t, err)

	m.now = time.Now
	assert.Zero(t, m.Sweep())
	assert.Equal(t, 1, m.Len())
}
