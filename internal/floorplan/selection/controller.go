package selection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"floorplan/internal/floorplan/describe"
	"floorplan/internal/floorplan/models"
)

// DefaultSettleDelay is waited after the description completes when the
// layout offers no settled signal.
const DefaultSettleDelay = 100 * time.Millisecond

// ============================================================
// Pending
// ============================================================

// Pending completes once a selection change has been fully applied.
type Pending struct {
	done chan struct{}
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func completed() *Pending {
	p := newPending()
	close(p.done)
	return p
}

func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the change is applied or ctx ends.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ============================================================
// Controller
// ============================================================

// Emphasizer toggles the visual emphasis of a drawn item.
type Emphasizer interface {
	Emphasize(uid string, on bool)
}

// Finder resolves item identifiers.
type Finder interface {
	FindByID(id string) *models.Item
}

// State is a snapshot of what the page shows for the selection.
type State struct {
	Selected  string          `json:"selected,omitempty"`
	Name      string          `json:"name,omitempty"`
	Fragment  string          `json:"fragment"`
	Panel     *describe.Panel `json:"panel,omitempty"`
	Indicator *Indicator      `json:"indicator,omitempty"`
}

// Controller owns the single current selection and everything derived
// from it: emphasis, description panel, target indicator and location
// fragment.
type Controller struct {
	mu          sync.Mutex
	items       Finder
	shapes      Emphasizer
	loader      *describe.Loader
	layout      Layout
	settleDelay time.Duration
	logger      *slog.Logger

	generation uint64
	selected   *models.Item
	panel      *describe.Panel
	indicator  *Indicator
	fragment   string
	pending    *Pending
}

type Options struct {
	Items       Finder
	Shapes      Emphasizer
	Loader      *describe.Loader
	Layout      Layout
	SettleDelay time.Duration
	Logger      *slog.Logger
}

func NewController(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	return &Controller{
		items:       opts.Items,
		shapes:      opts.Shapes,
		loader:      opts.Loader,
		layout:      opts.Layout,
		settleDelay: opts.SettleDelay,
		logger:      opts.Logger.With("component", "selection"),
		pending:     completed(),
	}
}

// SelectByID selects the item with the identifier. Unknown identifiers
// clear the selection.
func (c *Controller) SelectByID(ctx context.Context, id string) *Pending {
	var it *models.Item
	if id != "" {
		it = c.items.FindByID(id)
		if it == nil {
			c.logger.Debug("select unknown id", "id", id)
		}
	}
	return c.Select(ctx, it)
}

// Clear deselects. It is Select with no item.
func (c *Controller) Clear(ctx context.Context) *Pending {
	return c.Select(ctx, nil)
}

// Select makes it the selected item. Absent or unplaced items clear the
// selection, the description panel and the location fragment. Selecting
// the current item again re-applies it from scratch.
func (c *Controller) Select(ctx context.Context, it *models.Item) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	gen := c.generation

	if c.selected != nil {
		c.shapes.Emphasize(c.selected.UniqueID, false)
	}
	c.indicator = nil

	if it == nil || !it.Placed() {
		c.selected = nil
		c.panel = nil
		c.fragment = ""
		c.pending = completed()
		return c.pending
	}

	c.selected = it
	c.shapes.Emphasize(it.UniqueID, true)
	c.panel = c.loader.Header(it)
	c.fragment = "#" + it.UniqueID

	p := newPending()
	c.pending = p
	desc := c.loader.Describe(ctx, it)
	go c.finish(context.WithoutCancel(ctx), gen, it, desc, p)
	return p
}

// finish publishes the description, waits for layout to settle and draws
// the target indicator. Work for a superseded generation is discarded.
func (c *Controller) finish(ctx context.Context, gen uint64, it *models.Item, desc *describe.Pending, p *Pending) {
	defer close(p.done)

	<-desc.Done()
	if !c.publish(gen, func() { c.panel = desc.Panel() }) {
		c.logger.Debug("stale description discarded", "item", it.Name, "id", it.UniqueID)
		return
	}

	if err := c.settle(ctx); err != nil {
		return
	}

	c.publish(gen, func() {
		shape, ok := c.layout.ShapeBox(it.UniqueID)
		if !ok {
			c.logger.Warn("selected item has no shape", "item", it.Name, "id", it.UniqueID)
			return
		}
		ind := ComputeIndicator(shape, c.layout.PanelBox())
		c.indicator = &ind
	})
}

// publish runs fn under the lock if gen is still current.
func (c *Controller) publish(gen uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	fn()
	return true
}

func (c *Controller) settle(ctx context.Context) error {
	if s, ok := c.layout.(Settler); ok {
		return s.Settled(ctx)
	}
	timer := time.NewTimer(c.settleDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh re-applies the current selection, for example after the page
// was resized.
func (c *Controller) Refresh(ctx context.Context) *Pending {
	c.mu.Lock()
	it := c.selected
	c.mu.Unlock()
	return c.Select(ctx, it)
}

// Current is the most recent selection change.
func (c *Controller) Current() *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Controller) Selected() *models.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

func (c *Controller) Indicator() *Indicator {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indicator == nil {
		return nil
	}
	ind := *c.indicator
	return &ind
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{Fragment: c.fragment, Panel: c.panel}
	if c.selected != nil {
		s.Selected = c.selected.UniqueID
		s.Name = c.selected.Name
	}
	if c.indicator != nil {
		ind := *c.indicator
		s.Indicator = &ind
	}
	return s
}
