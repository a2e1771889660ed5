package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"floorplan/internal/floorplan/models"
	"floorplan/internal/floorplan/source"
)

// ============================================================
// Registry
// ============================================================

// LoadError wraps a fetch or parse failure for one source document.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Registry is the ordered collection of every loaded item of a session.
// Membership only grows; items are never removed.
type Registry struct {
	mu      sync.RWMutex
	items   []*models.Item
	byID    map[string]*models.Item
	counter int
	fetcher source.Fetcher
	logger  *slog.Logger
}

func New(fetcher source.Fetcher, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byID:    make(map[string]*models.Item),
		fetcher: fetcher,
		logger:  logger.With("component", "registry"),
	}
}

// Load fetches and parses one source document and adds its items. On any
// failure nothing from the source is added.
func (r *Registry) Load(ctx context.Context, sourcePath string) ([]*models.Item, error) {
	doc, err := r.fetcher.Fetch(ctx, sourcePath)
	if err != nil {
		return nil, &LoadError{Source: sourcePath, Err: err}
	}

	items, err := models.ParseRecords(doc.Body)
	if err != nil {
		return nil, &LoadError{Source: sourcePath, Err: &models.ParseError{Source: sourcePath, Err: err}}
	}

	r.Add(sourcePath, items)
	r.logger.Info("source loaded", "source", sourcePath, "items", len(items))
	return items, nil
}

// Add appends items from one source, recording provenance and assigning
// identifiers to items that lack one.
func (r *Registry) Add(sourcePath string, items []*models.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Reserve the identifiers the batch brings with it so assigned ones
	// cannot collide with an item later in the same batch.
	for _, it := range items {
		if it.UniqueID == "" {
			continue
		}
		if _, taken := r.byID[it.UniqueID]; taken {
			r.logger.Warn("duplicate identifier, reassigning",
				"id", it.UniqueID, "name", it.Name, "source", sourcePath)
			it.UniqueID = ""
			continue
		}
		r.byID[it.UniqueID] = it
	}

	for _, it := range items {
		it.SourceDocument = sourcePath
		if it.UniqueID == "" {
			it.UniqueID = r.nextID()
			r.byID[it.UniqueID] = it
		}
		r.items = append(r.items, it)
	}
}

// nextID must be called with mu held.
func (r *Registry) nextID() string {
	for {
		r.counter++
		id := strconv.Itoa(r.counter)
		if _, taken := r.byID[id]; !taken {
			return id
		}
	}
}

// FindByID returns nil when no item has the identifier.
func (r *Registry) FindByID(id string) *models.Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// SortByName orders the registry by name using byte-wise comparison, so
// capitals sort before lowercase. Ties keep insertion order.
func (r *Registry) SortByName() {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.SliceStable(r.items, func(i, j int) bool {
		return r.items[i].Name < r.items[j].Name
	})
}

// Items returns a snapshot of the registry order.
func (r *Registry) Items() []*models.Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*models.Item(nil), r.items...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
