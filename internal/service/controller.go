package service

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/joeblew999/plat-comunas/internal/dataset"
	"github.com/joeblew999/plat-comunas/internal/metrics"
	"github.com/joeblew999/plat-comunas/internal/palette"
	"github.com/joeblew999/plat-comunas/internal/storage"
)

var (
	// ErrNoSelection is returned by region mutations when nothing is selected.
	ErrNoSelection = errors.New("no region selected")
	// ErrUnknownColor is returned for color ids outside the palette.
	ErrUnknownColor = errors.New("unknown color")
)

// Controller holds the assignment table, the legend labels and the current
// selection. Every mutation writes the new table to the store before it
// replaces the in-memory one. A failed write is logged; memory stays
// authoritative for the rest of the process.
type Controller struct {
	palette *palette.Palette
	store   storage.Store
	bus     *EventBus
	log     *slog.Logger

	mu          sync.RWMutex
	assignments Assignments
	labels      Labels
	selected    *dataset.Region
}

// NewController creates a controller with empty tables. Call Open to read the
// persisted state.
func NewController(p *palette.Palette, store storage.Store, bus *EventBus, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	if bus == nil {
		bus = NewEventBus()
	}
	return &Controller{
		palette:     p,
		store:       store,
		bus:         bus,
		log:         log,
		assignments: Assignments{},
		labels:      Labels(p.DefaultLabels()),
	}
}

// Bus returns the event bus mutations are published on.
func (c *Controller) Bus() *EventBus { return c.bus }

// Palette returns the palette the controller validates against.
func (c *Controller) Palette() *palette.Palette { return c.palette }

// Open reads both tables from the store. Missing, unreadable or corrupt
// entries become empty tables; unknown color ids are dropped and missing
// labels take the palette default.
func (c *Controller) Open(ctx context.Context) {
	raw := c.read(ctx, storage.KeyAssignments)
	assignments := Assignments{}
	for id, v := range raw {
		if s, ok := v.(string); ok && c.palette.Contains(s) {
			assignments[id] = s
		}
	}

	raw = c.read(ctx, storage.KeyLabels)
	labels := Labels{}
	for id, v := range raw {
		if s, ok := v.(string); ok && c.palette.Contains(id) {
			labels[id] = s
		}
	}
	c.fillDefaults(labels)

	c.mu.Lock()
	c.assignments = assignments
	c.labels = labels
	c.mu.Unlock()

	c.log.Info("state_opened", "assignments", len(assignments), "labels", len(labels))
}

func (c *Controller) read(ctx context.Context, key string) map[string]any {
	value, found, err := c.store.Get(ctx, key)
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("get").Inc()
		c.log.Warn("storage_read_failed", "key", key, "err", err)
		return nil
	}
	if !found {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(value), &out); err != nil {
		c.log.Warn("storage_value_corrupt", "key", key, "err", err)
		return nil
	}
	return out
}

func (c *Controller) fillDefaults(labels Labels) {
	for _, col := range c.palette.Colors() {
		if _, ok := labels[col.ID]; !ok {
			labels[col.ID] = col.DefaultLabel
		}
	}
}

// Select makes r the selected region, replacing any previous selection.
func (c *Controller) Select(r dataset.Region) {
	c.mu.Lock()
	c.selected = &r
	c.mu.Unlock()
	c.bus.Publish(Event{Resource: ResourceSelection, Action: "select", ID: r.ID()})
}

// Deselect clears the selection.
func (c *Controller) Deselect() {
	c.mu.Lock()
	had := c.selected != nil
	c.selected = nil
	c.mu.Unlock()
	if had {
		c.bus.Publish(Event{Resource: ResourceSelection, Action: "deselect"})
	}
}

// Selected returns the selected region.
func (c *Controller) Selected() (dataset.Region, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.selected == nil {
		return dataset.Region{}, false
	}
	return *c.selected, true
}

// Assign sets the color of the selected region, overwriting any previous one.
func (c *Controller) Assign(ctx context.Context, colorID string) error {
	if !c.palette.Contains(colorID) {
		return fmt.Errorf("%w: %q", ErrUnknownColor, colorID)
	}

	c.mu.Lock()
	if c.selected == nil {
		c.mu.Unlock()
		return ErrNoSelection
	}
	id := c.selected.ID()
	next := c.assignments.clone()
	next[id] = colorID
	c.commitAssignments(ctx, next)
	c.mu.Unlock()

	c.done("assign", Event{Resource: ResourceAssignments, Action: "assign", ID: id})
	return nil
}

// ClearSelected removes the selected region from the assignment table.
func (c *Controller) ClearSelected(ctx context.Context) error {
	c.mu.Lock()
	if c.selected == nil {
		c.mu.Unlock()
		return ErrNoSelection
	}
	id := c.selected.ID()
	next := c.assignments.clone()
	delete(next, id)
	c.commitAssignments(ctx, next)
	c.mu.Unlock()

	c.done("clear", Event{Resource: ResourceAssignments, Action: "clear", ID: id})
	return nil
}

// ClearAll empties the assignment table. Labels are kept.
func (c *Controller) ClearAll(ctx context.Context) {
	c.mu.Lock()
	c.commitAssignments(ctx, Assignments{})
	c.mu.Unlock()

	c.done("clear_all", Event{Resource: ResourceAssignments, Action: "clear_all"})
}

// Rename sets the group label of a palette color.
func (c *Controller) Rename(ctx context.Context, colorID, label string) error {
	if !c.palette.Contains(colorID) {
		return fmt.Errorf("%w: %q", ErrUnknownColor, colorID)
	}

	c.mu.Lock()
	next := c.labels.clone()
	next[colorID] = label
	c.commitLabels(ctx, next)
	c.mu.Unlock()

	c.done("rename", Event{Resource: ResourceLegend, Action: "rename", ID: colorID})
	return nil
}

// Replace swaps in both tables at once. Assignments to unknown colors are
// dropped and labels are completed with palette defaults.
func (c *Controller) Replace(ctx context.Context, assignments Assignments, labels Labels) {
	nextA := Assignments{}
	for id, col := range assignments {
		if c.palette.Contains(col) {
			nextA[id] = col
		}
	}
	nextL := Labels{}
	for id, l := range labels {
		if c.palette.Contains(id) {
			nextL[id] = l
		}
	}
	c.fillDefaults(nextL)

	c.mu.Lock()
	c.commitAssignments(ctx, nextA)
	c.commitLabels(ctx, nextL)
	c.mu.Unlock()

	c.done("replace", Event{Resource: ResourceAssignments, Action: "replace"})
	c.bus.Publish(Event{Resource: ResourceLegend, Action: "replace"})
}

// Reset removes both tables from the store and returns to empty assignments
// and default labels.
func (c *Controller) Reset(ctx context.Context) {
	c.mu.Lock()
	for _, key := range []string{storage.KeyAssignments, storage.KeyLabels} {
		if err := c.store.Delete(ctx, key); err != nil {
			metrics.StorageErrorsTotal.WithLabelValues("delete").Inc()
			c.log.Warn("storage_delete_failed", "key", key, "err", err)
		}
	}
	c.assignments = Assignments{}
	c.labels = Labels(c.palette.DefaultLabels())
	c.mu.Unlock()

	c.done("reset", Event{Resource: ResourceAssignments, Action: "reset"})
	c.bus.Publish(Event{Resource: ResourceLegend, Action: "reset"})
}

// commitAssignments persists next and then makes it current. Caller holds mu.
func (c *Controller) commitAssignments(ctx context.Context, next Assignments) {
	c.write(ctx, storage.KeyAssignments, next)
	c.assignments = next
}

// commitLabels persists next and then makes it current. Caller holds mu.
func (c *Controller) commitLabels(ctx context.Context, next Labels) {
	c.write(ctx, storage.KeyLabels, next)
	c.labels = next
}

func (c *Controller) write(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err == nil {
		err = c.store.Set(ctx, key, string(data))
	}
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("set").Inc()
		c.log.Warn("storage_write_failed", "key", key, "err", err)
	}
}

func (c *Controller) done(op string, e Event) {
	metrics.MutationsTotal.WithLabelValues(op).Inc()
	c.log.Debug("state_mutated", "op", op, "id", e.ID)
	c.bus.Publish(e)
}

// Assignments returns a copy of the assignment table.
func (c *Controller) Assignments() Assignments {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.assignments.clone()
}

// Labels returns a copy of the legend labels.
func (c *Controller) Labels() Labels {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.labels.clone()
}

// Snapshot returns copies of both tables and the selected key.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Snapshot{
		Assignments: c.assignments.clone(),
		Labels:      c.labels.clone(),
	}
	if c.selected != nil {
		s.Selected = c.selected.ID()
	}
	return s
}

// Groups lists, for every palette color in order, the regions of index
// assigned to it sorted by code. Keys missing from index are left out.
func (c *Controller) Groups(index map[string]dataset.Region) []Group {
	snap := c.Snapshot()

	byColor := make(map[string][]dataset.Region)
	for id, col := range snap.Assignments {
		r, ok := index[id]
		if !ok {
			continue
		}
		byColor[col] = append(byColor[col], r)
	}

	colors := c.palette.Colors()
	groups := make([]Group, 0, len(colors))
	for _, col := range colors {
		regions := byColor[col.ID]
		slices.SortFunc(regions, func(a, b dataset.Region) int { return cmp.Compare(a.Code, b.Code) })
		if regions == nil {
			regions = []dataset.Region{}
		}
		groups = append(groups, Group{Color: col, Label: snap.Labels[col.ID], Regions: regions})
	}
	return groups
}
