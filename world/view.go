package world

import (
	"context"

	"github.com/df-mc/gdk/ecs"
	"github.com/df-mc/gdk/fabric"
	"github.com/df-mc/gdk/signature"
)

// EntityView is the scoped handle a System receives each tick: a read/write
// surface over the EntityStore bounded by the system's lastRun value (spec
// §4.7 read/write discipline). EntityView itself carries no component-type
// knowledge — Get, GetMut, ForEach, and ParallelForEach are generic over the
// component's Data type, instantiated once per call site by codegen-emitted
// group descriptors.
type EntityView struct {
	world   *World
	store   *ecs.Store
	lastRun uint64
}

func newEntityView(w *World, store *ecs.Store, lastRun uint64) *EntityView {
	return &EntityView{world: w, store: store, lastRun: lastRun}
}

// LastRun returns the WorldClock value recorded the last time the owning
// system finished a tick (0 on the system's first tick).
func (v *EntityView) LastRun() uint64 { return v.lastRun }

// Get returns a read-only reference to componentID's data on entity, or
// ok=false if the entity doesn't exist or doesn't carry that component.
// Reading never marks a column dirty.
func Get[D ecs.Data](v *EntityView, componentID fabric.ComponentID, entity fabric.EntityID) (data D, ok bool) {
	c, slot, found := v.store.Get(entity)
	if !found {
		return data, false
	}
	col, found := c.Column(componentID).(*ecs.TypedColumn[D])
	if !found {
		return data, false
	}
	return col.Get(slot), true
}

// GetMut returns a mutable reference to componentID's data on entity.
// Mutable access is only permitted when the worker holds authority for
// (entity, componentID) — NotAuthoritative returns ok=false rather than
// failing loudly (spec §7, scenario E6). Obtaining the reference implicitly
// marks the column dirty, so a late replicateAll observes the mutation even
// if the caller never flips a dirty bit by hand (spec §4.7).
func GetMut[D ecs.Data](v *EntityView, componentID fabric.ComponentID, entity fabric.EntityID) (data D, ok bool) {
	c, slot, found := v.store.Get(entity)
	if !found {
		return data, false
	}
	col, found := c.Column(componentID).(*ecs.TypedColumn[D])
	if !found {
		return data, false
	}
	if !col.Authority(slot).Writable() {
		return data, false
	}
	c.MarkColumnDirty(componentID)
	return col.GetMut(slot), true
}

// ForEach sequentially visits every live entity whose chunk signature is a
// superset of sig, yielding componentID's data. If modifiedOnly is true,
// only entities whose column lastUpdated exceeds the view's lastRun are
// visited (spec §4.7's "modified-only" view, exercised by scenario E2).
func ForEach[D ecs.Data](v *EntityView, sig signature.Signature, componentID fabric.ComponentID, modifiedOnly bool, f func(entity fabric.EntityID, data D)) {
	v.store.Iterate(sig, func(c *ecs.Chunk, slot int) {
		col, ok := c.Column(componentID).(*ecs.TypedColumn[D])
		if !ok {
			return
		}
		if modifiedOnly && col.LastUpdated(slot) <= v.lastRun {
			return
		}
		f(c.EntityAt(slot), col.Get(slot))
	})
}

// ParallelForEach fans the same selection as ForEach out across a bounded
// work-stealing pool (golang.org/x/sync/errgroup, via ecs.Store). Per the
// parallel iteration contract (spec §5): f must not touch the Fabric, the
// CommandRegistry, or entity admission — those are reachable only through
// World/EntityView methods this function does not give callbacks access to.
// Column dirty flags are raised once up front via MarkColumnDirty, not
// inside the fan-out, so concurrent callbacks never race on them.
func ParallelForEach[D ecs.Data](ctx context.Context, v *EntityView, sig signature.Signature, componentID fabric.ComponentID, mutate bool, f func(entity fabric.EntityID, data D)) error {
	if mutate {
		seen := make(map[*ecs.Chunk]struct{})
		v.store.Iterate(sig, func(c *ecs.Chunk, _ int) {
			if _, ok := seen[c]; ok {
				return
			}
			seen[c] = struct{}{}
			c.MarkColumnDirty(componentID)
		})
	}
	return v.store.ParallelIterate(ctx, sig, func(c *ecs.Chunk, slot int) {
		col, ok := c.Column(componentID).(*ecs.TypedColumn[D])
		if !ok {
			return
		}
		f(c.EntityAt(slot), col.Get(slot))
	})
}
