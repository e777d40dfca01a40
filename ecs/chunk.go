package ecs

import (
	"sync"

	"github.com/df-mc/gdk/fabric"
	"github.com/df-mc/gdk/signature"
)

// Capacity is the fixed number of slots a Chunk holds, per spec §4.4.
const Capacity = 1024

// Chunk is a fixed-capacity bucket holding entities that share one
// Signature. It owns one Column per component present in that signature.
type Chunk struct {
	signature signature.Signature
	columns   map[fabric.ComponentID]Column

	ids       [Capacity]fabric.EntityID
	liveCount int

	anyDirty          bool
	anyEventsThisTick bool

	mu sync.RWMutex
}

// NewChunk returns an empty Chunk for sig, with columns materialized for
// newColumn's componentID→Column result.
func NewChunk(sig signature.Signature, columns map[fabric.ComponentID]Column) *Chunk {
	return &Chunk{signature: sig, columns: columns}
}

// Signature returns the chunk's component signature.
func (c *Chunk) Signature() signature.Signature { return c.signature }

// LiveCount returns the number of live slots; storage at or above this index
// is inert.
func (c *Chunk) LiveCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.liveCount
}

// HasSpace reports whether the chunk can accept another entity.
func (c *Chunk) HasSpace() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.liveCount < Capacity
}

// Column returns the column for componentID, or nil if this chunk's
// signature does not include it.
func (c *Chunk) Column(componentID fabric.ComponentID) Column {
	return c.columns[componentID]
}

// EntityAt returns the entity id occupying slot.
func (c *Chunk) EntityAt(slot int) fabric.EntityID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ids[slot]
}

// EntityIDs returns the live portion of the slot→entity id array. The
// returned slice aliases chunk storage and must not be retained past the
// current tick or mutated.
func (c *Chunk) EntityIDs() []fabric.EntityID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ids[:c.liveCount]
}

// PartialComponent is one component's data and authority, as accumulated by
// a PartialEntity between CriticalSectionBegin and CriticalSectionEnd.
type PartialComponent struct {
	Data      any
	Authority fabric.Authority
}

// AddEntity appends id at slot = liveCount, installing each component from
// data into its column, and returns the slot. The caller (EntityStore) must
// already have verified HasSpace.
func (c *Chunk) AddEntity(id fabric.EntityID, data map[fabric.ComponentID]PartialComponent, now uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot := c.liveCount
	c.ids[slot] = id
	for componentID, pc := range data {
		col, ok := c.columns[componentID]
		if !ok {
			// Component unknown to this chunk's signature: dropped silently,
			// matching the malformed/unknown-component tolerance in spec §7.
			continue
		}
		col.Set(slot, pc.Data, pc.Authority, now)
	}
	c.liveCount++
	return slot
}

// RemoveEntity evicts the entity at slot via slot-swap with the last live
// slot, decrementing liveCount. It returns the entity id that was moved into
// slot (if any) so the caller can update its (chunk, slot) mapping; ok is
// false if no swap was needed (slot was already the last live slot).
func (c *Chunk) RemoveEntity(slot int) (moved fabric.EntityID, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	last := c.liveCount - 1
	if slot != last {
		c.ids[slot], c.ids[last] = c.ids[last], c.ids[slot]
		for _, col := range c.columns {
			col.Swap(slot, last)
		}
		moved, ok = c.ids[slot], true
	}
	c.liveCount--
	return moved, ok
}

// ApplyUpdate dispatches update to componentID's column, raising
// anyEventsThisTick if the update carried event entries. Unknown component
// ids are silently ignored.
func (c *Chunk) ApplyUpdate(componentID fabric.ComponentID, slot int, update any, now uint64) {
	col, ok := c.columns[componentID]
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if col.ApplyUpdate(slot, update, now) {
		c.anyEventsThisTick = true
	}
}

// ApplyAuthority dispatches an authority change to componentID's column.
// Unknown component ids are silently ignored.
func (c *Chunk) ApplyAuthority(componentID fabric.ComponentID, slot int, authority fabric.Authority) {
	col, ok := c.columns[componentID]
	if !ok {
		return
	}
	col.SetAuthority(slot, authority)
}

// MarkColumnDirty sets both the chunk-level and column-level dirty flags for
// componentID, called before a system is handed a mutable reference into
// that column.
func (c *Chunk) MarkColumnDirty(componentID fabric.ComponentID) {
	col, ok := c.columns[componentID]
	if !ok {
		return
	}
	c.mu.Lock()
	c.anyDirty = true
	c.mu.Unlock()
	col.MarkDirty()
}

// Replicate flushes every dirty column's pending updates to fab, then clears
// the chunk's dirty flag.
func (c *Chunk) Replicate(fab fabric.Fabric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.anyDirty {
		return
	}
	ids := c.ids[:c.liveCount]
	for _, col := range c.columns {
		col.Replicate(ids, c.liveCount, fab)
	}
	c.anyDirty = false
}

// ClearTransient clears received event buffers across every column that
// raised an event this tick, then clears the chunk's event flag.
func (c *Chunk) ClearTransient() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.anyEventsThisTick {
		return
	}
	for _, col := range c.columns {
		col.ClearTransient(c.liveCount)
	}
	c.anyEventsThisTick = false
}

// ForEachSlot sequentially visits every live slot in [0, liveCount).
func (c *Chunk) ForEachSlot(f func(slot int, id fabric.EntityID)) {
	c.mu.RLock()
	n := c.liveCount
	c.mu.RUnlock()
	for slot := 0; slot < n; slot++ {
		f(slot, c.EntityAt(slot))
	}
}
