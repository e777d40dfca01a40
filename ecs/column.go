// Package ecs implements the chunked columnar entity store: ComponentColumn,
// Chunk, and EntityStore (spec §4.3–§4.5).
package ecs

import (
	"github.com/df-mc/gdk/fabric"
)

// Data is the payload interface every generated component Data type
// implements. The runtime never sees concrete component types directly — it
// sees this trait surface, with typed recovery happening inside the
// generated type itself (ApplyUpdate type-asserts its any argument to the
// component's own Update type once, at the call site codegen controls).
type Data interface {
	// ApplyUpdate merges update (the component's generated Update type,
	// erased to any so Column doesn't need a second type parameter) into the
	// receiver, stamping nothing itself — the caller stamps lastUpdated. It
	// reports whether update carried any event entries.
	ApplyUpdate(update any) (containsEvents bool)
	// Dirty reports whether any scalar field has been mutated locally since
	// the last call to ClearDirty.
	Dirty() bool
	// StagedEvents reports whether any event field holds locally triggered
	// entries awaiting replication.
	StagedEvents() bool
	// WriteDelta serializes the dirty fields and staged events (not the full
	// record) via w, for Column.Replicate to hand to Fabric.SendComponentUpdate.
	WriteDelta(w fabric.Writer)
	// ClearDirty clears every field's dirty bit and every event field's
	// staged buffer, called after a successful Replicate.
	ClearDirty()
	// ClearReceivedEvents clears every event field's received buffer, called
	// by ClearTransient at the end of a tick.
	ClearReceivedEvents()
	// Clone returns a deep, independent copy. Used by Store.RemoveComponent
	// to carry a slot's data into the entity's new chunk.
	Clone() Data
}

// Column is the type-erased column interface Chunk holds one of per
// component in its signature. Typed recovery for iteration is handled by the
// generated group descriptors (spec §9), which cache a *TypedColumn[D]
// pointer at setup rather than re-asserting on every slot.
type Column interface {
	ComponentID() fabric.ComponentID
	// Set installs data (asserted to the column's concrete Data type) at
	// slot, stamping lastUpdated and setting the authority bit. Used by
	// Chunk.addEntity for the component's initial record.
	Set(slot int, data any, authority fabric.Authority, now uint64)
	// ApplyUpdate merges update (asserted to the column's concrete Update
	// type inside the Data implementation) into slot's record, stamping
	// lastUpdated. It reports whether the update carried events, so Chunk can
	// raise its any-events-this-tick flag.
	ApplyUpdate(slot int, update any, now uint64) (containsEvents bool)
	SetAuthority(slot int, authority fabric.Authority)
	Authority(slot int) fabric.Authority
	LastUpdated(slot int) uint64
	MarkDirty()
	// Replicate flushes dirty/staged-event slots as component updates to the
	// fabric, then clears the column's dirty flag.
	Replicate(entityIDs []fabric.EntityID, liveCount int, fab fabric.Fabric)
	// ClearTransient clears received event buffers across [0, liveCount) if
	// the column raised any events this tick.
	ClearTransient(liveCount int)
	// Swap exchanges the records (data, authority, lastUpdated) at the two
	// slots, used by Chunk.removeEntity's slot-swap.
	Swap(a, b int)
	// Snapshot serializes the data at slot through Data.WriteDelta, the same
	// encoding Replicate sends: dirty fields and staged events only, not a
	// full record of every field.
	Snapshot(slot int, w fabric.Writer)
}

// record is one slot's worth of storage in a TypedColumn.
type record[D Data] struct {
	data        D
	lastUpdated uint64
	authority   fabric.Authority
}

// TypedColumn is the generic ComponentColumn implementation. Codegen
// instantiates one TypedColumn[D] per component, where D is the generated
// Data struct pointer type for that component.
type TypedColumn[D Data] struct {
	componentID fabric.ComponentID
	records     []record[D]
	dirty       bool
	eventsThis  bool
}

// NewTypedColumn returns a TypedColumn sized for capacity slots, all
// initially zero-valued (not yet live — Chunk governs liveCount separately).
func NewTypedColumn[D Data](componentID fabric.ComponentID, capacity int) *TypedColumn[D] {
	return &TypedColumn[D]{
		componentID: componentID,
		records:     make([]record[D], capacity),
	}
}

func (c *TypedColumn[D]) ComponentID() fabric.ComponentID { return c.componentID }

func (c *TypedColumn[D]) Set(slot int, data any, authority fabric.Authority, now uint64) {
	d := data.(D)
	c.records[slot] = record[D]{data: d, lastUpdated: now, authority: authority}
}

func (c *TypedColumn[D]) ApplyUpdate(slot int, update any, now uint64) bool {
	r := &c.records[slot]
	containsEvents := r.data.ApplyUpdate(update)
	r.lastUpdated = now
	if containsEvents {
		c.eventsThis = true
	}
	return containsEvents
}

func (c *TypedColumn[D]) SetAuthority(slot int, authority fabric.Authority) {
	c.records[slot].authority = authority
}

func (c *TypedColumn[D]) Authority(slot int) fabric.Authority {
	return c.records[slot].authority
}

func (c *TypedColumn[D]) LastUpdated(slot int) uint64 {
	return c.records[slot].lastUpdated
}

func (c *TypedColumn[D]) MarkDirty() { c.dirty = true }

// IsDirty reports the column-level dirty flag. It is not part of the erased
// Column interface.
func (c *TypedColumn[D]) IsDirty() bool { return c.dirty }

func (c *TypedColumn[D]) Replicate(entityIDs []fabric.EntityID, liveCount int, fab fabric.Fabric) {
	if !c.dirty {
		return
	}
	for slot := 0; slot < liveCount; slot++ {
		r := &c.records[slot]
		if !r.data.Dirty() && !r.data.StagedEvents() {
			continue
		}
		w := fabric.NewBufferWriter()
		r.data.WriteDelta(w)
		fab.SendComponentUpdate(entityIDs[slot], c.componentID, w.Bytes())
		r.data.ClearDirty()
	}
	c.dirty = false
}

func (c *TypedColumn[D]) ClearTransient(liveCount int) {
	if !c.eventsThis {
		return
	}
	for slot := 0; slot < liveCount; slot++ {
		c.records[slot].data.ClearReceivedEvents()
	}
	c.eventsThis = false
}

func (c *TypedColumn[D]) Swap(a, b int) {
	c.records[a], c.records[b] = c.records[b], c.records[a]
}

func (c *TypedColumn[D]) Snapshot(slot int, w fabric.Writer) {
	c.records[slot].data.WriteDelta(w)
}

// Get returns the data pointer at slot for read access. Returning it does
// not mark the column dirty; callers that intend to mutate must go through
// GetMut.
func (c *TypedColumn[D]) Get(slot int) D {
	return c.records[slot].data
}

// GetMut returns the data pointer at slot for mutable access and marks the
// column dirty, so a late replicateAll still sees the mutation even if the
// caller never touches a dirty bit directly (spec §4.7 read/write
// discipline). It is the caller's responsibility to have already checked
// authority via Authority(slot).Writable().
func (c *TypedColumn[D]) GetMut(slot int) D {
	c.dirty = true
	return c.records[slot].data
}

var _ Column = (*TypedColumn[stubData])(nil)

// stubData is used only to pin the Column interface assertion above without
// requiring a generated type at compile time in this package.
type stubData struct{}

func (stubData) ApplyUpdate(any) bool         { return false }
func (stubData) Dirty() bool                  { return false }
func (stubData) StagedEvents() bool           { return false }
func (stubData) WriteDelta(fabric.Writer)     {}
func (stubData) ClearDirty()                  {}
func (stubData) ClearReceivedEvents()         {}
func (stubData) Clone() Data                  { return stubData{} }
