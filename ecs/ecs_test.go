package ecs_test

import (
	"context"
	"sync"
	"testing"

	"github.com/df-mc/gdk/ecs"
	"github.com/df-mc/gdk/fabric"
	"github.com/df-mc/gdk/signature"
)

func TestMain(m *testing.M) {
	signature.SetWidth(64)
	m.Run()
}

// positionUpdate is a stand-in for a generated Update type: each field
// optional, here modelled with pointers.
type positionUpdate struct {
	X, Y, Z *float64
}

// positionData is a stand-in for a generated Data type, implementing
// ecs.Data by hand the way codegen would.
type positionData struct {
	x, y, z    float64
	dirty      bool
	stagedPing bool
	recvPing   bool
}

func (d *positionData) ApplyUpdate(update any) (containsEvents bool) {
	u := update.(positionUpdate)
	if u.X != nil {
		d.x = *u.X
	}
	if u.Y != nil {
		d.y = *u.Y
	}
	if u.Z != nil {
		d.z = *u.Z
	}
	return false
}

func (d *positionData) Dirty() bool        { return d.dirty }
func (d *positionData) StagedEvents() bool { return d.stagedPing }
func (d *positionData) WriteDelta(w fabric.Writer) {
	w.WriteFloat64(d.x)
	w.WriteFloat64(d.y)
	w.WriteFloat64(d.z)
}
func (d *positionData) ClearDirty() {
	d.dirty = false
	d.stagedPing = false
}
func (d *positionData) ClearReceivedEvents() { d.recvPing = false }
func (d *positionData) Clone() ecs.Data {
	cp := *d
	return &cp
}

// setX is the mutable accessor a generated type would expose; it sets the
// dirty bit the way spec §4.3 requires.
func (d *positionData) setX(v float64) {
	d.x = v
	d.dirty = true
}

const positionComponentID fabric.ComponentID = 1

func newColumns(sig signature.Signature) map[fabric.ComponentID]ecs.Column {
	cols := make(map[fabric.ComponentID]ecs.Column)
	if sig.Has(uint32(positionComponentID)) {
		cols[positionComponentID] = ecs.NewTypedColumn[*positionData](positionComponentID, ecs.Capacity)
	}
	return cols
}

func positionSignature() signature.Signature {
	s := signature.New()
	s.Set(uint32(positionComponentID))
	return s
}

func TestChunkAddAndRemoveWithSwap(t *testing.T) {
	sig := positionSignature()
	c := ecs.NewChunk(sig, newColumns(sig))

	ids := []fabric.EntityID{1, 2, 3}
	for _, id := range ids {
		c.AddEntity(id, map[fabric.ComponentID]ecs.PartialComponent{
			positionComponentID: {Data: &positionData{x: float64(id)}, Authority: fabric.Authoritative},
		}, 0)
	}
	if c.LiveCount() != 3 {
		t.Fatalf("liveCount = %d, want 3", c.LiveCount())
	}

	// Remove entity 2 (slot 1): slot 2 (entity 3) must swap into slot 1.
	moved, ok := c.RemoveEntity(1)
	if !ok || moved != 3 {
		t.Fatalf("RemoveEntity: moved=%d ok=%v, want 3,true", moved, ok)
	}
	if c.LiveCount() != 2 {
		t.Fatalf("liveCount after remove = %d, want 2", c.LiveCount())
	}
	if c.EntityAt(0) != 1 || c.EntityAt(1) != 3 {
		t.Fatalf("slots after swap = [%d,%d], want [1,3]", c.EntityAt(0), c.EntityAt(1))
	}
}

func TestStoreAdmitGetEvict(t *testing.T) {
	sig := positionSignature()
	s := ecs.NewStore(newColumns, 0)

	s.Admit(42, sig, map[fabric.ComponentID]ecs.PartialComponent{
		positionComponentID: {Data: &positionData{x: 1, y: 2, z: 3}, Authority: fabric.Authoritative},
	}, 0)

	c, slot, ok := s.Get(42)
	if !ok {
		t.Fatalf("expected entity 42 to be present")
	}
	col := c.Column(positionComponentID).(*ecs.TypedColumn[*positionData])
	got := col.Get(slot)
	if got.x != 1 || got.y != 2 || got.z != 3 {
		t.Fatalf("got data = %+v, want {1,2,3}", got)
	}

	s.Evict(42)
	if _, _, ok := s.Get(42); ok {
		t.Fatalf("expected entity 42 to be gone after evict")
	}
}

func TestStoreEvictUpdatesSwappedEntityLocation(t *testing.T) {
	sig := positionSignature()
	s := ecs.NewStore(newColumns, 0)
	for _, id := range []fabric.EntityID{1, 2, 3} {
		s.Admit(id, sig, map[fabric.ComponentID]ecs.PartialComponent{
			positionComponentID: {Data: &positionData{x: float64(id)}, Authority: fabric.Authoritative},
		}, 0)
	}

	s.Evict(1) // forces entity 3 (last slot) to swap into slot 0

	c, slot, ok := s.Get(3)
	if !ok {
		t.Fatalf("expected entity 3 to still resolve after a sibling was evicted")
	}
	if c.EntityAt(slot) != 3 {
		t.Fatalf("location map for entity 3 is stale after swap-remove")
	}
}

func TestIterateYieldsSupersetSignatureOnly(t *testing.T) {
	posOnly := positionSignature()
	var velID fabric.ComponentID = 2
	posVel := posOnly.Clone()
	posVel.Set(uint32(velID))

	newCols := func(sig signature.Signature) map[fabric.ComponentID]ecs.Column {
		cols := make(map[fabric.ComponentID]ecs.Column)
		if sig.Has(uint32(positionComponentID)) {
			cols[positionComponentID] = ecs.NewTypedColumn[*positionData](positionComponentID, ecs.Capacity)
		}
		if sig.Has(uint32(velID)) {
			cols[velID] = ecs.NewTypedColumn[*positionData](velID, ecs.Capacity)
		}
		return cols
	}

	s := ecs.NewStore(newCols, 0)
	s.Admit(1, posOnly, map[fabric.ComponentID]ecs.PartialComponent{
		positionComponentID: {Data: &positionData{}, Authority: fabric.Authoritative},
	}, 0)
	s.Admit(2, posVel, map[fabric.ComponentID]ecs.PartialComponent{
		positionComponentID: {Data: &positionData{}, Authority: fabric.Authoritative},
		velID:               {Data: &positionData{}, Authority: fabric.Authoritative},
	}, 0)

	var seen []fabric.EntityID
	s.Iterate(posVel, func(c *ecs.Chunk, slot int) {
		seen = append(seen, c.EntityAt(slot))
	})
	if len(seen) != 1 || seen[0] != 2 {
		t.Fatalf("Iterate(posVel) = %v, want [2]", seen)
	}

	seen = nil
	s.Iterate(posOnly, func(c *ecs.Chunk, slot int) {
		seen = append(seen, c.EntityAt(slot))
	})
	if len(seen) != 2 {
		t.Fatalf("Iterate(posOnly) = %v, want both entities", seen)
	}
}

func TestParallelIterateSameMultisetAsIterate(t *testing.T) {
	sig := positionSignature()
	s := ecs.NewStore(newColumns, 4)
	for i := fabric.EntityID(1); i <= 50; i++ {
		s.Admit(i, sig, map[fabric.ComponentID]ecs.PartialComponent{
			positionComponentID: {Data: &positionData{x: float64(i)}, Authority: fabric.Authoritative},
		}, 0)
	}

	var seq []fabric.EntityID
	s.Iterate(sig, func(c *ecs.Chunk, slot int) { seq = append(seq, c.EntityAt(slot)) })

	var collected countingCollector
	if err := s.ParallelIterate(context.Background(), sig, func(c *ecs.Chunk, slot int) {
		collected.add(c.EntityAt(slot))
	}); err != nil {
		t.Fatalf("ParallelIterate: %v", err)
	}

	if len(seq) != len(collected.ids) {
		t.Fatalf("sequential yielded %d entities, parallel yielded %d", len(seq), len(collected.ids))
	}
	seqSet := map[fabric.EntityID]int{}
	for _, id := range seq {
		seqSet[id]++
	}
	for _, id := range collected.ids {
		seqSet[id]--
	}
	for id, count := range seqSet {
		if count != 0 {
			t.Fatalf("entity %d appeared a different number of times between iterate and parallelIterate", id)
		}
	}
}

type countingCollector struct {
	mu  sync.Mutex
	ids []fabric.EntityID
}

func (c *countingCollector) add(id fabric.EntityID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, id)
}

func TestReplicateClearsDirtyAndSendsDelta(t *testing.T) {
	sig := positionSignature()
	s := ecs.NewStore(newColumns, 0)
	s.Admit(1, sig, map[fabric.ComponentID]ecs.PartialComponent{
		positionComponentID: {Data: &positionData{}, Authority: fabric.Authoritative},
	}, 0)

	c, slot, _ := s.Get(1)
	col := c.Column(positionComponentID).(*ecs.TypedColumn[*positionData])
	c.MarkColumnDirty(positionComponentID)
	col.GetMut(slot).setX(9)

	fab := fabric.NewMemory()
	s.ReplicateAll(fab)

	updates := fab.Updates()
	if len(updates) != 1 {
		t.Fatalf("expected exactly one ComponentUpdate, got %d", len(updates))
	}
	if updates[0].EntityID != 1 || updates[0].Component != positionComponentID {
		t.Fatalf("unexpected update: %+v", updates[0])
	}
	if col.Get(slot).Dirty() {
		t.Fatalf("dirty bit should be cleared after replicate")
	}

	// A second ReplicateAll without further mutation must send nothing new.
	s.ReplicateAll(fab)
	if len(fab.Updates()) != 1 {
		t.Fatalf("replicate should be a no-op without new mutations")
	}
}

func TestRemoveComponentPreservesOtherColumns(t *testing.T) {
	var velID fabric.ComponentID = 2
	posOnly := positionSignature()
	posVel := posOnly.Clone()
	posVel.Set(uint32(velID))

	newCols := func(sig signature.Signature) map[fabric.ComponentID]ecs.Column {
		cols := make(map[fabric.ComponentID]ecs.Column)
		if sig.Has(uint32(positionComponentID)) {
			cols[positionComponentID] = ecs.NewTypedColumn[*positionData](positionComponentID, ecs.Capacity)
		}
		if sig.Has(uint32(velID)) {
			cols[velID] = ecs.NewTypedColumn[*positionData](velID, ecs.Capacity)
		}
		return cols
	}

	s := ecs.NewStore(newCols, 0)
	s.Admit(1, posVel, map[fabric.ComponentID]ecs.PartialComponent{
		positionComponentID: {Data: &positionData{x: 5}, Authority: fabric.Authoritative},
		velID:               {Data: &positionData{x: 7}, Authority: fabric.Authoritative},
	}, 0)

	s.RemoveComponent(1, velID, 1)

	c, slot, ok := s.Get(1)
	if !ok {
		t.Fatalf("entity should still exist after RemoveComponent")
	}
	if c.Column(velID) != nil {
		t.Fatalf("velocity column should be gone from the new chunk")
	}
	posCol := c.Column(positionComponentID).(*ecs.TypedColumn[*positionData])
	if posCol.Get(slot).x != 5 {
		t.Fatalf("position data should be preserved across RemoveComponent, got %+v", posCol.Get(slot))
	}
}
