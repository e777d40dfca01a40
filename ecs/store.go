package ecs

import (
	"context"
	"runtime"
	"sync"

	"github.com/brentp/intintmap"
	"golang.org/x/sync/errgroup"

	"github.com/df-mc/gdk/fabric"
	"github.com/df-mc/gdk/signature"
)

// location packs a chunk index and a slot index into one int64 so the
// entity id → (chunk, slot) map can be a flat int64→int64 map rather than a
// map keyed by a struct, which is what lets EntityStore use intintmap's
// open-addressing int map for its hottest lookup path.
type location struct {
	chunkIndex int
	slot       int
}

func packLocation(l location) int64 {
	return int64(l.chunkIndex)<<32 | int64(uint32(l.slot))
}

func unpackLocation(v int64) location {
	return location{chunkIndex: int(v >> 32), slot: int(int32(v))}
}

// ColumnFactory builds the columns map for a freshly created chunk matching
// sig. Codegen supplies this: for each component bit set in sig, it
// instantiates that component's *TypedColumn[D] and adds it to the map
// keyed by component id.
type ColumnFactory func(sig signature.Signature) map[fabric.ComponentID]Column

// Store owns every Chunk in a World, the entity id → (chunk, slot) map, and a
// secondary index from signature hash to the chunk indices holding that
// exact signature.
type Store struct {
	mu            sync.RWMutex
	chunks        []*Chunk
	bySignature   map[uint64][]int
	locations     *intintmap.Map
	newColumns    ColumnFactory
	parallelLimit int
}

// NewStore returns an empty Store. newColumns is called once per distinct
// signature the first time an entity with that signature is admitted.
// parallelLimit bounds the concurrency ParallelIterate uses; 0 means
// GOMAXPROCS.
func NewStore(newColumns ColumnFactory, parallelLimit int) *Store {
	return &Store{
		bySignature:   make(map[uint64][]int),
		locations:     intintmap.New(1024, 0.75),
		newColumns:    newColumns,
		parallelLimit: parallelLimit,
	}
}

// Admit finds a chunk matching sig with space, or creates one, adds id with
// the given per-component data, and records the id→location mapping.
func (s *Store) Admit(id fabric.EntityID, sig signature.Signature, data map[fabric.ComponentID]PartialComponent, now uint64) (chunkIndex, slot int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := sig.Hash()
	var target *Chunk
	chunkIndex = -1
	for _, idx := range s.bySignature[h] {
		c := s.chunks[idx]
		if c.Signature().Equal(sig) && c.HasSpace() {
			target, chunkIndex = c, idx
			break
		}
	}
	if target == nil {
		target = NewChunk(sig.Clone(), s.newColumns(sig))
		chunkIndex = len(s.chunks)
		s.chunks = append(s.chunks, target)
		s.bySignature[h] = append(s.bySignature[h], chunkIndex)
	}

	slot = target.AddEntity(id, data, now)
	s.locations.Put(int64(id), packLocation(location{chunkIndex: chunkIndex, slot: slot}))
	return chunkIndex, slot
}

// Evict removes id from the store, updating the location of whatever entity
// the slot-swap relocated.
func (s *Store) Evict(id fabric.EntityID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.locations.Get(int64(id))
	if !ok {
		return
	}
	loc := unpackLocation(v)
	c := s.chunks[loc.chunkIndex]
	moved, swapped := c.RemoveEntity(loc.slot)
	s.locations.Del(int64(id))
	if swapped {
		s.locations.Put(int64(moved), packLocation(location{chunkIndex: loc.chunkIndex, slot: loc.slot}))
	}
}

// Get resolves id to its (chunk, slot), reporting ok=false if the entity is
// not present (never admitted, or already evicted).
func (s *Store) Get(id fabric.EntityID) (chunk *Chunk, slot int, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, found := s.locations.Get(int64(id))
	if !found {
		return nil, 0, false
	}
	loc := unpackLocation(v)
	return s.chunks[loc.chunkIndex], loc.slot, true
}

// RemoveComponent evicts id from its current chunk and re-admits it into (or
// creates) the chunk matching its signature with componentID's bit cleared,
// preserving every other component's data and authority (SPEC_FULL.md
// "RemoveComponent op honored").
func (s *Store) RemoveComponent(id fabric.EntityID, componentID fabric.ComponentID, now uint64) {
	s.mu.Lock()
	v, found := s.locations.Get(int64(id))
	if !found {
		s.mu.Unlock()
		return
	}
	loc := unpackLocation(v)
	c := s.chunks[loc.chunkIndex]
	slot := loc.slot

	newSig := c.Signature().Clone()
	newSig.Clear(uint32(componentID))

	data := make(map[fabric.ComponentID]PartialComponent)
	for cid, col := range c.columns {
		if cid == componentID {
			continue
		}
		data[cid] = PartialComponent{Data: col.(snapshotCloner).cloneSlot(slot), Authority: col.Authority(slot)}
	}

	moved, swapped := c.RemoveEntity(slot)
	s.locations.Del(int64(id))
	if swapped {
		s.locations.Put(int64(moved), packLocation(location{chunkIndex: loc.chunkIndex, slot: slot}))
	}
	s.mu.Unlock()

	s.Admit(id, newSig, data, now)
}

// snapshotCloner lets RemoveComponent pull a typed, independent copy of a
// slot's data out of an erased Column without a type switch over every
// generated component type.
type snapshotCloner interface {
	cloneSlot(slot int) any
}

func (c *TypedColumn[D]) cloneSlot(slot int) any {
	return c.records[slot].data.Clone()
}

// ChunkCount returns the number of chunks the store has ever created.
func (s *Store) ChunkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// matchingChunks returns the chunks whose signature is a superset of sig,
// under the read lock. When sig is empty every chunk matches.
func (s *Store) matchingChunks(sig signature.Signature) []*Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Chunk
	if sig.Empty() {
		out = make([]*Chunk, len(s.chunks))
		copy(out, s.chunks)
		return out
	}
	for _, c := range s.chunks {
		if sig.IsSubsetOf(c.Signature()) {
			out = append(out, c)
		}
	}
	return out
}

// Iterate calls f for every live (chunk, slot) in every chunk whose
// signature is a superset of sig, in chunk-then-slot order. The sinceTime
// filter, if any, is applied by the typed group layer on top of this (spec
// §4.5): Iterate itself has no notion of "modified since".
func (s *Store) Iterate(sig signature.Signature, f func(c *Chunk, slot int)) {
	for _, c := range s.matchingChunks(sig) {
		n := c.LiveCount()
		for slot := 0; slot < n; slot++ {
			f(c, slot)
		}
	}
}

// ParallelIterate fans f out across chunks and across slots within each
// chunk using a bounded work-stealing pool (golang.org/x/sync/errgroup).
// Per spec §5's parallel iteration contract: no two concurrent invocations
// observe the same (chunk, slot) pair, and f must not touch the fabric,
// CommandRegistry, or entity admission.
func (s *Store) ParallelIterate(ctx context.Context, sig signature.Signature, f func(c *Chunk, slot int)) error {
	chunks := s.matchingChunks(sig)
	g, gctx := errgroup.WithContext(ctx)
	limit := s.parallelLimit
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)
	for _, c := range chunks {
		c := c
		n := c.LiveCount()
		for slot := 0; slot < n; slot++ {
			slot := slot
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				f(c, slot)
				return nil
			})
		}
	}
	return g.Wait()
}

// ReplicateAll flushes every chunk's dirty state to fab.
func (s *Store) ReplicateAll(fab fabric.Fabric) {
	s.mu.RLock()
	chunks := make([]*Chunk, len(s.chunks))
	copy(chunks, s.chunks)
	s.mu.RUnlock()
	for _, c := range chunks {
		c.Replicate(fab)
	}
}

// ClearTransientAll clears every chunk's received event buffers.
func (s *Store) ClearTransientAll() {
	s.mu.RLock()
	chunks := make([]*Chunk, len(s.chunks))
	copy(chunks, s.chunks)
	s.mu.RUnlock()
	for _, c := range chunks {
		c.ClearTransient()
	}
}

// EntityCount returns the number of entities currently tracked across all
// chunks.
func (s *Store) EntityCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locations.Size()
}
