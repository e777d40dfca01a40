// Package command implements CommandRegistry: in-flight request bookkeeping
// for create/delete/command requests, and the inbound command handler
// table (spec §4.6).
package command

import (
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/fasthash/fnv1a"
	"golang.org/x/exp/maps"

	"github.com/df-mc/gdk/fabric"
)

// HandlerKey identifies a registered command handler by its component and
// command index, as assigned by the schema.
type HandlerKey struct {
	Component fabric.ComponentID
	Command   uint32
}

func (k HandlerKey) hash() uint64 {
	h := fnv1a.Init64
	h = fnv1a.AddUint64(h, uint64(k.Component))
	h = fnv1a.AddUint64(h, uint64(k.Command))
	return h
}

// Handler consumes an inbound command request for one entity and produces a
// serialized response. world is passed as an opaque any (the World type
// lives in a package that imports command, so command cannot reference it
// directly); generated handler adapters type-assert it back to *world.World
// before calling user code. request is the raw payload bytes; handlers
// deserialize it via their own generated Request type's reader before
// dispatching to user code.
type Handler func(world any, entity fabric.EntityID, request []byte) (response []byte)

// SuccessFunc and FailureFunc are invoked with the outcome of a command,
// create, or delete request this worker sent.
type SuccessFunc func(response []byte)
type FailureFunc func(status fabric.Status, message string)

type pendingCommand struct {
	onSuccess SuccessFunc
	onFailure FailureFunc
}

type pendingCreate struct {
	onSuccess func(id fabric.EntityID)
	onFailure FailureFunc
}

type pendingDelete struct {
	onSuccess func()
	onFailure FailureFunc
}

// Registry is CommandRegistry: the handler table plus the three pending-
// request maps for commands this worker itself sent.
type Registry struct {
	mu       sync.Mutex
	handlers map[uint64]handlerEntry

	pendingCommands map[fabric.RequestID]pendingCommand
	pendingCreates  map[fabric.RequestID]pendingCreate
	pendingDeletes  map[fabric.RequestID]pendingDelete
}

type handlerEntry struct {
	key     HandlerKey
	handler Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers:        make(map[uint64]handlerEntry),
		pendingCommands: make(map[fabric.RequestID]pendingCommand),
		pendingCreates:  make(map[fabric.RequestID]pendingCreate),
		pendingDeletes:  make(map[fabric.RequestID]pendingDelete),
	}
}

// RegisterHandler installs handler for key. Registering a second handler for
// the same key is a wiring bug and panics, per spec §7/§8.
func (r *Registry) RegisterHandler(key HandlerKey, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := key.hash()
	if existing, ok := r.handlers[h]; ok {
		panic(fmt.Sprintf("command: duplicate handler for (component=%d, command=%d); already registered for (component=%d, command=%d)",
			key.Component, key.Command, existing.key.Component, existing.key.Command))
	}
	r.handlers[h] = handlerEntry{key: key, handler: handler}
}

// Handle looks up the handler for key and runs it, returning the response
// bytes and true, or nil and false if no handler is registered (the World
// dispatcher then sends an empty-payload response for the request).
func (r *Registry) Handle(key HandlerKey, world any, entity fabric.EntityID, request []byte) (response []byte, ok bool) {
	r.mu.Lock()
	entry, found := r.handlers[key.hash()]
	r.mu.Unlock()
	if !found {
		return nil, false
	}
	return entry.handler(world, entity, request), true
}

// SendCommand serializes and sends a command request via fab, parking the
// success/failure callbacks under the requestId the fabric returns.
func (r *Registry) SendCommand(fab fabric.Fabric, entity fabric.EntityID, component fabric.ComponentID, commandIndex uint32, payload []byte, timeout *time.Duration, onSuccess SuccessFunc, onFailure FailureFunc) fabric.RequestID {
	req := fab.SendCommandRequest(entity, component, commandIndex, payload, timeout)
	r.mu.Lock()
	r.pendingCommands[req] = pendingCommand{onSuccess: onSuccess, onFailure: onFailure}
	r.mu.Unlock()
	return req
}

// OnResponse completes a previously sent command. A requestId with no
// pending entry (already delivered, or never sent by this worker) is a
// silent no-op: duplicate deliveries from the fabric are ignored (spec §9
// Open Question resolution).
func (r *Registry) OnResponse(req fabric.RequestID, payload []byte, status fabric.Status, message string) {
	r.mu.Lock()
	p, ok := r.pendingCommands[req]
	if ok {
		delete(r.pendingCommands, req)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	if status == fabric.StatusOK {
		if p.onSuccess != nil {
			p.onSuccess(payload)
		}
		return
	}
	if p.onFailure != nil {
		p.onFailure(status, message)
	}
}

// CreateEntity sends a create-entity request, parking callbacks under the
// returned requestId.
func (r *Registry) CreateEntity(fab fabric.Fabric, components map[fabric.ComponentID][]byte, id *fabric.EntityID, timeout *time.Duration, onSuccess func(fabric.EntityID), onFailure FailureFunc) fabric.RequestID {
	req := fab.SendCreateEntityRequest(components, id, timeout)
	r.mu.Lock()
	r.pendingCreates[req] = pendingCreate{onSuccess: onSuccess, onFailure: onFailure}
	r.mu.Unlock()
	return req
}

// OnCreateResponse completes a previously sent create request. Each
// requestId fires exactly one of success/failure; a second delivery for the
// same requestId is ignored.
func (r *Registry) OnCreateResponse(req fabric.RequestID, id fabric.EntityID, status fabric.Status, message string) {
	r.mu.Lock()
	p, ok := r.pendingCreates[req]
	if ok {
		delete(r.pendingCreates, req)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	if status == fabric.StatusOK {
		if p.onSuccess != nil {
			p.onSuccess(id)
		}
		return
	}
	if p.onFailure != nil {
		p.onFailure(status, message)
	}
}

// DeleteEntity sends a delete-entity request, parking callbacks under the
// returned requestId.
func (r *Registry) DeleteEntity(fab fabric.Fabric, id fabric.EntityID, timeout *time.Duration, onSuccess func(), onFailure FailureFunc) fabric.RequestID {
	req := fab.SendDeleteEntityRequest(id, timeout)
	r.mu.Lock()
	r.pendingDeletes[req] = pendingDelete{onSuccess: onSuccess, onFailure: onFailure}
	r.mu.Unlock()
	return req
}

// OnDeleteResponse completes a previously sent delete request, with the same
// single-delivery semantics as OnCreateResponse.
func (r *Registry) OnDeleteResponse(req fabric.RequestID, status fabric.Status, message string) {
	r.mu.Lock()
	p, ok := r.pendingDeletes[req]
	if ok {
		delete(r.pendingDeletes, req)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	if status == fabric.StatusOK {
		if p.onSuccess != nil {
			p.onSuccess()
		}
		return
	}
	if p.onFailure != nil {
		p.onFailure(status, message)
	}
}

// PendingCount returns the number of in-flight command, create, and delete
// requests this registry is tracking, for diagnostics and tests.
func (r *Registry) PendingCount() (commands, creates, deletes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pendingCommands), len(r.pendingCreates), len(r.pendingDeletes)
}

// PendingCommandRequestIDs returns the request ids of every in-flight
// command send, for a watchdog that wants to report on requests stuck
// waiting for a CommandResponse.
func (r *Registry) PendingCommandRequestIDs() []fabric.RequestID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Keys(r.pendingCommands)
}
