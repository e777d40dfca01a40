package world

import (
	"github.com/df-mc/gdk/command"
	"github.com/df-mc/gdk/ecs"
	"github.com/df-mc/gdk/fabric"
	"github.com/df-mc/gdk/signature"
)

func commandKeyFromOp(o fabric.CommandRequest) command.HandlerKey {
	return command.HandlerKey{Component: o.ComponentID, Command: o.CommandIndex}
}

// dispatchState is the op-list state machine's state (spec §4.7).
type dispatchState uint8

const (
	stateIdle dispatchState = iota
	stateInCriticalSection
)

// partialEntity is the transient accumulator for an entity under
// construction inside a critical section (spec §3 PartialEntity).
type partialEntity struct {
	sig  signature.Signature
	data map[fabric.ComponentID]ecs.PartialComponent
}

func newPartialEntity() *partialEntity {
	return &partialEntity{sig: signature.New(), data: make(map[fabric.ComponentID]ecs.PartialComponent)}
}

// dispatch applies ops to the store and command registry in order, running
// the critical-section state machine exactly as specified (spec §4.7,
// design note "CriticalSection buffering": admission must not happen until
// CriticalSectionEnd).
func (w *World) dispatch(ops fabric.OpList) {
	m, _ := Resource[*Metrics](w.res)

	for _, op := range ops {
		if m != nil {
			m.recordOp(opKind(op))
		}
		switch o := op.(type) {
		case fabric.CriticalSectionBegin:
			w.state = stateInCriticalSection
			clear(w.addedCS)

		case fabric.CriticalSectionEnd:
			now := w.clk.Read()
			for id, partial := range w.addedCS {
				w.store.Admit(id, partial.sig, partial.data, now)
			}
			clear(w.addedCS)
			w.state = stateIdle

		case fabric.AddEntity:
			if w.state == stateInCriticalSection {
				w.addedCS[o.ID] = newPartialEntity()
			}

		case fabric.AddComponent:
			if w.state != stateInCriticalSection {
				continue
			}
			p, ok := w.addedCS[o.ID]
			if !ok {
				continue
			}
			deserialize, ok := w.conf.DeserializeComponent[o.ComponentID]
			if !ok {
				w.logUnknownComponentOnce("dropping AddComponent for unknown component", o.ID, o.ComponentID)
				continue
			}
			p.sig.Set(uint32(o.ComponentID))
			p.data[o.ComponentID] = ecs.PartialComponent{Data: deserialize(o.Data), Authority: fabric.NotAuthoritative}

		case fabric.AuthorityChange:
			if w.state == stateInCriticalSection {
				if p, ok := w.addedCS[o.ID]; ok {
					if pc, ok := p.data[o.ComponentID]; ok {
						pc.Authority = o.Authority
						p.data[o.ComponentID] = pc
					}
				}
				continue
			}
			c, slot, ok := w.store.Get(o.ID)
			if !ok {
				continue
			}
			c.ApplyAuthority(o.ComponentID, slot, o.Authority)

		case fabric.ComponentUpdate:
			deserialize, known := w.conf.DeserializeUpdate[o.ComponentID]
			if !known {
				w.logUnknownComponentOnce("dropping ComponentUpdate for unknown component", o.ID, o.ComponentID)
				continue
			}
			if w.state == stateInCriticalSection {
				if p, ok := w.addedCS[o.ID]; ok {
					if pc, ok := p.data[o.ComponentID]; ok {
						pc.Data.(ecs.Data).ApplyUpdate(deserialize(o.Update))
						continue
					}
				}
				continue
			}
			c, slot, ok := w.store.Get(o.ID)
			if !ok {
				continue
			}
			c.ApplyUpdate(o.ComponentID, slot, deserialize(o.Update), w.clk.Read())

		case fabric.RemoveComponent:
			if w.state == stateInCriticalSection {
				continue
			}
			w.store.RemoveComponent(o.ID, o.ComponentID, w.clk.Read())

		case fabric.RemoveEntity:
			w.store.Evict(o.ID)

		case fabric.CommandRequest:
			w.dispatchCommandRequest(o)

		case fabric.CommandResponse:
			w.cmds.OnResponse(o.RequestID, o.Payload, o.Status, o.Message)

		case fabric.CreateEntityResponse:
			w.cmds.OnCreateResponse(o.RequestID, o.EntityID, o.Status, o.Message)

		case fabric.DeleteEntityResponse:
			w.cmds.OnDeleteResponse(o.RequestID, o.Status, o.Message)

		case fabric.Metrics:
			if m != nil {
				m.mergeFabric(o.Counters, o.Gauges)
			}

		case fabric.Disconnect, fabric.FlagUpdate, fabric.LogMessage,
			fabric.ReserveEntityIDsResponse, fabric.EntityQueryResponse:
			// Recognized but ignored, per spec §6.

		default:
			panicf("world: unrecognized op variant %T", op)
		}
	}
}

func (w *World) dispatchCommandRequest(o fabric.CommandRequest) {
	key := commandKeyFromOp(o)
	resp, ok := w.cmds.Handle(key, w, o.EntityID, o.Payload)
	if !ok {
		w.fab.SendCommandResponse(o.RequestID, o.ComponentID, nil)
		return
	}
	w.fab.SendCommandResponse(o.RequestID, o.ComponentID, resp)
}

func opKind(op fabric.Op) string {
	switch op.(type) {
	case fabric.CriticalSectionBegin:
		return "CriticalSectionBegin"
	case fabric.CriticalSectionEnd:
		return "CriticalSectionEnd"
	case fabric.AddEntity:
		return "AddEntity"
	case fabric.RemoveEntity:
		return "RemoveEntity"
	case fabric.AddComponent:
		return "AddComponent"
	case fabric.RemoveComponent:
		return "RemoveComponent"
	case fabric.ComponentUpdate:
		return "ComponentUpdate"
	case fabric.AuthorityChange:
		return "AuthorityChange"
	case fabric.CommandRequest:
		return "CommandRequest"
	case fabric.CommandResponse:
		return "CommandResponse"
	case fabric.CreateEntityResponse:
		return "CreateEntityResponse"
	case fabric.DeleteEntityResponse:
		return "DeleteEntityResponse"
	case fabric.Metrics:
		return "Metrics"
	default:
		return "Other"
	}
}
