package command_test

import (
	"testing"

	"github.com/df-mc/gdk/command"
	"github.com/df-mc/gdk/fabric"
)

func TestRegisterHandlerDuplicatePanics(t *testing.T) {
	r := command.NewRegistry()
	key := command.HandlerKey{Component: 1, Command: 0}
	r.RegisterHandler(key, func(world any, entity fabric.EntityID, request []byte) []byte { return nil })

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic registering a duplicate handler")
		}
	}()
	r.RegisterHandler(key, func(world any, entity fabric.EntityID, request []byte) []byte { return nil })
}

func TestHandleInvokesRegisteredHandler(t *testing.T) {
	r := command.NewRegistry()
	key := command.HandlerKey{Component: 1, Command: 0}
	called := false
	r.RegisterHandler(key, func(world any, entity fabric.EntityID, request []byte) []byte {
		called = true
		return []byte("reply")
	})

	resp, ok := r.Handle(key, nil, 42, []byte("req"))
	if !ok {
		t.Fatalf("expected handler to be found")
	}
	if !called {
		t.Fatalf("expected handler to be invoked")
	}
	if string(resp) != "reply" {
		t.Fatalf("resp = %q, want %q", resp, "reply")
	}
}

func TestHandleUnregisteredKeyReportsNotFound(t *testing.T) {
	r := command.NewRegistry()
	_, ok := r.Handle(command.HandlerKey{Component: 9, Command: 9}, nil, 0, nil)
	if ok {
		t.Fatalf("expected ok=false for an unregistered key")
	}
}

func TestOnResponseSingleDelivery(t *testing.T) {
	fab := fabric.NewMemory()
	r := command.NewRegistry()

	successes, failures := 0, 0
	req := r.SendCommand(fab, 1, 1, 0, []byte("x"), nil,
		func(resp []byte) { successes++ },
		func(status fabric.Status, message string) { failures++ })

	r.OnResponse(req, []byte("ok"), fabric.StatusOK, "")
	// A duplicate delivery for the same requestId must be ignored.
	r.OnResponse(req, []byte("ok"), fabric.StatusOK, "")

	if successes != 1 {
		t.Fatalf("successes = %d, want 1 (duplicate delivery must be ignored)", successes)
	}
	if failures != 0 {
		t.Fatalf("failures = %d, want 0", failures)
	}
}

func TestOnResponseFailureStatus(t *testing.T) {
	fab := fabric.NewMemory()
	r := command.NewRegistry()

	var gotStatus fabric.Status
	req := r.SendCommand(fab, 1, 1, 0, nil, nil,
		func(resp []byte) { t.Fatalf("unexpected success callback") },
		func(status fabric.Status, message string) { gotStatus = status })

	r.OnResponse(req, nil, fabric.StatusAuthorityLost, "lost authority")
	if gotStatus != fabric.StatusAuthorityLost {
		t.Fatalf("status = %v, want %v", gotStatus, fabric.StatusAuthorityLost)
	}
}

func TestCreateEntitySingleDelivery(t *testing.T) {
	fab := fabric.NewMemory()
	r := command.NewRegistry()

	var created fabric.EntityID
	calls := 0
	req := r.CreateEntity(fab, nil, nil, nil,
		func(id fabric.EntityID) { created = id; calls++ },
		func(status fabric.Status, message string) { t.Fatalf("unexpected failure") })

	r.OnCreateResponse(req, 77, fabric.StatusOK, "")
	r.OnCreateResponse(req, 77, fabric.StatusOK, "")

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if created != 77 {
		t.Fatalf("created = %d, want 77", created)
	}
}

func TestPendingCount(t *testing.T) {
	fab := fabric.NewMemory()
	r := command.NewRegistry()
	r.SendCommand(fab, 1, 1, 0, nil, nil, nil, nil)
	r.CreateEntity(fab, nil, nil, nil, nil, nil)
	r.DeleteEntity(fab, 1, nil, nil, nil)

	cmds, creates, deletes := r.PendingCount()
	if cmds != 1 || creates != 1 || deletes != 1 {
		t.Fatalf("pending counts = (%d,%d,%d), want (1,1,1)", cmds, creates, deletes)
	}
}

func TestPendingCommandRequestIDs(t *testing.T) {
	fab := fabric.NewMemory()
	r := command.NewRegistry()
	req := r.SendCommand(fab, 1, 1, 0, nil, nil, nil, nil)

	ids := r.PendingCommandRequestIDs()
	if len(ids) != 1 || ids[0] != req {
		t.Fatalf("PendingCommandRequestIDs = %v, want [%v]", ids, req)
	}

	r.OnResponse(req, nil, fabric.StatusOK, "")
	if ids := r.PendingCommandRequestIDs(); len(ids) != 0 {
		t.Fatalf("expected no pending ids after delivery, got %v", ids)
	}
}
