package fabric

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// Memory is an in-process reference Fabric: it has no network transport at
// all, and instead lets a test or a demo worker inject ops directly via
// Inject and observe what was sent via Updates, Commands, Responses,
// Creates, Deletes, Logs, and Snapshot. It is the stand-in used throughout
// this module's tests in place of a real SpatialOS-style connection.
type Memory struct {
	mu        sync.Mutex
	connected bool
	pending   OpList

	nextReqSalt uint64

	sentUpdates   []SentUpdate
	sentCommands  []SentCommand
	sentResponses []SentResponse
	sentCreates   []SentCreate
	sentDeletes   []SentDelete
	sentLogs      []SentLog

	snapshotPath string
	snapshotOpen bool
	snapshot     []SnapshotEntity
}

// SentUpdate records a SendComponentUpdate call.
type SentUpdate struct {
	EntityID  EntityID
	Component ComponentID
	Buf       []byte
}

// SentCommand records a SendCommandRequest call.
type SentCommand struct {
	RequestID    RequestID
	EntityID     EntityID
	Component    ComponentID
	CommandIndex uint32
	Buf          []byte
}

// SentResponse records a SendCommandResponse call.
type SentResponse struct {
	RequestID RequestID
	Component ComponentID
	Buf       []byte
}

// SentCreate records a SendCreateEntityRequest call.
type SentCreate struct {
	RequestID  RequestID
	Components map[ComponentID][]byte
}

// SentDelete records a SendDeleteEntityRequest call.
type SentDelete struct {
	RequestID RequestID
	EntityID  EntityID
}

// SentLog records a SendLogMessage call.
type SentLog struct {
	Level  LogLevel
	Logger string
	Text   string
}

// SnapshotEntity is one record written via SnapshotWriteEntity.
type SnapshotEntity struct {
	EntityID   EntityID
	Components map[ComponentID][]byte
}

// NewMemory returns a connected Memory fabric ready to accept injected ops.
func NewMemory() *Memory {
	return &Memory{connected: true}
}

// Inject appends ops to the queue the next PollOps call will drain.
func (m *Memory) Inject(ops ...Op) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, ops...)
}

// Disconnect marks the fabric as disconnected; subsequent IsConnected calls
// return false and PollOps returns an error.
func (m *Memory) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

func (m *Memory) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// PollOps returns and clears the injected op queue. It never actually blocks
// for timeout (there is nothing to wait on in-process); it returns
// immediately with whatever is pending, matching how a real fabric would
// return early once ops are available.
func (m *Memory) PollOps(ctx context.Context, timeout time.Duration) (OpList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, fmt.Errorf("fabric: not connected")
	}
	ops := m.pending
	m.pending = nil
	return ops, nil
}

func (m *Memory) nextRequestID() RequestID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextReqSalt++
	// Fold 16 random bits from a fresh UUID over a per-instance counter: the
	// counter keeps ids distinct within one instance, and the random high
	// bits make a clash between two instances unlikely (not impossible). Ids
	// from one instance are not ordered, since the high bits differ per call.
	u := uuid.New()
	return RequestID(uint64(u[0])<<56 | uint64(u[1])<<48 | m.nextReqSalt)
}

func (m *Memory) SendComponentUpdate(id EntityID, component ComponentID, buf []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentUpdates = append(m.sentUpdates, SentUpdate{EntityID: id, Component: component, Buf: buf})
}

func (m *Memory) SendCommandRequest(id EntityID, component ComponentID, commandIndex uint32, buf []byte, timeout *time.Duration) RequestID {
	req := m.nextRequestID()
	m.mu.Lock()
	m.sentCommands = append(m.sentCommands, SentCommand{RequestID: req, EntityID: id, Component: component, CommandIndex: commandIndex, Buf: buf})
	m.mu.Unlock()
	return req
}

func (m *Memory) SendCommandResponse(req RequestID, component ComponentID, buf []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentResponses = append(m.sentResponses, SentResponse{RequestID: req, Component: component, Buf: buf})
}

func (m *Memory) SendCreateEntityRequest(components map[ComponentID][]byte, id *EntityID, timeout *time.Duration) RequestID {
	req := m.nextRequestID()
	m.mu.Lock()
	m.sentCreates = append(m.sentCreates, SentCreate{RequestID: req, Components: components})
	m.mu.Unlock()
	return req
}

func (m *Memory) SendDeleteEntityRequest(id EntityID, timeout *time.Duration) RequestID {
	req := m.nextRequestID()
	m.mu.Lock()
	m.sentDeletes = append(m.sentDeletes, SentDelete{RequestID: req, EntityID: id})
	m.mu.Unlock()
	return req
}

func (m *Memory) SendLogMessage(level LogLevel, logger, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentLogs = append(m.sentLogs, SentLog{Level: level, Logger: logger, Text: text})
}

func (m *Memory) OpenSnapshotWriter(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshotOpen {
		return fmt.Errorf("fabric: snapshot writer already open at %q", m.snapshotPath)
	}
	m.snapshotPath, m.snapshotOpen = path, true
	m.snapshot = nil
	return nil
}

func (m *Memory) SnapshotWriteEntity(id EntityID, components map[ComponentID][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.snapshotOpen {
		return fmt.Errorf("fabric: no snapshot writer open")
	}
	m.snapshot = append(m.snapshot, SnapshotEntity{EntityID: id, Components: components})
	return nil
}

func (m *Memory) CloseSnapshotWriter() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.snapshotOpen {
		return fmt.Errorf("fabric: no snapshot writer open")
	}
	m.snapshotOpen = false
	return nil
}

// Updates, Commands, Responses, Creates, Deletes, Logs, and Snapshot give
// tests read access to everything sent through this fabric.
func (m *Memory) Updates() []SentUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentUpdate(nil), m.sentUpdates...)
}

func (m *Memory) Commands() []SentCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentCommand(nil), m.sentCommands...)
}

func (m *Memory) Responses() []SentResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentResponse(nil), m.sentResponses...)
}

func (m *Memory) Creates() []SentCreate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentCreate(nil), m.sentCreates...)
}

func (m *Memory) Deletes() []SentDelete {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentDelete(nil), m.sentDeletes...)
}

func (m *Memory) Logs() []SentLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentLog(nil), m.sentLogs...)
}

func (m *Memory) Snapshot() []SnapshotEntity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SnapshotEntity(nil), m.snapshot...)
}

// Reconnect retries connect with an exponential backoff until it succeeds or
// ctx is done, the shape a worker's startup uses against a real fabric
// connection that can fail transiently.
func Reconnect(ctx context.Context, connect func() (Fabric, error)) (Fabric, error) {
	var fab Fabric
	op := func() error {
		f, err := connect()
		if err != nil {
			return err
		}
		fab = f
		return nil
	}
	b := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, fmt.Errorf("fabric: connect: %w", err)
	}
	return fab, nil
}
