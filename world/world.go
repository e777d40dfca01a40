// Package world implements World: the worker's tick loop and public façade
// (spec §4.7). World owns the Fabric handle, the entity store, the command
// registry, the world clock, the registered systems, and the shared
// resource map, and drives one deterministic tick per call to Process.
package world

import (
	"context"
	"fmt"
	"time"

	"github.com/df-mc/gdk/clock"
	"github.com/df-mc/gdk/command"
	"github.com/df-mc/gdk/ecs"
	"github.com/df-mc/gdk/fabric"
)

// System is user-defined tick logic. OnUpdate is called once per tick, with
// a view scoped to the time the system last ran.
type System interface {
	OnUpdate(w *World, view *EntityView)
}

type registeredSystem struct {
	system  System
	lastRun uint64
}

// Result is the outcome of one Process call.
type Result int

const (
	// Ok means the tick completed normally.
	Ok Result = iota
	// ConnectionLost means the fabric reported disconnected before the tick
	// could run; the caller decides policy (spec §7).
	ConnectionLost
)

func (r Result) String() string {
	if r == ConnectionLost {
		return "ConnectionLost"
	}
	return "Ok"
}

// World is the single public façade described by spec §4.7.
type World struct {
	conf  Config
	fab   fabric.Fabric
	store *ecs.Store
	cmds  *command.Registry
	clk   *clock.Clock
	res   *Resources

	systems []*registeredSystem

	state   dispatchState
	addedCS map[fabric.EntityID]*partialEntity

	unknownComponentLogAt map[fabric.ComponentID]time.Time
}

// unknownComponentLogInterval bounds how often dispatch logs a given unknown
// component id, so a worker missing a large schema subset doesn't flood its
// logger once per op (spec §9 Open Question resolution).
const unknownComponentLogInterval = 10 * time.Second

// New constructs a World from conf. conf.Fabric and conf.NewColumns must be
// set; a nil Fabric or NewColumns is a wiring bug and panics.
func New(conf Config) *World {
	conf = conf.fillDefaults()
	if conf.Fabric == nil {
		panic("world: Config.Fabric must not be nil")
	}
	if conf.NewColumns == nil {
		panic("world: Config.NewColumns must not be nil")
	}
	res := newResources()
	SetResource(res, newMetrics())
	clk := clock.New()
	// Clock value 0 is the lastRun of a system that has not run yet; consume
	// it here so every admit and update is stamped later than that and shows
	// up in a system's first modified-only view.
	clk.Read()
	return &World{
		conf:                  conf,
		fab:                   conf.Fabric,
		store:                 ecs.NewStore(conf.NewColumns, conf.ParallelWorkers),
		cmds:                  command.NewRegistry(),
		clk:                   clk,
		res:                   res,
		addedCS:               make(map[fabric.EntityID]*partialEntity),
		unknownComponentLogAt: make(map[fabric.ComponentID]time.Time),
	}
}

// logUnknownComponentOnce logs msg for an op referencing an unrecognized
// component id, at most once per unknownComponentLogInterval per id. dispatch
// only ever runs on the single control thread, so no locking is needed around
// the throttle map.
func (w *World) logUnknownComponentOnce(msg string, entity fabric.EntityID, component fabric.ComponentID) {
	now := time.Now()
	if last, ok := w.unknownComponentLogAt[component]; ok && now.Sub(last) < unknownComponentLogInterval {
		return
	}
	w.unknownComponentLogAt[component] = now
	w.conf.Log.Debug(msg, "component", component, "entity", entity)
}

// RegisterSystem adds sys to the list of systems run every tick, in
// registration order (spec §5 ordering guarantees).
func (w *World) RegisterSystem(sys System) {
	w.systems = append(w.systems, &registeredSystem{system: sys})
}

// Commands returns the CommandRegistry, for registering handlers and
// sending commands/create/delete requests.
func (w *World) Commands() *command.Registry { return w.cmds }

// Resources returns the shared resource map.
func (w *World) Resources() *Resources { return w.res }

// Store returns the underlying EntityStore. Exposed for codegen-generated
// group constructors and for tests; systems should prefer the EntityView
// they are handed each tick.
func (w *World) Store() *ecs.Store { return w.store }

// Fabric returns the Fabric connection this World was configured with.
func (w *World) Fabric() fabric.Fabric { return w.fab }

// Clock returns the WorldClock.
func (w *World) Clock() *clock.Clock { return w.clk }

// Log mirrors a message to both the local Logger and the fabric's
// SendLogMessage (SPEC_FULL.md "log message passthrough").
func (w *World) Log(level fabric.LogLevel, logger, text string) {
	w.fab.SendLogMessage(level, logger, text)
	switch level {
	case fabric.LogDebug:
		w.conf.Log.Debug(text, "logger", logger)
	case fabric.LogWarn:
		w.conf.Log.Warn(text, "logger", logger)
	case fabric.LogError:
		w.conf.Log.Error(text, "logger", logger)
	default:
		w.conf.Log.Info(text, "logger", logger)
	}
}

// Process performs one tick: poll, dispatch, run systems, replicate, clear
// transient state (spec §4.7). It returns ConnectionLost without doing any
// of that if the fabric is already disconnected.
func (w *World) Process(ctx context.Context) Result {
	if !w.fab.IsConnected() {
		return ConnectionLost
	}

	ops, err := w.fab.PollOps(ctx, w.conf.PollTimeout)
	if err != nil {
		w.conf.Log.Warn("poll ops failed", "err", err)
		if !w.fab.IsConnected() {
			return ConnectionLost
		}
		ops = nil
	}

	dispatchStart := time.Now()
	w.dispatch(ops)
	dispatchTime := time.Since(dispatchStart)

	for _, rs := range w.systems {
		view := newEntityView(w, w.store, rs.lastRun)
		rs.system.OnUpdate(w, view)
		rs.lastRun = w.clk.Read()
	}

	w.store.ReplicateAll(w.fab)
	w.store.ClearTransientAll()

	if m, ok := Resource[*Metrics](w.res); ok {
		m.recordTick(dispatchTime)
	}
	return Ok
}

// panicf is used for fatal wiring conditions per spec §7.
func panicf(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}
