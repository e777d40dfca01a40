package world

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pelletier/go-toml"

	"github.com/df-mc/gdk/ecs"
	"github.com/df-mc/gdk/fabric"
)

// Config contains options for starting a worker's World. The zero value is
// not ready to use; call New on a Config built either by hand or by
// LoadConfig.
type Config struct {
	// Fabric is the connection this World polls ops from and replicates
	// mutations through. Required.
	Fabric fabric.Fabric
	// Log is the Logger used for control-thread diagnostics. If nil, Log is
	// set to slog.Default().
	Log *slog.Logger
	// TickInterval is the target duration between ticks. Defaults to 50ms
	// (20 ticks/second) if zero.
	TickInterval time.Duration
	// PollTimeout bounds how long a single PollOps call may block. Defaults
	// to TickInterval if zero.
	PollTimeout time.Duration
	// ParallelWorkers bounds ParallelForEach's concurrency. 0 means
	// GOMAXPROCS.
	ParallelWorkers int
	// NewColumns builds the columns map for a freshly created chunk; see
	// ecs.ColumnFactory. Codegen supplies this for the compiled-in schema.
	NewColumns ecs.ColumnFactory
	// DeserializeComponent maps a component id to a function turning the raw
	// bytes an AddComponent op carries into that component's generated Data
	// type, erased to any. A component id absent from this map is unknown to
	// this worker and is dropped (spec §7/§9 Open Question).
	DeserializeComponent map[fabric.ComponentID]func([]byte) any
	// DeserializeUpdate is the ComponentUpdate-op counterpart of
	// DeserializeComponent, producing the component's generated Update type.
	DeserializeUpdate map[fabric.ComponentID]func([]byte) any
	// WorkerType, Host, Port, and WorkerID identify this worker to the
	// fabric's connect call; they are not used by World itself but are
	// carried here so a single gdk.toml can configure both the connection
	// and the tick loop.
	WorkerType string
	Host       string
	Port       int
	WorkerID   string
}

// fileConfig is the TOML document shape LoadConfig decodes, kept distinct
// from Config because Config's Fabric and NewColumns fields aren't
// TOML-representable.
type fileConfig struct {
	WorkerType      string `toml:"worker_type"`
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	WorkerID        string `toml:"worker_id"`
	TickIntervalMS  int64  `toml:"tick_interval_ms"`
	PollTimeoutMS   int64  `toml:"poll_timeout_ms"`
	ParallelWorkers int    `toml:"parallel_workers"`
}

// LoadConfig reads a gdk.toml-shaped file at path (worker type, host, port,
// id, tick interval, poll timeout, parallel worker count) and applies it on
// top of base, mirroring the teacher's TOML-based configuration convention.
// Fabric and NewColumns are never set by LoadConfig; callers fill those in
// after loading.
func LoadConfig(path string, base Config) (Config, error) {
	var fc fileConfig
	tree, err := toml.LoadFile(path)
	if err != nil {
		return base, fmt.Errorf("world: load config %q: %w", path, err)
	}
	if err := tree.Unmarshal(&fc); err != nil {
		return base, fmt.Errorf("world: decode config %q: %w", path, err)
	}

	cfg := base
	if fc.WorkerType != "" {
		cfg.WorkerType = fc.WorkerType
	}
	if fc.Host != "" {
		cfg.Host = fc.Host
	}
	if fc.Port != 0 {
		cfg.Port = fc.Port
	}
	if fc.WorkerID != "" {
		cfg.WorkerID = fc.WorkerID
	}
	if fc.TickIntervalMS > 0 {
		cfg.TickInterval = time.Duration(fc.TickIntervalMS) * time.Millisecond
	}
	if fc.PollTimeoutMS > 0 {
		cfg.PollTimeout = time.Duration(fc.PollTimeoutMS) * time.Millisecond
	}
	if fc.ParallelWorkers > 0 {
		cfg.ParallelWorkers = fc.ParallelWorkers
	}
	return cfg, nil
}

func (c Config) fillDefaults() Config {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.TickInterval == 0 {
		c.TickInterval = 50 * time.Millisecond
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = c.TickInterval
	}
	return c
}
