// Package config holds the simulator configuration: which core to build, the
// sizes of its buffers, and the nested timing, predictor, and cache settings.
//
// A Config is constructed once, usually from a JSON file, and passed into
// core construction.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/rvsim/program"
	"github.com/sarchlab/rvsim/timing/bpred"
	"github.com/sarchlab/rvsim/timing/cache"
	"github.com/sarchlab/rvsim/timing/latency"
)

// CoreKind selects the microarchitecture.
type CoreKind string

// Supported cores.
const (
	// CoreSingle runs the functional reference emulator, one instruction
	// per cycle.
	CoreSingle CoreKind = "single"
	// CoreInOrder is the five-stage in-order pipeline.
	CoreInOrder CoreKind = "inorder"
	// CoreDual is the dual-issue out-of-order core.
	CoreDual CoreKind = "dual"
	// CoreTriple is the triple-issue out-of-order core with a floating-point
	// lane.
	CoreTriple CoreKind = "triple"
)

// ErrUnknownCore is returned for a core kind other than single, inorder,
// dual, or triple.
var ErrUnknownCore = errors.New("unknown core kind")

// IssueWidth returns the number of instructions fetched, issued, and
// committed per cycle.
func (k CoreKind) IssueWidth() int {
	switch k {
	case CoreDual:
		return 2
	case CoreTriple:
		return 3
	}
	return 1
}

// DCacheConfig enables and shapes the L1 data cache timing model.
type DCacheConfig struct {
	Enabled bool `json:"enabled"`
	cache.Config
}

// InOrderConfig selects the hazard handling of the in-order pipeline.
type InOrderConfig struct {
	// Forwarding enables the EX/MEM and MEM/WB bypass paths.
	Forwarding bool `json:"forwarding"`
	// BranchPrediction lets fetch follow the predictor. Without it fetch
	// is sequential and every taken branch flushes.
	BranchPrediction bool `json:"branch_prediction"`
}

// Config is the simulator configuration.
type Config struct {
	// Core selects the microarchitecture. Default: "dual".
	Core CoreKind `json:"core"`

	// ROBSize is the number of reorder buffer slots.
	// Default: 8 for dual, 16 for triple.
	ROBSize int `json:"rob_size"`

	// ALURSSize, FPURSSize, and LSURSSize are the reservation station
	// capacities. FPURSSize is only used by the triple-issue core.
	ALURSSize int `json:"alu_rs_size"`
	FPURSSize int `json:"fpu_rs_size"`
	LSURSSize int `json:"lsu_rs_size"`

	// DataBase is the address the data segment is laid out from.
	DataBase uint32 `json:"data_base"`

	// MaxCycles bounds a run. 0 means no limit.
	MaxCycles uint64 `json:"max_cycles"`

	Latency   *latency.TimingConfig `json:"latency"`
	Predictor bpred.Config          `json:"predictor"`
	DCache    DCacheConfig          `json:"dcache"`
	InOrder   InOrderConfig         `json:"inorder"`
}

// Default returns the default configuration of the dual-issue core.
func Default() *Config {
	return DefaultFor(CoreDual)
}

// DefaultFor returns the default configuration of the given core kind.
func DefaultFor(kind CoreKind) *Config {
	c := &Config{
		Core:      kind,
		ROBSize:   8,
		ALURSSize: 4,
		FPURSSize: 4,
		LSURSSize: 4,
		DataBase:  program.DefaultDataBase,
		Latency:   latency.DefaultTimingConfig(),
		Predictor: bpred.DefaultConfig(),
		DCache:    DCacheConfig{Config: cache.DefaultL1DConfig()},
		InOrder:   InOrderConfig{Forwarding: true, BranchPrediction: true},
	}

	if kind == CoreTriple {
		c.ROBSize = 16
	}

	return c
}

// Load reads a Config from a JSON file. Fields missing from the file keep
// the defaults of the core kind the file names.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var head struct {
		Core CoreKind `json:"core"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if head.Core == "" {
		head.Core = CoreDual
	}

	c := DefaultFor(head.Core)
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return c, nil
}

// Save writes the Config to a JSON file.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Encode writes the Config to w as indented JSON.
func (c *Config) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	return nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Core {
	case CoreSingle, CoreInOrder, CoreDual, CoreTriple:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCore, c.Core)
	}

	sizes := []struct {
		name  string
		value int
	}{
		{"rob_size", c.ROBSize},
		{"alu_rs_size", c.ALURSSize},
		{"fpu_rs_size", c.FPURSSize},
		{"lsu_rs_size", c.LSURSSize},
	}
	for _, s := range sizes {
		if s.value <= 0 {
			return fmt.Errorf("%s must be > 0", s.name)
		}
	}

	if c.Latency == nil {
		return fmt.Errorf("latency section is required")
	}
	if err := c.Latency.Validate(); err != nil {
		return fmt.Errorf("latency: %w", err)
	}

	if err := c.Predictor.Validate(); err != nil {
		return fmt.Errorf("predictor: %w", err)
	}

	if c.DCache.Enabled {
		if err := c.DCache.Config.Validate(); err != nil {
			return fmt.Errorf("dcache: %w", err)
		}
	}

	return nil
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Latency != nil {
		clone.Latency = c.Latency.Clone()
	}
	return &clone
}
