package tuning

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz      int   `yaml:"tick_rate_hz"`
	Seed            int64 `yaml:"seed"`
	MinesPerChunk   int   `yaml:"mines_per_chunk"`
	BoundaryR       int   `yaml:"boundary_r"`
	RespawnMs       int   `yaml:"respawn_ms"`
	RespawnGrowthMs int   `yaml:"respawn_growth_ms"`
	MaxPatchCells   int   `yaml:"max_patch_cells"`
	MaxQueryChunks  int   `yaml:"max_query_chunks"`
	ChunkCacheMB    int   `yaml:"chunk_cache_mb"`

	RateLimits RateLimits `yaml:"rate_limits"`
}

type RateLimits struct {
	ActionsPerSec float64 `yaml:"actions_per_sec"`
	ActionBurst   int     `yaml:"action_burst"`
	QueriesPerSec float64 `yaml:"queries_per_sec"`
	QueryBurst    int     `yaml:"query_burst"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      20,
		MinesPerChunk:   40,
		RespawnMs:       10_000,
		RespawnGrowthMs: 5_000,
		MaxPatchCells:   64 * 1024,
		MaxQueryChunks:  1024,
		ChunkCacheMB:    32,
		RateLimits: RateLimits{
			ActionsPerSec: 20,
			ActionBurst:   40,
			QueriesPerSec: 5,
			QueryBurst:    10,
		},
	}
}

// Load reads path over Defaults. Keys absent from the file keep their
// default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// LoadOrDefault behaves like Load but treats a missing file as Defaults.
func LoadOrDefault(path string) (Tuning, error) {
	t, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	return t, err
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz <= 0 || t.TickRateHz > 1000:
		return fmt.Errorf("tick_rate_hz out of range: %d", t.TickRateHz)
	case t.MinesPerChunk < 0 || t.MinesPerChunk >= 256:
		return fmt.Errorf("mines_per_chunk out of range: %d", t.MinesPerChunk)
	case t.BoundaryR < 0:
		return fmt.Errorf("boundary_r must be >= 0: %d", t.BoundaryR)
	case t.RespawnMs < 0 || t.RespawnGrowthMs < 0:
		return errors.New("respawn durations must be >= 0")
	case t.MaxPatchCells < 256:
		return fmt.Errorf("max_patch_cells must cover one chunk: %d", t.MaxPatchCells)
	case t.MaxQueryChunks <= 0:
		return fmt.Errorf("max_query_chunks must be > 0: %d", t.MaxQueryChunks)
	case t.ChunkCacheMB < 0:
		return fmt.Errorf("chunk_cache_mb must be >= 0: %d", t.ChunkCacheMB)
	case t.RateLimits.ActionsPerSec < 0 || t.RateLimits.QueriesPerSec < 0:
		return errors.New("rate limits must be >= 0")
	}
	return nil
}

func (t Tuning) TickInterval() time.Duration {
	return time.Second / time.Duration(t.TickRateHz)
}
