package world

import (
	"time"

	"minefield.gg/internal/sim/geom"
	"minefield.gg/internal/sim/tuning"
)

type WorldConfig struct {
	TickRateHz    int
	Seed          int64
	MinesPerChunk int

	// BoundaryR limits play to |x|,|y| <= BoundaryR. Zero means unbounded.
	BoundaryR int

	Respawn       time.Duration
	RespawnGrowth time.Duration

	MaxPatchCells  int
	MaxQueryChunks int

	// ChunkCacheBytes sizes the encoded CHUNK frame cache. Zero disables it.
	ChunkCacheBytes int64
}

// ConfigFromTuning maps the tuning file onto the world loop settings.
func ConfigFromTuning(t tuning.Tuning) WorldConfig {
	return WorldConfig{
		TickRateHz:      t.TickRateHz,
		Seed:            t.Seed,
		MinesPerChunk:   t.MinesPerChunk,
		BoundaryR:       t.BoundaryR,
		Respawn:         time.Duration(t.RespawnMs) * time.Millisecond,
		RespawnGrowth:   time.Duration(t.RespawnGrowthMs) * time.Millisecond,
		MaxPatchCells:   t.MaxPatchCells,
		MaxQueryChunks:  t.MaxQueryChunks,
		ChunkCacheBytes: int64(t.ChunkCacheMB) << 20,
	}
}

func (c *WorldConfig) applyDefaults() {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.MinesPerChunk < 0 {
		c.MinesPerChunk = 0
	}
	if c.BoundaryR < 0 {
		c.BoundaryR = 0
	}
	if c.MaxPatchCells < geom.ChunkArea {
		c.MaxPatchCells = 64 * 1024
	}
	if c.MaxQueryChunks <= 0 {
		c.MaxQueryChunks = 1024
	}
}

// Bounds returns the playable rect, or the zero Rect when unbounded.
func (c WorldConfig) Bounds() geom.Rect {
	if c.BoundaryR <= 0 {
		return geom.Rect{}
	}
	r := c.BoundaryR
	return geom.Rect{Min: geom.Pos{X: -r, Y: -r}, Max: geom.Pos{X: r + 1, Y: r + 1}}
}
