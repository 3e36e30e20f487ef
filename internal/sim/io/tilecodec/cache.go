package tilecodec

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"

	"minefield.gg/internal/sim/geom"
	"minefield.gg/internal/sim/tile"
)

// FrameCache memoizes encoded chunk payloads. A chunk's revision is part of
// the key, so stale entries are never served; they age out by cost.
type FrameCache struct {
	c *ristretto.Cache[string, string]
}

// NewFrameCache sizes the cache to maxBytes of encoded payload. maxBytes <= 0
// returns a nil cache, which is valid and never hits.
func NewFrameCache(maxBytes int64) (*FrameCache, error) {
	if maxBytes <= 0 {
		return nil, nil
	}
	c, err := ristretto.NewCache[string, string](&ristretto.Config[string, string]{
		NumCounters: 100000,
		MaxCost:     maxBytes,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("tilecodec: frame cache: %w", err)
	}
	return &FrameCache{c: c}, nil
}

func frameKey(origin geom.Pos, rev uint64, enc string) string {
	return fmt.Sprintf("%d|%d|%d|%s", origin.X, origin.Y, rev, enc)
}

// Encode returns the encoded payload for a chunk at (origin, rev), encoding
// tiles on a miss. tiles is only called on a miss.
func (f *FrameCache) Encode(origin geom.Pos, rev uint64, enc string, tiles func() []tile.Tile) (string, error) {
	if f == nil {
		return Encode(enc, tiles())
	}
	key := frameKey(origin, rev, enc)
	if v, ok := f.c.Get(key); ok {
		return v, nil
	}
	v, err := Encode(enc, tiles())
	if err != nil {
		return "", err
	}
	f.c.Set(key, v, int64(len(v)))
	return v, nil
}

// Wait blocks until pending writes are visible.
func (f *FrameCache) Wait() {
	if f != nil {
		f.c.Wait()
	}
}

func (f *FrameCache) Close() {
	if f != nil {
		f.c.Close()
	}
}

// Metrics reports hits and misses; zero for a nil cache.
func (f *FrameCache) Metrics() (hits, misses uint64) {
	if f == nil || f.c.Metrics == nil {
		return 0, 0
	}
	return f.c.Metrics.Hits(), f.c.Metrics.Misses()
}
