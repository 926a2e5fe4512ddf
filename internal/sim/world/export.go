package world

import (
	"context"
	"fmt"
	"time"

	"hexchunk.ai/internal/persistence/layoutfile"
	"hexchunk.ai/internal/sim/layout"
	"hexchunk.ai/internal/sim/layout/hexgrid"
)

// ExportLoaded converts loaded layouts into a layout file body.
func (g *Generator) ExportLoaded() layoutfile.FileV1 {
	keys := g.LoadedChunkKeys()
	out := layoutfile.FileV1{
		Header: layoutfile.Header{
			WorldSeed: g.tune.WorldSeed,
			Radius:    g.tune.ChunkRadius,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		},
		Chunks: make([]layoutfile.ChunkV1, 0, len(keys)),
	}
	for _, k := range keys {
		l, ok := g.Chunk(k)
		if !ok {
			continue
		}
		out.Chunks = append(out.Chunks, ExportChunk(k, l))
	}
	return out
}

func ExportChunk(k hexgrid.ChunkKey, l *layout.Layout) layoutfile.ChunkV1 {
	tiles := make([]byte, len(l.Tiles))
	for i, t := range l.Tiles {
		tiles[i] = byte(t)
	}
	var entries [hexgrid.SegmentCount][]int
	for s, seg := range l.Entries {
		entries[s] = append([]int{}, seg...)
	}
	return layoutfile.ChunkV1{
		Q:         k.Q,
		R:         k.R,
		Seed:      l.Seed,
		Tiles:     tiles,
		Entries:   entries,
		Shortfall: l.Shortfall,
		Digest:    l.Digest(),
	}
}

// ImportChunk rebuilds a layout from a file chunk and checks its digest.
func ImportChunk(radius int, ch layoutfile.ChunkV1) (*layout.Layout, error) {
	tiles := make([]layout.TileType, len(ch.Tiles))
	for i, b := range ch.Tiles {
		tiles[i] = layout.TileType(b)
	}
	l, err := layout.FromTiles(radius, ch.Seed, tiles, ch.Entries, ch.Shortfall)
	if err != nil {
		return nil, fmt.Errorf("chunk (%d,%d): %w", ch.Q, ch.R, err)
	}
	if ch.Digest != "" && l.Digest() != ch.Digest {
		return nil, fmt.Errorf("chunk (%d,%d): digest mismatch", ch.Q, ch.R)
	}
	return l, nil
}

// Import loads layouts from a file into the cache and commits their borders,
// so chunks generated afterwards line up with them.
func (g *Generator) Import(ctx context.Context, file layoutfile.FileV1) error {
	if file.Header.Radius != g.tune.ChunkRadius {
		return fmt.Errorf("layout file radius %d does not match chunk_radius %d", file.Header.Radius, g.tune.ChunkRadius)
	}
	loaded := make(map[hexgrid.ChunkKey]*layout.Layout, len(file.Chunks))
	for _, ch := range file.Chunks {
		l, err := ImportChunk(g.tune.ChunkRadius, ch)
		if err != nil {
			return err
		}
		loaded[hexgrid.ChunkKey{Q: ch.Q, R: ch.R}] = l
	}
	for k, l := range loaded {
		if err := g.adopt(ctx, k, l); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) adopt(ctx context.Context, k hexgrid.ChunkKey, l *layout.Layout) error {
	unlock := g.locks.LockChunk(k)
	defer unlock()
	if err := g.store.CommitAll(ctx, commitments(k, l)); err != nil {
		return fmt.Errorf("chunk (%d,%d): commit borders: %w", k.Q, k.R, err)
	}
	g.mu.Lock()
	g.chunks[k] = l
	g.mu.Unlock()
	return nil
}
