package world

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"hexchunk.ai/internal/sim/borders"
	"hexchunk.ai/internal/sim/layout"
	"hexchunk.ai/internal/sim/layout/hexgrid"
	"hexchunk.ai/internal/sim/mathx"
	"hexchunk.ai/internal/sim/tuning"
)

// Generator produces chunk layouts for one world and keeps them in memory.
// Chunks sharing a border are generated one at a time; everything else runs
// in parallel.
type Generator struct {
	tune      tuning.Tuning
	store     borders.Store
	locks     *borders.Locks
	logger    *log.Logger
	genLogger GenerationLogger

	mu     sync.RWMutex
	chunks map[hexgrid.ChunkKey]*layout.Layout

	counters generatorCounters
}

func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	cfg.Tuning.Normalize()
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{
		tune:      cfg.Tuning,
		store:     cfg.Store,
		locks:     borders.NewLocks(),
		logger:    cfg.Logger,
		genLogger: cfg.GenLogger,
		chunks:    map[hexgrid.ChunkKey]*layout.Layout{},
	}
	if g.store == nil {
		g.store = borders.NewMemStore()
	}
	if g.logger == nil {
		g.logger = log.New(io.Discard, "", 0)
	}
	return g, nil
}

func (g *Generator) Tuning() tuning.Tuning { return g.tune }

func (g *Generator) Radius() int { return g.tune.ChunkRadius }

// SeedFor is the per-chunk seed derived from the world seed.
func (g *Generator) SeedFor(key hexgrid.ChunkKey) int64 {
	return mathx.DeriveSeed(g.tune.WorldSeed, key.Q, key.R)
}

// Chunk returns an already generated layout.
func (g *Generator) Chunk(key hexgrid.ChunkKey) (*layout.Layout, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	l, ok := g.chunks[key]
	return l, ok
}

func (g *Generator) LoadedChunkKeys() []hexgrid.ChunkKey {
	g.mu.RLock()
	keys := make([]hexgrid.ChunkKey, 0, len(g.chunks))
	for k := range g.chunks {
		keys = append(keys, k)
	}
	g.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// GetOrGenerate returns the cached layout for key, generating it first if
// needed. Generation reads the commitments of every neighbour that already
// exists, then commits all six of its own borders.
func (g *Generator) GetOrGenerate(ctx context.Context, key hexgrid.ChunkKey) (*layout.Layout, error) {
	if l, ok := g.Chunk(key); ok {
		return l, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := g.locks.LockChunk(key)
	defer unlock()
	if l, ok := g.Chunk(key); ok {
		return l, nil
	}

	start := time.Now()
	seed := g.SeedFor(key)
	entry := GenerationLogEntry{
		Time:   start.UTC().Format(time.RFC3339Nano),
		Chunk:  key,
		Seed:   seed,
		Radius: g.tune.ChunkRadius,
	}

	neighbors, committed, err := g.borderState(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("chunk (%d,%d): border lookup: %w", key.Q, key.R, err)
	}
	entry.Committed = committed

	l, err := layout.Generate(g.tune.ChunkRadius, g.tune.Generation, seed, neighbors)
	entry.DurationMS = time.Since(start).Milliseconds()
	g.counters.lastMS.Store(entry.DurationMS)
	if err != nil {
		g.counters.failed.Add(1)
		entry.Error = err.Error()
		g.record(entry)
		g.logger.Printf("chunk (%d,%d): generation failed: %v", key.Q, key.R, err)
		return nil, fmt.Errorf("chunk (%d,%d): %w", key.Q, key.R, err)
	}

	if err := g.store.CommitAll(ctx, commitments(key, l)); err != nil {
		g.counters.failed.Add(1)
		entry.Error = err.Error()
		g.record(entry)
		return nil, fmt.Errorf("chunk (%d,%d): commit borders: %w", key.Q, key.R, err)
	}

	g.mu.Lock()
	g.chunks[key] = l
	g.mu.Unlock()

	g.counters.generated.Add(1)
	if l.Shortfall > 0 {
		g.counters.shortfalls.Add(1)
		g.logger.Printf("chunk (%d,%d): placed %d of %d buildings (%d eligible cells)",
			key.Q, key.R, l.Stats.Buildings, l.Stats.RequestedBuildings, l.Stats.EligibleBuildings)
	}
	stats := l.Stats
	entry.Entries = l.Entries
	entry.Digest = l.Digest()
	entry.Stats = &stats
	entry.Shortfall = l.Shortfall
	g.record(entry)
	return l, nil
}

// borderState snapshots the committed borders around key. A segment this
// chunk committed in an earlier run wins over the facing neighbour's record;
// it is handed over pre-mirrored so it lands on the same positions.
func (g *Generator) borderState(ctx context.Context, key hexgrid.ChunkKey) (layout.NeighborBorders, []int, error) {
	var (
		positions [hexgrid.SegmentCount][]int
		present   [hexgrid.SegmentCount]bool
		committed []int
	)
	r := g.tune.ChunkRadius
	for s := 0; s < hexgrid.SegmentCount; s++ {
		own := borders.Key{Chunk: key, Segment: s}
		pos, ok, err := g.store.Lookup(ctx, own)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			mirrored := make([]int, len(pos))
			for i, p := range pos {
				mirrored[i] = hexgrid.MirrorPos(r, p)
			}
			positions[s], present[s] = mirrored, true
			committed = append(committed, s)
			continue
		}
		pos, ok, err = g.store.Lookup(ctx, own.Facing())
		if err != nil {
			return nil, nil, err
		}
		if ok {
			positions[s], present[s] = pos, true
			committed = append(committed, s)
		}
	}
	return func(seg int) ([]int, bool) {
		return positions[seg], present[seg]
	}, committed, nil
}

// Unstable lists loaded chunks whose tiles no longer match a fresh merge of
// the layers they were generated from. Imported chunks carry no layers and
// are skipped.
func (g *Generator) Unstable() []hexgrid.ChunkKey {
	var out []hexgrid.ChunkKey
	for _, k := range g.LoadedChunkKeys() {
		l, ok := g.Chunk(k)
		if !ok {
			continue
		}
		tiles, ok := l.Remerge()
		if !ok {
			continue
		}
		for i := range tiles {
			if tiles[i] != l.Tiles[i] {
				out = append(out, k)
				break
			}
		}
	}
	return out
}

// commitments lists the six border rows a layout commits.
func commitments(key hexgrid.ChunkKey, l *layout.Layout) []borders.Commitment {
	out := make([]borders.Commitment, 0, hexgrid.SegmentCount)
	for s := 0; s < hexgrid.SegmentCount; s++ {
		out = append(out, borders.Commitment{
			Key:       borders.Key{Chunk: key, Segment: s},
			Positions: l.Entries[s],
		})
	}
	return out
}

func (g *Generator) record(entry GenerationLogEntry) {
	if g.genLogger == nil {
		return
	}
	if err := g.genLogger.WriteGeneration(entry); err != nil {
		g.logger.Printf("generation log: %v", err)
	}
}
