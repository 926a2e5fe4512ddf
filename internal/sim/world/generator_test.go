package world

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sort"
	"sync"
	"testing"

	"hexchunk.ai/internal/sim/borders"
	"hexchunk.ai/internal/sim/layout"
	"hexchunk.ai/internal/sim/layout/hexgrid"
	"hexchunk.ai/internal/sim/tuning"
)

type memGenLog struct {
	mu      sync.Mutex
	entries []GenerationLogEntry
}

func (m *memGenLog) WriteGeneration(e GenerationLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func newTestGenerator(t *testing.T, radius int, store borders.Store) (*Generator, *memGenLog) {
	t.Helper()
	tune := tuning.Defaults()
	tune.ChunkRadius = radius
	tune.WorldSeed = 2024
	gl := &memGenLog{}
	g, err := NewGenerator(GeneratorConfig{Tuning: tune, Store: store, GenLogger: gl})
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	return g, gl
}

func mirrorAll(radius int, pos []int) []int {
	out := make([]int, 0, len(pos))
	for _, p := range pos {
		out = append(out, hexgrid.MirrorPos(radius, p))
	}
	sort.Ints(out)
	return out
}

func assertBordersMatch(t *testing.T, g *Generator) {
	t.Helper()
	r := g.Radius()
	for _, k := range g.LoadedChunkKeys() {
		l, _ := g.Chunk(k)
		for s := 0; s < hexgrid.SegmentCount; s++ {
			nb, ok := g.Chunk(k.Neighbor(s))
			if !ok {
				continue
			}
			got := nb.Entries[hexgrid.Opposite(s)]
			want := mirrorAll(r, l.Entries[s])
			if len(got) == 0 && len(want) == 0 {
				continue
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("chunk %+v segment %d: neighbour has %v, want %v", k, s, got, want)
			}
		}
	}
}

func TestGenerator_TwoChunkSequence(t *testing.T) {
	g, _ := newTestGenerator(t, 5, nil)
	ctx := context.Background()
	a := hexgrid.ChunkKey{}
	b := a.Neighbor(0)

	la, err := g.GetOrGenerate(ctx, a)
	if err != nil {
		t.Fatalf("generate A: %v", err)
	}
	lb, err := g.GetOrGenerate(ctx, b)
	if err != nil {
		t.Fatalf("generate B: %v", err)
	}
	if la.Seed == lb.Seed {
		t.Fatalf("neighbouring chunks should get different seeds")
	}
	if got, want := lb.Entries[3], mirrorAll(5, la.Entries[0]); !reflect.DeepEqual(got, want) {
		t.Fatalf("B segment 3 = %v, want %v", got, want)
	}
	for _, p := range lb.Entries[3] {
		if tile, _ := lb.TileAt(hexgrid.SegmentCell(5, 3, p)); tile != layout.TileRoad {
			t.Fatalf("B entry %d is %v", p, tile)
		}
	}
}

func TestGenerator_CachesLayouts(t *testing.T) {
	g, gl := newTestGenerator(t, 4, nil)
	ctx := context.Background()
	k := hexgrid.ChunkKey{Q: -2, R: 1}
	first, err := g.GetOrGenerate(ctx, k)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := g.GetOrGenerate(ctx, k)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first != second {
		t.Fatalf("expected the cached layout")
	}
	if len(gl.entries) != 1 {
		t.Fatalf("expected one generation log entry, got %d", len(gl.entries))
	}
	e := gl.entries[0]
	if e.Chunk != k || e.Digest != first.Digest() || e.Stats == nil || e.Error != "" {
		t.Fatalf("unexpected log entry: %+v", e)
	}
	if m := g.Metrics(); m.LoadedChunks != 1 || m.Generated != 1 || m.Failed != 0 {
		t.Fatalf("metrics: %+v", m)
	}
}

func TestGenerator_ParallelAreaBordersMatch(t *testing.T) {
	for run := 0; run < 3; run++ {
		g, gl := newTestGenerator(t, 5, nil)
		if err := g.GenerateArea(context.Background(), hexgrid.ChunkKey{}, 2, 6); err != nil {
			t.Fatalf("run %d: generate area: %v", run, err)
		}
		if n := len(g.LoadedChunkKeys()); n != 19 {
			t.Fatalf("run %d: expected 19 chunks, got %d", run, n)
		}
		if len(gl.entries) != 19 {
			t.Fatalf("run %d: expected 19 log entries, got %d", run, len(gl.entries))
		}
		assertBordersMatch(t, g)
	}
}

// assertChunkInvariants checks one loaded chunk for a single connected road
// network of at least the road target and buildings that each touch enough
// road cells.
func assertChunkInvariants(t *testing.T, g *Generator, k hexgrid.ChunkKey) {
	t.Helper()
	l, ok := g.Chunk(k)
	if !ok {
		t.Fatalf("chunk %+v not loaded", k)
	}
	grid, err := hexgrid.New(l.Radius)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	cfg := g.Tuning().Generation

	target := int(math.Round(cfg.Roads.Density * float64(grid.Len())))
	roads := l.Count(layout.TileRoad)
	if roads < target {
		t.Fatalf("chunk %+v: road count %d below target %d", k, roads, target)
	}

	seen := make([]bool, grid.Len())
	queue := []int{}
	for i, tile := range l.Tiles {
		if tile == layout.TileRoad {
			seen[i] = true
			queue = append(queue, i)
			break
		}
	}
	for head := 0; head < len(queue); head++ {
		for _, nb := range grid.Neighbors(queue[head]) {
			if !seen[nb] && l.Tiles[nb] == layout.TileRoad {
				seen[nb] = true
				queue = append(queue, nb)
			}
		}
	}
	if len(queue) != roads {
		t.Fatalf("chunk %+v: %d of %d road cells reachable", k, len(queue), roads)
	}

	for i, tile := range l.Tiles {
		if tile != layout.TileBuilding {
			continue
		}
		adj := 0
		for _, nb := range grid.Neighbors(i) {
			if l.Tiles[nb] == layout.TileRoad {
				adj++
			}
		}
		if adj < cfg.Buildings.MinAdjacentRoads {
			t.Fatalf("chunk %+v: building at %v touches %d roads, want >= %d", k, l.Coords[i], adj, cfg.Buildings.MinAdjacentRoads)
		}
	}
	for s := 0; s < hexgrid.SegmentCount; s++ {
		for _, p := range l.Entries[s] {
			if tile, _ := l.TileAt(hexgrid.SegmentCell(l.Radius, s, p)); tile != layout.TileRoad {
				t.Fatalf("chunk %+v: entry %d on segment %d is %v", k, p, s, tile)
			}
		}
	}
}

func TestGenerator_AreaChunkInvariants(t *testing.T) {
	cases := []struct {
		radius    int
		density   float64
		perBorder int
	}{
		{2, 0.1, 1},
		{3, 0.4, 1},
		{5, 0.1, 2},
		{6, 0.4, 2},
		{9, 0.1, 1},
		{9, 0.4, 2},
	}
	for _, tc := range cases {
		for _, seed := range []int64{3, 11, 42} {
			tune := tuning.Defaults()
			tune.ChunkRadius = tc.radius
			tune.WorldSeed = seed
			tune.Generation.Roads.Density = tc.density
			tune.Generation.Borders.RoadsPerBorder = tc.perBorder
			g, err := NewGenerator(GeneratorConfig{Tuning: tune})
			if err != nil {
				t.Fatalf("r=%d seed=%d: %v", tc.radius, seed, err)
			}
			if err := g.GenerateArea(context.Background(), hexgrid.ChunkKey{}, 2, 4); err != nil {
				t.Fatalf("r=%d seed=%d: generate area: %v", tc.radius, seed, err)
			}
			for _, k := range g.LoadedChunkKeys() {
				assertChunkInvariants(t, g, k)
			}
			assertBordersMatch(t, g)
			if bad := g.Unstable(); len(bad) != 0 {
				t.Fatalf("r=%d seed=%d: chunks %v do not re-merge to their tiles", tc.radius, seed, bad)
			}
		}
	}
}

func TestGenerator_SameOrderSameLayouts(t *testing.T) {
	ctx := context.Background()
	g1, _ := newTestGenerator(t, 6, nil)
	g2, _ := newTestGenerator(t, 6, nil)
	for _, k := range hexgrid.ChunksWithin(hexgrid.ChunkKey{Q: 3, R: -3}, 1) {
		l1, err := g1.GetOrGenerate(ctx, k)
		if err != nil {
			t.Fatalf("generate %+v: %v", k, err)
		}
		l2, err := g2.GetOrGenerate(ctx, k)
		if err != nil {
			t.Fatalf("generate %+v: %v", k, err)
		}
		if l1.Digest() != l2.Digest() {
			t.Fatalf("chunk %+v differs between identical runs", k)
		}
	}
}

func TestGenerator_RestartKeepsCommittedBorders(t *testing.T) {
	ctx := context.Background()
	store := borders.NewMemStore()
	g1, _ := newTestGenerator(t, 5, store)
	k := hexgrid.ChunkKey{Q: 1, R: 1}
	before, err := g1.GetOrGenerate(ctx, k)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	g2, _ := newTestGenerator(t, 5, store)
	after, err := g2.GetOrGenerate(ctx, k)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	for s := 0; s < hexgrid.SegmentCount; s++ {
		if !reflect.DeepEqual(before.Entries[s], after.Entries[s]) {
			t.Fatalf("segment %d moved from %v to %v", s, before.Entries[s], after.Entries[s])
		}
	}
}

func TestGenerator_FailureIsLoggedAndTyped(t *testing.T) {
	g, gl := newTestGenerator(t, 1, nil)
	_, err := g.GetOrGenerate(context.Background(), hexgrid.ChunkKey{})
	if !errors.Is(err, layout.ErrInsufficientGridSize) {
		t.Fatalf("expected ErrInsufficientGridSize, got %v", err)
	}
	if len(gl.entries) != 1 || gl.entries[0].Error == "" {
		t.Fatalf("expected a failed log entry, got %+v", gl.entries)
	}
	if _, ok := g.Chunk(hexgrid.ChunkKey{}); ok {
		t.Fatalf("failed chunk must not be cached")
	}
	if m := g.Metrics(); m.Failed != 1 || m.Generated != 0 || m.LoadedChunks != 0 {
		t.Fatalf("metrics: %+v", m)
	}
	if pos, ok, _ := g.store.Lookup(context.Background(), borders.Key{Segment: 0}); ok {
		t.Fatalf("failed chunk must not commit borders, got %v", pos)
	}
}

// rejectingStore accepts lookups but refuses every batch commit.
type rejectingStore struct {
	*borders.MemStore
}

func (rejectingStore) CommitAll(context.Context, []borders.Commitment) error {
	return errors.New("disk full")
}

func TestGenerator_CommitFailureLeavesNothingVisible(t *testing.T) {
	store := rejectingStore{MemStore: borders.NewMemStore()}
	g, gl := newTestGenerator(t, 4, store)
	key := hexgrid.ChunkKey{Q: 1, R: 1}

	if _, err := g.GetOrGenerate(context.Background(), key); err == nil {
		t.Fatalf("expected commit error")
	}
	if _, ok := g.Chunk(key); ok {
		t.Fatalf("layout must not be cached after a failed commit")
	}
	if n := len(store.List()); n != 0 {
		t.Fatalf("expected no commitments, got %d", n)
	}
	if m := g.Metrics(); m.Generated != 0 || m.Failed != 1 || m.LoadedChunks != 0 {
		t.Fatalf("metrics: %+v", m)
	}
	if len(gl.entries) != 1 || gl.entries[0].Error == "" {
		t.Fatalf("expected one failed log entry, got %+v", gl.entries)
	}
}

func TestGenerator_CanceledContext(t *testing.T) {
	g, _ := newTestGenerator(t, 4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.GetOrGenerate(ctx, hexgrid.ChunkKey{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := g.GenerateArea(ctx, hexgrid.ChunkKey{}, 1, 2); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from area, got %v", err)
	}
}

func TestGenerator_ExportImport(t *testing.T) {
	ctx := context.Background()
	g1, _ := newTestGenerator(t, 4, nil)
	if err := g1.GenerateArea(ctx, hexgrid.ChunkKey{}, 1, 3); err != nil {
		t.Fatalf("generate area: %v", err)
	}
	file := g1.ExportLoaded()
	if len(file.Chunks) != 7 {
		t.Fatalf("expected 7 exported chunks, got %d", len(file.Chunks))
	}

	g2, _ := newTestGenerator(t, 4, nil)
	if err := g2.Import(ctx, file); err != nil {
		t.Fatalf("import: %v", err)
	}
	for _, k := range g1.LoadedChunkKeys() {
		a, _ := g1.Chunk(k)
		b, ok := g2.Chunk(k)
		if !ok || a.Digest() != b.Digest() {
			t.Fatalf("chunk %+v not restored", k)
		}
	}

	// New chunks next to imported ones still line up.
	if err := g2.GenerateArea(ctx, hexgrid.ChunkKey{}, 2, 4); err != nil {
		t.Fatalf("extend area: %v", err)
	}
	assertBordersMatch(t, g2)

	g3, _ := newTestGenerator(t, 5, nil)
	if err := g3.Import(ctx, file); err == nil {
		t.Fatalf("expected radius mismatch error")
	}

	file.Chunks[0].Digest = "bogus"
	g4, _ := newTestGenerator(t, 4, nil)
	if err := g4.Import(ctx, file); err == nil {
		t.Fatalf("expected digest mismatch error")
	}
}
