package borderdb

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"hexchunk.ai/internal/sim/borders"
	"hexchunk.ai/internal/sim/layout"
	"hexchunk.ai/internal/sim/layout/hexgrid"
	"hexchunk.ai/internal/sim/tuning"
	"hexchunk.ai/internal/sim/world"
)

func TestDB_CommitLookupAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "borders.sqlite")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	k := borders.Key{Chunk: hexgrid.ChunkKey{Q: -1, R: 2}, Segment: 4}
	if _, ok, err := db.Lookup(ctx, k); ok || err != nil {
		t.Fatalf("expected no commitment, got ok=%v err=%v", ok, err)
	}
	if err := db.Commit(ctx, k, []int{0, 5}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := db.Commit(ctx, k, []int{2}); err != nil {
		t.Fatalf("second commit: %v", err)
	}
	empty := borders.Key{Chunk: hexgrid.ChunkKey{Q: -1, R: 2}, Segment: 1}
	if err := db.Commit(ctx, empty, nil); err != nil {
		t.Fatalf("commit empty: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	pos, ok, err := db.Lookup(ctx, k)
	if err != nil || !ok {
		t.Fatalf("lookup after reopen: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(pos, []int{0, 5}) {
		t.Fatalf("first commit should win, got %v", pos)
	}
	if pos, ok, _ := db.Lookup(ctx, empty); !ok || len(pos) != 0 {
		t.Fatalf("expected committed empty border, got ok=%v pos=%v", ok, pos)
	}

	list, err := db.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != empty || list[1].Key != k {
		t.Fatalf("unexpected listing: %+v", list)
	}
}

func TestDB_CommitAll(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "borders.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	chunk := hexgrid.ChunkKey{Q: 3, R: -3}
	if err := db.Commit(ctx, borders.Key{Chunk: chunk, Segment: 2}, []int{4}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	batch := make([]borders.Commitment, 0, hexgrid.SegmentCount)
	for seg := 0; seg < hexgrid.SegmentCount; seg++ {
		batch = append(batch, borders.Commitment{Key: borders.Key{Chunk: chunk, Segment: seg}, Positions: []int{seg}})
	}
	batch[5].Positions = nil
	if err := db.CommitAll(ctx, batch); err != nil {
		t.Fatalf("commit all: %v", err)
	}
	list, err := db.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != hexgrid.SegmentCount {
		t.Fatalf("expected %d rows, got %d", hexgrid.SegmentCount, len(list))
	}
	if pos, _, _ := db.Lookup(ctx, borders.Key{Chunk: chunk, Segment: 2}); !reflect.DeepEqual(pos, []int{4}) {
		t.Fatalf("earlier commit should win, got %v", pos)
	}
	if pos, ok, _ := db.Lookup(ctx, borders.Key{Chunk: chunk, Segment: 5}); !ok || len(pos) != 0 {
		t.Fatalf("expected committed empty border, got ok=%v pos=%v", ok, pos)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	other := []borders.Commitment{{Key: borders.Key{Chunk: hexgrid.ChunkKey{Q: 8}, Segment: 0}, Positions: []int{1}}}
	if err := db.CommitAll(canceled, other); err == nil {
		t.Fatalf("expected error on canceled context")
	}
	if _, ok, _ := db.Lookup(ctx, other[0].Key); ok {
		t.Fatalf("canceled batch must not be recorded")
	}
}

func TestDB_GenerationRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "borders.sqlite")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	stats := layout.Stats{Roads: 12, Buildings: 3}
	_ = db.WriteGeneration(world.GenerationLogEntry{Chunk: hexgrid.ChunkKey{Q: 1}, Seed: 5, Radius: 4, Digest: "d1", Stats: &stats})
	_ = db.WriteGeneration(world.GenerationLogEntry{Chunk: hexgrid.ChunkKey{Q: 2}, Seed: 6, Radius: 4, Error: "unreachable border"})
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := db.WriteGeneration(world.GenerationLogEntry{}); err != nil {
		t.Fatalf("write after close should be a no-op, got %v", err)
	}

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	rows, err := db.Generations(ctx, 10)
	if err != nil {
		t.Fatalf("generations: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Chunk.Q != 2 || rows[0].Error == "" {
		t.Fatalf("expected newest row first, got %+v", rows[0])
	}
	if rows[1].Roads != 12 || rows[1].Buildings != 3 || rows[1].Digest != "d1" {
		t.Fatalf("unexpected stats row: %+v", rows[1])
	}
}

func TestDB_UpsertTuning(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "borders.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	d1, err := db.UpsertTuning(ctx, tuning.Defaults())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	tune := tuning.Defaults()
	tune.WorldSeed = 99
	d2, err := db.UpsertTuning(ctx, tune)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if d1 == d2 {
		t.Fatalf("different tunings should have different digests")
	}
	got, ok, err := db.Meta(ctx, "tuning_digest")
	if err != nil || !ok || got != d2 {
		t.Fatalf("meta tuning_digest = %q ok=%v err=%v, want %q", got, ok, err, d2)
	}
}

func TestDB_BackedGeneratorSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "borders.sqlite")
	tune := tuning.Defaults()
	tune.ChunkRadius = 4

	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	g1, err := world.NewGenerator(world.GeneratorConfig{Tuning: tune, Store: db, GenLogger: db})
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	if err := g1.GenerateArea(ctx, hexgrid.ChunkKey{}, 1, 3); err != nil {
		t.Fatalf("generate area: %v", err)
	}
	first, _ := g1.Chunk(hexgrid.ChunkKey{})
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	list, err := db.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 7*hexgrid.SegmentCount {
		t.Fatalf("expected %d commitments, got %d", 7*hexgrid.SegmentCount, len(list))
	}

	g2, err := world.NewGenerator(world.GeneratorConfig{Tuning: tune, Store: db})
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	again, err := g2.GetOrGenerate(ctx, hexgrid.ChunkKey{})
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	for s := 0; s < hexgrid.SegmentCount; s++ {
		if len(first.Entries[s]) == 0 && len(again.Entries[s]) == 0 {
			continue
		}
		if !reflect.DeepEqual(first.Entries[s], again.Entries[s]) {
			t.Fatalf("segment %d moved from %v to %v", s, first.Entries[s], again.Entries[s])
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		rows, err := db.Generations(ctx, 100)
		if err != nil {
			t.Fatalf("generations: %v", err)
		}
		if len(rows) == 7 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 7 generation rows, got %d", len(rows))
		}
		time.Sleep(20 * time.Millisecond)
	}
}
