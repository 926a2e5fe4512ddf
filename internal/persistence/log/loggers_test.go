package log

import (
	"testing"
	"time"

	"hexchunk.ai/internal/sim/layout/hexgrid"
	"hexchunk.ai/internal/sim/world"
)

func TestGenerationLoggerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewGenerationLogger(dir)
	fixed := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	l.w.now = func() time.Time { return fixed }

	for i := 0; i < 3; i++ {
		if err := l.WriteGeneration(world.GenerationLogEntry{Chunk: hexgrid.ChunkKey{Q: i}, Seed: int64(i)}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopening the same hour appends a second zstd frame.
	if err := l.WriteGeneration(world.GenerationLogEntry{Chunk: hexgrid.ChunkKey{Q: 9}, Error: "boom"}); err != nil {
		t.Fatalf("write after close: %v", err)
	}
	fixed = fixed.Add(time.Hour)
	if err := l.WriteGeneration(world.GenerationLogEntry{Chunk: hexgrid.ChunkKey{R: 4}}); err != nil {
		t.Fatalf("write next hour: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(GenerationsDir(dir), "generations")
	if err != nil || len(files) != 2 {
		t.Fatalf("expected 2 hourly files, got %v (err %v)", files, err)
	}
	got, err := ReadGenerations(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(got))
	}
	if got[3].Error != "boom" || got[3].Chunk.Q != 9 {
		t.Fatalf("unexpected entry order: %+v", got[3])
	}
	if got[4].Chunk.R != 4 {
		t.Fatalf("expected next-hour entry last, got %+v", got[4])
	}
}
