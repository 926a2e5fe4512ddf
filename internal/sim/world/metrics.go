package world

import "sync/atomic"

// GeneratorMetrics is a read-only view of generation counters, safe to read
// from HTTP handlers while workers generate.
type GeneratorMetrics struct {
	LoadedChunks int    `json:"loaded_chunks"`
	Generated    uint64 `json:"generated_total"`
	Failed       uint64 `json:"failed_total"`
	Shortfalls   uint64 `json:"shortfall_total"`
	LastMS       int64  `json:"last_generate_ms"`
}

type generatorCounters struct {
	generated  atomic.Uint64
	failed     atomic.Uint64
	shortfalls atomic.Uint64
	lastMS     atomic.Int64
}

func (g *Generator) Metrics() GeneratorMetrics {
	g.mu.RLock()
	loaded := len(g.chunks)
	g.mu.RUnlock()
	return GeneratorMetrics{
		LoadedChunks: loaded,
		Generated:    g.counters.generated.Load(),
		Failed:       g.counters.failed.Load(),
		Shortfalls:   g.counters.shortfalls.Load(),
		LastMS:       g.counters.lastMS.Load(),
	}
}
