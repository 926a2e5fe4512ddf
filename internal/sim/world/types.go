package world

import (
	"hexchunk.ai/internal/sim/layout"
	"hexchunk.ai/internal/sim/layout/hexgrid"
)

type GenerationLogger interface {
	WriteGeneration(entry GenerationLogEntry) error
}

// GenerationLogEntry records one generation attempt, successful or not.
type GenerationLogEntry struct {
	Time       string           `json:"time"`
	Chunk      hexgrid.ChunkKey `json:"chunk"`
	Seed       int64            `json:"seed"`
	Radius     int              `json:"radius"`
	Committed  []int            `json:"committed_segments,omitempty"`
	Entries    [6][]int         `json:"entries,omitempty"`
	Digest     string           `json:"digest,omitempty"`
	Stats      *layout.Stats    `json:"stats,omitempty"`
	Shortfall  int              `json:"shortfall,omitempty"`
	DurationMS int64            `json:"duration_ms"`
	Error      string           `json:"error,omitempty"`
}

// GenerationLoggers fans one entry out to several loggers. Every logger is
// called; the first error is returned.
type GenerationLoggers []GenerationLogger

func (ls GenerationLoggers) WriteGeneration(entry GenerationLogEntry) error {
	var first error
	for _, l := range ls {
		if l == nil {
			continue
		}
		if err := l.WriteGeneration(entry); err != nil && first == nil {
			first = err
		}
	}
	return first
}
