package world

import (
	"log"

	"hexchunk.ai/internal/sim/borders"
	"hexchunk.ai/internal/sim/tuning"
)

type GeneratorConfig struct {
	Tuning tuning.Tuning

	// Store holds border commitments. Nil means an in-memory store.
	Store borders.Store

	Logger    *log.Logger
	GenLogger GenerationLogger
}
