package layout

import (
	"fmt"
	"math/rand"

	"hexchunk.ai/internal/sim/layout/hexgrid"
	"hexchunk.ai/internal/sim/tuning"
)

// Generate builds one chunk layout. It is a pure function of its inputs:
// the same radius, config, seed and neighbour state always give the same
// layout. On failure it returns a *Error (or a config error) and no layout.
func Generate(radius int, cfg tuning.GenerationConfig, seed int64, neighbors NeighborBorders) (*Layout, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if radius > cfg.MaxRings {
		return nil, newError(ErrInvalidRadius, "radius", radius, -1)
	}
	g, err := hexgrid.New(radius)
	if err != nil {
		return nil, newError(ErrInvalidRadius, "radius", radius, -1)
	}
	if neighbors == nil {
		neighbors = NoNeighbors
	}

	rng := rand.New(rand.NewSource(seed))

	regions, _, err := AssignRegions(g, cfg, rng)
	if err != nil {
		return nil, err
	}
	net, err := SynthesizeRoads(g, regions, cfg, rng)
	if err != nil {
		return nil, err
	}
	entries, err := ResolveBorders(g, regions, net, cfg, neighbors)
	if err != nil {
		return nil, err
	}
	if err := net.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize roads: %w", err)
	}
	placement := PlaceBuildings(g, regions, net, cfg.Buildings, rng)

	layers := Layers{
		Regions:   regions,
		Roads:     net.Mask(),
		Buildings: make([]bool, g.Len()),
	}
	for _, c := range placement.Cells {
		layers.Buildings[c] = true
	}
	tiles := Merge(layers)

	stats := computeStats(tiles)
	stats.EligibleBuildings = placement.Eligible
	stats.RequestedBuildings = placement.Requested

	return &Layout{
		Radius:    radius,
		Seed:      seed,
		Coords:    g.Cells(),
		Tiles:     tiles,
		Entries:   entries,
		Shortfall: placement.Shortfall,
		Stats:     stats,
		layers:    layers,
		grid:      g,
	}, nil
}
