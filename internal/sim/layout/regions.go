package layout

import (
	"math"
	"math/rand"
	"sort"

	"hexchunk.ai/internal/sim/layout/hexgrid"
	"hexchunk.ai/internal/sim/tuning"
)

// RegionMap holds the Voronoi category (forest, water or grass) of each
// cell, indexed like the grid.
type RegionMap []TileType

func (m RegionMap) Count(t TileType) int {
	n := 0
	for _, v := range m {
		if v == t {
			n++
		}
	}
	return n
}

// Seed is one Voronoi site. Its index in the seed slice is its tie-break rank.
type Seed struct {
	Cell     int
	Category TileType
}

// AssignRegions scatters the configured seeds over distinct cells and gives
// every cell the category of its nearest seed by hex distance. Equal
// distances go to the seed scattered first (forest, then water, then grass).
func AssignRegions(g *hexgrid.Grid, cfg tuning.GenerationConfig, rng *rand.Rand) (RegionMap, []Seed, error) {
	counts := cfg.Voronoi
	total := counts.Total()
	if total > g.Len() {
		return nil, nil, newError(ErrInsufficientGridSize, "voronoi_seeds", total, -1)
	}

	seeds := make([]Seed, 0, total)
	used := make([]bool, g.Len())
	scatter := func(n int, cat TileType) {
		for k := 0; k < n; k++ {
			for {
				i := rng.Intn(g.Len())
				if used[i] {
					continue
				}
				used[i] = true
				seeds = append(seeds, Seed{Cell: i, Category: cat})
				break
			}
		}
	}
	scatter(counts.Forest, TileForest)
	scatter(counts.Water, TileWater)
	scatter(counts.Grass, TileGrass)

	regions := make(RegionMap, g.Len())
	for i := range regions {
		best, bestD := 0, math.MaxInt
		for si, s := range seeds {
			if d := g.Distance(i, s.Cell); d < bestD {
				best, bestD = si, d
			}
		}
		regions[i] = seeds[best].Category
	}

	enforceGrassFloor(g, regions, seeds, cfg.GrassRatio)
	return regions, seeds, nil
}

// enforceGrassFloor relabels forest cells as grass until at least ratio of
// the grid is grass. Cells closest to a grass seed go first; seed cells and
// water are never touched.
func enforceGrassFloor(g *hexgrid.Grid, regions RegionMap, seeds []Seed, ratio float64) {
	want := int(math.Ceil(ratio * float64(g.Len())))
	need := want - regions.Count(TileGrass)
	if need <= 0 {
		return
	}
	var grassSeeds []int
	isSeed := make(map[int]bool, len(seeds))
	for _, s := range seeds {
		isSeed[s.Cell] = true
		if s.Category == TileGrass {
			grassSeeds = append(grassSeeds, s.Cell)
		}
	}
	if len(grassSeeds) == 0 {
		return
	}

	type cand struct{ cell, dist int }
	var cands []cand
	for i, t := range regions {
		if t != TileForest || isSeed[i] {
			continue
		}
		d := math.MaxInt
		for _, gs := range grassSeeds {
			if v := g.Distance(i, gs); v < d {
				d = v
			}
		}
		cands = append(cands, cand{cell: i, dist: d})
	}
	sort.SliceStable(cands, func(a, b int) bool { return cands[a].dist < cands[b].dist })
	for k := 0; k < need && k < len(cands); k++ {
		regions[cands[k].cell] = TileGrass
	}
}
