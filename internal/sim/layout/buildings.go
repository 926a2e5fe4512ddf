package layout

import (
	"math"
	"math/rand"
	"sort"

	"hexchunk.ai/internal/sim/layout/hexgrid"
	"hexchunk.ai/internal/sim/tuning"
)

// Placement is the outcome of building placement. Shortfall is how many of
// the requested buildings had no eligible cell; it is not an error.
type Placement struct {
	Cells     []int
	Requested int
	Eligible  int
	Shortfall int
}

// EligibleForBuilding reports whether cell i may host a building: grass
// region, not a road, and at least minAdjacent road neighbours.
func EligibleForBuilding(regions RegionMap, net *RoadNetwork, i, minAdjacent int) bool {
	return regions[i] == TileGrass && !net.Has(i) && net.RoadNeighbors(i) >= minAdjacent
}

// PlaceBuildings tags floor(density*N) eligible cells as buildings, capped
// at the eligible count, using the configured clustering policy.
func PlaceBuildings(g *hexgrid.Grid, regions RegionMap, net *RoadNetwork, cfg tuning.BuildingConfig, rng *rand.Rand) Placement {
	var elig []int
	for i := 0; i < g.Len(); i++ {
		if EligibleForBuilding(regions, net, i, cfg.MinAdjacentRoads) {
			elig = append(elig, i)
		}
	}
	requested := int(math.Floor(float64(cfg.Density)*float64(g.Len()) + 1e-9))
	count := requested
	if count > len(elig) {
		count = len(elig)
	}
	p := Placement{Requested: requested, Eligible: len(elig), Shortfall: requested - count}
	if count <= 0 {
		return p
	}

	var picked []int
	switch cfg.Clustering {
	case tuning.ClusterRandom:
		picked = pickRandom(elig, count, rng)
	case tuning.ClusterClustered:
		radius := cfg.SizeHint
		if radius < 1 {
			radius = 1
		}
		picked = pickClustered(g, elig, count, radius, rng)
	default:
		picked = pickDistributed(g, elig, count, rng)
	}
	sort.Ints(picked)
	p.Cells = picked
	return p
}

func pickRandom(elig []int, count int, rng *rand.Rand) []int {
	perm := rng.Perm(len(elig))
	out := make([]int, 0, count)
	for _, k := range perm[:count] {
		out = append(out, elig[k])
	}
	return out
}

// pickDistributed starts from a random cell and then always takes the cell
// farthest from every building placed so far.
func pickDistributed(g *hexgrid.Grid, elig []int, count int, rng *rand.Rand) []int {
	minDist := make([]int, len(elig))
	for k := range minDist {
		minDist[k] = math.MaxInt
	}
	taken := make([]bool, len(elig))
	out := make([]int, 0, count)

	next := rng.Intn(len(elig))
	for {
		taken[next] = true
		out = append(out, elig[next])
		if len(out) == count {
			return out
		}
		for k, c := range elig {
			if d := g.Distance(c, elig[next]); d < minDist[k] {
				minDist[k] = d
			}
		}
		next = -1
		for k := range elig {
			if taken[k] {
				continue
			}
			if next < 0 || minDist[k] > minDist[next] {
				next = k
			}
		}
	}
}

// pickClustered grows a cluster around a random anchor, nearest cells first,
// until nothing eligible is left within radius; then it starts a new anchor.
func pickClustered(g *hexgrid.Grid, elig []int, count, radius int, rng *rand.Rand) []int {
	taken := make([]bool, len(elig))
	out := make([]int, 0, count)
	take := func(k int) {
		taken[k] = true
		out = append(out, elig[k])
	}
	for len(out) < count {
		var free []int
		for k := range elig {
			if !taken[k] {
				free = append(free, k)
			}
		}
		anchor := free[rng.Intn(len(free))]
		take(anchor)
		for len(out) < count {
			best, bestD := -1, 0
			for k, c := range elig {
				if taken[k] {
					continue
				}
				d := g.Distance(c, elig[anchor])
				if d > radius {
					continue
				}
				if best < 0 || d < bestD {
					best, bestD = k, d
				}
			}
			if best < 0 {
				break
			}
			take(best)
		}
	}
	return out
}
