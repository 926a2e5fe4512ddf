package layout

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"hexchunk.ai/internal/sim/layout/hexgrid"
	"hexchunk.ai/internal/sim/tuning"
)

// RoadNetwork is the set of road-bearing cells; roads join along grid
// adjacency. Pending lists border-forced cells that are not yet connected to
// the rest of the network.
type RoadNetwork struct {
	grid  *hexgrid.Grid
	cells []bool
	count int

	Pending []int
}

func newRoadNetwork(g *hexgrid.Grid) *RoadNetwork {
	return &RoadNetwork{grid: g, cells: make([]bool, g.Len())}
}

func (n *RoadNetwork) Has(i int) bool { return n.cells[i] }

func (n *RoadNetwork) Count() int { return n.count }

func (n *RoadNetwork) add(i int) {
	if !n.cells[i] {
		n.cells[i] = true
		n.count++
	}
}

func (n *RoadNetwork) remove(i int) {
	if n.cells[i] {
		n.cells[i] = false
		n.count--
	}
}

func (n *RoadNetwork) addPath(path []int) {
	for _, c := range path {
		n.add(c)
	}
}

// Cells lists road cells in canonical order.
func (n *RoadNetwork) Cells() []int {
	out := make([]int, 0, n.count)
	for i, ok := range n.cells {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// Mask returns a copy of the per-cell road flags.
func (n *RoadNetwork) Mask() []bool {
	out := make([]bool, len(n.cells))
	copy(out, n.cells)
	return out
}

// RoadNeighbors counts road cells adjacent to cell i.
func (n *RoadNetwork) RoadNeighbors(i int) int {
	k := 0
	for _, nb := range n.grid.Neighbors(i) {
		if n.cells[nb] {
			k++
		}
	}
	return k
}

// SegmentPositions lists, in ascending order, the positions on segment seg
// that carry a road.
func (n *RoadNetwork) SegmentPositions(seg int) []int {
	var out []int
	for pos, c := range n.grid.SegmentCells(seg) {
		if n.cells[c] {
			out = append(out, pos)
		}
	}
	return out
}

// Components groups road cells by adjacency. Components are ordered by their
// lowest cell and each lists its cells in canonical order.
func (n *RoadNetwork) Components() [][]int {
	comp := make([]int, len(n.cells))
	for i := range comp {
		comp[i] = -1
	}
	var out [][]int
	for start, ok := range n.cells {
		if !ok || comp[start] >= 0 {
			continue
		}
		id := len(out)
		comp[start] = id
		members := []int{start}
		for head := 0; head < len(members); head++ {
			for _, nb := range n.grid.Neighbors(members[head]) {
				if n.cells[nb] && comp[nb] < 0 {
					comp[nb] = id
					members = append(members, nb)
				}
			}
		}
		sort.Ints(members)
		out = append(out, members)
	}
	return out
}

// Connected reports whether all road cells form a single component.
func (n *RoadNetwork) Connected() bool {
	return len(n.Components()) <= 1
}

// Finalize checks the network is fit to be assembled: nothing pending and a
// single component.
func (n *RoadNetwork) Finalize() error {
	if len(n.Pending) > 0 {
		return fmt.Errorf("road network has %d pending border cells", len(n.Pending))
	}
	if comps := len(n.Components()); comps > 1 {
		return fmt.Errorf("road network has %d components", comps)
	}
	return nil
}

// connectTo routes from the network to cell and adds the path. An empty
// network simply starts at cell.
func (n *RoadNetwork) connectTo(regions RegionMap, cell int, blocked []bool) bool {
	if n.count == 0 {
		n.add(cell)
		return true
	}
	if n.cells[cell] {
		return true
	}
	targets := make([]bool, len(n.cells))
	targets[cell] = true
	path := route(n.grid, regions, n.cells, targets, blocked)
	if path == nil {
		return false
	}
	n.addPath(path)
	return true
}

// connectComponents joins every component to the largest one (earliest on a
// tie) until a single component remains.
func (n *RoadNetwork) connectComponents(regions RegionMap, blocked []bool) bool {
	for {
		comps := n.Components()
		if len(comps) <= 1 {
			return true
		}
		main := 0
		for i, c := range comps {
			if len(c) > len(comps[main]) {
				main = i
			}
		}
		sources := make([]bool, len(n.cells))
		for _, c := range comps[main] {
			sources[c] = true
		}
		targets := make([]bool, len(n.cells))
		for i, c := range comps {
			if i == main {
				continue
			}
			for _, cell := range c {
				targets[cell] = true
			}
		}
		path := route(n.grid, regions, sources, targets, blocked)
		if path == nil {
			return false
		}
		n.addPath(path)
	}
}

// SynthesizeRoads lays out a connected road network of at least
// round(density*N) cells that touches every border segment at least
// roads_per_border times.
func SynthesizeRoads(g *hexgrid.Grid, regions RegionMap, cfg tuning.GenerationConfig, rng *rand.Rand) (*RoadNetwork, error) {
	net := newRoadNetwork(g)
	total := g.Len()
	target := roadTarget(cfg.Roads, total)

	cands := make([]int, 0, total)
	for i, t := range regions {
		if t != TileWater {
			cands = append(cands, i)
		}
	}
	if len(cands) == 0 {
		for i := 0; i < total; i++ {
			cands = append(cands, i)
		}
	}
	rng.Shuffle(len(cands), func(i, j int) { cands[i], cands[j] = cands[j], cands[i] })

	nSeeds := int(math.Round(cfg.Roads.SeedPointRatio * float64(target)))
	if target > 0 && nSeeds < 1 {
		nSeeds = 1
	}
	if nSeeds > len(cands) {
		nSeeds = len(cands)
	}
	seeds, spare := cands[:nSeeds], cands[nSeeds:]

	net.connectSeeds(regions, seeds)
	for net.Count() < target && len(spare) > 0 {
		s := spare[0]
		spare = spare[1:]
		net.connectTo(regions, s, nil)
	}

	if err := net.ensureBorders(regions, cfg.Borders.RoadsPerBorder); err != nil {
		return nil, err
	}
	return net, nil
}

// roadTarget is round(density*N), capped at N.
func roadTarget(cfg tuning.RoadConfig, total int) int {
	target := int(math.Round(cfg.Density * float64(total)))
	if target > total {
		target = total
	}
	return target
}

// fillTo grows the network until it holds target cells, never entering
// blocked cells. Dry cells beat water, then the cell nearest to the network,
// then the lower index. It stops early when nothing reachable is left.
func (n *RoadNetwork) fillTo(regions RegionMap, target int, blocked []bool) {
	skip := make([]bool, len(n.cells))
	if n.count == 0 && target > 0 {
		if c := startCell(n.grid, regions); blocked == nil || !blocked[c] {
			n.add(c)
		}
	}
	for n.count < target {
		dist := hopDistances(n.grid, n.cells)
		pick := -1
		for c := range n.cells {
			if n.cells[c] || skip[c] || dist[c] < 0 || (blocked != nil && blocked[c]) {
				continue
			}
			if pick < 0 {
				pick = c
				continue
			}
			wc, wp := regions[c] == TileWater, regions[pick] == TileWater
			if wc != wp {
				if !wc {
					pick = c
				}
				continue
			}
			if dist[c] < dist[pick] {
				pick = c
			}
		}
		if pick < 0 {
			return
		}
		if !n.connectTo(regions, pick, blocked) {
			skip[pick] = true
		}
	}
}

// connectSeeds repeatedly joins the pending seed closest to the network.
func (n *RoadNetwork) connectSeeds(regions RegionMap, seeds []int) {
	pending := append([]int(nil), seeds...)
	if n.count == 0 && len(pending) > 0 {
		n.add(pending[0])
		pending = pending[1:]
	}
	for len(pending) > 0 {
		dist := hopDistances(n.grid, n.cells)
		best := 0
		for k, s := range pending {
			if dist[s] < dist[pending[best]] {
				best = k
			}
		}
		s := pending[best]
		pending = append(pending[:best], pending[best+1:]...)
		n.connectTo(regions, s, nil)
	}
}

// ensureBorders extends the network until each segment carries at least
// perBorder road cells. Dry candidates beat water, then the one nearest to
// the network, then the lower position.
func (n *RoadNetwork) ensureBorders(regions RegionMap, perBorder int) error {
	if perBorder <= 0 {
		return nil
	}
	g := n.grid
	if g.Radius() == 0 {
		return newError(ErrUnreachableBorder, "radius", 0, 0)
	}
	if perBorder > g.SegmentLen() {
		return newError(ErrUnreachableBorder, "roads_per_border", perBorder, 0)
	}
	for s := 0; s < hexgrid.SegmentCount; s++ {
		for len(n.SegmentPositions(s)) < perBorder {
			if n.count == 0 {
				n.add(startCell(g, regions))
				continue
			}
			dist := hopDistances(g, n.cells)
			pick := -1
			better := func(a, b int) bool {
				wa, wb := regions[a] == TileWater, regions[b] == TileWater
				if wa != wb {
					return !wa
				}
				return dist[a] < dist[b]
			}
			for _, c := range g.SegmentCells(s) {
				if n.cells[c] {
					continue
				}
				if pick < 0 || better(c, pick) {
					pick = c
				}
			}
			if pick < 0 || !n.connectTo(regions, pick, nil) {
				return newError(ErrUnreachableBorder, "segment", s, s)
			}
		}
	}
	return nil
}

// startCell is the dry cell nearest to the chunk centre, or the centre when
// the chunk is all water.
func startCell(g *hexgrid.Grid, regions RegionMap) int {
	center, _ := g.Index(hexgrid.Coord{})
	best := -1
	for i, t := range regions {
		if t == TileWater {
			continue
		}
		if best < 0 || g.Distance(i, center) < g.Distance(best, center) {
			best = i
		}
	}
	if best < 0 {
		return center
	}
	return best
}
