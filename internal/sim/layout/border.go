package layout

import (
	"sort"

	"hexchunk.ai/internal/sim/layout/hexgrid"
	"hexchunk.ai/internal/sim/tuning"
)

// NeighborBorders reports the committed entry positions of the neighbour
// chunk facing segment seg, expressed on the neighbour's own opposite
// segment. ok is false while that border is uncommitted.
type NeighborBorders func(seg int) (positions []int, ok bool)

// NoNeighbors treats every border as uncommitted.
func NoNeighbors(int) ([]int, bool) { return nil, false }

// ResolveBorders forces each segment whose neighbour has already committed to
// carry roads at exactly the facing positions, then reconnects the network
// and tops it back up to the road target without touching any other cell of
// those segments. It returns the entry positions of all six segments, which
// become this chunk's commitment.
func ResolveBorders(g *hexgrid.Grid, regions RegionMap, net *RoadNetwork, cfg tuning.GenerationConfig, neighbors NeighborBorders) ([hexgrid.SegmentCount][]int, error) {
	var entries [hexgrid.SegmentCount][]int
	if cfg.Borders.ConnectToNeighbors && neighbors != nil {
		var required [hexgrid.SegmentCount][]int
		var committed [hexgrid.SegmentCount]bool
		anyCommitted := false
		for s := 0; s < hexgrid.SegmentCount; s++ {
			pos, ok := neighbors(s)
			if !ok {
				continue
			}
			if len(pos) > g.SegmentLen() {
				return entries, newError(ErrBorderConflict, "entry_points", len(pos), s)
			}
			committed[s] = true
			required[s] = snapPositions(g.SegmentLen(), pos)
			anyCommitted = true
		}

		if anyCommitted {
			blocked := make([]bool, g.Len())
			for s := 0; s < hexgrid.SegmentCount; s++ {
				if !committed[s] {
					continue
				}
				want := make(map[int]bool, len(required[s]))
				for _, p := range required[s] {
					want[p] = true
				}
				cells := g.SegmentCells(s)
				for pos, c := range cells {
					if want[pos] {
						if !net.Has(c) {
							net.Pending = append(net.Pending, c)
						}
						continue
					}
					blocked[c] = true
					net.remove(c)
				}
			}
			for _, c := range net.Pending {
				net.add(c)
			}
			if !net.connectComponents(regions, blocked) {
				return entries, newError(ErrUnreachableBorder, "pending_cells", len(net.Pending), -1)
			}
			net.Pending = nil
			net.fillTo(regions, roadTarget(cfg.Roads, g.Len()), blocked)
		}
	}
	for s := 0; s < hexgrid.SegmentCount; s++ {
		entries[s] = net.SegmentPositions(s)
	}
	return entries, nil
}

// snapPositions mirrors a neighbour's positions into this chunk's frame and
// moves each one to the nearest free position inside [0, segLen). The caller
// guarantees len(pos) <= segLen.
func snapPositions(segLen int, pos []int) []int {
	taken := make([]bool, segLen)
	out := make([]int, 0, len(pos))
	for _, p := range pos {
		m := hexgrid.MirrorPos(segLen, p)
		if m < 0 {
			m = 0
		}
		if m >= segLen {
			m = segLen - 1
		}
		for d := 0; d < segLen; d++ {
			if lo := m - d; lo >= 0 && !taken[lo] {
				m = lo
				break
			}
			if hi := m + d; hi < segLen && !taken[hi] {
				m = hi
				break
			}
		}
		taken[m] = true
		out = append(out, m)
	}
	sort.Ints(out)
	return out
}
