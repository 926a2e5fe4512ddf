package layout

import (
	"container/heap"

	"hexchunk.ai/internal/sim/layout/hexgrid"
)

// waterStepCost makes a route cross water only when no dry route exists.
const waterStepCost = 1000

type pathNode struct {
	cell int
	cost int
}

// pathQueue is a min-heap on (cost, cell) so equal-cost expansions happen in
// canonical cell order.
type pathQueue []pathNode

func (q pathQueue) Len() int { return len(q) }
func (q pathQueue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	return q[i].cell < q[j].cell
}
func (q pathQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *pathQueue) Push(x any)   { *q = append(*q, x.(pathNode)) }
func (q *pathQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]
	return n
}

func stepCost(regions RegionMap, cell int) int {
	if regions[cell] == TileWater {
		return waterStepCost
	}
	return 1
}

// route finds the cheapest path from any source cell to the nearest target
// cell, never entering blocked cells (blocked may be nil). The path runs from
// the source to the target, both included. It returns nil when no target is
// reachable.
func route(g *hexgrid.Grid, regions RegionMap, sources, targets, blocked []bool) []int {
	n := g.Len()
	dist := make([]int, n)
	prev := make([]int, n)
	for i := range dist {
		dist[i] = -1
		prev[i] = -1
	}
	q := &pathQueue{}
	for i := 0; i < n; i++ {
		if sources[i] && (blocked == nil || !blocked[i]) {
			dist[i] = 0
			heap.Push(q, pathNode{cell: i})
		}
	}
	for q.Len() > 0 {
		cur := heap.Pop(q).(pathNode)
		if cur.cost != dist[cur.cell] {
			continue
		}
		if targets[cur.cell] {
			var path []int
			for c := cur.cell; c >= 0; c = prev[c] {
				path = append(path, c)
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}
		for _, nb := range g.Neighbors(cur.cell) {
			if blocked != nil && blocked[nb] {
				continue
			}
			nc := cur.cost + stepCost(regions, nb)
			if dist[nb] >= 0 && dist[nb] <= nc {
				continue
			}
			dist[nb] = nc
			prev[nb] = cur.cell
			heap.Push(q, pathNode{cell: nb, cost: nc})
		}
	}
	return nil
}

// hopDistances is the unweighted hex-step distance from the nearest source
// cell to every cell, or -1 where unreachable.
func hopDistances(g *hexgrid.Grid, sources []bool) []int {
	dist := make([]int, g.Len())
	queue := make([]int, 0, g.Len())
	for i := range dist {
		dist[i] = -1
		if sources[i] {
			dist[i] = 0
			queue = append(queue, i)
		}
	}
	for head := 0; head < len(queue); head++ {
		c := queue[head]
		for _, nb := range g.Neighbors(c) {
			if dist[nb] < 0 {
				dist[nb] = dist[c] + 1
				queue = append(queue, nb)
			}
		}
	}
	return dist
}
