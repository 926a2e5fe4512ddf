package hexgrid

import (
	"errors"
	"fmt"

	"hexchunk.ai/internal/sim/mathx"
)

// MaxRings is the largest ring radius a chunk grid may have.
const MaxRings = 50

// SegmentCount is the number of border segments around a chunk.
const SegmentCount = 6

var ErrInvalidRadius = errors.New("invalid radius")

// Coord is an axial hex coordinate (pointy top).
type Coord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

func (c Coord) Add(o Coord) Coord { return Coord{Q: c.Q + o.Q, R: c.R + o.R} }

func (c Coord) Scale(k int) Coord { return Coord{Q: c.Q * k, R: c.R * k} }

// S is the implied third cube coordinate.
func (c Coord) S() int { return -c.Q - c.R }

// Length is the hex distance from the origin.
func (c Coord) Length() int { return mathx.Max3Abs(c.Q, c.R, c.S()) }

// Directions are the six axial unit steps, counter-clockwise from east.
var Directions = [SegmentCount]Coord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

func Distance(a, b Coord) int {
	return Coord{Q: a.Q - b.Q, R: a.R - b.R}.Length()
}

// Grid is a bounded hexagon of cells within Radius rings of the origin.
// Cell indices follow the canonical order: q ascending, then r ascending.
type Grid struct {
	radius int

	cells     []Coord
	index     map[Coord]int
	neighbors [][]int

	segOf    []int8
	posOf    []int
	segments [SegmentCount][]int
}

func New(radius int) (*Grid, error) {
	if radius < 0 || radius > MaxRings {
		return nil, fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidRadius, radius, MaxRings)
	}
	n := CellCount(radius)
	g := &Grid{
		radius: radius,
		cells:  make([]Coord, 0, n),
		index:  make(map[Coord]int, n),
	}
	for q := -radius; q <= radius; q++ {
		r1 := mathx.MaxInt(-radius, -q-radius)
		r2 := mathx.MinInt(radius, -q+radius)
		for r := r1; r <= r2; r++ {
			c := Coord{Q: q, R: r}
			g.index[c] = len(g.cells)
			g.cells = append(g.cells, c)
		}
	}

	g.neighbors = make([][]int, len(g.cells))
	for i, c := range g.cells {
		nb := make([]int, 0, 6)
		for _, d := range Directions {
			if j, ok := g.index[c.Add(d)]; ok {
				nb = append(nb, j)
			}
		}
		g.neighbors[i] = nb
	}

	g.segOf = make([]int8, len(g.cells))
	g.posOf = make([]int, len(g.cells))
	for i := range g.segOf {
		g.segOf[i] = -1
	}
	for s := 0; s < SegmentCount; s++ {
		g.segments[s] = make([]int, 0, radius)
		for k := 0; k < radius; k++ {
			i := g.index[SegmentCell(radius, s, k)]
			g.segOf[i] = int8(s)
			g.posOf[i] = k
			g.segments[s] = append(g.segments[s], i)
		}
	}
	return g, nil
}

// CellCount is 1 + 3R(R+1).
func CellCount(radius int) int {
	return 1 + 3*radius*(radius+1)
}

func (g *Grid) Radius() int { return g.radius }

func (g *Grid) Len() int { return len(g.cells) }

func (g *Grid) Cell(i int) Coord { return g.cells[i] }

// Cells returns a copy of the canonical cell order.
func (g *Grid) Cells() []Coord {
	out := make([]Coord, len(g.cells))
	copy(out, g.cells)
	return out
}

func (g *Grid) Index(c Coord) (int, bool) {
	i, ok := g.index[c]
	return i, ok
}

// Neighbors lists in-grid neighbours of cell i in direction order.
// The returned slice is shared; callers must not modify it.
func (g *Grid) Neighbors(i int) []int { return g.neighbors[i] }

func (g *Grid) Distance(i, j int) int { return Distance(g.cells[i], g.cells[j]) }

// Segment reports which border segment cell i lies on and its position along
// that segment. Interior cells report ok=false.
func (g *Grid) Segment(i int) (seg, pos int, ok bool) {
	if g.segOf[i] < 0 {
		return -1, -1, false
	}
	return int(g.segOf[i]), g.posOf[i], true
}

// SegmentCells returns the cells of segment seg ordered by position.
func (g *Grid) SegmentCells(seg int) []int { return g.segments[seg] }

// SegmentLen is the number of entry positions on one segment.
func (g *Grid) SegmentLen() int { return g.radius }

// SegmentCell is the local coordinate of position pos on segment seg. Segment
// s runs from corner R*dir[s] towards corner R*dir[s+1]; the starting corner
// belongs to it and the far corner to the next segment.
func SegmentCell(radius, seg, pos int) Coord {
	return Directions[seg].Scale(radius).Add(Directions[(seg+2)%SegmentCount].Scale(pos))
}

// Opposite is the segment of the neighbouring chunk that faces seg.
func Opposite(seg int) int { return (seg + 3) % SegmentCount }

// MirrorPos maps a position on a segment to the facing position on the
// neighbour's opposite segment. The two cells are adjacent in world space.
func MirrorPos(radius, pos int) int { return radius - 1 - pos }
