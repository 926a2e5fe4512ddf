package layout

import (
	"errors"
	"reflect"
	"testing"

	"hexchunk.ai/internal/sim/layout/hexgrid"
	"hexchunk.ai/internal/sim/tuning"
)

func TestSnapPositions(t *testing.T) {
	cases := []struct {
		name   string
		segLen int
		in     []int
		want   []int
	}{
		{"mirror", 5, []int{0, 3}, []int{1, 4}},
		{"empty", 5, nil, []int{}},
		{"collision moves to nearest free", 3, []int{1, 1}, []int{0, 1}},
		{"out of range clamps", 4, []int{7}, []int{0}},
		{"full segment", 3, []int{0, 1, 2}, []int{0, 1, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := snapPositions(tc.segLen, tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func mirrored(radius int, pos []int) []int {
	return snapPositions(radius, pos)
}

// neighborsFrom serves the committed entries of already generated chunks the
// way a border store would.
func neighborsFrom(key hexgrid.ChunkKey, done map[hexgrid.ChunkKey]*Layout) NeighborBorders {
	return func(seg int) ([]int, bool) {
		nb, ok := done[key.Neighbor(seg)]
		if !ok {
			return nil, false
		}
		return nb.Entries[hexgrid.Opposite(seg)], true
	}
}

func roadNetworkOf(l *Layout) *RoadNetwork {
	net := newRoadNetwork(l.grid)
	for i, t := range l.Tiles {
		if t == TileRoad {
			net.add(i)
		}
	}
	return net
}

func TestResolveBorders_TwoChunksAlign(t *testing.T) {
	const radius = 6
	cfg := tuning.DefaultGeneration()
	a := hexgrid.ChunkKey{}
	done := map[hexgrid.ChunkKey]*Layout{}

	la, err := Generate(radius, cfg, 11, neighborsFrom(a, done))
	if err != nil {
		t.Fatalf("generate A: %v", err)
	}
	done[a] = la

	for seg := 0; seg < hexgrid.SegmentCount; seg++ {
		b := a.Neighbor(seg)
		lb, err := Generate(radius, cfg, int64(99+seg), neighborsFrom(b, done))
		if err != nil {
			t.Fatalf("generate B on segment %d: %v", seg, err)
		}
		back := hexgrid.Opposite(seg)
		want := mirrored(radius, la.Entries[seg])
		if got := lb.Entries[back]; !reflect.DeepEqual(got, want) {
			t.Fatalf("segment %d: B entries %v, want mirror of %v = %v", seg, got, la.Entries[seg], want)
		}
		for _, p := range la.Entries[seg] {
			ca := hexgrid.ToWorld(a, radius, hexgrid.SegmentCell(radius, seg, p))
			cb := hexgrid.ToWorld(b, radius, hexgrid.SegmentCell(radius, back, hexgrid.MirrorPos(radius, p)))
			if hexgrid.Distance(ca, cb) != 1 {
				t.Fatalf("segment %d pos %d: world cells %v and %v are not adjacent", seg, p, ca, cb)
			}
			if tile, _ := lb.TileAt(hexgrid.SegmentCell(radius, back, hexgrid.MirrorPos(radius, p))); tile != TileRoad {
				t.Fatalf("segment %d pos %d: B tile %v, want ROAD", seg, p, tile)
			}
		}
		if !roadNetworkOf(lb).Connected() {
			t.Fatalf("segment %d: B roads are not connected", seg)
		}
	}
}

func TestResolveBorders_EmptyCommitClearsSegment(t *testing.T) {
	cfg := tuning.DefaultGeneration()
	neighbors := func(seg int) ([]int, bool) {
		if seg == 2 {
			return []int{}, true
		}
		return nil, false
	}
	l, err := Generate(5, cfg, 4, neighbors)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(l.Entries[2]) != 0 {
		t.Fatalf("segment 2 should carry no roads, got %v", l.Entries[2])
	}
	for s := 0; s < hexgrid.SegmentCount; s++ {
		if s != 2 && len(l.Entries[s]) == 0 {
			t.Fatalf("segment %d lost its roads", s)
		}
	}
	if !roadNetworkOf(l).Connected() {
		t.Fatalf("roads are not connected")
	}
}

func TestResolveBorders_Conflict(t *testing.T) {
	cfg := tuning.DefaultGeneration()
	neighbors := func(seg int) ([]int, bool) {
		if seg == 4 {
			return []int{0, 1, 2, 3}, true
		}
		return nil, false
	}
	_, err := Generate(3, cfg, 1, neighbors)
	if !errors.Is(err, ErrBorderConflict) {
		t.Fatalf("expected ErrBorderConflict, got %v", err)
	}
	var ge *Error
	if !errors.As(err, &ge) || ge.Segment != 4 {
		t.Fatalf("expected conflict on segment 4, got %#v", err)
	}
}

func TestResolveBorders_DisabledIgnoresNeighbors(t *testing.T) {
	cfg := tuning.DefaultGeneration()
	cfg.Borders.ConnectToNeighbors = false
	neighbors := func(seg int) ([]int, bool) { return []int{0}, true }

	a, err := Generate(4, cfg, 21, neighbors)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := Generate(4, cfg, 21, NoNeighbors)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if a.Digest() != b.Digest() {
		t.Fatalf("neighbour borders changed the layout with connect_to_neighbors=false")
	}
}

func TestResolveBorders_KeepsRoadTarget(t *testing.T) {
	// Committed sides strip every non-entry road cell from their segment; the
	// network must still reach its road target afterwards.
	committed := map[int][]int{0: {}, 1: {0}, 3: {1}, 4: {}}
	neighbors := func(seg int) ([]int, bool) {
		pos, ok := committed[seg]
		return pos, ok
	}
	for _, radius := range []int{2, 3, 5, 9} {
		for _, density := range []float64{0.1, 0.4} {
			for seed := int64(1); seed <= 6; seed++ {
				cfg := tuning.DefaultGeneration()
				cfg.Roads.Density = density
				l, err := Generate(radius, cfg, seed, neighbors)
				if err != nil {
					t.Fatalf("r=%d d=%v seed=%d: %v", radius, density, seed, err)
				}
				target := roadTarget(cfg.Roads, len(l.Tiles))
				if got := l.Count(TileRoad); got < target {
					t.Fatalf("r=%d d=%v seed=%d: road count %d below target %d", radius, density, seed, got, target)
				}
				for seg, pos := range committed {
					if want := snapPositions(radius, pos); !reflect.DeepEqual(l.Entries[seg], want) {
						t.Fatalf("r=%d d=%v seed=%d segment %d: entries %v want %v", radius, density, seed, seg, l.Entries[seg], want)
					}
				}
				if !roadNetworkOf(l).Connected() {
					t.Fatalf("r=%d d=%v seed=%d: roads are not connected", radius, density, seed)
				}
			}
		}
	}
}

func TestFillTo_StopsAtBlockedCells(t *testing.T) {
	g, err := hexgrid.New(2)
	if err != nil {
		t.Fatal(err)
	}
	regions := make(RegionMap, g.Len())
	for i := range regions {
		regions[i] = TileGrass
	}
	center, _ := g.Index(hexgrid.Coord{})
	blocked := make([]bool, g.Len())
	for i := range blocked {
		blocked[i] = g.Distance(i, center) == 2
	}
	net := newRoadNetwork(g)
	net.add(center)
	net.fillTo(regions, g.Len(), blocked)
	if net.Count() != 7 {
		t.Fatalf("count=%d want 7 (centre plus first ring)", net.Count())
	}
	for _, c := range net.Cells() {
		if blocked[c] {
			t.Fatalf("filled blocked cell %d", c)
		}
	}
}
