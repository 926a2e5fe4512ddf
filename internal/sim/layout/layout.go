package layout

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"hexchunk.ai/internal/sim/layout/hexgrid"
)

// Layout is the finished chunk: one tile per cell plus the border entry
// points this chunk commits for its neighbours.
type Layout struct {
	Radius int
	Seed   int64

	Coords []hexgrid.Coord
	Tiles  []TileType

	Entries   [hexgrid.SegmentCount][]int
	Shortfall int
	Stats     Stats

	layers Layers
	grid   *hexgrid.Grid
}

type Stats struct {
	Cells     int `json:"cells"`
	Roads     int `json:"roads"`
	Buildings int `json:"buildings"`
	Forest    int `json:"forest"`
	Water     int `json:"water"`
	Grass     int `json:"grass"`

	EligibleBuildings  int `json:"eligible_buildings"`
	RequestedBuildings int `json:"requested_buildings"`
}

func computeStats(tiles []TileType) Stats {
	s := Stats{Cells: len(tiles)}
	for _, t := range tiles {
		switch t {
		case TileRoad:
			s.Roads++
		case TileBuilding:
			s.Buildings++
		case TileForest:
			s.Forest++
		case TileWater:
			s.Water++
		case TileGrass:
			s.Grass++
		}
	}
	return s
}

// TileAt looks up the tile at a chunk-local coordinate.
func (l *Layout) TileAt(c hexgrid.Coord) (TileType, bool) {
	i, ok := l.grid.Index(c)
	if !ok {
		return 0, false
	}
	return l.Tiles[i], true
}

// FromTiles rebuilds a layout from stored tiles, e.g. a layout file or a
// wire message. Layers are not recoverable and stay empty.
func FromTiles(radius int, seed int64, tiles []TileType, entries [hexgrid.SegmentCount][]int, shortfall int) (*Layout, error) {
	g, err := hexgrid.New(radius)
	if err != nil {
		return nil, newError(ErrInvalidRadius, "radius", radius, -1)
	}
	if len(tiles) != g.Len() {
		return nil, fmt.Errorf("tile count mismatch: got %d want %d", len(tiles), g.Len())
	}
	for i, t := range tiles {
		if !t.Valid() {
			return nil, fmt.Errorf("invalid tile %d at cell %d", uint8(t), i)
		}
	}
	for s, seg := range entries {
		for _, p := range seg {
			if p < 0 || p >= g.SegmentLen() {
				return nil, fmt.Errorf("segment %d entry %d out of range", s, p)
			}
		}
	}
	out := make([]TileType, len(tiles))
	copy(out, tiles)
	return &Layout{
		Radius:    radius,
		Seed:      seed,
		Coords:    g.Cells(),
		Tiles:     out,
		Entries:   entries,
		Shortfall: shortfall,
		Stats:     computeStats(out),
		grid:      g,
	}, nil
}

// Remerge flattens the layers this layout was generated from again. ok is
// false for layouts rebuilt from stored tiles, which carry no layers.
func (l *Layout) Remerge() (tiles []TileType, ok bool) {
	if l.layers.Regions == nil {
		return nil, false
	}
	return Merge(l.layers), true
}

// Count returns how many cells hold tile t.
func (l *Layout) Count(t TileType) int {
	n := 0
	for _, v := range l.Tiles {
		if v == t {
			n++
		}
	}
	return n
}

// Digest is a hex SHA-256 over radius, tiles and entry points.
func (l *Layout) Digest() string {
	h := sha256.New()
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(l.Radius))
	h.Write(tmp[:])
	buf := make([]byte, len(l.Tiles))
	for i, t := range l.Tiles {
		buf[i] = byte(t)
	}
	h.Write(buf)
	for _, seg := range l.Entries {
		binary.LittleEndian.PutUint64(tmp[:], uint64(len(seg)))
		h.Write(tmp[:])
		for _, p := range seg {
			binary.LittleEndian.PutUint64(tmp[:], uint64(p))
			h.Write(tmp[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
