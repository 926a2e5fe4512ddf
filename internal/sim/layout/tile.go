package layout

import "fmt"

// TileType is the closed set of tile variants a cell can hold. The numeric
// values are part of the wire and file formats.
type TileType uint8

const (
	TileGrass TileType = iota
	TileBuilding
	TileRoad
	TileForest
	TileWater
)

// TileTypes lists every variant in code order.
var TileTypes = []TileType{TileGrass, TileBuilding, TileRoad, TileForest, TileWater}

var tileNames = [...]string{
	TileGrass:    "GRASS",
	TileBuilding: "BUILDING",
	TileRoad:     "ROAD",
	TileForest:   "FOREST",
	TileWater:    "WATER",
}

func (t TileType) Valid() bool { return int(t) < len(tileNames) }

func (t TileType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("TileType(%d)", uint8(t))
	}
	return tileNames[t]
}

func ParseTileType(s string) (TileType, error) {
	for i, n := range tileNames {
		if n == s {
			return TileType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown tile type %q", s)
}

func (t TileType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid tile type %d", uint8(t))
	}
	return []byte(tileNames[t]), nil
}

func (t *TileType) UnmarshalText(b []byte) error {
	v, err := ParseTileType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
