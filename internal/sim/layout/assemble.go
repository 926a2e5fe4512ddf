package layout

// Layers are the independent per-cell layers of one chunk, indexed like the
// grid. They are never mutated by Merge.
type Layers struct {
	Regions   RegionMap
	Roads     []bool
	Buildings []bool
}

// Merge flattens the layers with precedence road > building > region.
func Merge(l Layers) []TileType {
	out := make([]TileType, len(l.Regions))
	for i, t := range l.Regions {
		switch {
		case l.Roads[i]:
			out[i] = TileRoad
		case l.Buildings[i]:
			out[i] = TileBuilding
		default:
			out[i] = t
		}
	}
	return out
}
