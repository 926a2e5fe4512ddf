package hexgrid

import (
	"fmt"
	"strconv"
)

// ChunkKey addresses a chunk in the chunk lattice. Lattice neighbours share
// one border segment each.
type ChunkKey struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// Neighbor is the chunk across border segment seg.
func (k ChunkKey) Neighbor(seg int) ChunkKey {
	d := Directions[seg]
	return ChunkKey{Q: k.Q + d.Q, R: k.R + d.R}
}

// Less orders keys by Q then R.
func (k ChunkKey) Less(o ChunkKey) bool {
	if k.Q != o.Q {
		return k.Q < o.Q
	}
	return k.R < o.R
}

// translation is the world offset between a chunk and its neighbour across
// segment seg: (R+1)*dir[seg] + R*dir[seg+1].
func translation(radius, seg int) Coord {
	return Directions[seg].Scale(radius + 1).Add(Directions[(seg+1)%SegmentCount].Scale(radius))
}

// ChunkOrigin is the world coordinate of the centre cell of chunk k when
// chunks of the given radius tile the plane.
func ChunkOrigin(k ChunkKey, radius int) Coord {
	// dir[0] maps to T0 and dir[2] = (0,-1) maps to T2.
	return translation(radius, 0).Scale(k.Q).Add(translation(radius, 2).Scale(-k.R))
}

// ToWorld converts a chunk-local coordinate to world space.
func ToWorld(k ChunkKey, radius int, local Coord) Coord {
	return ChunkOrigin(k, radius).Add(local)
}

// ChunksWithin lists chunk keys within rings chunk-steps of center, in the
// same q-then-r order the grid uses for cells.
func ChunksWithin(center ChunkKey, rings int) []ChunkKey {
	if rings < 0 {
		return nil
	}
	out := make([]ChunkKey, 0, CellCount(rings))
	for q := -rings; q <= rings; q++ {
		r1 := -rings
		if -q-rings > r1 {
			r1 = -q - rings
		}
		r2 := rings
		if -q+rings < r2 {
			r2 = -q + rings
		}
		for r := r1; r <= r2; r++ {
			out = append(out, ChunkKey{Q: center.Q + q, R: center.R + r})
		}
	}
	return out
}

// ParseChunkKey parses decimal q and r query values.
func ParseChunkKey(q, r string) (ChunkKey, error) {
	qi, err := strconv.Atoi(q)
	if err != nil {
		return ChunkKey{}, fmt.Errorf("q: %w", err)
	}
	ri, err := strconv.Atoi(r)
	if err != nil {
		return ChunkKey{}, fmt.Errorf("r: %w", err)
	}
	return ChunkKey{Q: qi, R: ri}, nil
}
