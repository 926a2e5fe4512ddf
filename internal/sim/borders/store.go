package borders

import (
	"context"
	"sort"
	"sync"

	"hexchunk.ai/internal/sim/layout/hexgrid"
)

// Key names one border segment of one chunk. Positions stored under a key are
// in that chunk's own frame.
type Key struct {
	Chunk   hexgrid.ChunkKey `json:"chunk"`
	Segment int              `json:"segment"`
}

// Facing is the key of the neighbouring chunk's segment that shares this
// border.
func (k Key) Facing() Key {
	return Key{Chunk: k.Chunk.Neighbor(k.Segment), Segment: hexgrid.Opposite(k.Segment)}
}

func (k Key) Less(o Key) bool {
	if k.Chunk != o.Chunk {
		return k.Chunk.Less(o.Chunk)
	}
	return k.Segment < o.Segment
}

// Store holds committed border entry points. Commit keeps the first write for
// a key; later commits to the same key are ignored. CommitAll does the same
// for a batch and either records every row or none of them.
type Store interface {
	Lookup(ctx context.Context, k Key) (positions []int, ok bool, err error)
	Commit(ctx context.Context, k Key, positions []int) error
	CommitAll(ctx context.Context, cs []Commitment) error
}

// Commitment is one stored row, used by listings.
type Commitment struct {
	Key       Key   `json:"key"`
	Positions []int `json:"positions"`
}

// MemStore is an in-process Store.
type MemStore struct {
	mu sync.RWMutex
	m  map[Key][]int
}

func NewMemStore() *MemStore {
	return &MemStore{m: map[Key][]int{}}
}

func (s *MemStore) Lookup(_ context.Context, k Key) ([]int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.m[k]
	if !ok {
		return nil, false, nil
	}
	return append([]int{}, pos...), true, nil
}

func (s *MemStore) Commit(_ context.Context, k Key, positions []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[k]; ok {
		return nil
	}
	s.m[k] = append([]int{}, positions...)
	return nil
}

func (s *MemStore) CommitAll(ctx context.Context, cs []Commitment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cs {
		if _, ok := s.m[c.Key]; ok {
			continue
		}
		s.m[c.Key] = append([]int{}, c.Positions...)
	}
	return nil
}

// List returns every commitment in key order.
func (s *MemStore) List() []Commitment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Commitment, 0, len(s.m))
	for k, pos := range s.m {
		out = append(out, Commitment{Key: k, Positions: append([]int{}, pos...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}
