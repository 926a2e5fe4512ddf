package borders

import (
	"sort"
	"sync"

	"hexchunk.ai/internal/sim/layout/hexgrid"
)

// Locks serialises generation of chunks that share a border. Each shared
// border is one lock; a chunk holds all six of its borders while it reads
// neighbour commitments and writes its own.
type Locks struct {
	mu    sync.Mutex
	edges map[Key]*edgeLock
}

type edgeLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocks() *Locks {
	return &Locks{edges: map[Key]*edgeLock{}}
}

// Edge is the canonical key of the border behind k: whichever of k and its
// facing key sorts first.
func Edge(k Key) Key {
	if f := k.Facing(); f.Less(k) {
		return f
	}
	return k
}

// LockChunk blocks until every border of chunk is held and returns the
// release function. Borders are always taken in key order, so two callers
// can never wait on each other in a cycle.
func (l *Locks) LockChunk(chunk hexgrid.ChunkKey) (unlock func()) {
	keys := make([]Key, 0, hexgrid.SegmentCount)
	for s := 0; s < hexgrid.SegmentCount; s++ {
		keys = append(keys, Edge(Key{Chunk: chunk, Segment: s}))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	held := make([]*edgeLock, 0, len(keys))
	for _, k := range keys {
		e := l.acquire(k)
		e.mu.Lock()
		held = append(held, e)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.release(keys[i])
		}
	}
}

func (l *Locks) acquire(k Key) *edgeLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.edges[k]
	if !ok {
		e = &edgeLock{}
		l.edges[k] = e
	}
	e.refs++
	return e
}

func (l *Locks) release(k Key) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.edges[k]
	e.refs--
	if e.refs == 0 {
		delete(l.edges, k)
	}
}

// Held reports how many borders currently have a holder or waiter.
func (l *Locks) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.edges)
}
