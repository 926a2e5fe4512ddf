package world

import (
	"context"
	"errors"
	"sync"

	"hexchunk.ai/internal/sim/layout/hexgrid"
)

// GenerateArea generates every chunk within rings of center using workers
// goroutines. Failures do not stop the other chunks; they come back joined.
func (g *Generator) GenerateArea(ctx context.Context, center hexgrid.ChunkKey, rings, workers int) error {
	if workers <= 0 {
		workers = g.tune.Workers
	}
	keys := hexgrid.ChunksWithin(center, rings)

	jobs := make(chan hexgrid.ChunkKey)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := range jobs {
				if _, err := g.GetOrGenerate(ctx, k); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}

feed:
	for _, k := range keys {
		select {
		case jobs <- k:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
