package worker

import (
	"context"
	"sync"
)

// Loop is one long-running worker loop. id identifies it in logs.
type Loop func(ctx context.Context, id int)

// Pool runs a fixed number of identical loops. Loops share nothing but the
// state store, so each one is a full independent worker.
type Pool struct {
	wg sync.WaitGroup
	n  int
}

func NewPool(loops int) *Pool {
	if loops <= 0 {
		loops = 1
	}
	return &Pool{n: loops}
}

func (p *Pool) Size() int { return p.n }

// Start launches the loops. They stop when ctx is done.
func (p *Pool) Start(ctx context.Context, loop Loop) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			loop(ctx, id)
		}(i)
	}
}

// Wait blocks until every loop has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}
