package quote

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// workerPool is a thin wrapper over errgroup with a concurrency limit.
type workerPool struct {
	group *errgroup.Group
	ctx   context.Context
}

func newWorkerPool(ctx context.Context, limit int) *workerPool {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	return &workerPool{group: g, ctx: gctx}
}

func (p *workerPool) Go(fn func(ctx context.Context) error) {
	p.group.Go(func() error {
		if err := p.ctx.Err(); err != nil {
			return err
		}
		return fn(p.ctx)
	})
}

func (p *workerPool) Wait() error {
	return p.group.Wait()
}
