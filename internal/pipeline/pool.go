package pipeline

import "context"

// Pool bounds the number of simultaneously in-flight operations against one
// external service. It is a plain channel semaphore; acquisition respects
// cancellation so a stopping run never parks on a full pool.
type Pool struct {
	slots chan struct{}
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{slots: make(chan struct{}, size)}
}

func (p *Pool) Acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) Release() {
	<-p.slots
}

// Size returns the pool's concurrency bound.
func (p *Pool) Size() int {
	return cap(p.slots)
}
