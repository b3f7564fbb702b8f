package llm

import (
	"context"
	"sync/atomic"
)

// Limiter bounds the number of in-flight calls to one backend.
// A nil Limiter or one created with max <= 0 never blocks.
type Limiter struct {
	slots    chan struct{}
	inFlight atomic.Int64
	waited   atomic.Int64
}

// NewLimiter creates a limiter allowing max concurrent calls.
func NewLimiter(max int) *Limiter {
	l := &Limiter{}
	if max > 0 {
		l.slots = make(chan struct{}, max)
	}
	return l
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil || l.slots == nil {
		if l != nil {
			l.inFlight.Add(1)
		}
		return nil
	}

	select {
	case l.slots <- struct{}{}:
		l.inFlight.Add(1)
		return nil
	default:
	}

	l.waited.Add(1)
	select {
	case l.slots <- struct{}{}:
		l.inFlight.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	if l == nil {
		return
	}
	l.inFlight.Add(-1)
	if l.slots != nil {
		<-l.slots
	}
}

// InFlight returns the number of calls currently holding a slot.
func (l *Limiter) InFlight() int {
	if l == nil {
		return 0
	}
	return int(l.inFlight.Load())
}

// Waited returns how many Acquire calls had to queue.
func (l *Limiter) Waited() int64 {
	if l == nil {
		return 0
	}
	return l.waited.Load()
}

// limitedAdapter gates Generate behind a Limiter. ListModels is not limited.
type limitedAdapter struct {
	Adapter
	limiter *Limiter
}

// WithLimit wraps a so that at most max Generate calls run at once.
// A waiting call that loses its context fails with a canceled or timeout
// BackendError.
func WithLimit(a Adapter, max int) Adapter {
	if max <= 0 {
		return a
	}
	return &limitedAdapter{Adapter: a, limiter: NewLimiter(max)}
}

func (l *limitedAdapter) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if err := l.limiter.Acquire(ctx); err != nil {
		return nil, classifyTransportError(ctx, l.Name(), req.Model, err)
	}
	defer l.limiter.Release()
	return l.Adapter.Generate(ctx, req)
}

// Limiter exposes the wrapped limiter for status reporting.
func (l *limitedAdapter) Limiter() *Limiter {
	return l.limiter
}
