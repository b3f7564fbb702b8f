package logging

import (
	"context"
	"time"
)

// DetachContext returns a context that keeps parent's values but is never
// cancelled by it. Bookkeeping that must finish after a request times out
// (decision records, audit writes) runs on a detached context.
func DetachContext(parent context.Context) context.Context {
	return context.WithoutCancel(parent)
}

// DetachContextWithTimeout detaches from parent and applies its own deadline.
//
//	ctx, cancel := logging.DetachContextWithTimeout(reqCtx, 2*time.Second)
//	defer cancel()
//	_ = sink.RecordDecision(ctx, decision)
func DetachContextWithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), timeout)
}
