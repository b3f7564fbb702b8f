package store

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Reporter receives one outcome per backend call.
type Reporter interface {
	Report(model string, success bool, elapsed time.Duration, tokens int)
}

// outcomeTimeout bounds one outcome insert.
const outcomeTimeout = 2 * time.Second

// TeeReporter forwards each outcome to next and also persists it.
type TeeReporter struct {
	next  Reporter
	store *Store
}

// NewTeeReporter wraps next, typically the in-memory tracker.
func NewTeeReporter(next Reporter, store *Store) *TeeReporter {
	return &TeeReporter{next: next, store: store}
}

// Report updates next, then persists the outcome. Write failures are logged.
func (r *TeeReporter) Report(model string, success bool, elapsed time.Duration, tokens int) {
	if r.next != nil {
		r.next.Report(model, success, elapsed, tokens)
	}
	if r.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), outcomeTimeout)
	defer cancel()
	err := r.store.RecordOutcome(ctx, Outcome{
		Model:   model,
		Success: success,
		Elapsed: elapsed,
		Tokens:  tokens,
	})
	if err != nil {
		log.Warn().Err(err).Str("model", model).Msg("failed to persist dispatch outcome")
	}
}
