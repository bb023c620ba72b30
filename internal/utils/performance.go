package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// slowBatchThreshold is the duration above which a ledger batch is logged at warn level
const slowBatchThreshold = 10 * time.Second

// BatchTimer measures one ledger batch such as a clock advance or a rank cycle.
//
// Usage:
//
//	timer := utils.StartBatch("rank_cycle", e.log)
//	...
//	timer.Done(len(users))
type BatchTimer struct {
	operation string
	start     time.Time
	log       zerolog.Logger
}

// StartBatch starts timing operation
func StartBatch(operation string, log zerolog.Logger) *BatchTimer {
	return &BatchTimer{operation: operation, start: time.Now(), log: log}
}

// Done logs the elapsed time and the number of items the batch covered
// (days, users, investments) and returns the elapsed time.
func (t *BatchTimer) Done(items int) time.Duration {
	elapsed := time.Since(t.start)

	event := t.log.Debug()
	if elapsed > slowBatchThreshold {
		event = t.log.Warn()
	}
	event.
		Str("operation", t.operation).
		Int("items", items).
		Dur("duration", elapsed).
		Msg("Batch finished")

	return elapsed
}
