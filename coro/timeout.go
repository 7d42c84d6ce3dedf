package coro

import (
	"time"

	"github.com/glycerine/coronet/simhost"
)

// WithTimeout schedules clock to Terminate placeholder with timeoutValue
// after delay if it has not resolved sooner, implementing spec's
// make_operation_with_timeout. Cancellation composes naturally: whichever
// side resolves first wins, since Terminate is idempotent (P1).
func WithTimeout[R any](clock simhost.Clock, placeholder Operation[R], timeoutValue R, delay time.Duration) Operation[R] {
	cancel := clock.Schedule(delay, func() {
		placeholder.Terminate(timeoutValue)
	})
	placeholder.OnComplete(func(*R, *Failure) {
		cancel()
	})
	return placeholder
}
