package recording

import (
	"sync"

	"github.com/sarchlab/qnet/reservation"
	"github.com/sarchlab/qnet/sim"
)

// LatencyTracer measures how long reservations take from being pushed by
// the initiator to the initiator learning the result. Attach it to
// reservation protocols.
type LatencyTracer struct {
	lock      sync.Mutex
	inflight  map[string]sim.VTimeInSec
	total     sim.VTimeInSec
	count     uint64
	approved  uint64
	rejected  uint64
	maxLatency sim.VTimeInSec
}

// NewLatencyTracer creates a LatencyTracer.
func NewLatencyTracer() *LatencyTracer {
	return &LatencyTracer{
		inflight: make(map[string]sim.VTimeInSec),
	}
}

// Func starts or ends a measurement.
func (t *LatencyTracer) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case reservation.HookPosReservationPushed:
		r := ctx.Item.(*reservation.Reservation)

		t.lock.Lock()
		t.inflight[r.ID] = ctx.Now
		t.lock.Unlock()
	case reservation.HookPosReservationResult:
		t.end(ctx.Item.(*reservation.Reservation), ctx.Now, ctx.Detail.(bool))
	}
}

func (t *LatencyTracer) end(
	r *reservation.Reservation,
	now sim.VTimeInSec,
	approved bool,
) {
	t.lock.Lock()
	defer t.lock.Unlock()

	start, ok := t.inflight[r.ID]
	if !ok {
		return
	}

	delete(t.inflight, r.ID)

	latency := now - start
	t.total += latency
	t.count++

	if latency > t.maxLatency {
		t.maxLatency = latency
	}

	if approved {
		t.approved++
	} else {
		t.rejected++
	}
}

// AverageLatency returns the mean latency of finished reservations.
func (t *LatencyTracer) AverageLatency() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.count == 0 {
		return 0
	}

	return t.total / sim.VTimeInSec(t.count)
}

// MaxLatency returns the longest latency seen.
func (t *LatencyTracer) MaxLatency() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.maxLatency
}

// Counts returns how many reservations were approved and rejected.
func (t *LatencyTracer) Counts() (approved, rejected uint64) {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.approved, t.rejected
}

// InFlight returns how many reservations have no result yet.
func (t *LatencyTracer) InFlight() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.inflight)
}
