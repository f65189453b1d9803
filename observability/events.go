package observability

import (
	"strconv"

	"leased/core/events"
	"leased/lease"
)

// RecordBatch observes the events accumulated on a lease.Batch and updates
// the process metrics registry accordingly. Callers invoke this once per
// dispatched Response, after the batch has been committed.
func RecordBatch(batch []events.Event) {
	m := Metrics()
	for _, e := range batch {
		switch ev := e.(type) {
		case lease.StateTransitioned:
			m.Transitions.WithLabelValues(ev.From, ev.To).Inc()
			if ev.From == lease.StateRequestLoan.String() {
				m.OpenLeases.Inc()
			}
			if ev.To == lease.StateClosed.String() || ev.To == lease.StateLiquidated.String() {
				m.OpenLeases.Dec()
			}
		case lease.LiquidationTriggered:
			m.Liquidations.WithLabelValues(ev.Cause.String(), strconv.FormatBool(ev.Full)).Inc()
		case lease.RepaymentApplied:
			m.Repayments.WithLabelValues(strconv.FormatBool(ev.Receipt.Close)).Inc()
		case lease.DexAnomaly:
			m.DexRetries.WithLabelValues("swap", ev.Decision).Inc()
		}
	}
}
