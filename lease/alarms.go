package lease

import "time"

// AlarmSchedule is the outcome of rescheduling: the next time alarm and the
// price-alarm zone edges to subscribe to. Rescheduling is idempotent — the
// same (state, now) must always rebuild the same schedule, mirroring the
// oracle aggregator's deterministic rolling-window sampling.
type AlarmSchedule struct {
	TimeAlarmAt time.Time
	PriceZone   Zone
}

// Reschedule recomputes the next time alarm as the minimum of the overdue
// collection start and now + the liability's recalc_time (never earlier than
// now), then attaches the price alarm covering the LTV zone the lease
// currently occupies. The close policy does not contribute a recheck time of
// its own. Called after every state recomputation in OpenedActive.
func Reschedule(now time.Time, periodStartAt time.Time, duePeriod time.Duration, liability Liability, zone Zone) AlarmSchedule {
	overdueStart := periodStartAt.Add(duePeriod)
	recalcAt := now.Add(liability.RecalcTime)

	next := overdueStart
	if recalcAt.Before(next) {
		next = recalcAt
	}
	if next.Before(now) {
		next = now
	}

	return AlarmSchedule{
		TimeAlarmAt: next,
		PriceZone:   zone,
	}
}
