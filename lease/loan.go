package lease

import (
	"math/big"
	"time"

	"leased/core/types"
)

// Loan is the Lpn-denominated principal borrowed from the liquidity pool,
// together with the margin/interest rates and the due-period clock.
type Loan struct {
	PrincipalDue         types.Coin // in Lpn
	AnnualMarginBps      uint32
	LppLoanRateBps       uint32 // supplied by the LPP at open time
	DuePeriod            time.Duration
	PeriodStartAt        time.Time

	// LastAccruedAt is the upper bound of the last Accrue call, so each
	// subsequent call only charges the delta since then rather than
	// re-measuring from PeriodStartAt. Zero until the first Accrue call,
	// which seeds it from PeriodStartAt.
	LastAccruedAt time.Time

	// AccruedMargin/AccruedInterest/OverdueMargin/OverdueInterest are the
	// running balances maintained between accrual ticks. Overdue buckets
	// start accumulating once DuePeriod has fully elapsed without payment.
	AccruedMargin    types.Coin
	AccruedInterest  types.Coin
	OverdueMargin    types.Coin
	OverdueInterest  types.Coin
}

// TotalDue returns principal + all accrued/overdue buckets.
func (l Loan) TotalDue() *big.Int {
	total := new(big.Int).Set(l.PrincipalDue.Amount)
	total.Add(total, l.AccruedMargin.Amount)
	total.Add(total, l.AccruedInterest.Amount)
	total.Add(total, l.OverdueMargin.Amount)
	total.Add(total, l.OverdueInterest.Amount)
	return total
}

// OverdueTotal returns only the overdue margin + overdue interest buckets.
func (l Loan) OverdueTotal() *big.Int {
	return new(big.Int).Add(l.OverdueMargin.Amount, l.OverdueInterest.Amount)
}

// Accrue advances the margin/interest accrual by the time elapsed since the
// last accrual (not since PeriodStartAt), so repeated calls within the same
// due period each charge only their own delta instead of re-measuring from
// period start. The delta for a call is the interest owed on principal_due
// from PeriodStartAt to now minus the interest owed from PeriodStartAt to
// LastAccruedAt, so per-call rounding does not compound: N calls over a span
// charge exactly what one call over the same span does. Once a full due
// period has elapsed since PeriodStartAt, the accrued buckets move into
// their overdue twins and the period resets.
// Interest math uses a widened big.Rat intermediate (see computeInterest) to
// avoid premature truncation; overflow is reported as ErrFinanceOverflow.
func (l *Loan) Accrue(now time.Time) error {
	if l.LastAccruedAt.IsZero() {
		l.LastAccruedAt = l.PeriodStartAt
	}
	sinceLastAccrual := now.Sub(l.LastAccruedAt)
	if sinceLastAccrual > 0 {
		chargedSeconds := uint64(l.LastAccruedAt.Sub(l.PeriodStartAt).Seconds())
		elapsedSeconds := chargedSeconds + uint64(sinceLastAccrual.Seconds())
		delta := func(rateBps uint32) (*big.Int, error) {
			total, err := computeInterest(l.PrincipalDue.Amount, rateBps, elapsedSeconds)
			if err != nil {
				return nil, err
			}
			charged, err := computeInterest(l.PrincipalDue.Amount, rateBps, chargedSeconds)
			if err != nil {
				return nil, err
			}
			return total.Sub(total, charged), nil
		}

		marginDelta, err := delta(l.AnnualMarginBps)
		if err != nil {
			return err
		}
		interestDelta, err := delta(l.LppLoanRateBps)
		if err != nil {
			return err
		}

		l.AccruedMargin = l.AccruedMargin.Add(types.NewCoin(marginDelta, l.AccruedMargin.Currency))
		l.AccruedInterest = l.AccruedInterest.Add(types.NewCoin(interestDelta, l.AccruedInterest.Currency))
		l.LastAccruedAt = now
	}

	if now.Sub(l.PeriodStartAt) >= l.DuePeriod {
		l.OverdueMargin = l.OverdueMargin.Add(l.AccruedMargin)
		l.OverdueInterest = l.OverdueInterest.Add(l.AccruedInterest)
		l.AccruedMargin = types.ZeroCoin(l.AccruedMargin.Currency)
		l.AccruedInterest = types.ZeroCoin(l.AccruedInterest.Currency)
		l.PeriodStartAt = now
		l.LastAccruedAt = now
	}
	return nil
}

// RepayReceipt is the bucket-by-bucket breakdown of how a payment was
// applied. sum(paid fields)+change == payment is an invariant callers can
// check directly off the returned struct.
type RepayReceipt struct {
	OverdueMarginPaid   *big.Int
	OverdueInterestPaid *big.Int
	DueMarginPaid       *big.Int
	DueInterestPaid     *big.Int
	PrincipalPaid       *big.Int
	Change              *big.Int
	Close               bool
}

// Repay applies payment against the receipt buckets in fixed priority order:
// overdue margin -> overdue interest -> due margin -> due interest ->
// principal. Each bucket absorbs at most what it currently owes; the
// remainder cascades to the next. Any amount left over after principal is
// returned as change. If principal reaches zero the receipt is marked close.
func (l *Loan) Repay(payment *big.Int) RepayReceipt {
	remaining := new(big.Int).Set(payment)
	receipt := RepayReceipt{
		OverdueMarginPaid:   big.NewInt(0),
		OverdueInterestPaid: big.NewInt(0),
		DueMarginPaid:       big.NewInt(0),
		DueInterestPaid:     big.NewInt(0),
		PrincipalPaid:       big.NewInt(0),
	}

	drain := func(bucket *types.Coin, paid *big.Int) {
		if remaining.Sign() <= 0 || bucket.Amount.Sign() <= 0 {
			return
		}
		take := minBigInt(remaining, bucket.Amount)
		paid.Add(paid, take)
		bucket.Amount = new(big.Int).Sub(bucket.Amount, take)
		remaining.Sub(remaining, take)
	}

	drain(&l.OverdueMargin, receipt.OverdueMarginPaid)
	drain(&l.OverdueInterest, receipt.OverdueInterestPaid)
	drain(&l.AccruedMargin, receipt.DueMarginPaid)
	drain(&l.AccruedInterest, receipt.DueInterestPaid)
	drain(&l.PrincipalDue, receipt.PrincipalPaid)

	receipt.Change = remaining
	receipt.Close = l.PrincipalDue.Amount.Sign() == 0

	return receipt
}
