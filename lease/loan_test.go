package lease

import (
	"math/big"
	"testing"
	"time"

	"leased/core/types"
)

func newTestLoan(principal int64, start time.Time) Loan {
	lpn := types.CurrencyUSDC
	return Loan{
		PrincipalDue:    types.NewCoin(big.NewInt(principal), lpn),
		AnnualMarginBps: 300,
		LppLoanRateBps:  500,
		DuePeriod:       30 * 24 * time.Hour,
		PeriodStartAt:   start,
		AccruedMargin:   types.ZeroCoin(lpn),
		AccruedInterest: types.ZeroCoin(lpn),
		OverdueMargin:   types.ZeroCoin(lpn),
		OverdueInterest: types.ZeroCoin(lpn),
	}
}

func TestLoanAccrueMovesToOverdueAfterDuePeriod(t *testing.T) {
	start := time.Unix(0, 0).UTC()
	loan := newTestLoan(1_000_000, start)

	if err := loan.Accrue(start.Add(31 * 24 * time.Hour)); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if loan.AccruedMargin.Amount.Sign() != 0 || loan.AccruedInterest.Amount.Sign() != 0 {
		t.Fatalf("expected accrued buckets to roll into overdue, got margin=%s interest=%s", loan.AccruedMargin.Amount, loan.AccruedInterest.Amount)
	}
	if loan.OverdueMargin.Amount.Sign() <= 0 || loan.OverdueInterest.Amount.Sign() <= 0 {
		t.Fatalf("expected overdue buckets to be populated")
	}
}

func TestLoanAccrueMultipleTicksMatchesSingleTick(t *testing.T) {
	start := time.Unix(0, 0).UTC()

	ticked := newTestLoan(1_000_000, start)
	for i := 1; i <= 10; i++ {
		if err := ticked.Accrue(start.Add(time.Duration(i) * 24 * time.Hour)); err != nil {
			t.Fatalf("accrue tick %d: %v", i, err)
		}
	}

	oneShot := newTestLoan(1_000_000, start)
	if err := oneShot.Accrue(start.Add(10 * 24 * time.Hour)); err != nil {
		t.Fatalf("accrue one-shot: %v", err)
	}

	if ticked.AccruedMargin.Amount.Cmp(oneShot.AccruedMargin.Amount) != 0 {
		t.Fatalf("10 ticks over 10 days must match one accrual over 10 days: got margin=%s want=%s",
			ticked.AccruedMargin.Amount, oneShot.AccruedMargin.Amount)
	}
	if ticked.AccruedInterest.Amount.Cmp(oneShot.AccruedInterest.Amount) != 0 {
		t.Fatalf("10 ticks over 10 days must match one accrual over 10 days: got interest=%s want=%s",
			ticked.AccruedInterest.Amount, oneShot.AccruedInterest.Amount)
	}
}

func TestLoanAccrueRepeatedCallSameInstantIsNoop(t *testing.T) {
	start := time.Unix(0, 0).UTC()
	loan := newTestLoan(1_000_000, start)

	now := start.Add(5 * 24 * time.Hour)
	if err := loan.Accrue(now); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	margin := new(big.Int).Set(loan.AccruedMargin.Amount)
	interest := new(big.Int).Set(loan.AccruedInterest.Amount)

	// Re-delivering the same time_alarm (same `now`) must be a no-op: no
	// further delta should accrue on top of what was already charged.
	if err := loan.Accrue(now); err != nil {
		t.Fatalf("accrue (repeat): %v", err)
	}
	if loan.AccruedMargin.Amount.Cmp(margin) != 0 || loan.AccruedInterest.Amount.Cmp(interest) != 0 {
		t.Fatalf("re-delivering the same alarm must not mutate debt: margin %s->%s interest %s->%s",
			margin, loan.AccruedMargin.Amount, interest, loan.AccruedInterest.Amount)
	}
}

func TestLoanRepayFixedPriorityCascade(t *testing.T) {
	loan := newTestLoan(50_000, time.Now())
	loan.OverdueMargin = types.NewCoin(big.NewInt(1_000), types.CurrencyUSDC)
	loan.OverdueInterest = types.NewCoin(big.NewInt(2_000), types.CurrencyUSDC)
	loan.AccruedMargin = types.NewCoin(big.NewInt(3_000), types.CurrencyUSDC)
	loan.AccruedInterest = types.NewCoin(big.NewInt(4_000), types.CurrencyUSDC)

	receipt := loan.Repay(big.NewInt(5_500))

	if receipt.OverdueMarginPaid.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected overdue margin fully drained, got %s", receipt.OverdueMarginPaid)
	}
	if receipt.OverdueInterestPaid.Cmp(big.NewInt(2_000)) != 0 {
		t.Fatalf("expected overdue interest fully drained, got %s", receipt.OverdueInterestPaid)
	}
	if receipt.DueMarginPaid.Cmp(big.NewInt(2_500)) != 0 {
		t.Fatalf("expected due margin partially drained to 2500, got %s", receipt.DueMarginPaid)
	}
	if receipt.DueInterestPaid.Sign() != 0 || receipt.PrincipalPaid.Sign() != 0 {
		t.Fatalf("expected nothing left for due interest/principal")
	}
	if receipt.Change.Sign() != 0 {
		t.Fatalf("expected zero change, got %s", receipt.Change)
	}
	if receipt.Close {
		t.Fatalf("principal untouched, receipt must not close")
	}
}

func TestLoanRepayWithChangeClosesLease(t *testing.T) {
	loan := newTestLoan(50_000, time.Now())
	receipt := loan.Repay(big.NewInt(60_000))

	if receipt.PrincipalPaid.Cmp(big.NewInt(50_000)) != 0 {
		t.Fatalf("expected full principal paid, got %s", receipt.PrincipalPaid)
	}
	if receipt.Change.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("expected change of 10000, got %s", receipt.Change)
	}
	if !receipt.Close {
		t.Fatalf("expected receipt.Close once principal reaches zero")
	}
	if loan.PrincipalDue.Amount.Sign() != 0 {
		t.Fatalf("expected principal due to be zero after repay")
	}
}

func TestRepayReceiptSumInvariant(t *testing.T) {
	loan := newTestLoan(50_000, time.Now())
	loan.OverdueMargin = types.NewCoin(big.NewInt(500), types.CurrencyUSDC)
	loan.OverdueInterest = types.NewCoin(big.NewInt(300), types.CurrencyUSDC)
	loan.AccruedMargin = types.NewCoin(big.NewInt(700), types.CurrencyUSDC)
	loan.AccruedInterest = types.NewCoin(big.NewInt(900), types.CurrencyUSDC)

	payment := big.NewInt(70_000)
	receipt := loan.Repay(payment)

	sum := new(big.Int)
	sum.Add(sum, receipt.OverdueMarginPaid)
	sum.Add(sum, receipt.OverdueInterestPaid)
	sum.Add(sum, receipt.DueMarginPaid)
	sum.Add(sum, receipt.DueInterestPaid)
	sum.Add(sum, receipt.PrincipalPaid)
	sum.Add(sum, receipt.Change)

	if sum.Cmp(payment) != 0 {
		t.Fatalf("sum(buckets)+change must equal payment: got %s want %s", sum, payment)
	}
}
